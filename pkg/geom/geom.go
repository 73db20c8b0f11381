// Package geom provides the geometric primitives used to recover electrical
// connectivity from schematic drawings.
//
// All coordinates are document units (the schematic editor's pixel grid).
// Connectivity is decided by a single fixed tolerance, Tolerance; nothing in
// this package takes a tolerance parameter so that net formation cannot drift
// between call sites.
package geom

import "math"

// Tolerance is the connection threshold in document units. Two points closer
// than this on both axes are the same connection point, and a point closer
// than this to a wire segment lies on that wire.
const Tolerance = 5.0

// Point is a 2D position in document coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x" msgpack:"x"`
	Y float64 `json:"y" yaml:"y" msgpack:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance to q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Segment is a straight piece of wire between two points.
type Segment struct {
	A, B Point
}

// DistancePointToSegment returns the distance from p to the closest point of
// the segment ab. A zero-length segment degrades to point distance.
func DistancePointToSegment(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return p.Distance(a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lengthSq
	t = math.Max(0, math.Min(1, t))

	return p.Distance(Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// PointsCoincide reports whether p and q are the same connection point:
// both coordinate deltas are strictly below Tolerance.
func PointsCoincide(p, q Point) bool {
	return math.Abs(p.X-q.X) < Tolerance && math.Abs(p.Y-q.Y) < Tolerance
}

// Endpoints returns the first and last point of a polyline. ok is false for
// an empty polyline.
func Endpoints(poly []Point) (first, last Point, ok bool) {
	if len(poly) == 0 {
		return Point{}, Point{}, false
	}
	return poly[0], poly[len(poly)-1], true
}

// PinTouchesWire reports whether a pin at p is attached to the polyline:
// it coincides with either endpoint, or lies within Tolerance of any
// consecutive segment.
func PinTouchesWire(p Point, wire []Point) bool {
	first, last, ok := Endpoints(wire)
	if !ok {
		return false
	}
	if PointsCoincide(p, first) || PointsCoincide(p, last) {
		return true
	}
	for i := 0; i+1 < len(wire); i++ {
		if DistancePointToSegment(p, wire[i], wire[i+1]) < Tolerance {
			return true
		}
	}
	return false
}

// WiresTouch reports whether any endpoint of a coincides with any endpoint
// of b. Wires that merely cross are not connected; schematic convention
// requires a shared endpoint (junction) for that.
func WiresTouch(a, b []Point) bool {
	a0, a1, ok := Endpoints(a)
	if !ok {
		return false
	}
	b0, b1, ok := Endpoints(b)
	if !ok {
		return false
	}
	return PointsCoincide(a0, b0) || PointsCoincide(a0, b1) ||
		PointsCoincide(a1, b0) || PointsCoincide(a1, b1)
}
