package geom

import "math"

// Bounds is an axis-aligned rectangle.
type Bounds struct {
	Min Point
	Max Point
}

// EmptyBounds returns a box that contains nothing; the first Expand call
// snaps it to that point.
func EmptyBounds() Bounds {
	return Bounds{
		Min: Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
}

// BoundsOf returns the bounding box of a polyline.
func BoundsOf(poly []Point) Bounds {
	b := EmptyBounds()
	for _, p := range poly {
		b.Expand(p)
	}
	return b
}

// IsEmpty reports whether the box contains no point.
func (b Bounds) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y
}

// Expand grows the box to include p.
func (b *Bounds) Expand(p Point) {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
}

// Inflate returns the box grown by d on every side.
func (b Bounds) Inflate(d float64) Bounds {
	if b.IsEmpty() {
		return b
	}
	return Bounds{
		Min: Point{X: b.Min.X - d, Y: b.Min.Y - d},
		Max: Point{X: b.Max.X + d, Y: b.Max.Y + d},
	}
}

// Contains reports whether p lies inside the box (edges included).
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// DefaultCellSize is the grid cell edge used by the net builder. It is
// several tolerances wide so that short wires land in a handful of cells.
const DefaultCellSize = 16 * Tolerance

type cellKey struct {
	x, y int64
}

// Grid is a uniform-cell spatial index over integer item ids. It only
// narrows candidate sets; callers still run the exact geometric test, so
// using it never changes which items are considered connected.
//
// A Grid is not safe for concurrent mutation; concurrent Query calls on a
// fully built grid are fine.
type Grid struct {
	cell  float64
	cells map[cellKey][]int
	// maxSpan caps how many cells one item may occupy; larger items go to
	// the overflow list and are returned by every query.
	maxSpan  int64
	overflow []int
}

// NewGrid creates an empty grid with the given cell size. Non-positive or
// non-finite sizes fall back to DefaultCellSize.
func NewGrid(cellSize float64) *Grid {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cell:    cellSize,
		cells:   make(map[cellKey][]int),
		maxSpan: 4096,
	}
}

func (g *Grid) key(v float64) (int64, bool) {
	f := math.Floor(v / g.cell)
	if math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int64(f), true
}

func (g *Grid) span(b Bounds) (x0, y0, x1, y1 int64, ok bool) {
	if b.IsEmpty() {
		return 0, 0, 0, 0, false
	}
	var okA, okB, okC, okD bool
	x0, okA = g.key(b.Min.X)
	y0, okB = g.key(b.Min.Y)
	x1, okC = g.key(b.Max.X)
	y1, okD = g.key(b.Max.Y)
	return x0, y0, x1, y1, okA && okB && okC && okD
}

// exceeds reports whether the cell rectangle holds more than limit cells.
// Each side is tested first so the product cannot overflow.
func exceeds(x0, y0, x1, y1, limit int64) bool {
	w, h := x1-x0+1, y1-y0+1
	return w > limit || h > limit || w*h > limit
}

// Insert registers id over every cell the box touches.
func (g *Grid) Insert(id int, b Bounds) {
	x0, y0, x1, y1, ok := g.span(b)
	if !ok || exceeds(x0, y0, x1, y1, g.maxSpan) {
		g.overflow = append(g.overflow, id)
		return
	}
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			k := cellKey{x, y}
			g.cells[k] = append(g.cells[k], id)
		}
	}
}

// InsertPoint registers id at a single point.
func (g *Grid) InsertPoint(id int, p Point) {
	g.Insert(id, Bounds{Min: p, Max: p})
}

// Query calls fn once for every id whose registered box may intersect b.
// Ids are reported at most once per call, in no particular order.
func (g *Grid) Query(b Bounds, fn func(id int)) {
	seen := make(map[int]struct{})
	visit := func(id int) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		fn(id)
	}

	for _, id := range g.overflow {
		visit(id)
	}

	x0, y0, x1, y1, ok := g.span(b)
	if !ok {
		// Degenerate query box: fall back to every indexed item.
		for _, ids := range g.cells {
			for _, id := range ids {
				visit(id)
			}
		}
		return
	}
	if exceeds(x0, y0, x1, y1, int64(len(g.cells))) {
		// Query covers more cells than exist; walk the populated ones.
		for k, ids := range g.cells {
			if k.x < x0 || k.x > x1 || k.y < y0 || k.y > y1 {
				continue
			}
			for _, id := range ids {
				visit(id)
			}
		}
		return
	}
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for _, id := range g.cells[cellKey{x, y}] {
				visit(id)
			}
		}
	}
}
