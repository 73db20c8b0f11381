package erc

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/geom"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

// SyntheticNetPrefix starts the generated name of a net nobody named.
const SyntheticNetPrefix = "NET_"

// PinRef identifies a pin by position in the document: the component index
// and the pin index within that component.
type PinRef struct {
	Component int
	Pin       int
}

// Net is a maximal group of wires joined end to end, plus every pin lying on
// one of them.
type Net struct {
	Index   int
	Name    string
	Labeled bool     // Name came from a wire net name or a label
	Wires   []int    // indices into Schematic.Wires, ascending
	Pins    []PinRef // ordered by component index, then pin index
}

// NetTable is the immutable result of net extraction. It is safe for
// concurrent readers.
type NetTable struct {
	Nets []*Net

	sch     *schematic.Schematic
	pinNets map[PinRef][]int
}

// BuildOptions tunes net extraction.
type BuildOptions struct {
	// MergeThroughPins joins nets that share a pin. Off by default: two wire
	// groups that only meet at a pin stay separate nets and the pin is
	// reported by the ambiguous_pins rule instead.
	MergeThroughPins bool
}

// BuildNets extracts nets from raw geometry. Wires are grouped by endpoint
// adjacency (breadth-first, in wire input order, so numbering is stable for a
// given input order); pins are attached to every net with a wire they touch.
//
// The only error is a wrapped ErrCheckIncomplete when ctx ends first.
func BuildNets(ctx context.Context, sch *schematic.Schematic, opts BuildOptions) (*NetTable, error) {
	wires := sch.Wires

	ends := geom.NewGrid(geom.DefaultCellSize)
	for i, w := range wires {
		if first, last, ok := geom.Endpoints(w.Points); ok {
			ends.InsertPoint(i, first)
			ends.InsertPoint(i, last)
		}
	}

	comp := make([]int, len(wires))
	for i := range comp {
		comp[i] = -1
	}
	n := 0
	steps := 0
	for i := range wires {
		if comp[i] >= 0 {
			continue
		}
		comp[i] = n
		queue := []int{i}
		for len(queue) > 0 {
			if steps++; steps%256 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, incomplete(err)
				}
			}
			w := queue[0]
			queue = queue[1:]
			for _, j := range wireNeighbours(ends, wires, w) {
				if comp[j] < 0 {
					comp[j] = n
					queue = append(queue, j)
				}
			}
		}
		n++
	}
	if err := ctx.Err(); err != nil {
		return nil, incomplete(err)
	}

	refs, touched, err := attachPins(ctx, sch)
	if err != nil {
		return nil, err
	}

	if opts.MergeThroughPins {
		n = mergeThroughPins(n, comp, touched)
	}

	t := &NetTable{
		Nets:    make([]*Net, n),
		sch:     sch,
		pinNets: make(map[PinRef][]int),
	}
	for k := range t.Nets {
		t.Nets[k] = &Net{Index: k}
	}
	for i := range wires {
		net := t.Nets[comp[i]]
		net.Wires = append(net.Wires, i)
	}
	for flat, ref := range refs {
		nets := uniqueNets(touched[flat], comp)
		if len(nets) == 0 {
			continue
		}
		t.pinNets[ref] = nets
		for _, k := range nets {
			t.Nets[k].Pins = append(t.Nets[k].Pins, ref)
		}
	}

	if err := nameNets(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ctxCheckEvery is how many work items pass between context checks.
const ctxCheckEvery = 64

func incomplete(err error) error {
	return fmt.Errorf("%w: %w", ErrCheckIncomplete, err)
}

// wireNeighbours returns the wires sharing an endpoint with wire w.
func wireNeighbours(ends *geom.Grid, wires []schematic.Wire, w int) []int {
	first, last, ok := geom.Endpoints(wires[w].Points)
	if !ok {
		return nil
	}
	var out []int
	seen := map[int]bool{w: true}
	for _, p := range []geom.Point{first, last} {
		box := geom.Bounds{Min: p, Max: p}.Inflate(geom.Tolerance)
		ends.Query(box, func(j int) {
			if seen[j] {
				return
			}
			seen[j] = true
			if geom.WiresTouch(wires[w].Points, wires[j].Points) {
				out = append(out, j)
			}
		})
	}
	return out
}

// attachPins returns every pin in document order and, per pin, the wires it
// touches (as wire indices).
func attachPins(ctx context.Context, sch *schematic.Schematic) ([]PinRef, [][]int, error) {
	var refs []PinRef
	pins := geom.NewGrid(geom.DefaultCellSize)
	for ci := range sch.Components {
		for pi, p := range sch.Components[ci].Pins {
			pins.InsertPoint(len(refs), p.Position)
			refs = append(refs, PinRef{Component: ci, Pin: pi})
		}
	}

	touched := make([][]int, len(refs))
	for wi, w := range sch.Wires {
		if wi%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, incomplete(err)
			}
		}
		candidates := make(map[int]bool)
		forEachSegmentBox(w.Points, func(b geom.Bounds) {
			pins.Query(b, func(flat int) { candidates[flat] = true })
		})
		for flat := range candidates {
			ref := refs[flat]
			pos := sch.Components[ref.Component].Pins[ref.Pin].Position
			if geom.PinTouchesWire(pos, w.Points) {
				touched[flat] = append(touched[flat], wi)
			}
		}
	}
	return refs, touched, nil
}

// forEachSegmentBox calls fn with the bounding box of each segment of the
// polyline (or of its single point), inflated by the tolerance.
func forEachSegmentBox(poly []geom.Point, fn func(geom.Bounds)) {
	switch len(poly) {
	case 0:
		return
	case 1:
		fn(geom.BoundsOf(poly).Inflate(geom.Tolerance))
		return
	}
	for i := 0; i+1 < len(poly); i++ {
		fn(geom.BoundsOf(poly[i : i+2]).Inflate(geom.Tolerance))
	}
}

// mergeThroughPins unions nets that share a pin and renumbers them densely,
// preserving first-wire order. It rewrites comp in place.
func mergeThroughPins(n int, comp []int, touched [][]int) int {
	uf := newUnionFind(n)
	for _, wires := range touched {
		for k := 1; k < len(wires); k++ {
			uf.union(comp[wires[0]], comp[wires[k]])
		}
	}
	renumber := make([]int, n)
	next := 0
	for c := 0; c < n; c++ {
		if uf.find(c) == c {
			renumber[c] = next
			next++
		}
	}
	for i := range comp {
		comp[i] = renumber[uf.find(comp[i])]
	}
	return next
}

// uniqueNets maps touched wires to their ascending, de-duplicated nets.
func uniqueNets(wires []int, comp []int) []int {
	var nets []int
	for _, w := range wires {
		if k := comp[w]; !slices.Contains(nets, k) {
			nets = append(nets, k)
		}
	}
	slices.Sort(nets)
	return nets
}

// nameNets applies user names: the first wire net name in member order, then
// the first label (in label order) touching a member wire, else NET_<n>.
func nameNets(ctx context.Context, t *NetTable) error {
	sch := t.sch
	labels := geom.NewGrid(geom.DefaultCellSize)
	for i, l := range sch.Labels {
		if strings.TrimSpace(l.Text) != "" {
			labels.InsertPoint(i, l.Position)
		}
	}

	for k, net := range t.Nets {
		if k%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return incomplete(err)
			}
		}
		for _, wi := range net.Wires {
			if name := strings.TrimSpace(sch.Wires[wi].NetName); name != "" {
				net.Name, net.Labeled = name, true
				break
			}
		}
		if net.Labeled {
			continue
		}

		best := -1
		for _, wi := range net.Wires {
			points := sch.Wires[wi].Points
			forEachSegmentBox(points, func(b geom.Bounds) {
				labels.Query(b, func(li int) {
					if best >= 0 && li >= best {
						return
					}
					if geom.PinTouchesWire(sch.Labels[li].Position, points) {
						best = li
					}
				})
			})
		}
		if best >= 0 {
			net.Name, net.Labeled = strings.TrimSpace(sch.Labels[best].Text), true
			continue
		}
		net.Name = fmt.Sprintf("%s%d", SyntheticNetPrefix, net.Index)
	}
	return nil
}

// Schematic returns the document the table was built from.
func (t *NetTable) Schematic() *schematic.Schematic { return t.sch }

// NetsOf returns the indices of the nets a pin belongs to, ascending.
func (t *NetTable) NetsOf(ref PinRef) []int { return t.pinNets[ref] }

// Connected reports whether the pin belongs to at least one net.
func (t *NetTable) Connected(ref PinRef) bool { return len(t.pinNets[ref]) > 0 }

// ConnectedPins counts distinct pins that belong to at least one net. A pin
// recorded in several nets counts once, not once per net, so connected plus
// unconnected pins always equals the total pin count.
func (t *NetTable) ConnectedPins() int { return len(t.pinNets) }

// Component returns the component owning ref.
func (t *NetTable) Component(ref PinRef) *schematic.Component {
	return &t.sch.Components[ref.Component]
}

// Pin returns the pin ref points to.
func (t *NetTable) Pin(ref PinRef) *schematic.Pin {
	return &t.sch.Components[ref.Component].Pins[ref.Pin]
}

// Role returns the pin's role; out-of-range values read as passive.
func (t *NetTable) Role(ref PinRef) schematic.Role {
	return t.Pin(ref).Role.Normalize()
}

// WireID returns the id of wire i, or a positional stand-in when the
// document left it empty.
func (t *NetTable) WireID(i int) string {
	if id := t.sch.Wires[i].ID; id != "" {
		return id
	}
	return fmt.Sprintf("wire#%d", i)
}

// WireIDs returns the member wire ids of net in input order.
func (t *NetTable) WireIDs(net *Net) []string {
	ids := make([]string, len(net.Wires))
	for i, wi := range net.Wires {
		ids[i] = t.WireID(wi)
	}
	return ids
}

// Lookup returns the first net with the given name, or nil.
func (t *NetTable) Lookup(name string) *Net {
	for _, net := range t.Nets {
		if net.Name == name {
			return net
		}
	}
	return nil
}

// Statistics computes the report statistics from the table.
func (t *NetTable) Statistics() Statistics {
	total := t.sch.PinCount()
	s := Statistics{
		TotalComponents: len(t.sch.Components),
		TotalWires:      len(t.sch.Wires),
		TotalPins:       total,
		ConnectedPins:   t.ConnectedPins(),
		TotalNets:       len(t.Nets),
	}
	s.UnconnectedPins = total - s.ConnectedPins
	for _, net := range t.Nets {
		if schematic.IsPowerName(net.Name) {
			s.PowerNets++
		}
		if schematic.IsGroundName(net.Name) {
			s.GroundNets++
		}
	}
	return s
}

// location returns a net's anchor: the first point of its first wire that
// has any points.
func (t *NetTable) location(net *Net) *Location {
	for _, wi := range net.Wires {
		if pts := t.sch.Wires[wi].Points; len(pts) > 0 {
			return &Location{X: pts[0].X, Y: pts[0].Y, WireID: t.WireID(wi)}
		}
	}
	return nil
}

// pinLocation returns the location of a pin.
func (t *NetTable) pinLocation(ref PinRef) *Location {
	c := t.Component(ref)
	p := t.Pin(ref)
	return &Location{X: p.Position.X, Y: p.Position.Y, ComponentID: c.ID, PinID: p.ID}
}
