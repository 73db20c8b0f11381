package erc

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/geom"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

func pin(id string, x, y float64, role schematic.Role) schematic.Pin {
	return schematic.Pin{ID: id, Position: geom.Pt(x, y), Role: role}
}

func comp(id, ref string, x, y float64, pins ...schematic.Pin) schematic.Component {
	return schematic.Component{ID: id, Reference: ref, Position: geom.Pt(x, y), Pins: pins}
}

// wire builds a wire from coordinate pairs.
func wire(id string, coords ...float64) schematic.Wire {
	w := schematic.Wire{ID: id}
	for i := 0; i+1 < len(coords); i += 2 {
		w.Points = append(w.Points, geom.Pt(coords[i], coords[i+1]))
	}
	return w
}

func named(w schematic.Wire, net string) schematic.Wire {
	w.NetName = net
	return w
}

func build(t *testing.T, sch *schematic.Schematic, opts BuildOptions) *NetTable {
	t.Helper()
	table, err := BuildNets(context.Background(), sch, opts)
	require.NoError(t, err)
	return table
}

func TestBuildNetsChain(t *testing.T) {
	sch := &schematic.Schematic{
		Components: []schematic.Component{
			comp("r1", "R1", 0, 0, pin("1", 0, 0, schematic.RolePassive), pin("2", 300, 0, schematic.RolePassive)),
		},
		Wires: []schematic.Wire{
			wire("a", 0, 0, 100, 0),
			wire("far", 1000, 1000, 1100, 1000),
			wire("b", 100, 0, 200, 0),
			wire("c", 203, 2, 300, 0), // within tolerance of b's end
		},
	}
	table := build(t, sch, BuildOptions{})

	require.Len(t, table.Nets, 2)
	assert.Equal(t, []int{0, 2, 3}, table.Nets[0].Wires)
	assert.Equal(t, []string{"a", "b", "c"}, table.WireIDs(table.Nets[0]))
	assert.Equal(t, []PinRef{{0, 0}, {0, 1}}, table.Nets[0].Pins)
	assert.Equal(t, "NET_0", table.Nets[0].Name)
	assert.False(t, table.Nets[0].Labeled)

	assert.Equal(t, "NET_1", table.Nets[1].Name, "isolated wire is its own net")
	assert.Empty(t, table.Nets[1].Pins)
}

func TestBuildNetsCrossingIsNotConnection(t *testing.T) {
	sch := &schematic.Schematic{Wires: []schematic.Wire{
		wire("h", 0, 50, 100, 50),
		wire("v", 50, 0, 50, 100),
	}}
	table := build(t, sch, BuildOptions{})
	assert.Len(t, table.Nets, 2)
}

func TestBuildNetsToleranceIsStrict(t *testing.T) {
	sch := &schematic.Schematic{Wires: []schematic.Wire{
		wire("a", 0, 0, 100, 0),
		wire("b", 105, 0, 200, 0), // exactly Tolerance away
	}}
	table := build(t, sch, BuildOptions{})
	assert.Len(t, table.Nets, 2)
}

func TestBuildNetsPinOnSegmentInterior(t *testing.T) {
	sch := &schematic.Schematic{
		Components: []schematic.Component{comp("tp", "TP1", 0, 0, pin("1", 50, 3, schematic.RolePassive))},
		Wires:      []schematic.Wire{wire("a", 0, 0, 100, 0)},
	}
	table := build(t, sch, BuildOptions{})
	assert.True(t, table.Connected(PinRef{0, 0}))
}

// bridged returns two wire groups that meet only at a pin sitting on the
// interior of one wire and the end of the other.
func bridged() *schematic.Schematic {
	return &schematic.Schematic{
		Components: []schematic.Component{
			comp("u1", "U1", 50, 0, pin("1", 50, 0, schematic.RoleInput)),
		},
		Wires: []schematic.Wire{
			wire("a", 0, 0, 100, 0),
			wire("b", 50, 0, 50, 100),
		},
	}
}

func TestBuildNetsPinInTwoNets(t *testing.T) {
	table := build(t, bridged(), BuildOptions{})

	require.Len(t, table.Nets, 2)
	assert.Equal(t, []int{0, 1}, table.NetsOf(PinRef{0, 0}))
	assert.Equal(t, 1, table.ConnectedPins(), "a pin in two nets is one connected pin")

	stats := table.Statistics()
	assert.Equal(t, stats.TotalPins, stats.ConnectedPins+stats.UnconnectedPins)
}

func TestBuildNetsMergeThroughPins(t *testing.T) {
	sch := bridged()
	sch.Wires = append(sch.Wires, wire("z", 500, 500, 600, 500))
	table := build(t, sch, BuildOptions{MergeThroughPins: true})

	require.Len(t, table.Nets, 2)
	assert.Equal(t, []int{0, 1}, table.Nets[0].Wires)
	assert.Equal(t, "NET_0", table.Nets[0].Name)
	assert.Equal(t, []int{2}, table.Nets[1].Wires)
	assert.Equal(t, "NET_1", table.Nets[1].Name, "merged nets are renumbered densely")
	assert.Equal(t, []int{0}, table.NetsOf(PinRef{0, 0}))
}

func TestNetNaming(t *testing.T) {
	sch := &schematic.Schematic{
		Wires: []schematic.Wire{
			wire("a", 0, 0, 100, 0),
			named(wire("b", 100, 0, 200, 0), "VCC"),
			wire("c", 0, 500, 100, 500),
			wire("d", 0, 900, 100, 900),
		},
		Labels: []schematic.Label{
			{Text: "IGNORED", Position: geom.Pt(50, 0)},
			{Text: "  ", Position: geom.Pt(10, 500)},
			{Text: "SDA", Position: geom.Pt(60, 500)},
			{Text: "SCL", Position: geom.Pt(20, 500)},
		},
	}
	table := build(t, sch, BuildOptions{})

	require.Len(t, table.Nets, 3)
	assert.Equal(t, "VCC", table.Nets[0].Name, "wire net name wins over labels")
	assert.True(t, table.Nets[0].Labeled)
	assert.Equal(t, "SDA", table.Nets[1].Name, "first label in label order")
	assert.Equal(t, "NET_2", table.Nets[2].Name)
	assert.Same(t, table.Nets[1], table.Lookup("SDA"))
	assert.Nil(t, table.Lookup("nope"))
}

func TestBuildNetsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildNets(ctx, bridged(), BuildOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCheckIncomplete))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBuildNetsStagesHonourContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := attachPins(ctx, bridged())
	assert.ErrorIs(t, err, ErrCheckIncomplete)
	assert.ErrorIs(t, err, context.Canceled)

	table := build(t, bridged(), BuildOptions{})
	err = nameNets(ctx, table)
	assert.ErrorIs(t, err, ErrCheckIncomplete)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildNetsSinglePointWire(t *testing.T) {
	sch := &schematic.Schematic{
		Components: []schematic.Component{
			comp("r1", "R1", 0, 0, pin("1", 0, 0, schematic.RolePassive), pin("2", 100, 0, schematic.RolePassive)),
		},
		Wires: []schematic.Wire{
			wire("dot", 0, 0),
			wire("a", 0, 0, 100, 0),
		},
	}
	table := build(t, sch, BuildOptions{})
	require.Len(t, table.Nets, 1)
	assert.Equal(t, []int{0, 1}, table.Nets[0].Wires)
	assert.Equal(t, 2, table.ConnectedPins())
}

func TestBuildNetsExtremeFiniteCoordinates(t *testing.T) {
	sch := &schematic.Schematic{
		Components: []schematic.Component{
			comp("r1", "R1", 0, 0, pin("1", 0, 0, schematic.RolePassive)),
		},
		Wires: []schematic.Wire{
			wire("w", -1.5e11, -1.5e11, 1.5e11, 1.5e11),
			wire("x", 1.5e11, 1.5e11, 1.5e11, 0),
		},
		Labels: []schematic.Label{{Text: "DIAG", Position: geom.Pt(0, 0)}},
	}

	type result struct {
		table *NetTable
		err   error
	}
	done := make(chan result, 1)
	go func() {
		table, err := BuildNets(context.Background(), sch, BuildOptions{})
		done <- result{table, err}
	}()
	select {
	case res := <-done:
		require.NoError(t, res.err)
		table := res.table
		require.Len(t, table.Nets, 1)
		assert.Equal(t, "DIAG", table.Nets[0].Name)
		assert.Equal(t, 1, table.ConnectedPins())
	case <-time.After(10 * time.Second):
		t.Fatal("net extraction did not finish for a sheet spanning 3e11 units")
	}
}

// randomSchematic lays short wires on a coarse lattice so that endpoints
// collide often, and scatters pins on lattice points and wire interiors.
func randomSchematic(seed uint64, wires, comps int) *schematic.Schematic {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	lattice := func() float64 { return float64(rng.IntN(20)) * 50 }
	jitter := func() float64 { return rng.Float64()*6 - 3 }

	sch := &schematic.Schematic{}
	for i := 0; i < wires; i++ {
		x, y := lattice(), lattice()
		w := schematic.Wire{ID: fmt.Sprintf("w%d", i)}
		w.Points = append(w.Points, geom.Pt(x+jitter(), y+jitter()))
		switch rng.IntN(4) {
		case 0:
			w.Points = append(w.Points, geom.Pt(x+50, y))
		case 1:
			w.Points = append(w.Points, geom.Pt(x, y+50))
		case 2:
			w.Points = append(w.Points, geom.Pt(x+50, y), geom.Pt(x+50, y+100))
		}
		sch.Wires = append(sch.Wires, w)
	}
	for i := 0; i < comps; i++ {
		c := schematic.Component{ID: fmt.Sprintf("c%d", i), Reference: fmt.Sprintf("X%d", i)}
		for p := 0; p < 1+rng.IntN(3); p++ {
			c.Pins = append(c.Pins, schematic.Pin{
				ID:       fmt.Sprint(p + 1),
				Position: geom.Pt(lattice()+float64(rng.IntN(3))*25, lattice()+jitter()),
				Role:     schematic.Role(rng.IntN(7)),
			})
		}
		sch.Components = append(sch.Components, c)
	}
	return sch
}

// bruteNets is the quadratic reference scan the grid-indexed builder must
// reproduce exactly.
func bruteNets(sch *schematic.Schematic) [][]int {
	n := len(sch.Wires)
	comp := make([]int, n)
	for i := range comp {
		comp[i] = -1
	}
	var nets [][]int
	for i := 0; i < n; i++ {
		if comp[i] >= 0 {
			continue
		}
		k := len(nets)
		comp[i] = k
		members := []int{i}
		stack := []int{i}
		for len(stack) > 0 {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for j := 0; j < n; j++ {
				if comp[j] < 0 && geom.WiresTouch(sch.Wires[w].Points, sch.Wires[j].Points) {
					comp[j] = k
					members = append(members, j)
					stack = append(stack, j)
				}
			}
		}
		sort.Ints(members)
		nets = append(nets, members)
	}
	return nets
}

func brutePins(sch *schematic.Schematic, wires []int) []PinRef {
	var out []PinRef
	for ci, c := range sch.Components {
		for pi, p := range c.Pins {
			for _, wi := range wires {
				if geom.PinTouchesWire(p.Position, sch.Wires[wi].Points) {
					out = append(out, PinRef{ci, pi})
					break
				}
			}
		}
	}
	return out
}

func TestBuildNetsMatchesBruteForce(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		sch := randomSchematic(seed, 300, 80)
		table := build(t, sch, BuildOptions{})
		want := bruteNets(sch)

		require.Len(t, table.Nets, len(want), "seed %d", seed)
		for k, net := range table.Nets {
			assert.Equal(t, want[k], net.Wires, "seed %d net %d wires", seed, k)
			assert.Equal(t, brutePins(sch, want[k]), net.Pins, "seed %d net %d pins", seed, k)
		}
	}
}

// membership describes nets by content only: each net as its sorted wire
// ids plus pin keys.
func membership(table *NetTable) []string {
	var out []string
	for _, net := range table.Nets {
		var keys []string
		keys = append(keys, table.WireIDs(net)...)
		for _, ref := range net.Pins {
			keys = append(keys, table.Component(ref).ID+"."+table.Pin(ref).ID)
		}
		sort.Strings(keys)
		out = append(out, strings.Join(keys, ","))
	}
	sort.Strings(out)
	return out
}

func TestBuildNetsOrderIndependent(t *testing.T) {
	sch := randomSchematic(42, 250, 60)
	want := membership(build(t, sch, BuildOptions{}))

	rng := rand.New(rand.NewPCG(7, 7))
	for round := 0; round < 3; round++ {
		shuffled := *sch
		shuffled.Wires = append([]schematic.Wire(nil), sch.Wires...)
		rng.Shuffle(len(shuffled.Wires), func(i, j int) {
			shuffled.Wires[i], shuffled.Wires[j] = shuffled.Wires[j], shuffled.Wires[i]
		})
		assert.Equal(t, want, membership(build(t, &shuffled, BuildOptions{})), "round %d", round)
	}
}

func TestBuildNetsPartition(t *testing.T) {
	sch := randomSchematic(9, 200, 50)
	table := build(t, sch, BuildOptions{})

	seen := make(map[int]int)
	for _, net := range table.Nets {
		for _, wi := range net.Wires {
			seen[wi]++
		}
	}
	for i := range sch.Wires {
		assert.Equal(t, 1, seen[i], "wire %d must be in exactly one net", i)
	}

	for i := range sch.Wires {
		for j := range sch.Wires {
			a, b := sch.Wires[i].Points, sch.Wires[j].Points
			assert.Equal(t, geom.WiresTouch(a, b), geom.WiresTouch(b, a))
		}
	}
}

func TestCoverageLaw(t *testing.T) {
	for seed := uint64(10); seed < 15; seed++ {
		sch := randomSchematic(seed, 150, 100)
		for _, merge := range []bool{false, true} {
			stats := build(t, sch, BuildOptions{MergeThroughPins: merge}).Statistics()
			assert.Equal(t, stats.TotalPins, stats.ConnectedPins+stats.UnconnectedPins,
				"seed %d merge %v", seed, merge)
		}
	}
}
