package erc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/geom"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

func runOne(t *testing.T, id string, sch *schematic.Schematic) []Diagnostic {
	t.Helper()
	r, ok := LookupRule(id)
	require.True(t, ok, id)
	return r.check(r, build(t, sch, BuildOptions{}))
}

func TestRuleCatalogue(t *testing.T) {
	ids := make([]string, 0, len(rules))
	for _, r := range Rules() {
		ids = append(ids, r.ID)
		assert.True(t, r.Enabled)
		assert.True(t, r.Kind.Valid())
		assert.NotNil(t, r.check)
	}
	assert.Equal(t, []string{
		"malformed_wires",
		"unconnected_pins",
		"power_ground_short",
		"missing_power_net",
		"missing_ground_net",
		"multiple_drivers",
		"no_driver",
		"single_pin_nets",
		"duplicate_references",
		"decoupling_capacitors",
		"pull_resistors",
		"unlabeled_nets",
		"ambiguous_pins",
	}, ids)

	all := Rules()
	all[0].Enabled = false
	assert.True(t, rules[0].Enabled, "Rules returns a copy")
}

func TestMultipleDrivers(t *testing.T) {
	sch := &schematic.Schematic{
		Components: []schematic.Component{
			comp("u1", "U1", 0, 0, pin("1", 0, 0, schematic.RoleOutput)),
			comp("u2", "U2", 100, 0, pin("1", 100, 0, schematic.RoleOutput)),
			comp("u3", "U3", 200, 0, pin("1", 200, 0, schematic.RoleBidirectional)),
		},
		Wires: []schematic.Wire{wire("w1", 0, 0, 200, 0)},
	}
	got := runOne(t, "multiple_drivers", sch)
	require.Len(t, got, 1)
	assert.Equal(t, "Net NET_0 has multiple output drivers (2)", got[0].Message)

	sch.Components[1].Pins[0].Role = schematic.RoleBidirectional
	assert.Empty(t, runOne(t, "multiple_drivers", sch), "bidirectional pins are not counted")
}

func TestNoDriverAndPullResistor(t *testing.T) {
	inputNet := func(extra ...schematic.Component) *schematic.Schematic {
		comps := []schematic.Component{
			comp("u1", "U1", 0, 0, pin("1", 0, 0, schematic.RoleInput)),
		}
		return &schematic.Schematic{
			Components: append(comps, extra...),
			Wires:      []schematic.Wire{wire("w1", 0, 0, 100, 0)},
		}
	}

	sch := inputNet()
	assert.Len(t, runOne(t, "no_driver", sch), 1)
	assert.Len(t, runOne(t, "pull_resistors", sch), 1)

	sch = inputNet(comp("r1", "R1", 100, 0, pin("1", 100, 0, schematic.RolePassive)))
	assert.Len(t, runOne(t, "no_driver", sch), 1, "a resistor is not a driver")
	assert.Empty(t, runOne(t, "pull_resistors", sch))

	for _, role := range []schematic.Role{schematic.RoleOutput, schematic.RoleBidirectional, schematic.RolePower} {
		sch = inputNet(comp("u2", "U2", 100, 0, pin("1", 100, 0, role)))
		assert.Empty(t, runOne(t, "no_driver", sch), role.String())
		assert.Empty(t, runOne(t, "pull_resistors", sch), role.String())
	}
}

func TestDecouplingRadiusIsStrict(t *testing.T) {
	at := func(dx float64) *schematic.Schematic {
		return &schematic.Schematic{Components: []schematic.Component{
			comp("u1", "U1", 0, 0),
			comp("c1", "C1", dx, 0),
		}}
	}
	assert.Empty(t, runOne(t, "decoupling_capacitors", at(99)))

	got := runOne(t, "decoupling_capacitors", at(100))
	require.Len(t, got, 1)
	assert.Equal(t, "IC U1 may need a decoupling capacitor", got[0].Message)
	assert.Equal(t, "u1", got[0].Location.ComponentID)

	sch := &schematic.Schematic{Components: []schematic.Component{
		comp("ic", "IC7", 0, 0),
		comp("q", "Q1", 0, 0),
		comp("c", "C1", 60, 60),
	}}
	assert.Empty(t, runOne(t, "decoupling_capacitors", sch), "IC prefix counts and diagonal distance is euclidean")
}

func TestMissingSupplyNets(t *testing.T) {
	three := &schematic.Schematic{Components: []schematic.Component{
		comp("a", "R1", 0, 0), comp("b", "R2", 0, 0), comp("c", "R3", 0, 0),
	}}
	assert.Len(t, runOne(t, "missing_power_net", three), 1)
	assert.Len(t, runOne(t, "missing_ground_net", three), 1)

	two := &schematic.Schematic{Components: three.Components[:2]}
	assert.Empty(t, runOne(t, "missing_power_net", two))
	assert.Empty(t, runOne(t, "missing_ground_net", two))

	three.Wires = []schematic.Wire{
		named(wire("w1", 0, 0, 10, 0), "VDD_3V3"),
		named(wire("w2", 0, 100, 10, 100), "AGND"),
	}
	assert.Empty(t, runOne(t, "missing_power_net", three))
	assert.Empty(t, runOne(t, "missing_ground_net", three))
}

func TestDuplicateReferenceCount(t *testing.T) {
	sch := &schematic.Schematic{Components: []schematic.Component{
		comp("a", "U1", 0, 0),
		comp("b", "U1", 10, 0),
		comp("c", "U2", 20, 0),
		comp("d", "U1", 30, 0),
		comp("e", "", 40, 0),
		comp("f", "", 50, 0),
	}}
	got := runOne(t, "duplicate_references", sch)
	require.Len(t, got, 1)
	assert.Equal(t, "Duplicate component reference: U1 (3 components)", got[0].Message)
	assert.Equal(t, 10.0, got[0].Location.X)
}

func TestNotConnectedPinIsExempt(t *testing.T) {
	sch := &schematic.Schematic{Components: []schematic.Component{
		comp("u1", "U1", 0, 0,
			pin("1", 0, 0, schematic.RoleNotConnected),
			pin("2", 10, 0, schematic.RoleInput)),
	}}
	got := runOne(t, "unconnected_pins", sch)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].Location.PinID)

	stats := build(t, sch, BuildOptions{}).Statistics()
	assert.Equal(t, 2, stats.UnconnectedPins)

	rule, _ := LookupRule("unconnected_pins")
	assert.Contains(t, rule.Description, "no-connect are exempt")
}

func TestAmbiguousPin(t *testing.T) {
	got := runOne(t, "ambiguous_pins", bridged())
	require.Len(t, got, 1)
	assert.Equal(t, KindPinBridgesNets, got[0].Kind)
	assert.True(t, strings.HasSuffix(got[0].Message, "touches 2 separate nets: NET_0, NET_1"), got[0].Message)
	assert.False(t, got[0].Kind.IsError())
}

func TestUnlabeledNets(t *testing.T) {
	sch := &schematic.Schematic{
		Wires: []schematic.Wire{
			wire("w1", 0, 0, 100, 0),
			wire("w2", 0, 200, 100, 200),
			named(wire("w3", 0, 400, 100, 400), "SDA"),
		},
		Labels: []schematic.Label{{Text: "SCL", Position: geom.Pt(50, 200)}},
	}
	got := runOne(t, "unlabeled_nets", sch)
	require.Len(t, got, 1)
	assert.Equal(t, "NET_0", got[0].Net)
	assert.Equal(t, "w1", got[0].Location.WireID)
}
