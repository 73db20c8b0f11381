package erc

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/geom"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

// DecouplingRadius is how close (strictly, in document units) a capacitor
// must sit to an IC to count as its decoupling capacitor.
const DecouplingRadius = 100.0

// MinComponentsForSupplyCheck is the component count above which a sheet
// is expected to carry a power and a ground net.
const MinComponentsForSupplyCheck = 2

// Rule is one entry of the rule battery.
type Rule struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Kind        Kind     `json:"kind"`
	Severity    Severity `json:"severity"`
	Enabled     bool     `json:"enabled"`

	check func(r Rule, t *NetTable) []Diagnostic
}

// IsError reports whether the rule's findings fail the check.
func (r Rule) IsError() bool { return r.Kind.IsError() }

func (r Rule) diag(msg string, loc *Location, net string) Diagnostic {
	return Diagnostic{
		Kind:     r.Kind,
		Message:  msg,
		Location: loc,
		Severity: r.Severity,
		Rule:     r.ID,
		Net:      net,
	}
}

// rules is the battery in execution order; report order follows it.
var rules = []Rule{
	{
		ID: "malformed_wires", Name: "Malformed Wires",
		Description: "Check for wires with fewer than two points",
		Kind:        KindMalformedWire, Severity: SeverityHigh, Enabled: true,
		check: checkMalformedWires,
	},
	{
		ID: "unconnected_pins", Name: "Unconnected Pins",
		Description: "Check for pins that are not connected to any net (pins marked no-connect are exempt)",
		Kind:        KindUnconnectedPin, Severity: SeverityHigh, Enabled: true,
		check: checkUnconnectedPins,
	},
	{
		ID: "power_ground_short", Name: "Power/Ground Short",
		Description: "Check for shorts between power and ground",
		Kind:        KindPowerGroundShort, Severity: SeverityCritical, Enabled: true,
		check: checkPowerGroundShort,
	},
	{
		ID: "missing_power_net", Name: "Missing Power Net",
		Description: "Check that a sheet with more than two components has a power net",
		Kind:        KindMissingPowerNet, Severity: SeverityMedium, Enabled: true,
		check: checkMissingPowerNet,
	},
	{
		ID: "missing_ground_net", Name: "Missing Ground Net",
		Description: "Check that a sheet with more than two components has a ground net",
		Kind:        KindMissingGroundNet, Severity: SeverityMedium, Enabled: true,
		check: checkMissingGroundNet,
	},
	{
		ID: "multiple_drivers", Name: "Multiple Drivers",
		Description: "Check for nets with multiple output drivers",
		Kind:        KindMultipleDrivers, Severity: SeverityHigh, Enabled: true,
		check: checkMultipleDrivers,
	},
	{
		ID: "no_driver", Name: "No Driver",
		Description: "Check for nets with inputs but no driver",
		Kind:        KindNoDriver, Severity: SeverityHigh, Enabled: true,
		check: checkNoDriver,
	},
	{
		ID: "single_pin_nets", Name: "Single Pin Nets",
		Description: "Check for nets connected to only one pin",
		Kind:        KindSinglePinNet, Severity: SeverityLow, Enabled: true,
		check: checkSinglePinNets,
	},
	{
		ID: "duplicate_references", Name: "Duplicate References",
		Description: "Check for duplicate component references",
		Kind:        KindDuplicateReference, Severity: SeverityHigh, Enabled: true,
		check: checkDuplicateReferences,
	},
	{
		ID: "decoupling_capacitors", Name: "Decoupling Capacitors",
		Description: "Check that every IC has a capacitor nearby",
		Kind:        KindNoDecouplingCapacitor, Severity: SeverityLow, Enabled: true,
		check: checkDecouplingCapacitors,
	},
	{
		ID: "pull_resistors", Name: "Pull Resistors",
		Description: "Check undriven input nets for a pull resistor",
		Kind:        KindMissingPullResistor, Severity: SeverityLow, Enabled: true,
		check: checkPullResistors,
	},
	{
		ID: "unlabeled_nets", Name: "Unlabeled Nets",
		Description: "Report nets that carry only a generated name",
		Kind:        KindUnlabeledNet, Severity: SeverityInfo, Enabled: true,
		check: checkUnlabeledNets,
	},
	{
		ID: "ambiguous_pins", Name: "Pins Bridging Nets",
		Description: "Report pins touching wires of more than one net",
		Kind:        KindPinBridgesNets, Severity: SeverityMedium, Enabled: true,
		check: checkAmbiguousPins,
	},
}

// Rules returns a copy of the rule catalogue in execution order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// LookupRule returns the rule with the given id.
func LookupRule(id string) (Rule, bool) {
	for _, r := range rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// refName labels a component in messages: its reference, or its id when the
// reference is blank.
func refName(c *schematic.Component) string {
	if c.Reference != "" {
		return c.Reference
	}
	return c.ID
}

func checkMalformedWires(r Rule, t *NetTable) []Diagnostic {
	var out []Diagnostic
	for i, w := range t.sch.Wires {
		if len(w.Points) >= 2 {
			continue
		}
		loc := &Location{WireID: t.WireID(i)}
		if len(w.Points) == 1 {
			loc.X, loc.Y = w.Points[0].X, w.Points[0].Y
		}
		msg := fmt.Sprintf("Wire %s has %d point(s); at least 2 are required", t.WireID(i), len(w.Points))
		out = append(out, r.diag(msg, loc, ""))
	}
	return out
}

func checkUnconnectedPins(r Rule, t *NetTable) []Diagnostic {
	var out []Diagnostic
	for ci := range t.sch.Components {
		c := &t.sch.Components[ci]
		for pi := range c.Pins {
			ref := PinRef{Component: ci, Pin: pi}
			if t.Connected(ref) || t.Role(ref) == schematic.RoleNotConnected {
				continue
			}
			msg := fmt.Sprintf("Pin %s of component %s is not connected", c.Pins[pi].ID, refName(c))
			out = append(out, r.diag(msg, t.pinLocation(ref), ""))
		}
	}
	return out
}

// hasRole reports whether any pin of net has one of the roles.
func (t *NetTable) hasRole(net *Net, roles ...schematic.Role) bool {
	for _, ref := range net.Pins {
		role := t.Role(ref)
		for _, want := range roles {
			if role == want {
				return true
			}
		}
	}
	return false
}

func (t *NetTable) countRole(net *Net, role schematic.Role) int {
	n := 0
	for _, ref := range net.Pins {
		if t.Role(ref) == role {
			n++
		}
	}
	return n
}

func (t *NetTable) hasDriver(net *Net) bool {
	for _, ref := range net.Pins {
		if t.Role(ref).IsDriver() {
			return true
		}
	}
	return false
}

func checkPowerGroundShort(r Rule, t *NetTable) []Diagnostic {
	var out []Diagnostic
	for _, net := range t.Nets {
		if t.hasRole(net, schematic.RolePower) && t.hasRole(net, schematic.RoleGround) {
			msg := fmt.Sprintf("Power and ground are shorted in net %s", net.Name)
			out = append(out, r.diag(msg, t.location(net), net.Name))
		}
	}
	return out
}

func checkMissingPowerNet(r Rule, t *NetTable) []Diagnostic {
	if len(t.sch.Components) <= MinComponentsForSupplyCheck {
		return nil
	}
	for _, net := range t.Nets {
		if schematic.IsPowerName(net.Name) {
			return nil
		}
	}
	return []Diagnostic{r.diag("No power net detected in the schematic", nil, "")}
}

func checkMissingGroundNet(r Rule, t *NetTable) []Diagnostic {
	if len(t.sch.Components) <= MinComponentsForSupplyCheck {
		return nil
	}
	for _, net := range t.Nets {
		if schematic.IsGroundName(net.Name) {
			return nil
		}
	}
	return []Diagnostic{r.diag("No ground net detected in the schematic", nil, "")}
}

func checkMultipleDrivers(r Rule, t *NetTable) []Diagnostic {
	var out []Diagnostic
	for _, net := range t.Nets {
		if n := t.countRole(net, schematic.RoleOutput); n > 1 {
			msg := fmt.Sprintf("Net %s has multiple output drivers (%d)", net.Name, n)
			out = append(out, r.diag(msg, t.location(net), net.Name))
		}
	}
	return out
}

func checkNoDriver(r Rule, t *NetTable) []Diagnostic {
	var out []Diagnostic
	for _, net := range t.Nets {
		if t.hasRole(net, schematic.RoleInput) && !t.hasDriver(net) {
			msg := fmt.Sprintf("Net %s has input pins but no driver", net.Name)
			out = append(out, r.diag(msg, t.location(net), net.Name))
		}
	}
	return out
}

func checkSinglePinNets(r Rule, t *NetTable) []Diagnostic {
	var out []Diagnostic
	for _, net := range t.Nets {
		if len(net.Pins) != 1 {
			continue
		}
		loc := t.pinLocation(net.Pins[0])
		if first := t.location(net); first != nil {
			loc.WireID = first.WireID
		}
		msg := fmt.Sprintf("Net %s is connected to only one pin", net.Name)
		out = append(out, r.diag(msg, loc, net.Name))
	}
	return out
}

// checkDuplicateReferences reports each shared reference once, located at
// its second occurrence.
func checkDuplicateReferences(r Rule, t *NetTable) []Diagnostic {
	counts := make(map[string]int)
	for _, c := range t.sch.Components {
		if c.Reference != "" {
			counts[c.Reference]++
		}
	}

	var out []Diagnostic
	seen := make(map[string]int)
	for i := range t.sch.Components {
		c := &t.sch.Components[i]
		if c.Reference == "" {
			continue
		}
		seen[c.Reference]++
		if seen[c.Reference] != 2 {
			continue
		}
		msg := fmt.Sprintf("Duplicate component reference: %s (%d components)", c.Reference, counts[c.Reference])
		loc := &Location{X: c.Position.X, Y: c.Position.Y, ComponentID: c.ID}
		out = append(out, r.diag(msg, loc, ""))
	}
	return out
}

func isIC(ref string) bool {
	return strings.HasPrefix(ref, "U") || strings.HasPrefix(ref, "IC")
}

func checkDecouplingCapacitors(r Rule, t *NetTable) []Diagnostic {
	comps := t.sch.Components

	caps := geom.NewGrid(2 * DecouplingRadius)
	for i, c := range comps {
		if strings.HasPrefix(c.Reference, "C") {
			caps.InsertPoint(i, c.Position)
		}
	}

	var out []Diagnostic
	for i := range comps {
		c := &comps[i]
		if !isIC(c.Reference) {
			continue
		}
		found := false
		box := geom.Bounds{Min: c.Position, Max: c.Position}.Inflate(DecouplingRadius)
		caps.Query(box, func(j int) {
			if !found && comps[j].Position.Distance(c.Position) < DecouplingRadius {
				found = true
			}
		})
		if found {
			continue
		}
		msg := fmt.Sprintf("IC %s may need a decoupling capacitor", c.Reference)
		loc := &Location{X: c.Position.X, Y: c.Position.Y, ComponentID: c.ID}
		out = append(out, r.diag(msg, loc, ""))
	}
	return out
}

func checkPullResistors(r Rule, t *NetTable) []Diagnostic {
	var out []Diagnostic
	for _, net := range t.Nets {
		if !t.hasRole(net, schematic.RoleInput) || t.hasDriver(net) {
			continue
		}
		pulled := false
		for _, ref := range net.Pins {
			if strings.HasPrefix(t.Component(ref).Reference, "R") {
				pulled = true
				break
			}
		}
		if pulled {
			continue
		}
		msg := fmt.Sprintf("Net %s has high-impedance inputs, consider adding a pull resistor", net.Name)
		out = append(out, r.diag(msg, t.location(net), net.Name))
	}
	return out
}

func checkUnlabeledNets(r Rule, t *NetTable) []Diagnostic {
	var out []Diagnostic
	for _, net := range t.Nets {
		if net.Labeled {
			continue
		}
		msg := fmt.Sprintf("Net %s is not labeled, consider adding a descriptive name", net.Name)
		out = append(out, r.diag(msg, t.location(net), net.Name))
	}
	return out
}

func checkAmbiguousPins(r Rule, t *NetTable) []Diagnostic {
	var out []Diagnostic
	for ci := range t.sch.Components {
		c := &t.sch.Components[ci]
		for pi := range c.Pins {
			ref := PinRef{Component: ci, Pin: pi}
			nets := t.NetsOf(ref)
			if len(nets) < 2 {
				continue
			}
			names := make([]string, len(nets))
			for i, k := range nets {
				names[i] = t.Nets[k].Name
			}
			msg := fmt.Sprintf("Pin %s of component %s touches %d separate nets: %s",
				c.Pins[pi].ID, refName(c), len(nets), strings.Join(names, ", "))
			out = append(out, r.diag(msg, t.pinLocation(ref), names[0]))
		}
	}
	return out
}
