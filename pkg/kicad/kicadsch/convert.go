package kicadsch

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/geom"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

// MilsPerMM converts KiCad millimetres into document units (mils).
const MilsPerMM = 1000 / 25.4

func init() {
	schematic.RegisterFormat(".kicad_sch", Decode)
}

// Decode parses a .kicad_sch stream and converts it. It is registered with
// schematic.Load for the ".kicad_sch" extension.
func Decode(r io.Reader) (*schematic.Schematic, error) {
	doc, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return Convert(doc)
}

// Convert turns a parsed document into the checker's model: pin positions
// are placed on the sheet, coordinates scaled to mils and KiCad electrical
// types mapped to pin roles.
func Convert(doc *Document) (*schematic.Schematic, error) {
	sch := &schematic.Schematic{ID: doc.UUID}

	noConnects := make([]geom.Point, len(doc.NoConnects))
	for i, p := range doc.NoConnects {
		noConnects[i] = toMils(p)
	}

	// Units of one multi-unit part share a reference; they are folded into a
	// single component so the reference is not reported as duplicated.
	byRef := make(map[string]int)
	unitsSeen := make(map[string]map[int]bool)

	for i, sym := range doc.Symbols {
		lib, ok := doc.LibSymbols[sym.LibID]
		if !ok {
			return nil, fmt.Errorf("symbol %s (%s): library symbol not embedded in schematic", sym.Reference, sym.LibID)
		}

		pins := placePins(sym, lib, noConnects)
		if lib.Power {
			sch.Labels = append(sch.Labels, powerLabels(sym, pins, lib)...)
		}

		key := sym.Reference + "\x00" + sym.LibID
		if idx, ok := byRef[key]; ok && annotated(sym.Reference) && !unitsSeen[key][sym.Unit] {
			unitsSeen[key][sym.Unit] = true
			comp := &sch.Components[idx]
			// Shared unit-0 pins repeat in every unit; keep the first.
			var extra []schematic.Pin
			for _, p := range pins {
				if p.Number == "" || comp.Pin(p.Number) == nil {
					extra = append(extra, p)
				}
			}
			comp.Pins = appendUnique(comp.Pins, extra)
			continue
		}

		id := sym.UUID
		if id == "" {
			id = fmt.Sprintf("symbol#%d", i)
		}
		comp := schematic.Component{
			ID:        id,
			TypeID:    sym.LibID,
			Reference: sym.Reference,
			Value:     sym.Value,
			Position:  toMils(sym.At),
		}
		comp.Pins = appendUnique(nil, pins)

		if annotated(sym.Reference) {
			if _, dup := byRef[key]; !dup {
				byRef[key] = len(sch.Components)
				unitsSeen[key] = map[int]bool{sym.Unit: true}
			}
		}
		sch.Components = append(sch.Components, comp)
	}

	for _, w := range doc.Wires {
		wire := schematic.Wire{ID: w.UUID}
		for _, p := range w.Points {
			wire.Points = append(wire.Points, toMils(p))
		}
		sch.Wires = append(sch.Wires, wire)
	}

	for _, l := range doc.Labels {
		sch.Labels = append(sch.Labels, schematic.Label{ID: l.UUID, Text: l.Text, Position: toMils(l.At)})
	}

	return sch, nil
}

// annotated reports whether a reference has been assigned ("R1", not "R?").
func annotated(ref string) bool {
	return ref != "" && !strings.HasSuffix(ref, "?")
}

// placePins returns the instance's pins in sheet coordinates. Pins from the
// shared unit 0 and from the instance's own unit and body style are used.
func placePins(sym Symbol, lib *LibSymbol, noConnects []geom.Point) []schematic.Pin {
	var pins []schematic.Pin
	for _, u := range lib.Units {
		if u.Unit != 0 && u.Unit != sym.Unit {
			continue
		}
		if u.BodyStyle != 0 && u.BodyStyle != sym.BodyStyle {
			continue
		}
		for _, lp := range u.Pins {
			pos := toMils(placePoint(lp.At, sym))
			role := MapPinType(lp.Type, lp.Name)
			for _, nc := range noConnects {
				if geom.PointsCoincide(pos, nc) {
					role = schematic.RoleNotConnected
					break
				}
			}
			pins = append(pins, schematic.Pin{
				ID:       lp.Number,
				Name:     lp.Name,
				Number:   lp.Number,
				Position: pos,
				Role:     role,
			})
		}
	}
	return pins
}

// placePoint maps a library point (Y-up) onto the sheet (Y-down): mirror in
// library space, rotate counter-clockwise by the instance angle, then
// translate to the instance position.
func placePoint(p geom.Point, sym Symbol) geom.Point {
	x, y := p.X, p.Y
	switch sym.Mirror {
	case "x":
		y = -y
	case "y":
		x = -x
	}
	y = -y

	rad := sym.Angle * math.Pi / 180
	sin, cos := math.Sincos(rad)
	rx := x*cos + y*sin
	ry := -x*sin + y*cos

	return geom.Pt(sym.At.X+snap(rx), sym.At.Y+snap(ry))
}

// snap removes the floating-point residue left by sin/cos of right angles.
func snap(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func toMils(p geom.Point) geom.Point {
	return geom.Pt(math.Round(p.X*MilsPerMM*1e3)/1e3, math.Round(p.Y*MilsPerMM*1e3)/1e3)
}

// appendUnique appends pins to dst, making ids unique within the component.
// Pins without a number take their name, then their position in the list.
func appendUnique(dst, pins []schematic.Pin) []schematic.Pin {
	seen := make(map[string]bool, len(dst)+len(pins))
	for _, p := range dst {
		seen[p.ID] = true
	}
	for _, p := range pins {
		if p.ID == "" {
			p.ID = p.Name
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("%d", len(dst)+1)
		}
		base := p.ID
		for n := 2; seen[p.ID]; n++ {
			p.ID = fmt.Sprintf("%s#%d", base, n)
		}
		seen[p.ID] = true
		dst = append(dst, p)
	}
	return dst
}

// powerLabels names the net a power symbol sits on. Only power-input pins
// count; PWR_FLAG style symbols drive the net without naming it.
func powerLabels(sym Symbol, pins []schematic.Pin, lib *LibSymbol) []schematic.Label {
	if sym.Value == "" {
		return nil
	}
	var out []schematic.Label
	i := 0
	for _, u := range lib.Units {
		if u.Unit != 0 && u.Unit != sym.Unit {
			continue
		}
		if u.BodyStyle != 0 && u.BodyStyle != sym.BodyStyle {
			continue
		}
		for _, lp := range u.Pins {
			if lp.Type == "power_in" && i < len(pins) {
				out = append(out, schematic.Label{Text: sym.Value, Position: pins[i].Position})
			}
			i++
		}
	}
	return out
}

// MapPinType maps a KiCad pin electrical type to a role. Supply pins whose
// name is a ground name become RoleGround.
func MapPinType(kicadType, name string) schematic.Role {
	switch kicadType {
	case "power_in", "power_out":
		if schematic.IsGroundName(name) {
			return schematic.RoleGround
		}
		return schematic.RolePower
	case "input":
		return schematic.RoleInput
	case "output", "open_collector", "open_emitter":
		return schematic.RoleOutput
	case "bidirectional", "tri_state":
		return schematic.RoleBidirectional
	case "no_connect":
		return schematic.RoleNotConnected
	}
	return schematic.RolePassive
}
