// Package schematic defines the read-only document model the rule checker
// consumes: components with placed pins, wire polylines and net labels.
//
// Pin positions are already in document coordinates (placement, rotation and
// mirroring applied by whoever produced the document). Pin roles are data:
// nothing in this module infers a role from a component type or pin name.
package schematic

import (
	"strings"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/geom"
)

// Size limits accepted at the document boundary.
const (
	MaxComponents = 10000
	MaxWires      = 50000
	MaxLabels     = 5000

	// CoordinateLimit bounds every coordinate in absolute value.
	CoordinateLimit = 50000.0
)

// Schematic is one sheet: the immutable snapshot handed to the checker.
type Schematic struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name" validate:"max=100"`
	Components []Component `json:"components" yaml:"components" validate:"max=10000,dive"`
	Wires      []Wire      `json:"wires" yaml:"wires" validate:"max=50000,dive"`
	Labels     []Label     `json:"labels,omitempty" yaml:"labels,omitempty" validate:"max=5000,dive"`
}

// Component is a placed symbol instance.
type Component struct {
	ID        string     `json:"id" yaml:"id" validate:"required"`
	TypeID    string     `json:"typeId,omitempty" yaml:"typeId,omitempty"`
	Reference string     `json:"reference" yaml:"reference"`
	Value     string     `json:"value,omitempty" yaml:"value,omitempty"`
	Position  geom.Point `json:"position" yaml:"position"`
	Pins      []Pin      `json:"pins" yaml:"pins" validate:"dive"`
}

// Pin is an electrical connection point of a component.
type Pin struct {
	ID       string     `json:"id" yaml:"id" validate:"required"`
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	Number   string     `json:"number,omitempty" yaml:"number,omitempty"`
	Position geom.Point `json:"position" yaml:"position"`
	Role     Role       `json:"role" yaml:"role"`
}

// Wire is a drawn polyline. A well-formed wire has at least two points;
// shorter ones are accepted here and reported by the checker.
type Wire struct {
	ID      string       `json:"id" yaml:"id"`
	Points  []geom.Point `json:"points" yaml:"points" validate:"dive"`
	NetName string       `json:"netId,omitempty" yaml:"netId,omitempty"`
}

// Label is a net label placed on the sheet. A label names the net of any
// wire it touches.
type Label struct {
	ID       string     `json:"id,omitempty" yaml:"id,omitempty"`
	Text     string     `json:"text" yaml:"text"`
	Position geom.Point `json:"position" yaml:"position"`
}

// PinCount returns the total number of pins across all components.
func (s *Schematic) PinCount() int {
	n := 0
	for i := range s.Components {
		n += len(s.Components[i].Pins)
	}
	return n
}

// Component returns the component with the given id, or nil.
func (s *Schematic) Component(id string) *Component {
	for i := range s.Components {
		if s.Components[i].ID == id {
			return &s.Components[i]
		}
	}
	return nil
}

// ComponentByReference returns the first component carrying ref, or nil.
func (s *Schematic) ComponentByReference(ref string) *Component {
	for i := range s.Components {
		if s.Components[i].Reference == ref {
			return &s.Components[i]
		}
	}
	return nil
}

// References returns all non-empty reference designators in document order.
func (s *Schematic) References() []string {
	refs := make([]string, 0, len(s.Components))
	for _, c := range s.Components {
		if c.Reference != "" {
			refs = append(refs, c.Reference)
		}
	}
	return refs
}

// RefPrefix returns the letters before the first digit of a reference
// designator ("U" for "U12", "IC" for "IC3").
func RefPrefix(ref string) string {
	if i := strings.IndexAny(ref, "0123456789"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// Pin returns the pin with the given id, or nil.
func (c *Component) Pin(id string) *Pin {
	for i := range c.Pins {
		if c.Pins[i].ID == id {
			return &c.Pins[i]
		}
	}
	return nil
}
