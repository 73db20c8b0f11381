// Package waiver reads waiver files and removes the diagnostics they cover
// from a report.
//
// A waiver file holds one waiver per line:
//
//	# comment
//	waive UnconnectedPin at U1.14 because "reserved for debug header"
//	waive SinglePinNet on net "TP_VREF"
//	waive NoDecouplingCapacitor at "IC3"
//	waive UnlabeledNet
//
// A waiver matches a diagnostic of its kind; "at" narrows it to a component
// reference (and optionally a pin id), "on net" to a net name.
package waiver

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

var waiverLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s]+`},
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Integer", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_~][A-Za-z0-9_~+\-]*`},
	{Name: "Dot", Pattern: `\.`},
})

// File is a parsed waiver file.
type File struct {
	Waivers []*Waiver `@@*`
}

// Waiver suppresses matching diagnostics.
type Waiver struct {
	Pos lexer.Position

	Kind   string  `"waive" @Ident`
	At     *Target `( "at" @@ )?`
	Net    *string `( "on" "net" @String )?`
	Reason *string `( "because" @String )?`
}

// Target names a component reference and optionally one of its pins.
type Target struct {
	Ref string `@( Ident | String )`
	Pin string `( Dot @( Ident | Integer | String ) )?`
}

func (t *Target) String() string {
	if t.Pin == "" {
		return t.Ref
	}
	return t.Ref + "." + t.Pin
}

func (w *Waiver) String() string {
	s := "waive " + w.Kind
	if w.At != nil {
		s += " at " + w.At.String()
	}
	if w.Net != nil {
		s += fmt.Sprintf(" on net %q", *w.Net)
	}
	return s
}

var parser = participle.MustBuild[File](
	participle.Lexer(waiverLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
)

// Parse reads a waiver file. name is used in error positions.
func Parse(name string, r io.Reader) (*File, error) {
	f, err := parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("parse waivers: %w", err)
	}
	for _, w := range f.Waivers {
		if !erc.Kind(w.Kind).Valid() {
			return nil, fmt.Errorf("%s: unknown diagnostic kind %q", w.Pos, w.Kind)
		}
	}
	return f, nil
}

// ParseFile reads the waiver file at path.
func ParseFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open waivers: %w", err)
	}
	defer file.Close()

	return Parse(path, file)
}

// Matches reports whether the waiver covers d. sch resolves the component id
// in the diagnostic's location to a reference designator.
func (w *Waiver) Matches(d erc.Diagnostic, sch *schematic.Schematic) bool {
	if erc.Kind(w.Kind) != d.Kind {
		return false
	}
	if w.Net != nil && *w.Net != d.Net {
		return false
	}
	if w.At != nil {
		if d.Location == nil || d.Location.ComponentID == "" {
			return false
		}
		c := sch.Component(d.Location.ComponentID)
		if c == nil || c.Reference != w.At.Ref {
			return false
		}
		if w.At.Pin != "" && w.At.Pin != d.Location.PinID {
			return false
		}
	}
	return true
}

// Apply removes every diagnostic covered by a waiver and recomputes
// r.Passed. It returns the number removed and the waivers that matched
// nothing. CheckIncomplete and InternalError diagnostics cannot be waived.
func (f *File) Apply(r *erc.Report, sch *schematic.Schematic) (removed int, unused []*Waiver) {
	used := make([]bool, len(f.Waivers))
	removed = r.Filter(func(d erc.Diagnostic) bool {
		if d.Kind == erc.KindCheckIncomplete || d.Kind == erc.KindInternalError {
			return true
		}
		hit := false
		for i, w := range f.Waivers {
			if w.Matches(d, sch) {
				used[i] = true
				hit = true
			}
		}
		return !hit
	})
	for i, w := range f.Waivers {
		if !used[i] {
			unused = append(unused, w)
		}
	}
	return removed, unused
}

// Merge appends the waivers of other files.
func (f *File) Merge(others ...*File) {
	for _, o := range others {
		f.Waivers = slices.Concat(f.Waivers, o.Waivers)
	}
}
