// Package kicadsch reads the connectivity-relevant subset of a KiCad 6+
// schematic (.kicad_sch) and converts it into a schematic.Schematic.
//
// Only what the rule checker consumes is parsed: embedded library symbols
// with their pins, placed symbol instances, wires, labels and no-connect
// markers. Graphics, text, buses and sheet hierarchy are skipped.
package kicadsch

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/geom"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/kicad/sexpr"
)

// MinSupportedVersion is the first file format version of KiCad 6.0.
const MinSupportedVersion = 20211014

// Document is the parsed file, still in KiCad millimetres.
type Document struct {
	Version    int
	Generator  string
	UUID       string
	LibSymbols map[string]*LibSymbol
	Symbols    []Symbol
	Wires      []Wire
	Labels     []Label
	NoConnects []geom.Point
}

// LibSymbol is a symbol definition embedded in the schematic.
type LibSymbol struct {
	Name  string
	Power bool
	Units []Unit
}

// Unit is one unit/body-style section of a library symbol. Unit 0 holds
// items shared by every unit.
type Unit struct {
	Unit      int
	BodyStyle int
	Pins      []LibPin
}

// LibPin is a pin as drawn in the library, in symbol-local Y-up coordinates.
// At is the electrical connection point.
type LibPin struct {
	Type   string
	Name   string
	Number string
	At     geom.Point
	Angle  float64
}

// Symbol is a placed symbol instance.
type Symbol struct {
	LibID     string
	UUID      string
	Reference string
	Value     string
	At        geom.Point
	Angle     float64
	Mirror    string
	Unit      int
	BodyStyle int
}

// Wire is a wire polyline.
type Wire struct {
	UUID   string
	Points []geom.Point
}

// Label is a local, global or hierarchical label.
type Label struct {
	Kind string
	Text string
	At   geom.Point
	UUID string
}

// ParseFile reads and parses a KiCad schematic file.
func ParseFile(filename string) (*Document, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads and parses a KiCad schematic from r.
func Parse(r io.Reader) (*Document, error) {
	nodes, err := sexpr.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse s-expression: %w", err)
	}

	root := nodes[0]
	if root.Name() != "kicad_sch" {
		return nil, fmt.Errorf("not a KiCad schematic file: expected 'kicad_sch', got '%s'", root.Name())
	}

	doc := &Document{LibSymbols: make(map[string]*LibSymbol)}
	if err := parseHeader(root, doc); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if libs, ok := root.Find("lib_symbols"); ok {
		for _, n := range libs.FindAll("symbol") {
			sym := parseLibSymbol(n)
			doc.LibSymbols[sym.Name] = sym
		}
	}

	for _, n := range root.FindAll("symbol") {
		sym, err := parseSymbol(n)
		if err != nil {
			return nil, err
		}
		doc.Symbols = append(doc.Symbols, sym)
	}

	for _, n := range root.FindAll("wire") {
		w, err := parseWire(n)
		if err != nil {
			return nil, err
		}
		doc.Wires = append(doc.Wires, w)
	}

	for _, kind := range []string{"label", "global_label", "hierarchical_label"} {
		for _, n := range root.FindAll(kind) {
			text, _ := n.Atom(1)
			at, _, err := position(n)
			if err != nil {
				return nil, fmt.Errorf("%s %q: %w", kind, text, err)
			}
			doc.Labels = append(doc.Labels, Label{Kind: kind, Text: text, At: at, UUID: uuidOf(n)})
		}
	}

	for _, n := range root.FindAll("no_connect") {
		at, _, err := position(n)
		if err != nil {
			return nil, fmt.Errorf("no_connect: %w", err)
		}
		doc.NoConnects = append(doc.NoConnects, at)
	}

	return doc, nil
}

func parseHeader(root *sexpr.Node, doc *Document) error {
	verNode, ok := root.Find("version")
	if !ok {
		return fmt.Errorf("missing required 'version' field")
	}
	ver, err := verNode.Int(1)
	if err != nil {
		return fmt.Errorf("failed to parse version: %w", err)
	}
	if ver < MinSupportedVersion {
		return fmt.Errorf("unsupported KiCad version: %d (minimum required: %d / KiCad 6.0)", ver, MinSupportedVersion)
	}
	doc.Version = ver

	if gen, ok := root.Find("generator"); ok {
		doc.Generator, _ = gen.Atom(1)
	}
	doc.UUID = uuidOf(root)
	return nil
}

func parseLibSymbol(node *sexpr.Node) *LibSymbol {
	sym := &LibSymbol{}
	sym.Name, _ = node.Atom(1)
	_, sym.Power = node.Find("power")

	// Pins may sit directly on the symbol (rare) or inside nested units
	// named "<name>_<unit>_<style>".
	if pins := parseLibPins(node); len(pins) > 0 {
		sym.Units = append(sym.Units, Unit{Pins: pins})
	}
	for _, un := range node.FindAll("symbol") {
		name, _ := un.Atom(1)
		unit, style := unitSuffix(name)
		sym.Units = append(sym.Units, Unit{Unit: unit, BodyStyle: style, Pins: parseLibPins(un)})
	}
	return sym
}

// unitSuffix splits "R_1_1" into unit 1, body style 1. Names without a
// numeric suffix are treated as shared (0, 0).
func unitSuffix(name string) (unit, style int) {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return 0, 0
	}
	u, err1 := strconv.Atoi(parts[len(parts)-2])
	s, err2 := strconv.Atoi(parts[len(parts)-1])
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return u, s
}

func parseLibPins(node *sexpr.Node) []LibPin {
	var pins []LibPin
	for _, pn := range node.FindAll("pin") {
		pin := LibPin{}
		pin.Type, _ = pn.Atom(1)
		if at, angle, err := position(pn); err == nil {
			pin.At = at
			pin.Angle = angle
		}
		if nn, ok := pn.Find("name"); ok {
			pin.Name, _ = nn.Atom(1)
		}
		if nn, ok := pn.Find("number"); ok {
			pin.Number, _ = nn.Atom(1)
		}
		pins = append(pins, pin)
	}
	return pins
}

func parseSymbol(node *sexpr.Node) (Symbol, error) {
	sym := Symbol{Unit: 1, BodyStyle: 1}

	lib, ok := node.Find("lib_id")
	if !ok {
		return sym, fmt.Errorf("symbol instance without lib_id")
	}
	sym.LibID, _ = lib.Atom(1)

	at, angle, err := position(node)
	if err != nil {
		return sym, fmt.Errorf("symbol %q: %w", sym.LibID, err)
	}
	sym.At, sym.Angle = at, angle

	if m, ok := node.Find("mirror"); ok {
		sym.Mirror, _ = m.Atom(1)
	}
	if u, ok := node.Find("unit"); ok {
		if v, err := u.Int(1); err == nil {
			sym.Unit = v
		}
	}
	// KiCad 6/7 write "convert", KiCad 8+ "body_style".
	for _, key := range []string{"convert", "body_style"} {
		if c, ok := node.Find(key); ok {
			if v, err := c.Int(1); err == nil {
				sym.BodyStyle = v
			}
		}
	}
	sym.UUID = uuidOf(node)

	for _, pn := range node.FindAll("property") {
		key, _ := pn.Atom(1)
		val, _ := pn.Atom(2)
		switch key {
		case "Reference":
			sym.Reference = val
		case "Value":
			sym.Value = val
		}
	}
	return sym, nil
}

func parseWire(node *sexpr.Node) (Wire, error) {
	w := Wire{UUID: uuidOf(node)}
	pts, ok := node.Find("pts")
	if !ok {
		return w, nil
	}
	for _, xy := range pts.FindAll("xy") {
		x, err := xy.Float(1)
		if err != nil {
			return w, fmt.Errorf("wire %s: %w", w.UUID, err)
		}
		y, err := xy.Float(2)
		if err != nil {
			return w, fmt.Errorf("wire %s: %w", w.UUID, err)
		}
		w.Points = append(w.Points, geom.Pt(x, y))
	}
	return w, nil
}

// position reads the (at X Y [angle]) child of node.
func position(node *sexpr.Node) (geom.Point, float64, error) {
	at, ok := node.Find("at")
	if !ok {
		return geom.Point{}, 0, fmt.Errorf("missing (at X Y)")
	}
	x, err := at.Float(1)
	if err != nil {
		return geom.Point{}, 0, fmt.Errorf("failed to parse X coordinate: %w", err)
	}
	y, err := at.Float(2)
	if err != nil {
		return geom.Point{}, 0, fmt.Errorf("failed to parse Y coordinate: %w", err)
	}
	var angle float64
	if len(at.Items) > 3 {
		angle, _ = at.Float(3)
	}
	return geom.Pt(x, y), angle, nil
}

func uuidOf(node *sexpr.Node) string {
	if n, ok := node.Find("uuid"); ok {
		id, _ := n.Atom(1)
		return id
	}
	return ""
}
