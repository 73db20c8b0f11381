package sexpr

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrEmpty is returned when the input holds no expression at all.
var ErrEmpty = errors.New("sexpr: no expressions found")

// Node is either an atom (bare symbol or quoted string) or a list.
type Node struct {
	Value  string
	Quoted bool
	Items  []*Node
	list   bool
}

// IsList reports whether n is a list node.
func (n *Node) IsList() bool {
	return n != nil && n.list
}

// Name returns the leading symbol of a list, e.g. "wire" for (wire ...).
func (n *Node) Name() string {
	if !n.IsList() || len(n.Items) == 0 || n.Items[0].IsList() {
		return ""
	}
	return n.Items[0].Value
}

// Args returns the list items after the leading symbol.
func (n *Node) Args() []*Node {
	if !n.IsList() || len(n.Items) < 2 {
		return nil
	}
	return n.Items[1:]
}

// Find returns the first direct child list named key.
func (n *Node) Find(key string) (*Node, bool) {
	if !n.IsList() {
		return nil, false
	}
	for _, item := range n.Items {
		if item.Name() == key {
			return item, true
		}
	}
	return nil, false
}

// FindAll returns every direct child list named key, in document order.
func (n *Node) FindAll(key string) []*Node {
	if !n.IsList() {
		return nil
	}
	var out []*Node
	for _, item := range n.Items {
		if item.Name() == key {
			out = append(out, item)
		}
	}
	return out
}

// HasAtom reports whether a bare symbol equal to sym is a direct child.
func (n *Node) HasAtom(sym string) bool {
	if !n.IsList() {
		return false
	}
	for _, item := range n.Items {
		if !item.IsList() && !item.Quoted && item.Value == sym {
			return true
		}
	}
	return false
}

// Atom returns the atom text at index i (0 is the list name).
func (n *Node) Atom(i int) (string, error) {
	if !n.IsList() {
		return "", fmt.Errorf("sexpr: expected list, got atom %q", n.Value)
	}
	if i < 0 || i >= len(n.Items) {
		return "", fmt.Errorf("sexpr: (%s) index %d out of bounds (length %d)", n.Name(), i, len(n.Items))
	}
	if n.Items[i].IsList() {
		return "", fmt.Errorf("sexpr: (%s) expected atom at index %d", n.Name(), i)
	}
	return n.Items[i].Value, nil
}

// Float parses the atom at index i as a float64.
func (n *Node) Float(i int) (float64, error) {
	s, err := n.Atom(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("sexpr: failed to parse float %q: %w", s, err)
	}
	return v, nil
}

// Int parses the atom at index i as an int.
func (n *Node) Int(i int) (int, error) {
	s, err := n.Atom(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("sexpr: failed to parse int %q: %w", s, err)
	}
	return v, nil
}

// Text renders the node back to S-expression text.
func (n *Node) Text() string {
	var b strings.Builder
	n.format(&b)
	return b.String()
}

func (n *Node) format(b *strings.Builder) {
	if !n.IsList() {
		if n.Quoted {
			b.WriteString(strconv.Quote(n.Value))
		} else {
			b.WriteString(n.Value)
		}
		return
	}
	b.WriteByte('(')
	for i, item := range n.Items {
		if i > 0 {
			b.WriteByte(' ')
		}
		item.format(b)
	}
	b.WriteByte(')')
}

// Parse reads every top-level expression from r.
func Parse(r io.Reader) ([]*Node, error) {
	lx := newLexer(r)
	var out []*Node
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			break
		}
		node, err := parseExpr(lx, tok)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

func parseExpr(lx *lexer, tok token) (*Node, error) {
	switch tok.kind {
	case tokAtom:
		return &Node{Value: tok.text}, nil
	case tokString:
		return &Node{Value: tok.text, Quoted: true}, nil
	case tokClose:
		return nil, fmt.Errorf("sexpr: line %d: unexpected ')'", tok.line)
	case tokOpen:
		return parseList(lx, tok.line)
	}
	return nil, fmt.Errorf("sexpr: line %d: unexpected end of input", tok.line)
}

// parseList is iterative over siblings and recursive over depth; KiCad
// nesting rarely exceeds a dozen levels.
func parseList(lx *lexer, openLine int) (*Node, error) {
	node := &Node{list: true}
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokClose:
			return node, nil
		case tokEOF:
			return nil, fmt.Errorf("sexpr: list opened on line %d is never closed", openLine)
		}
		child, err := parseExpr(lx, tok)
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, child)
	}
}
