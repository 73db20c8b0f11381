package erc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NetNode is one pin of an exported net.
type NetNode struct {
	Component string `json:"component"`
	Reference string `json:"reference"`
	Pin       string `json:"pin"`
	Role      string `json:"role"`
}

// NetSummary is the exported form of a net.
type NetSummary struct {
	Code    int       `json:"code"`
	Name    string    `json:"name"`
	Labeled bool      `json:"labeled"`
	Wires   []string  `json:"wires"`
	Nodes   []NetNode `json:"nodes"`
}

// Summaries returns every net in table order.
func (t *NetTable) Summaries() []NetSummary {
	out := make([]NetSummary, len(t.Nets))
	for i, net := range t.Nets {
		s := NetSummary{
			Code:    net.Index + 1,
			Name:    net.Name,
			Labeled: net.Labeled,
			Wires:   t.WireIDs(net),
			Nodes:   make([]NetNode, len(net.Pins)),
		}
		for j, ref := range net.Pins {
			c := t.Component(ref)
			s.Nodes[j] = NetNode{
				Component: c.ID,
				Reference: c.Reference,
				Pin:       t.Pin(ref).ID,
				Role:      t.Role(ref).String(),
			}
		}
		out[i] = s
	}
	return out
}

// ExportJSON exports the net table as JSON.
func (t *NetTable) ExportJSON() ([]byte, error) {
	multi := 0
	for _, net := range t.Nets {
		if len(net.Pins) > 1 {
			multi++
		}
	}
	output := struct {
		Version      string       `json:"version"`
		Schematic    string       `json:"schematic,omitempty"`
		NetCount     int          `json:"netCount"`
		MultiPinNets int          `json:"multiPinNets"`
		Nets         []NetSummary `json:"nets"`
	}{
		Version:      "1.0",
		Schematic:    t.sch.Name,
		NetCount:     len(t.Nets),
		MultiPinNets: multi,
		Nets:         t.Summaries(),
	}
	return json.MarshalIndent(output, "", "  ")
}

// ExportKiCad writes the net table in KiCad's netlist format (version D).
// Nets without pins carry no connectivity and are omitted; components are
// listed in document order.
func (t *NetTable) ExportKiCad() string {
	var b strings.Builder
	q := strconv.Quote

	b.WriteString("(export (version \"D\")\n")
	b.WriteString("  (design\n")
	fmt.Fprintf(&b, "    (source %s)\n", q(t.sch.Name))
	b.WriteString("    (tool \"erc\")\n")
	b.WriteString("  )\n")

	b.WriteString("  (components\n")
	for _, c := range t.sch.Components {
		if c.Reference == "" {
			continue
		}
		fmt.Fprintf(&b, "    (comp (ref %s)\n", q(c.Reference))
		fmt.Fprintf(&b, "      (value %s)\n", q(c.Value))
		if c.TypeID != "" {
			fmt.Fprintf(&b, "      (libsource (lib %s))\n", q(c.TypeID))
		}
		fmt.Fprintf(&b, "      (tstamps %s))\n", q(c.ID))
	}
	b.WriteString("  )\n")

	b.WriteString("  (nets\n")
	for _, net := range t.Nets {
		if len(net.Pins) == 0 {
			continue
		}
		fmt.Fprintf(&b, "    (net (code %s) (name %s)\n", q(strconv.Itoa(net.Index+1)), q(net.Name))
		for _, ref := range net.Pins {
			c := t.Component(ref)
			p := t.Pin(ref)
			fmt.Fprintf(&b, "      (node (ref %s) (pin %s) (pintype %s))\n",
				q(refName(c)), q(p.ID), q(t.Role(ref).String()))
		}
		b.WriteString("    )\n")
	}
	b.WriteString("  )\n")
	b.WriteString(")\n")

	return b.String()
}
