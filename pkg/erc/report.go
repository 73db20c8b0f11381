package erc

import (
	"encoding/json"
	"fmt"
)

// Status of a report.
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
)

// Location points at the offending place on the sheet.
type Location struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	ComponentID string  `json:"componentId,omitempty"`
	WireID      string  `json:"wireId,omitempty"`
	PinID       string  `json:"pinId,omitempty"`
}

// Diagnostic is one finding. Rule and Net are informational extras: the
// producing rule id and, for net-level findings, the net name.
type Diagnostic struct {
	Kind     Kind      `json:"kind"`
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
	Severity Severity  `json:"severity"`
	Rule     string    `json:"rule,omitempty"`
	Net      string    `json:"net,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Location == nil {
		return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Kind, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s (at %g,%g)", d.Severity, d.Kind, d.Message, d.Location.X, d.Location.Y)
}

// Statistics summarises the connectivity the check saw.
type Statistics struct {
	TotalComponents int `json:"totalComponents"`
	TotalWires      int `json:"totalWires"`
	TotalPins       int `json:"totalPins"`
	// ConnectedPins counts distinct pins on at least one net. A pin shared
	// by two nets is counted once rather than per net.
	ConnectedPins   int `json:"connectedPins"`
	UnconnectedPins int `json:"unconnectedPins"`
	TotalNets       int `json:"totalNets"`
	PowerNets       int `json:"powerNets"`
	GroundNets      int `json:"groundNets"`
}

// Report is the result of one check. Passed is true iff Errors is empty.
type Report struct {
	Errors     []Diagnostic `json:"errors"`
	Warnings   []Diagnostic `json:"warnings"`
	Passed     bool         `json:"passed"`
	Timestamp  int64        `json:"timestamp"`
	Statistics Statistics   `json:"statistics"`
	Status     string       `json:"status"`
}

// assemble folds per-rule results, already in rule order, into a report.
// Error-class kinds go to Errors, everything else to Warnings.
func assemble(results [][]Diagnostic, stats Statistics, timestamp int64) *Report {
	r := &Report{
		Errors:     []Diagnostic{},
		Warnings:   []Diagnostic{},
		Timestamp:  timestamp,
		Statistics: stats,
		Status:     StatusComplete,
	}
	for _, diags := range results {
		for _, d := range diags {
			if d.Kind.IsError() {
				r.Errors = append(r.Errors, d)
			} else {
				r.Warnings = append(r.Warnings, d)
			}
		}
	}
	r.Passed = len(r.Errors) == 0
	return r
}

// Diagnostics returns errors followed by warnings.
func (r *Report) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

// Count returns how many diagnostics of kind k the report holds.
func (r *Report) Count(k Kind) int {
	n := 0
	for _, d := range r.Diagnostics() {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Filter keeps only diagnostics for which keep returns true and recomputes
// Passed. It returns the number removed.
func (r *Report) Filter(keep func(Diagnostic) bool) int {
	removed := 0
	filter := func(in []Diagnostic) []Diagnostic {
		out := in[:0]
		for _, d := range in {
			if keep(d) {
				out = append(out, d)
			} else {
				removed++
			}
		}
		return out
	}
	r.Errors = filter(r.Errors)
	r.Warnings = filter(r.Warnings)
	r.Passed = len(r.Errors) == 0
	return removed
}

// JSON renders the report in its wire shape.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
