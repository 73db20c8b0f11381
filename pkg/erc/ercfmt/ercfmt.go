// Package ercfmt renders check reports for terminals and tools.
package ercfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// TextOptions controls the text renderer.
type TextOptions struct {
	// Title is printed in the header, usually the input path.
	Title string
	// Color forces ANSI colors on or off regardless of the terminal.
	Color bool
	// Quiet omits warnings.
	Quiet bool
	// Stats appends the statistics block.
	Stats bool
}

type palette struct {
	critical, high, medium, low, info *color.Color
	pass, fail, heading               *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		critical: color.New(color.FgRed, color.Bold),
		high:     color.New(color.FgRed),
		medium:   color.New(color.FgYellow),
		low:      color.New(color.FgCyan),
		info:     color.New(color.FgBlue),
		pass:     color.New(color.FgGreen, color.Bold),
		fail:     color.New(color.FgRed, color.Bold),
		heading:  color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.critical, p.high, p.medium, p.low, p.info, p.pass, p.fail, p.heading} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s erc.Severity) *color.Color {
	switch s {
	case erc.SeverityCritical:
		return p.critical
	case erc.SeverityHigh:
		return p.high
	case erc.SeverityMedium:
		return p.medium
	case erc.SeverityLow:
		return p.low
	}
	return p.info
}

// Text writes a human-readable report.
func Text(w io.Writer, r *erc.Report, opts TextOptions) error {
	p := newPalette(opts.Color)
	var b strings.Builder

	if opts.Title != "" {
		p.heading.Fprintf(&b, "ERC report: %s\n", opts.Title)
	}
	if r.Status != erc.StatusComplete {
		p.fail.Fprintf(&b, "Status: %s\n", r.Status)
	}

	section := func(name string, diags []erc.Diagnostic) {
		if len(diags) == 0 {
			return
		}
		b.WriteString("\n")
		p.heading.Fprintf(&b, "%s (%d):\n", name, len(diags))
		for _, d := range diags {
			b.WriteString("  ")
			p.severity(d.Severity).Fprintf(&b, "%-8s", d.Severity)
			fmt.Fprintf(&b, " %s: %s", d.Kind, d.Message)
			if d.Location != nil {
				fmt.Fprintf(&b, " (at %g, %g)", d.Location.X, d.Location.Y)
			}
			b.WriteString("\n")
		}
	}
	section("Errors", r.Errors)
	if !opts.Quiet {
		section("Warnings", r.Warnings)
	}

	if opts.Stats {
		s := r.Statistics
		b.WriteString("\n")
		p.heading.Fprintln(&b, "Statistics:")
		fmt.Fprintf(&b, "  Components: %d\n", s.TotalComponents)
		fmt.Fprintf(&b, "  Wires: %d\n", s.TotalWires)
		fmt.Fprintf(&b, "  Pins: %d (%d connected, %d unconnected)\n", s.TotalPins, s.ConnectedPins, s.UnconnectedPins)
		fmt.Fprintf(&b, "  Nets: %d (%d power, %d ground)\n", s.TotalNets, s.PowerNets, s.GroundNets)
	}

	b.WriteString("\n")
	summary := fmt.Sprintf("%s, %s", plural(len(r.Errors), "error"), plural(len(r.Warnings), "warning"))
	if r.Passed {
		p.pass.Fprint(&b, "PASSED")
	} else {
		p.fail.Fprint(&b, "FAILED")
	}
	fmt.Fprintf(&b, " (%s)\n", summary)

	_, err := io.WriteString(w, b.String())
	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// JSON writes the report in its wire shape followed by a newline.
func JSON(w io.Writer, r *erc.Report) error {
	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Write renders r in format f.
func Write(w io.Writer, r *erc.Report, f Format, opts TextOptions) error {
	if f == FormatJSON {
		return JSON(w, r)
	}
	return Text(w, r, opts)
}

// Rules writes the rule catalogue as an aligned table.
func Rules(w io.Writer, rules []erc.Rule, colored bool) error {
	p := newPalette(colored)
	var b strings.Builder
	width := 0
	for _, r := range rules {
		width = max(width, len(r.ID))
	}
	for _, r := range rules {
		class := "warning"
		if r.IsError() {
			class = "error"
		}
		fmt.Fprintf(&b, "%-*s  ", width, r.ID)
		p.severity(r.Severity).Fprintf(&b, "%-8s", r.Severity)
		fmt.Fprintf(&b, " %-7s  %s\n", class, r.Description)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
