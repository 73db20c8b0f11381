package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <schematic_file> [reference]",
		Short: "Show schematic information",
		Long: `Display information about a schematic.

Without a reference: shows a summary of the sheet
With a reference: shows the placed pins of that component`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := schematic.Load(args[0])
			if err != nil {
				return fmt.Errorf("error loading schematic: %w", err)
			}
			if len(args) == 2 {
				return showComponent(cmd.OutOrStdout(), sch, args[1])
			}
			showSummary(cmd.OutOrStdout(), sch, args[0])
			return nil
		},
	}
}

func showSummary(w io.Writer, sch *schematic.Schematic, filename string) {
	fmt.Fprintf(w, "Schematic: %s\n", filename)
	if sch.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", sch.Name)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Statistics:")
	fmt.Fprintf(w, "  Components: %d\n", len(sch.Components))
	fmt.Fprintf(w, "  Pins: %d\n", sch.PinCount())
	fmt.Fprintf(w, "  Wires: %d\n", len(sch.Wires))
	fmt.Fprintf(w, "  Labels: %d\n", len(sch.Labels))
	fmt.Fprintln(w)

	// Group by reference prefix
	byPrefix := make(map[string][]string)
	for _, ref := range sch.References() {
		prefix := schematic.RefPrefix(ref)
		byPrefix[prefix] = append(byPrefix[prefix], ref)
	}
	if len(byPrefix) > 0 {
		fmt.Fprintln(w, "Components:")
		var prefixes []string
		for p := range byPrefix {
			prefixes = append(prefixes, p)
		}
		sort.Strings(prefixes)
		for _, prefix := range prefixes {
			refs := byPrefix[prefix]
			sort.Strings(refs)
			fmt.Fprintf(w, "  %s: %s\n", prefix, strings.Join(refs, ", "))
		}
		fmt.Fprintln(w)
	}

	seen := make(map[string]bool)
	var labels []string
	for _, l := range sch.Labels {
		if l.Text != "" && !seen[l.Text] {
			seen[l.Text] = true
			labels = append(labels, l.Text)
		}
	}
	for _, wire := range sch.Wires {
		if wire.NetName != "" && !seen[wire.NetName] {
			seen[wire.NetName] = true
			labels = append(labels, wire.NetName)
		}
	}
	if len(labels) > 0 {
		fmt.Fprintln(w, "Net Labels:")
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
}

func showComponent(w io.Writer, sch *schematic.Schematic, ref string) error {
	c := sch.ComponentByReference(ref)
	if c == nil {
		return fmt.Errorf("component '%s' not found", ref)
	}

	fmt.Fprintf(w, "Component: %s\n", ref)
	fmt.Fprintf(w, "ID: %s\n", c.ID)
	if c.TypeID != "" {
		fmt.Fprintf(w, "Library: %s\n", c.TypeID)
	}
	if c.Value != "" {
		fmt.Fprintf(w, "Value: %s\n", c.Value)
	}
	fmt.Fprintf(w, "Position: (%.2f, %.2f)\n", c.Position.X, c.Position.Y)
	fmt.Fprintln(w)

	if len(c.Pins) > 0 {
		fmt.Fprintln(w, "Pins:")
		for _, p := range c.Pins {
			name := p.Name
			if name == "" {
				name = "~"
			}
			fmt.Fprintf(w, "  %s (%s): %s at (%.2f, %.2f)\n", p.ID, name, p.Role, p.Position.X, p.Position.Y)
		}
	}
	return nil
}
