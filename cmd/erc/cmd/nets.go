package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

func newNetsCmd(g *globalFlags) *cobra.Command {
	var (
		format string
		merge  bool
		all    bool
	)
	c := &cobra.Command{
		Use:   "nets <schematic_file>",
		Short: "Show or export the extracted nets",
		Long: `Extract nets from a schematic and print them.

Formats:
  text   one block per net with its pins (default)
  json   machine-readable net table
  kicad  KiCad netlist (version D)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.setup(cmd, args[0])
			if err != nil {
				return err
			}
			sch, err := schematic.Load(args[0])
			if err != nil {
				return fmt.Errorf("error loading schematic: %w", err)
			}

			opts := cfg.CheckOptions()
			if cmd.Flags().Changed("merge-through-pins") {
				opts.MergeThroughPins = merge
			}
			opts.Logger = log
			checker, err := erc.NewChecker(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			table, err := checker.BuildNets(ctx, sch)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "kicad":
				_, err = fmt.Fprint(out, table.ExportKiCad())
			case "json":
				var data []byte
				if data, err = table.ExportJSON(); err == nil {
					_, err = fmt.Fprintln(out, string(data))
				}
			case "text":
				err = printNets(cmd, table, all)
			default:
				err = fmt.Errorf("unknown net format %q (want text, json or kicad)", format)
			}
			return err
		},
	}
	c.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or kicad")
	c.Flags().BoolVar(&merge, "merge-through-pins", false, "join nets that meet only at a shared pin")
	c.Flags().BoolVarP(&all, "all", "a", false, "include nets without pins")
	return c
}

func printNets(cmd *cobra.Command, table *erc.NetTable, all bool) error {
	var b strings.Builder
	shown := 0
	for _, s := range table.Summaries() {
		if len(s.Nodes) == 0 && !all {
			continue
		}
		shown++
		fmt.Fprintf(&b, "%s (%d pins, %d wires)\n", s.Name, len(s.Nodes), len(s.Wires))
		for _, n := range s.Nodes {
			fmt.Fprintf(&b, "  %s.%s %s\n", n.Reference, n.Pin, n.Role)
		}
	}
	st := table.Statistics()
	fmt.Fprintf(&b, "\n%d of %d nets shown, %d/%d pins connected\n", shown, st.TotalNets, st.ConnectedPins, st.TotalPins)
	_, err := fmt.Fprint(cmd.OutOrStdout(), b.String())
	return err
}
