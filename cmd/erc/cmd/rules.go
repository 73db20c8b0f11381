package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc/ercfmt"
)

func newRulesCmd(g *globalFlags) *cobra.Command {
	var format string
	c := &cobra.Command{
		Use:   "rules",
		Short: "List the rule battery",
		Long:  `Print every rule in execution order with its severity and whether its findings fail the check.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.setup(cmd, "")
			if err != nil {
				return err
			}
			f, err := ercfmt.ParseFormat(format)
			if err != nil {
				return err
			}
			if f == ercfmt.FormatJSON {
				data, err := json.MarshalIndent(erc.Rules(), "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return ercfmt.Rules(cmd.OutOrStdout(), erc.Rules(), useColor(cmd.OutOrStdout(), cfg.Output.Color))
		},
	}
	c.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	return c
}
