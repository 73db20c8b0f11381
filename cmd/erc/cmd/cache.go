package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceERC/internal/cache"
)

func newCacheCmd(g *globalFlags) *cobra.Command {
	var dir string
	c := &cobra.Command{
		Use:   "cache",
		Short: "Report cache operations",
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.setup(cmd, "")
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cache-dir") {
				cfg.Cache.Dir = dir
			}
			rc, err := cache.Open(cfg.Cache.Dir)
			if err != nil {
				return err
			}
			if err := rc.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", rc.Dir())
			return nil
		},
	}
	clearCmd.Flags().StringVar(&dir, "cache-dir", "", "cache directory (default: user cache dir)")
	c.AddCommand(clearCmd)
	return c
}
