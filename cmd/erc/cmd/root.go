package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceERC/internal/config"
	"github.com/OpenTraceLab/OpenTraceERC/internal/logging"

	// Registers the .kicad_sch loader.
	_ "github.com/OpenTraceLab/OpenTraceERC/pkg/kicad/kicadsch"
)

// errCheckFailed makes the process exit 1 without printing anything more:
// the report already says why.
var errCheckFailed = errors.New("check failed")

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "erc",
		Short: "Electrical rule checker for schematics",
		Long: `erc extracts nets from schematic geometry and checks them against a
battery of electrical rules.

Inputs are .kicad_sch files or the erc JSON/YAML document format.

Examples:
  erc check board.kicad_sch                 # Check a KiCad schematic
  erc check board.json --format json        # Machine-readable report
  erc check board.kicad_sch --waivers erc.waivers
  erc nets board.kicad_sch --format kicad   # Export a KiCad netlist
  erc rules                                 # List the rule battery`,
		Version:       "0.9.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "project file (default: nearest "+config.FileName+" above the input)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: text or json")
	pf.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newCheckCmd(g),
		newRulesCmd(g),
		newNetsCmd(g),
		newInfoCmd(),
		newCacheCmd(g),
	)
	return root
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

// useColor reports whether output to w should carry ANSI colors: the
// setting asks for them, NO_COLOR is unset and w is a terminal.
func useColor(w io.Writer, want bool) bool {
	if !want || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// setup resolves the project config for input (explicit --config wins over
// discovery) and builds the logger from config and flags.
func (g *globalFlags) setup(cmd *cobra.Command, input string) (config.Config, *slog.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	switch {
	case g.configPath != "":
		cfg, err = config.Load(g.configPath)
	case input != "":
		cfg, err = config.Discover(filepath.Dir(input))
	default:
		cfg = config.Default()
	}
	if err != nil {
		return config.Config{}, nil, err
	}

	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if g.noColor {
		cfg.Output.Color = false
	}

	log, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	if cfg.Path != "" {
		log.Debug("config loaded", "path", cfg.Path)
	}
	return cfg, log, nil
}
