package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceERC/internal/cache"
	"github.com/OpenTraceLab/OpenTraceERC/internal/config"
	"github.com/OpenTraceLab/OpenTraceERC/internal/watch"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc/ercfmt"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc/waiver"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

type checkFlags struct {
	format           string
	parallel         bool
	jobs             int
	maxWires         int
	timeout          time.Duration
	waivers          []string
	disable          []string
	mergeThroughPins bool
	cacheDir         string
	quiet            bool
	stats            bool
	watch            bool
}

func newCheckCmd(g *globalFlags) *cobra.Command {
	f := &checkFlags{}
	c := &cobra.Command{
		Use:   "check <schematic_file>",
		Short: "Run the electrical rule check",
		Long: `Load a schematic, extract its nets and run every enabled rule.

The command exits with status 1 when the report has errors or the check
could not complete. Settings come from the nearest .erc.toml above the
input file; flags override them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, g, f, args[0])
		},
	}

	fl := c.Flags()
	fl.StringVarP(&f.format, "format", "f", "", "output format: text or json")
	fl.BoolVar(&f.parallel, "parallel", false, "evaluate rules concurrently")
	fl.IntVarP(&f.jobs, "jobs", "j", 0, "maximum concurrent rules (default: GOMAXPROCS)")
	fl.IntVar(&f.maxWires, "max-wires", 0, "wire budget; larger sheets are reported incomplete (0: no limit)")
	fl.DurationVar(&f.timeout, "timeout", 0, "abort the check after this long (0: no limit)")
	fl.StringSliceVar(&f.waivers, "waivers", nil, "waiver file (repeatable)")
	fl.StringSliceVar(&f.disable, "disable", nil, "rule id to skip (repeatable)")
	fl.BoolVar(&f.mergeThroughPins, "merge-through-pins", false, "join nets that meet only at a shared pin")
	fl.StringVar(&f.cacheDir, "cache-dir", "", "reuse reports from this cache directory")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "omit warnings from text output")
	fl.BoolVar(&f.stats, "stats", false, "print connectivity statistics")
	fl.BoolVarP(&f.watch, "watch", "w", false, "re-run the check whenever the input or a waiver file changes")
	return c
}

// apply overlays explicitly set flags on the project config.
func (f *checkFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("format") {
		cfg.Output.Format = f.format
	}
	if fl.Changed("parallel") {
		cfg.Check.Parallel = f.parallel
	}
	if fl.Changed("jobs") {
		cfg.Check.Jobs = f.jobs
	}
	if fl.Changed("max-wires") {
		cfg.Check.MaxWires = f.maxWires
	}
	if fl.Changed("timeout") {
		cfg.Check.Timeout = f.timeout
	}
	if fl.Changed("disable") {
		cfg.Check.DisabledRules = append(cfg.Check.DisabledRules, f.disable...)
	}
	if fl.Changed("merge-through-pins") {
		cfg.Check.MergeNetsThroughPins = f.mergeThroughPins
	}
	if fl.Changed("cache-dir") {
		cfg.Cache.Dir = f.cacheDir
	}
}

func runCheck(cmd *cobra.Command, g *globalFlags, f *checkFlags, input string) error {
	cfg, log, err := g.setup(cmd, input)
	if err != nil {
		return err
	}
	f.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, err := ercfmt.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	opts := cfg.CheckOptions()
	opts.Logger = log
	checker, err := erc.NewChecker(opts)
	if err != nil {
		return err
	}

	waiverPaths := f.waivers
	if cfg.Check.Waivers != "" {
		waiverPaths = append([]string{cfg.Check.Waivers}, waiverPaths...)
	}
	run := &checkRun{
		cmd:      cmd,
		checker:  checker,
		input:    input,
		waivers:  waiverPaths,
		cacheDir: cfg.Cache.Dir,
		format:   format,
		text: ercfmt.TextOptions{
			Title: input,
			Color: useColor(cmd.OutOrStdout(), cfg.Output.Color),
			Quiet: f.quiet,
			Stats: f.stats,
		},
		log: log,
	}

	if !f.watch {
		passed, err := run.once()
		if err != nil {
			return err
		}
		if !passed {
			return errCheckFailed
		}
		return nil
	}

	if _, err := run.once(); err != nil {
		log.Error("check failed to run", "error", err)
	}
	files := append([]string{input}, waiverPaths...)
	log.Info("watching for changes", "files", len(files))
	return watch.Files(cmd.Context(), files, watch.DefaultDebounce, log, func() {
		fmt.Fprintln(cmd.OutOrStdout())
		if _, err := run.once(); err != nil {
			log.Error("check failed to run", "error", err)
		}
	})
}

// checkRun is one configured check; once may be called repeatedly.
type checkRun struct {
	cmd      *cobra.Command
	checker  *erc.Checker
	input    string
	waivers  []string
	cacheDir string
	format   ercfmt.Format
	text     ercfmt.TextOptions
	log      *slog.Logger
}

// once loads the input, checks it and prints the report.
func (r *checkRun) once() (bool, error) {
	sch, err := schematic.Load(r.input)
	if err != nil {
		return false, fmt.Errorf("error loading schematic: %w", err)
	}
	r.log.Debug("schematic loaded",
		"path", r.input,
		"components", len(sch.Components),
		"wires", len(sch.Wires),
		"labels", len(sch.Labels))

	report, err := checkCached(r.cmd.Context(), r.checker, sch, r.cacheDir, r.log)
	if err != nil {
		return false, err
	}

	waivers, err := loadWaivers(r.waivers)
	if err != nil {
		return false, err
	}
	if waivers != nil {
		removed, unused := waivers.Apply(report, sch)
		r.log.Info("waivers applied", "removed", removed, "unused", len(unused))
		for _, w := range unused {
			r.log.Warn("waiver matched nothing", "waiver", w.String(), "at", w.Pos.String())
		}
	}

	if err := ercfmt.Write(r.cmd.OutOrStdout(), report, r.format, r.text); err != nil {
		return false, err
	}
	return report.Passed, nil
}

// checkCached runs the check, consulting the report cache when dir is set.
// Cache trouble is logged and never fails the check.
func checkCached(ctx context.Context, checker *erc.Checker, sch *schematic.Schematic, dir string, log *slog.Logger) (*erc.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if dir == "" {
		return checker.Check(ctx, sch), nil
	}

	c, err := cache.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	key, err := cache.KeyFor(sch, checker.Options())
	if err != nil {
		return nil, err
	}
	if r, ok, err := c.Get(key); err != nil {
		log.Warn("cache read failed", "key", key.String(), "error", err)
	} else if ok {
		log.Debug("cache hit", "key", key.String())
		return r, nil
	}

	r := checker.Check(ctx, sch)
	if err := c.Put(key, r); err != nil {
		log.Warn("cache write failed", "key", key.String(), "error", err)
	}
	return r, nil
}

func loadWaivers(paths []string) (*waiver.File, error) {
	var all *waiver.File
	for _, p := range paths {
		w, err := waiver.ParseFile(p)
		if err != nil {
			return nil, err
		}
		if all == nil {
			all = w
		} else {
			all.Merge(w)
		}
	}
	return all, nil
}
