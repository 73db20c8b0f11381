// Package erc extracts nets from schematic geometry and runs the electrical
// rule check over them.
//
// A check never fails: every problem, including rule crashes and exhausted
// budgets, is a diagnostic inside the returned report.
package erc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

var (
	// ErrCheckIncomplete marks a check that stopped before producing a full
	// report (budget exceeded, deadline, cancellation).
	ErrCheckIncomplete = errors.New("erc: check incomplete")

	// ErrUnknownRule is returned by Options.Validate for a rule id that is
	// not in the catalogue.
	ErrUnknownRule = errors.New("erc: unknown rule")
)

// Options controls a Checker.
type Options struct {
	// Parallel evaluates rules concurrently, at most Jobs at a time.
	Parallel bool
	Jobs     int

	// MaxWires bounds the wire count a check will take on; 0 means no limit.
	MaxWires int

	// Timeout bounds one check; 0 means no limit beyond the caller's context.
	Timeout time.Duration

	// DisabledRules lists rule ids to skip.
	DisabledRules []string

	// MergeThroughPins joins nets that meet only at a shared pin.
	MergeThroughPins bool

	Logger *slog.Logger
	Now    func() time.Time
}

// DefaultOptions returns the options used by Check: sequential, every rule
// enabled, a wire budget equal to the document limit.
func DefaultOptions() Options {
	return Options{
		Jobs:     runtime.GOMAXPROCS(0),
		MaxWires: schematic.MaxWires,
	}
}

// Validate fills zero values and rejects unusable settings.
func (o *Options) Validate() error {
	if o.Jobs < 1 {
		o.Jobs = runtime.GOMAXPROCS(0)
	}
	if o.MaxWires < 0 {
		return fmt.Errorf("erc: max wires must not be negative (got %d)", o.MaxWires)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("erc: timeout must not be negative (got %s)", o.Timeout)
	}
	for _, id := range o.DisabledRules {
		if _, ok := LookupRule(id); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRule, id)
		}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return nil
}

// Checker runs checks with fixed options. It holds no per-check state and
// may be shared between goroutines.
type Checker struct {
	opts   Options
	active []Rule
}

// NewChecker validates opts and returns a Checker.
func NewChecker(opts Options) (*Checker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Checker{opts: opts}
	for _, r := range rules {
		if !r.Enabled || slices.Contains(opts.DisabledRules, r.ID) {
			continue
		}
		c.active = append(c.active, r)
	}
	return c, nil
}

// Options returns the validated options.
func (c *Checker) Options() Options { return c.opts }

// Rules returns the rules this checker runs, in order.
func (c *Checker) Rules() []Rule {
	out := make([]Rule, len(c.active))
	copy(out, c.active)
	return out
}

// BuildNets extracts the net table under the checker's budget and options.
func (c *Checker) BuildNets(ctx context.Context, sch *schematic.Schematic) (*NetTable, error) {
	if c.opts.MaxWires > 0 && len(sch.Wires) > c.opts.MaxWires {
		return nil, fmt.Errorf("%w: %d wires exceed the budget of %d", ErrCheckIncomplete, len(sch.Wires), c.opts.MaxWires)
	}
	return BuildNets(ctx, sch, BuildOptions{MergeThroughPins: c.opts.MergeThroughPins})
}

// Check runs the rule battery over sch. It always returns a report; a budget
// overrun or an ended context yields status "incomplete" with a single
// CheckIncomplete error and no rule output.
func (c *Checker) Check(ctx context.Context, sch *schematic.Schematic) *Report {
	if sch == nil {
		sch = &schematic.Schematic{}
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	log := c.opts.Logger
	ts := c.opts.Now().Unix()

	start := time.Now()
	t, err := c.BuildNets(ctx, sch)
	if err != nil {
		log.Warn("check incomplete", "schematic", sch.Name, "error", err)
		return incompleteReport(sch, err, ts)
	}
	log.Debug("nets built",
		"schematic", sch.Name,
		"wires", len(sch.Wires),
		"pins", sch.PinCount(),
		"nets", len(t.Nets),
		"elapsed", time.Since(start))

	results, err := evaluate(ctx, t, c.active, c.opts)
	if err != nil {
		err = incomplete(err)
		log.Warn("check incomplete", "schematic", sch.Name, "error", err)
		return incompleteReport(sch, err, ts)
	}

	r := assemble(results, t.Statistics(), ts)
	log.Debug("check finished",
		"schematic", sch.Name,
		"errors", len(r.Errors),
		"warnings", len(r.Warnings),
		"elapsed", time.Since(start))
	return r
}

// incompleteReport reports nothing as verified: no pin is counted as
// connected and no net is reported.
func incompleteReport(sch *schematic.Schematic, err error, ts int64) *Report {
	pins := sch.PinCount()
	stats := Statistics{
		TotalComponents: len(sch.Components),
		TotalWires:      len(sch.Wires),
		TotalPins:       pins,
		UnconnectedPins: pins,
	}
	cause := strings.TrimPrefix(err.Error(), ErrCheckIncomplete.Error()+": ")
	d := Diagnostic{
		Kind:     KindCheckIncomplete,
		Message:  "Check incomplete: " + cause,
		Severity: SeverityHigh,
	}
	r := assemble([][]Diagnostic{{d}}, stats, ts)
	r.Status = StatusIncomplete
	return r
}

var defaultChecker = func() *Checker {
	c, err := NewChecker(DefaultOptions())
	if err != nil {
		panic(err)
	}
	return c
}()

// Check runs the full battery with default options. It is a pure function
// of sch apart from the report timestamp.
func Check(sch *schematic.Schematic) *Report {
	return defaultChecker.Check(context.Background(), sch)
}
