package erc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// evaluate runs the active rules against the table. Each rule writes only
// its own slot, so the merge order is rule order whether or not the rules
// ran concurrently. A rule that panics yields a single InternalError
// diagnostic in its slot and the others still run.
func evaluate(ctx context.Context, t *NetTable, active []Rule, opts Options) ([][]Diagnostic, error) {
	results := make([][]Diagnostic, len(active))

	if !opts.Parallel || len(active) < 2 {
		for i, r := range active {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = runRule(r, t, opts.Logger)
		}
		return results, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for i, r := range active {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runRule(r, t, opts.Logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

func runRule(r Rule, t *NetTable, log *slog.Logger) (out []Diagnostic) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			log.Error("rule panicked", "rule", r.ID, "panic", v)
			out = []Diagnostic{{
				Kind:     KindInternalError,
				Message:  fmt.Sprintf("Rule %s failed: %v", r.ID, v),
				Severity: SeverityHigh,
				Rule:     r.ID,
			}}
			return
		}
		log.Debug("rule finished", "rule", r.ID, "diagnostics", len(out), "elapsed", time.Since(start))
	}()
	return r.check(r, t)
}
