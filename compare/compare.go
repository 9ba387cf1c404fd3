// Package compare repeats worker invocations across targets and averages
// their timings per operation.
package compare

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weiihann/relbench/harness"
)

// Invoker runs one worker invocation for a target.
type Invoker interface {
	Invoke(ctx context.Context, target string) (harness.RunResult, error)
}

// Comparison describes a repeated benchmark across targets. The first
// target is the reference whose operations define the report rows.
type Comparison struct {
	Targets []string
	Runs    int
	Invoker Invoker
	Logger  *slog.Logger
}

// Results collects the successful runs of every target.
type Results struct {
	Targets  []string
	Runs     int
	ByTarget map[string][]harness.RunResult
	Failures map[string]int
}

// Successful returns how many runs of target succeeded.
func (r *Results) Successful(target string) int {
	return len(r.ByTarget[target])
}

// Run invokes every target once per iteration, in order, for c.Runs
// iterations. A failed run is logged and skipped. It returns an
// InsufficientDataError when some target has no successful run.
func (c *Comparison) Run(ctx context.Context) (*Results, error) {
	if len(c.Targets) < 2 {
		return nil, fmt.Errorf("%w: need at least two targets, got %d",
			ErrInvalidComparison, len(c.Targets))
	}

	if c.Runs < 1 {
		return nil, fmt.Errorf("%w: runs must be positive, got %d",
			ErrInvalidComparison, c.Runs)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	results := &Results{
		Targets:  c.Targets,
		Runs:     c.Runs,
		ByTarget: make(map[string][]harness.RunResult, len(c.Targets)),
		Failures: make(map[string]int, len(c.Targets)),
	}

loop:
	for i := 1; i <= c.Runs; i++ {
		for _, target := range c.Targets {
			if ctx.Err() != nil {
				logger.WarnContext(ctx, "comparison interrupted",
					slog.Int("run", i),
					slog.String("error", ctx.Err().Error()),
				)

				break loop
			}

			attempt := logger.With(
				slog.String("target", target),
				slog.Int("run", i),
				slog.Int("runs", c.Runs),
			)

			start := time.Now()

			result, err := c.invoke(ctx, target)
			if err != nil {
				results.Failures[target]++
				attempt.ErrorContext(ctx, "run failed",
					slog.String("error", err.Error()),
				)

				continue
			}

			results.ByTarget[target] = append(results.ByTarget[target], result)
			attempt.InfoContext(ctx, "run succeeded",
				slog.Int("operations", len(result)),
				slog.Duration("elapsed", time.Since(start)),
			)
		}
	}

	var missing []string
	for _, target := range c.Targets {
		if results.Successful(target) == 0 {
			missing = append(missing, target)
		}
	}

	if len(missing) > 0 {
		return results, &InsufficientDataError{Targets: missing}
	}

	return results, nil
}

// invoke runs one attempt and turns a panic inside the invoker into an
// error so that a single bad run cannot end the comparison.
func (c *Comparison) invoke(ctx context.Context, target string) (result harness.RunResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("unexpected fault running %s: %v", target, p)
		}
	}()

	return c.Invoker.Invoke(ctx, target)
}
