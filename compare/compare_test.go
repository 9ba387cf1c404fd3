package compare

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/weiihann/relbench/harness"
)

type step struct {
	result harness.RunResult
	err    error
	panic  bool
}

// scriptedInvoker replays a fixed sequence of outcomes per target.
type scriptedInvoker struct {
	steps map[string][]step
	calls []string
}

func (s *scriptedInvoker) Invoke(_ context.Context, target string) (harness.RunResult, error) {
	n := 0
	for _, c := range s.calls {
		if c == target {
			n++
		}
	}

	s.calls = append(s.calls, target)

	st := s.steps[target][n]
	if st.panic {
		panic("worker handle exploded")
	}

	return st.result, st.err
}

func insert(ms float64) step {
	return step{result: harness.RunResult{
		{Operation: "Insert", Duration: ms, Unit: harness.Milliseconds},
	}}
}

func failed() step {
	return step{err: &harness.InvocationError{Target: "x", ExitCode: 1}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOrderAndPartialFailures(t *testing.T) {
	inv := &scriptedInvoker{steps: map[string][]step{
		"postgres": {insert(100), failed(), insert(300)},
		"mariadb":  {insert(50), insert(100), insert(150)},
	}}

	c := &Comparison{
		Targets: []string{"postgres", "mariadb"},
		Runs:    3,
		Invoker: inv,
		Logger:  quietLogger(),
	}

	results, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantCalls := []string{"postgres", "mariadb", "postgres", "mariadb", "postgres", "mariadb"}
	if diff := cmp.Diff(wantCalls, inv.calls); diff != "" {
		t.Errorf("invocation order mismatch (-want +got):\n%s", diff)
	}

	if results.Successful("postgres") != 2 {
		t.Errorf("postgres successes = %d, want 2", results.Successful("postgres"))
	}
	if results.Failures["postgres"] != 1 {
		t.Errorf("postgres failures = %d, want 1", results.Failures["postgres"])
	}

	rows, err := Aggregate(results, Options{})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if rows[0].Samples["postgres"] != 2 || rows[0].Samples["mariadb"] != 3 {
		t.Errorf("samples = %v, want postgres:2 mariadb:3", rows[0].Samples)
	}
	if rows[0].Mean["postgres"] != 200 {
		t.Errorf("postgres mean = %v, want 200", rows[0].Mean["postgres"])
	}
	if rows[0].Mean["mariadb"] != 100 {
		t.Errorf("mariadb mean = %v, want 100", rows[0].Mean["mariadb"])
	}
}

func TestRunAllFail(t *testing.T) {
	inv := &scriptedInvoker{steps: map[string][]step{
		"postgres": {failed(), failed()},
		"mariadb":  {failed(), {err: &harness.ParseError{Index: -1, Reason: "bad"}}},
	}}

	c := &Comparison{
		Targets: []string{"postgres", "mariadb"},
		Runs:    2,
		Invoker: inv,
		Logger:  quietLogger(),
	}

	_, err := c.Run(context.Background())

	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %T: %v", err, err)
	}
	if diff := cmp.Diff([]string{"postgres", "mariadb"}, insufficient.Targets); diff != "" {
		t.Errorf("missing targets mismatch (-want +got):\n%s", diff)
	}
	if len(inv.calls) != 4 {
		t.Errorf("expected all 4 attempts to run, got %d", len(inv.calls))
	}
}

func TestRunOneTargetEmpty(t *testing.T) {
	inv := &scriptedInvoker{steps: map[string][]step{
		"postgres": {insert(10)},
		"mariadb":  {failed()},
	}}

	c := &Comparison{
		Targets: []string{"postgres", "mariadb"},
		Runs:    1,
		Invoker: inv,
		Logger:  quietLogger(),
	}

	_, err := c.Run(context.Background())

	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %T: %v", err, err)
	}
	if len(insufficient.Targets) != 1 || insufficient.Targets[0] != "mariadb" {
		t.Errorf("missing targets = %v, want [mariadb]", insufficient.Targets)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	inv := &scriptedInvoker{steps: map[string][]step{
		"postgres": {{panic: true}, insert(10)},
		"mariadb":  {insert(20), insert(20)},
	}}

	c := &Comparison{
		Targets: []string{"postgres", "mariadb"},
		Runs:    2,
		Invoker: inv,
		Logger:  quietLogger(),
	}

	results, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if results.Successful("postgres") != 1 {
		t.Errorf("postgres successes = %d, want 1", results.Successful("postgres"))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	inv := &scriptedInvoker{steps: map[string][]step{
		"postgres": {insert(10)},
		"mariadb":  {insert(10)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Comparison{
		Targets: []string{"postgres", "mariadb"},
		Runs:    5,
		Invoker: inv,
		Logger:  quietLogger(),
	}

	_, err := c.Run(ctx)

	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %T: %v", err, err)
	}
	if len(inv.calls) != 0 {
		t.Errorf("expected no invocations after cancel, got %d", len(inv.calls))
	}
}

func TestRunInvalid(t *testing.T) {
	tests := []struct {
		name string
		c    Comparison
	}{
		{"one target", Comparison{Targets: []string{"postgres"}, Runs: 1}},
		{"zero runs", Comparison{Targets: []string{"postgres", "mariadb"}, Runs: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.c.Run(context.Background())
			if !errors.Is(err, ErrInvalidComparison) {
				t.Errorf("expected ErrInvalidComparison, got %v", err)
			}
		})
	}
}
