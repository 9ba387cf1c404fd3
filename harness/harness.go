package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// RunIDEnv is the environment variable carrying the per-attempt run id.
const RunIDEnv = "RELBENCH_RUN_ID"

// waitDelay bounds how long Run waits for a killed worker's pipes to close.
const waitDelay = 5 * time.Second

// RunConfig holds parameters for a single worker execution.
type RunConfig struct {
	Timeout time.Duration
}

// Runner launches and manages a single worker binary.
type Runner struct {
	Name       string
	BinaryPath string
	ExtraArgs  []string
	Env        []string
	Logger     *slog.Logger
}

// NewRunner creates a Runner for the named target.
// For workers that need an interpreter (e.g. node for .js scripts),
// pass the interpreter as binaryPath and the script path in extraArgs.
// Env is appended to the inherited environment.
func NewRunner(
	name, binaryPath string,
	extraArgs, env []string,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		Name:       name,
		BinaryPath: binaryPath,
		ExtraArgs:  extraArgs,
		Env:        env,
		Logger:     logger.With(slog.String("target", name)),
	}
}

// Run executes the worker binary and returns its parsed timing entries.
// The exit status decides success: a worker that exits non-zero fails even
// when its standard output is well formed.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (RunResult, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	runID := uuid.NewString()

	cmd := exec.CommandContext(ctx, r.BinaryPath, r.ExtraArgs...)
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Env = append(cmd.Env, RunIDEnv+"="+runID)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := r.Logger.With(slog.String("run_id", runID))
	logger.Debug("starting worker", slog.String("binary", r.BinaryPath))

	wallStart := time.Now()
	err := cmd.Run()
	wallElapsed := time.Since(wallStart)

	if err != nil {
		invErr := &InvocationError{
			Target:   r.Name,
			ExitCode: -1,
			Stderr:   stderr.String(),
			Err:      err,
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			invErr.ExitCode = exitErr.ExitCode()
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			invErr.TimedOut = true
		}

		return nil, invErr
	}

	logger.Debug("worker finished", slog.Duration("wall_time", wallElapsed))

	result, err := Parse(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf(
			"parse %s output: %w\nstdout: %s",
			r.Name, err, stdout.String(),
		)
	}

	return result, nil
}

// Runners maps target names to their Runner and runs them with a shared
// RunConfig.
type Runners struct {
	ByTarget map[string]*Runner
	Config   RunConfig
}

// Invoke runs the worker registered for target.
func (rs *Runners) Invoke(ctx context.Context, target string) (RunResult, error) {
	r, ok := rs.ByTarget[target]
	if !ok {
		return nil, &InvocationError{
			Target:   target,
			ExitCode: -1,
			Err:      fmt.Errorf("no worker registered"),
		}
	}

	return r.Run(ctx, rs.Config)
}
