// Package main provides the CLI entry point for relbench, a repeated
// PostgreSQL vs MariaDB benchmark comparison.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/weiihann/relbench/compare"
	"github.com/weiihann/relbench/config"
	"github.com/weiihann/relbench/harness"
	"github.com/weiihann/relbench/report"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("relbench failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

type cliFlags struct {
	envFile      string
	harnessesDir string
	skipBuild    bool
	outputJSON   bool
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	var flags cliFlags

	v := config.New()

	cmd := &cobra.Command{
		Use:   "relbench",
		Short: "Compare PostgreSQL and MariaDB over repeated benchmark runs",
		Long: `Relbench runs the same insert, read and delete workload through a
worker per database, repeats it a number of times, and prints the mean
duration of every operation side by side.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ReadEnvFile(v, flags.envFile); err != nil {
				return err
			}

			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			return runComparison(cmd.Context(), logger, cfg, flags)
		},
	}

	fs := cmd.Flags()
	fs.Int("runs", 10, "Number of iterations per target")
	fs.StringSlice("targets", []string{"postgres", "mariadb"},
		"Targets to compare, the first is the reference")
	fs.Duration("timeout", 30*time.Minute,
		"Per-invocation worker timeout (0 = none)")
	fs.String("align", "name",
		"Match operations across runs by name or by position")
	fs.String("time-unit", "ms",
		"Duration unit: ms, microseconds, nanoseconds")
	fs.StringVar(&flags.envFile, "env-file", "",
		"Dotenv file (default: $RELBENCH_ENV_FILE or ./.env)")
	fs.StringVar(&flags.harnessesDir, "harnesses-dir", "",
		"Path to harnesses directory (default: ./harnesses)")
	fs.BoolVar(&flags.skipBuild, "skip-build", false,
		"Skip building worker binaries")
	fs.BoolVar(&flags.outputJSON, "json", false,
		"Output results as JSON instead of table")

	mustBind(v, "num_runs", fs.Lookup("runs"))
	mustBind(v, "targets", fs.Lookup("targets"))
	mustBind(v, "worker_timeout", fs.Lookup("timeout"))
	mustBind(v, "align", fs.Lookup("align"))
	mustBind(v, "time_unit", fs.Lookup("time-unit"))

	return cmd
}

// mustBind binds a flag registered above to its config key. A failure is a
// programming error.
func mustBind(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}

func runComparison(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	flags cliFlags,
) error {
	align, err := compare.ParseAlign(cfg.Align)
	if err != nil {
		return err
	}

	unit, err := cfg.Worker.Unit()
	if err != nil {
		return err
	}

	// Both targets must see the same synthetic data.
	if cfg.Worker.Seed == 0 {
		cfg.Worker.Seed = time.Now().UnixNano()
	}

	logger.InfoContext(ctx, "starting comparison",
		slog.Int("runs", cfg.NumRuns),
		slog.Any("targets", cfg.Targets),
		slog.Duration("timeout", cfg.WorkerTimeout),
		slog.String("align", align.String()),
		slog.String("time_unit", string(unit)),
		slog.Int64("seed", cfg.Worker.Seed),
	)

	harnessesDir := flags.harnessesDir
	if harnessesDir == "" {
		harnessesDir = "harnesses"
	}

	harnessesDir, err = filepath.Abs(harnessesDir)
	if err != nil {
		return fmt.Errorf("resolve harnesses dir: %w", err)
	}

	env := cfg.Worker.Env()
	if flags.envFile != "" {
		envFile, err := filepath.Abs(flags.envFile)
		if err != nil {
			return fmt.Errorf("resolve env file: %w", err)
		}

		env = append(env, config.EnvFile+"="+envFile)
	}

	for _, target := range cfg.Targets {
		if err := harness.CheckTarget(target); err != nil {
			return err
		}
	}

	runners := &harness.Runners{
		ByTarget: make(map[string]*harness.Runner, len(cfg.Targets)),
		Config:   harness.RunConfig{Timeout: cfg.WorkerTimeout},
	}

	for _, target := range cfg.Targets {
		binPath := harness.ResolveBinary(harnessesDir, target)

		if !flags.skipBuild {
			binPath, err = harness.Build(ctx, logger, harnessesDir, target)
			if err != nil {
				return fmt.Errorf("build %s: %w", target, err)
			}
		}

		cmdCfg := harness.WrapCommand(binPath)
		runners.ByTarget[target] = harness.NewRunner(
			target, cmdCfg.Binary, cmdCfg.ExtraArgs, env, logger,
		)
	}

	comparison := &compare.Comparison{
		Targets: cfg.Targets,
		Runs:    cfg.NumRuns,
		Invoker: runners,
		Logger:  logger,
	}

	results, err := comparison.Run(ctx)
	if err != nil {
		return fmt.Errorf("run comparison: %w", err)
	}

	rows, err := compare.Aggregate(results, compare.Options{Align: align, Unit: unit})
	if err != nil {
		return fmt.Errorf("aggregate results: %w", err)
	}

	if flags.outputJSON {
		if err := report.GenerateJSON(os.Stdout, rows); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	} else {
		if err := report.Generate(os.Stdout, rows, results); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	logger.InfoContext(ctx, "comparison complete")

	return nil
}
