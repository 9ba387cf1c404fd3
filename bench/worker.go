package bench

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/weiihann/relbench/config"
	"github.com/weiihann/relbench/harness"
	"github.com/weiihann/relbench/workload"
)

// Worker connects to one database, runs the Suite and writes the timing
// report to Out.
type Worker struct {
	Driver  string
	DSN     string
	Dialect Dialect
	Config  config.WorkerConfig
	Out     io.Writer
	Logger  *slog.Logger
}

// Run executes the benchmark. The report is written even when the run
// fails, holding the operations that completed; the returned error tells
// the caller to exit non-zero.
func (w *Worker) Run(ctx context.Context) (err error) {
	unit, err := w.Config.Unit()
	if err != nil {
		return err
	}

	rec := NewRecorder(unit)

	defer func() {
		if writeErr := rec.Write(w.Out); writeErr != nil && err == nil {
			err = errors.Wrap(writeErr, "write report")
		}
	}()

	seed := w.Config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	data := workload.NewGenerator(workload.Config{
		NumUsers:      w.Config.TotalUsers,
		NumSmallUsers: w.Config.SmallDatasetUsers,
		Seed:          seed,
	}).Generate()

	w.Logger.InfoContext(ctx, "dataset generated",
		slog.Int("users", len(data.Users)),
		slog.Int("small_users", len(data.SmallUsers)),
		slog.Int("tasks", len(data.Tasks)),
		slog.Int64("seed", seed),
	)

	db, err := sqlx.ConnectContext(ctx, w.Driver, w.DSN)
	if err != nil {
		return errors.Wrapf(err, "connect %s", w.Dialect.Name)
	}
	defer db.Close()

	conn, err := db.Connx(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer conn.Close()

	suite := &Suite{
		Conn:      conn,
		Dialect:   w.Dialect,
		BatchSize: w.Config.BatchSize,
		Data:      data,
		Recorder:  rec,
		Logger:    w.Logger,
	}

	if w.Config.CreateSchema {
		if err := suite.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	if err := suite.Run(ctx); err != nil {
		return err
	}

	w.Logger.InfoContext(ctx, "benchmark complete",
		slog.Int("operations", len(rec.Entries())),
	)

	return nil
}

// AddWorkerFlags registers the flags shared by every worker. Their names
// match config keys so config.BindFlags picks them up.
func AddWorkerFlags(fs *pflag.FlagSet) {
	fs.Int("batch-size", 1000, "Rows per multi-row INSERT")
	fs.Int("total-users", 10000, "Users written by the large inserts")
	fs.Int("small-dataset-users", 100, "Users in the small dataset (and tasks)")
	fs.String("time-unit", "ms", "Reported unit: ms, microseconds, nanoseconds")
	fs.Int64("seed", 0, "Dataset seed (0 = use current time)")
	fs.Bool("create-schema", true, "Create tables when missing")
}

// NewLogger returns the stderr logger used by workers, tagged with the
// harness run id when present.
func NewLogger(worker string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With(slog.String("worker", worker))

	if runID := os.Getenv(harness.RunIDEnv); runID != "" {
		logger = logger.With(slog.String("run_id", runID))
	}

	return logger
}
