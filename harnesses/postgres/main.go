// Postgres worker runs the relational benchmark suite against PostgreSQL
// and writes its timings as a JSON array to stdout. Diagnostics go to
// stderr; any failure exits non-zero.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"

	"github.com/weiihann/relbench/bench"
	"github.com/weiihann/relbench/config"
)

const (
	pgxDriver = "pgx" // default driver
	pqDriver  = "postgres"
)

func main() {
	fs := pflag.NewFlagSet("postgres-worker", pflag.ExitOnError)
	bench.AddWorkerFlags(fs)
	fs.String("postgres-driver", pgxDriver,
		"database/sql driver: pgx, or postgres for lib/pq")

	_ = fs.Parse(os.Args[1:])

	logger := bench.NewLogger("postgres")

	cfg, err := config.LoadWorker(fs)
	if err != nil {
		fatal(logger, "load config", err)
	}

	driver := cfg.Postgres.Driver
	if driver != pgxDriver && driver != pqDriver {
		fatal(logger, "select driver",
			fmt.Errorf("unknown driver %q (want %s or %s)", driver, pgxDriver, pqDriver))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := &bench.Worker{
		Driver:  driver,
		DSN:     connectString(cfg.Postgres),
		Dialect: bench.Postgres,
		Config:  cfg.Worker,
		Out:     os.Stdout,
		Logger:  logger.With(slog.String("driver", driver)),
	}

	if err := w.Run(ctx); err != nil {
		stop()
		fatal(logger, "benchmark failed", err)
	}
}

// connectString builds a keyword/value connection string understood by
// both pgx and lib/pq.
func connectString(c config.PostgresConfig) string {
	s := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		quoteValue(c.Host), c.Port, quoteValue(c.User), quoteValue(c.DB), quoteValue(c.SSLMode))

	if len(c.Password) > 0 {
		s = fmt.Sprintf("%s password=%s", s, quoteValue(c.Password))
	}

	return s
}

// quoteValue single-quotes a connection string value, escaping backslashes
// and quotes.
func quoteValue(v string) string {
	return "'" + valueEscaper.Replace(v) + "'"
}

var valueEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
