// MariaDB worker runs the relational benchmark suite against MariaDB and
// writes its timings as a JSON array to stdout. Diagnostics go to stderr;
// any failure exits non-zero.
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"

	"github.com/weiihann/relbench/bench"
	"github.com/weiihann/relbench/config"
)

func main() {
	fs := pflag.NewFlagSet("mariadb-worker", pflag.ExitOnError)
	bench.AddWorkerFlags(fs)

	_ = fs.Parse(os.Args[1:])

	logger := bench.NewLogger("mariadb")

	cfg, err := config.LoadWorker(fs)
	if err != nil {
		fatal(logger, "load config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := &bench.Worker{
		Driver:  "mysql",
		DSN:     dataSourceName(cfg.MariaDB),
		Dialect: bench.MariaDB,
		Config:  cfg.Worker,
		Out:     os.Stdout,
		Logger:  logger,
	}

	if err := w.Run(ctx); err != nil {
		stop()
		fatal(logger, "benchmark failed", err)
	}
}

func dataSourceName(c config.MariaDBConfig) string {
	dsn := mysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dsn.DBName = c.Database

	return dsn.FormatDSN()
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
