// Package bench implements the database benchmark run by each worker:
// bulk and sequential inserts, reads and deletes over a users/tasks schema.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/weiihann/relbench/workload"
)

// Suite runs the benchmark operations against one database connection.
// A single connection keeps session settings (e.g. MariaDB foreign key
// checks) in effect for every statement.
type Suite struct {
	Conn      *sqlx.Conn
	Dialect   Dialect
	BatchSize int
	Data      workload.Dataset
	Recorder  *Recorder
	Logger    *slog.Logger
}

type operation struct {
	id    string
	label string
	run   func(ctx context.Context) error
}

// EnsureSchema creates the benchmark tables when they do not exist.
func (s *Suite) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.Dialect.Schema {
		if _, err := s.Conn.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "create schema")
		}
	}

	return nil
}

// Run executes every operation in order and records its duration. It stops
// at the first failing operation; entries recorded so far stay available
// on the Recorder.
func (s *Suite) Run(ctx context.Context) error {
	users := s.Data.Users
	small := s.Data.SmallUsers
	tasks := s.Data.Tasks

	readUsers := users[:min(len(small), len(users))]

	ops := []operation{
		{
			id:    "bulk_insert_users",
			label: fmt.Sprintf("Bulk Insert of %d Users", len(users)),
			run:   func(ctx context.Context) error { return s.bulkInsertUsers(ctx, users) },
		},
		{
			id:    "sequential_insert_users",
			label: fmt.Sprintf("Sequential Insert of %d Users", len(users)),
			run:   func(ctx context.Context) error { return s.sequentialInsertUsers(ctx, users) },
		},
		{
			id:    "bulk_read_users",
			label: fmt.Sprintf("Bulk Read of %d Users", len(users)),
			run:   func(ctx context.Context) error { return s.bulkReadUsers(ctx, len(users)) },
		},
		{
			id:    "sequential_read_users",
			label: fmt.Sprintf("Sequential Read of %d Users", len(readUsers)),
			run:   func(ctx context.Context) error { return s.sequentialReadUsers(ctx, readUsers) },
		},
		{
			id:    "bulk_insert_small_users",
			label: fmt.Sprintf("Bulk Insert of %d Users", len(small)),
			run:   func(ctx context.Context) error { return s.bulkInsertUsers(ctx, small) },
		},
		{
			id:    "bulk_insert_tasks",
			label: fmt.Sprintf("Bulk Insert of %d Tasks", len(tasks)),
			run:   func(ctx context.Context) error { return s.bulkInsertTasks(ctx, tasks) },
		},
		{
			id:    "join_query",
			label: "Join Query",
			run:   s.joinQuery,
		},
		{
			id:    "sequential_delete_tasks",
			label: fmt.Sprintf("Sequential Delete of %d Tasks", len(tasks)),
			run:   func(ctx context.Context) error { return s.sequentialDeleteTasks(ctx, len(tasks)) },
		},
		{
			id:    "bulk_delete_users",
			label: fmt.Sprintf("Bulk Delete of %d Users", len(small)),
			run:   func(ctx context.Context) error { return s.bulkDeleteUsers(ctx, len(small)) },
		},
	}

	for _, op := range ops {
		s.Logger.DebugContext(ctx, "running operation", slog.String("operation", op.label))

		err := s.Recorder.Time(op.id, op.label, func() error { return op.run(ctx) })
		if err != nil {
			return errors.Wrap(err, op.label)
		}
	}

	return nil
}

func (s *Suite) truncate(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := s.Conn.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "exec %q", stmt)
		}
	}

	return nil
}

func userArgs(u workload.User) []any {
	return []any{u.Username, u.Email, u.Password}
}

func taskArgs(t workload.Task) []any {
	return []any{t.UserID, t.Title, t.Description}
}

var (
	userColumns = []string{"username", "email", "password"}
	taskColumns = []string{"user_id", "title", "description"}
)

func (s *Suite) bulkInsertUsers(ctx context.Context, users []workload.User) error {
	if err := s.truncate(ctx, s.Dialect.TruncateUsers); err != nil {
		return err
	}

	return bulkInsert(ctx, s, s.Dialect.UserTable, userColumns, users, userArgs)
}

func (s *Suite) bulkInsertTasks(ctx context.Context, tasks []workload.Task) error {
	if err := s.truncate(ctx, s.Dialect.TruncateTasks); err != nil {
		return err
	}

	return bulkInsert(ctx, s, s.Dialect.TaskTable, taskColumns, tasks, taskArgs)
}

// bulkInsert writes rows with one multi-row INSERT per batch, each batch in
// its own transaction.
func bulkInsert[T any](
	ctx context.Context,
	s *Suite,
	table string,
	columns []string,
	rows []T,
	args func(T) []any,
) error {
	totalBatches := (len(rows) + s.BatchSize - 1) / s.BatchSize

	for start := 0; start < len(rows); start += s.BatchSize {
		batch := rows[start:min(start+s.BatchSize, len(rows))]

		values := make([]any, 0, len(batch)*len(columns))
		for _, row := range batch {
			values = append(values, args(row)...)
		}

		query := s.Conn.Rebind(insertStatement(table, columns, len(batch)))

		err := s.inTx(ctx, func(tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, query, values...)
			return err
		})
		if err != nil {
			return errors.Wrapf(err, "insert batch into %s", table)
		}

		if totalBatches > 1 {
			s.Logger.DebugContext(ctx, "inserted batch",
				slog.String("table", table),
				slog.Int("batch", start/s.BatchSize+1),
				slog.Int("batches", totalBatches),
			)
		}
	}

	return nil
}

func (s *Suite) sequentialInsertUsers(ctx context.Context, users []workload.User) error {
	if err := s.truncate(ctx, s.Dialect.TruncateUsers); err != nil {
		return err
	}

	query := s.Conn.Rebind(insertStatement(s.Dialect.UserTable, userColumns, 1))

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, u := range users {
			if _, err := tx.ExecContext(ctx, query, userArgs(u)...); err != nil {
				return errors.Wrapf(err, "insert user %s", u.Email)
			}
		}

		return nil
	})
}

func (s *Suite) bulkReadUsers(ctx context.Context, want int) error {
	var users []workload.User

	query := fmt.Sprintf("SELECT id, username, email, password FROM %s", s.Dialect.UserTable)
	if err := s.Conn.SelectContext(ctx, &users, query); err != nil {
		return errors.Wrap(err, "select users")
	}

	if len(users) != want {
		return errors.Errorf("read %d users, want %d", len(users), want)
	}

	return nil
}

func (s *Suite) sequentialReadUsers(ctx context.Context, users []workload.User) error {
	query := s.Conn.Rebind(fmt.Sprintf(
		"SELECT id, username, email, password FROM %s WHERE email = ?",
		s.Dialect.UserTable,
	))

	for _, u := range users {
		var got workload.User
		if err := s.Conn.GetContext(ctx, &got, query, u.Email); err != nil {
			return errors.Wrapf(err, "read user %s", u.Email)
		}
	}

	return nil
}

type joinRow struct {
	Username    string `db:"username"`
	Title       string `db:"title"`
	Description string `db:"description"`
}

func (s *Suite) joinQuery(ctx context.Context) error {
	query := fmt.Sprintf(
		"SELECT u.username, t.title, t.description FROM %s u JOIN %s t ON u.id = t.user_id LIMIT 10",
		s.Dialect.UserTable, s.Dialect.TaskTable,
	)

	var rows []joinRow
	if err := s.Conn.SelectContext(ctx, &rows, query); err != nil {
		return errors.Wrap(err, "join query")
	}

	return nil
}

// sequentialDeleteTasks deletes tasks 1..n one statement at a time. Ids
// start at 1 because bulkInsertTasks resets the identity.
func (s *Suite) sequentialDeleteTasks(ctx context.Context, n int) error {
	query := s.Conn.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.Dialect.TaskTable))

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for id := 1; id <= n; id++ {
			if _, err := tx.ExecContext(ctx, query, id); err != nil {
				return errors.Wrapf(err, "delete task %d", id)
			}
		}

		return nil
	})
}

func (s *Suite) bulkDeleteUsers(ctx context.Context, n int) error {
	query := s.Conn.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id <= ?", s.Dialect.UserTable))

	res, err := s.Conn.ExecContext(ctx, query, n)
	if err != nil {
		return errors.Wrap(err, "delete users")
	}

	if affected, err := res.RowsAffected(); err == nil && affected != int64(n) {
		return errors.Errorf("deleted %d users, want %d", affected, n)
	}

	return nil
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (s *Suite) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.Conn.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return errors.Wrap(tx.Commit(), "commit")
}

// insertStatement builds a multi-row INSERT with "?" placeholders.
func insertStatement(table string, columns []string, rows int) string {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}

	return b.String()
}
