package bench

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"

	"github.com/weiihann/relbench/harness"
)

func TestInsertStatement(t *testing.T) {
	tests := []struct {
		table string
		rows  int
		want  string
	}{
		{
			table: `"user"`,
			rows:  1,
			want:  `INSERT INTO "user" (username, email, password) VALUES (?, ?, ?)`,
		},
		{
			table: "`user`",
			rows:  3,
			want:  "INSERT INTO `user` (username, email, password) VALUES (?, ?, ?), (?, ?, ?), (?, ?, ?)",
		},
	}

	for _, tt := range tests {
		got := insertStatement(tt.table, userColumns, tt.rows)
		if got != tt.want {
			t.Errorf("insertStatement(%s, %d) =\n%s\nwant\n%s", tt.table, tt.rows, got, tt.want)
		}
	}
}

func TestInsertStatementRebind(t *testing.T) {
	query := insertStatement(`"tasks"`, taskColumns, 2)

	got := sqlx.Rebind(sqlx.BindType("pgx"), query)
	want := `INSERT INTO "tasks" (user_id, title, description) VALUES ($1, $2, $3), ($4, $5, $6)`

	if got != want {
		t.Errorf("rebound query =\n%s\nwant\n%s", got, want)
	}

	if mysql := sqlx.Rebind(sqlx.BindType("mysql"), query); mysql != query {
		t.Errorf("mysql rebind changed the query: %s", mysql)
	}
}

func TestDialects(t *testing.T) {
	for _, d := range []Dialect{Postgres, MariaDB} {
		if len(d.TruncateUsers) == 0 || len(d.TruncateTasks) == 0 {
			t.Errorf("%s: missing truncate statements", d.Name)
		}
		if len(d.Schema) == 0 {
			t.Errorf("%s: missing schema", d.Name)
		}
		for _, stmt := range d.TruncateUsers {
			if strings.HasPrefix(stmt, "TRUNCATE") && !strings.Contains(stmt, d.UserTable) {
				t.Errorf("%s: truncate %q does not target %s", d.Name, stmt, d.UserTable)
			}
		}
	}

	last := MariaDB.TruncateUsers[len(MariaDB.TruncateUsers)-1]
	if last != "SET FOREIGN_KEY_CHECKS = 1" {
		t.Errorf("mariadb truncate must restore foreign key checks, ends with %q", last)
	}
}

func fixedRecorder(unit harness.Unit, elapsed time.Duration) *Recorder {
	r := NewRecorder(unit)
	r.since = func(time.Time) time.Duration { return elapsed }

	return r
}

func TestRecorderTime(t *testing.T) {
	r := fixedRecorder(harness.Microseconds, 1500*time.Microsecond)

	if err := r.Time("join_query", "Join Query", func() error { return nil }); err != nil {
		t.Fatalf("Time failed: %v", err)
	}

	boom := errors.New("boom")
	if err := r.Time("bulk_delete_users", "Bulk Delete of 100 Users", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Time error = %v, want boom", err)
	}

	want := []harness.TimingEntry{
		{ID: "join_query", Operation: "Join Query", Duration: 1500, Unit: harness.Microseconds},
	}

	if diff := cmp.Diff(want, r.Entries()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestRecorderWriteShapes(t *testing.T) {
	tests := []struct {
		name     string
		unit     harness.Unit
		contains string
	}{
		{"milliseconds use legacy layout", harness.Milliseconds, `"Time_ms":250`},
		{"other units carry the unit", harness.Nanoseconds, `"Unit":"nanoseconds"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fixedRecorder(tt.unit, 250*time.Millisecond)
			if err := r.Time("join_query", "Join Query", func() error { return nil }); err != nil {
				t.Fatalf("Time failed: %v", err)
			}

			var buf bytes.Buffer
			if err := r.Write(&buf); err != nil {
				t.Fatalf("Write failed: %v", err)
			}

			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("output %s does not contain %s", buf.String(), tt.contains)
			}

			parsed, err := harness.Parse(buf.Bytes())
			if err != nil {
				t.Fatalf("worker output does not parse: %v", err)
			}
			if got := parsed[0].In(harness.Milliseconds); got != 250 {
				t.Errorf("parsed duration = %v ms, want 250", got)
			}
		})
	}
}

func TestRecorderWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRecorder(harness.Milliseconds).Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty report = %q, want []", got)
	}
}
