package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.NumRuns != 10 {
		t.Errorf("num_runs = %d, want 10", cfg.NumRuns)
	}
	if diff := cmp.Diff([]string{"postgres", "mariadb"}, cfg.Targets); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
	if cfg.WorkerTimeout != 30*time.Minute {
		t.Errorf("worker_timeout = %s, want 30m", cfg.WorkerTimeout)
	}

	wantWorker := WorkerConfig{
		BatchSize:         1000,
		TotalUsers:        10000,
		SmallDatasetUsers: 100,
		TimeUnit:          "ms",
		CreateSchema:      true,
	}
	if diff := cmp.Diff(wantWorker, cfg.Worker); diff != "" {
		t.Errorf("worker config mismatch (-want +got):\n%s", diff)
	}

	if cfg.Postgres.Port != 5432 || cfg.Postgres.Driver != "pgx" {
		t.Errorf("postgres defaults = %+v", cfg.Postgres)
	}
	if cfg.MariaDB.Port != 3306 {
		t.Errorf("mariadb port = %d, want 3306", cfg.MariaDB.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NUM_RUNS", "3")
	t.Setenv("BATCH_SIZE", "250")
	t.Setenv("TIME_UNIT", "microseconds")
	t.Setenv("TARGETS", "postgres, scripts/maria.js")
	t.Setenv("WORKER_TIMEOUT", "90s")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("MARIADB_DATABASE", "tasks")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.NumRuns != 3 {
		t.Errorf("num_runs = %d, want 3", cfg.NumRuns)
	}
	if cfg.Worker.BatchSize != 250 {
		t.Errorf("batch_size = %d, want 250", cfg.Worker.BatchSize)
	}
	if cfg.Worker.TimeUnit != "microseconds" {
		t.Errorf("time_unit = %q, want microseconds", cfg.Worker.TimeUnit)
	}
	if diff := cmp.Diff([]string{"postgres", "scripts/maria.js"}, cfg.Targets); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
	if cfg.WorkerTimeout != 90*time.Second {
		t.Errorf("worker_timeout = %s, want 90s", cfg.WorkerTimeout)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("postgres host = %q, want db.internal", cfg.Postgres.Host)
	}
	if cfg.MariaDB.Database != "tasks" {
		t.Errorf("mariadb database = %q, want tasks", cfg.MariaDB.Database)
	}
}

func TestReadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.env")
	content := "NUM_RUNS=4\nTOTAL_USERS=500\nSMALL_DATASET_USERS=20\n"

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	// Real environment wins over the file, as with dotenv.
	t.Setenv("SMALL_DATASET_USERS", "30")

	v := New()
	if err := ReadEnvFile(v, path); err != nil {
		t.Fatalf("ReadEnvFile failed: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.NumRuns != 4 {
		t.Errorf("num_runs = %d, want 4", cfg.NumRuns)
	}
	if cfg.Worker.TotalUsers != 500 {
		t.Errorf("total_users = %d, want 500", cfg.Worker.TotalUsers)
	}
	if cfg.Worker.SmallDatasetUsers != 30 {
		t.Errorf("small_dataset_users = %d, want 30 from environment", cfg.Worker.SmallDatasetUsers)
	}
}

func TestReadEnvFileMissing(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if err := ReadEnvFile(New(), ""); err != nil {
		t.Errorf("missing default env file should be ignored, got %v", err)
	}

	if err := ReadEnvFile(New(), "does-not-exist.env"); err == nil {
		t.Error("expected error for missing explicit env file")
	}
}

func TestBindFlags(t *testing.T) {
	fs := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	fs.Int("batch-size", 1000, "")
	fs.Bool("create-schema", true, "")
	fs.String("unrelated", "", "")

	if err := fs.Parse([]string{"--batch-size=64", "--create-schema=false"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	v := New()
	if err := BindFlags(v, fs); err != nil {
		t.Fatalf("BindFlags failed: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Worker.BatchSize != 64 {
		t.Errorf("batch_size = %d, want 64", cfg.Worker.BatchSize)
	}
	if cfg.Worker.CreateSchema {
		t.Error("create_schema = true, want false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero runs", map[string]string{"NUM_RUNS": "0"}},
		{"single target", map[string]string{"TARGETS": "postgres"}},
		{"bad align", map[string]string{"ALIGN": "fuzzy"}},
		{"zero batch", map[string]string{"BATCH_SIZE": "0"}},
		{"batch over parameter limit", map[string]string{"BATCH_SIZE": "21846"}},
		{"negative users", map[string]string{"TOTAL_USERS": "-1"}},
		{"bad unit", map[string]string{"TIME_UNIT": "seconds"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, val := range tt.env {
				t.Setenv(k, val)
			}

			if _, err := Load(New()); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateBatchSizeLimit(t *testing.T) {
	tests := []struct {
		batch   int
		wantErr bool
	}{
		{MaxBatchSize, false},
		{MaxBatchSize + 1, true},
		{100000, true},
	}

	for _, tt := range tests {
		w := WorkerConfig{
			BatchSize:         tt.batch,
			TotalUsers:        10,
			SmallDatasetUsers: 1,
			TimeUnit:          "ms",
		}

		err := w.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate() with batch_size %d error = %v, wantErr %v", tt.batch, err, tt.wantErr)
		}
	}

	if MaxBatchSize != 21845 {
		t.Errorf("MaxBatchSize = %d, want 21845", MaxBatchSize)
	}
}

func TestWorkerEnv(t *testing.T) {
	w := WorkerConfig{
		BatchSize:         10,
		TotalUsers:        20,
		SmallDatasetUsers: 5,
		TimeUnit:          "ns",
		Seed:              42,
		CreateSchema:      false,
	}

	want := []string{
		"BATCH_SIZE=10",
		"TOTAL_USERS=20",
		"SMALL_DATASET_USERS=5",
		"TIME_UNIT=ns",
		"SEED=42",
		"CREATE_SCHEMA=false",
	}

	if diff := cmp.Diff(want, w.Env()); diff != "" {
		t.Errorf("Env mismatch (-want +got):\n%s", diff)
	}
}
