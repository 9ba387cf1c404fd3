// Package config loads relbench settings from defaults, an optional dotenv
// file, the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/weiihann/relbench/harness"
)

const (
	defaultNumRuns           = 10
	defaultTargets           = "postgres,mariadb"
	defaultWorkerTimeout     = 30 * time.Minute
	defaultAlign             = "name"
	defaultBatchSize         = 1000
	defaultTotalUsers        = 10000
	defaultSmallDatasetUsers = 100
	defaultTimeUnit          = "ms"

	// maxPlaceholders is the bind parameter limit of a single statement on
	// both PostgreSQL and MySQL.
	maxPlaceholders = 65535
	// batchColumns is the number of bound values per inserted row.
	batchColumns = 3
	// MaxBatchSize is the largest batch_size a multi-row INSERT can bind.
	MaxBatchSize = maxPlaceholders / batchColumns

	// EnvFile names the variable that overrides the dotenv file path.
	EnvFile        = "RELBENCH_ENV_FILE"
	defaultEnvFile = ".env"
)

// Config holds every relbench setting. Keys map one-to-one to upper-case
// environment variables (num_runs -> NUM_RUNS).
type Config struct {
	NumRuns       int           `mapstructure:"num_runs"`
	Targets       []string      `mapstructure:"targets"`
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`
	Align         string        `mapstructure:"align"`

	Worker   WorkerConfig   `mapstructure:",squash"`
	Postgres PostgresConfig `mapstructure:",squash"`
	MariaDB  MariaDBConfig  `mapstructure:",squash"`
}

// WorkerConfig holds the tunables shared by every worker.
type WorkerConfig struct {
	BatchSize         int    `mapstructure:"batch_size"`
	TotalUsers        int    `mapstructure:"total_users"`
	SmallDatasetUsers int    `mapstructure:"small_dataset_users"`
	TimeUnit          string `mapstructure:"time_unit"`
	Seed              int64  `mapstructure:"seed"`
	CreateSchema      bool   `mapstructure:"create_schema"`
}

// PostgresConfig holds the PostgreSQL worker connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"postgres_host"`
	Port     int    `mapstructure:"postgres_port"`
	User     string `mapstructure:"postgres_user"`
	Password string `mapstructure:"postgres_password"`
	DB       string `mapstructure:"postgres_db"`
	SSLMode  string `mapstructure:"postgres_sslmode"`
	Driver   string `mapstructure:"postgres_driver"`
}

// MariaDBConfig holds the MariaDB worker connection settings.
type MariaDBConfig struct {
	Host     string `mapstructure:"mariadb_host"`
	Port     int    `mapstructure:"mariadb_port"`
	User     string `mapstructure:"mariadb_user"`
	Password string `mapstructure:"mariadb_password"`
	Database string `mapstructure:"mariadb_database"`
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("num_runs", defaultNumRuns)
	v.SetDefault("targets", defaultTargets)
	v.SetDefault("worker_timeout", defaultWorkerTimeout)
	v.SetDefault("align", defaultAlign)

	v.SetDefault("batch_size", defaultBatchSize)
	v.SetDefault("total_users", defaultTotalUsers)
	v.SetDefault("small_dataset_users", defaultSmallDatasetUsers)
	v.SetDefault("time_unit", defaultTimeUnit)
	v.SetDefault("seed", 0)
	v.SetDefault("create_schema", true)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db", "postgres")
	v.SetDefault("postgres_sslmode", "disable")
	v.SetDefault("postgres_driver", "pgx")

	v.SetDefault("mariadb_host", "localhost")
	v.SetDefault("mariadb_port", 3306)
	v.SetDefault("mariadb_user", "root")
	v.SetDefault("mariadb_password", "")
	v.SetDefault("mariadb_database", "bench")

	return v
}

// BindFlags binds every flag in fs whose name, with dashes turned into
// underscores, is a config key (--batch-size -> batch_size).
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error

	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !isKnownKey(v, key) {
			return
		}

		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = fmt.Errorf("bind flag %s: %w", f.Name, bindErr)
		}
	})

	return err
}

func isKnownKey(v *viper.Viper, key string) bool {
	for _, k := range v.AllKeys() {
		if k == key {
			return true
		}
	}

	return false
}

// ReadEnvFile merges a dotenv file into v. An empty path falls back to
// $RELBENCH_ENV_FILE and then ./.env. A missing default file is ignored; a
// missing explicit file is an error.
func ReadEnvFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if path == "" {
		path = os.Getenv(EnvFile)
		explicit = path != ""
	}

	if path == "" {
		path = defaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}

		return fmt.Errorf("env file %s: %w", path, err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}

	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Targets = splitTargets(cfg.Targets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// splitTargets accepts both a list and a single comma-separated entry, since
// environment values arrive as one string.
func splitTargets(in []string) []string {
	var out []string

	for _, item := range in {
		for _, t := range strings.Split(item, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}

	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.NumRuns < 1:
		return fmt.Errorf("num_runs must be positive, got %d", c.NumRuns)
	case len(c.Targets) < 2:
		return fmt.Errorf("at least two targets are required, got %v", c.Targets)
	case c.WorkerTimeout < 0:
		return fmt.Errorf("worker_timeout must not be negative, got %s", c.WorkerTimeout)
	case c.Align != "name" && c.Align != "position":
		return fmt.Errorf("align must be name or position, got %q", c.Align)
	}

	return c.Worker.Validate()
}

// Validate reports the first invalid worker setting.
func (w *WorkerConfig) Validate() error {
	switch {
	case w.BatchSize < 1:
		return fmt.Errorf("batch_size must be positive, got %d", w.BatchSize)
	case w.BatchSize > MaxBatchSize:
		return fmt.Errorf(
			"batch_size %d exceeds %d: %d rows x %d columns would bind more than %d parameters",
			w.BatchSize, MaxBatchSize, w.BatchSize, batchColumns, maxPlaceholders)
	case w.TotalUsers < 1:
		return fmt.Errorf("total_users must be positive, got %d", w.TotalUsers)
	case w.SmallDatasetUsers < 1:
		return fmt.Errorf("small_dataset_users must be positive, got %d", w.SmallDatasetUsers)
	}

	if _, err := w.Unit(); err != nil {
		return err
	}

	return nil
}

// Unit returns the configured time unit.
func (w *WorkerConfig) Unit() (harness.Unit, error) {
	return harness.ParseUnit(w.TimeUnit)
}

// Env renders the worker tunables as environment assignments so that values
// read from a dotenv file reach worker processes.
func (w *WorkerConfig) Env() []string {
	return []string{
		"BATCH_SIZE=" + strconv.Itoa(w.BatchSize),
		"TOTAL_USERS=" + strconv.Itoa(w.TotalUsers),
		"SMALL_DATASET_USERS=" + strconv.Itoa(w.SmallDatasetUsers),
		"TIME_UNIT=" + w.TimeUnit,
		"SEED=" + strconv.FormatInt(w.Seed, 10),
		"CREATE_SCHEMA=" + strconv.FormatBool(w.CreateSchema),
	}
}

// LoadWorker loads the configuration as seen by a worker process: defaults,
// dotenv file and environment, validating worker settings only.
func LoadWorker(fs *pflag.FlagSet) (*Config, error) {
	v := New()

	if err := ReadEnvFile(v, ""); err != nil {
		return nil, err
	}

	if fs != nil {
		if err := BindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Worker.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
