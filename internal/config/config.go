// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"
	"slices"
)

// Storage backends accepted by db_backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBBackend is one of memory, sqlite, postgres, mysql.
	DBBackend string `koanf:"db_backend"`
	DBDSN     string `koanf:"db_dsn"`

	// MigrateOnStart applies pending schema migrations before serving.
	MigrateOnStart bool `koanf:"migrate_on_start"`

	// SnapshotMonths is the number of months each scheduled backfill covers.
	SnapshotMonths int `koanf:"snapshot_months"`

	// SnapshotCron is a six-field cron expression (seconds first). Empty disables the scheduler.
	SnapshotCron string `koanf:"snapshot_cron"`

	// Disciplines lists the disciplines the scheduler snapshots.
	Disciplines []string `koanf:"disciplines"`

	// WorkerCount sets the size of the fan-out pool.
	WorkerCount int `koanf:"worker_count"`

	// LevelMultipliers overrides the built-in event level multipliers.
	LevelMultipliers map[string]float64 `koanf:"level_multipliers"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		DBBackend:      BackendMemory,
		MigrateOnStart: true,
		SnapshotMonths: 24,
		SnapshotCron:   "0 0 3 1 * *",
		Disciplines:    []string{"enduro", "downhill"},
		WorkerCount:    runtime.NumCPU(),
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case !slices.Contains([]string{BackendMemory, BackendSQLite, BackendPostgres, BackendMySQL}, c.DBBackend):
		return invalid("unknown db_backend %q", c.DBBackend)
	case c.DBBackend != BackendMemory && c.DBDSN == "":
		return invalid("db_dsn is required for backend %q", c.DBBackend)
	case c.SnapshotMonths < 1 || c.SnapshotMonths > 24:
		return invalid("snapshot_months must be within 1..24, got %d", c.SnapshotMonths)
	case c.WorkerCount < 1:
		return invalid("worker_count must be at least 1, got %d", c.WorkerCount)
	}
	for level, m := range c.LevelMultipliers {
		if m <= 0 {
			return invalid("level multiplier for %q must be positive", level)
		}
	}
	return nil
}
