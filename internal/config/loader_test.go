package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/okian/peloton/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DBBackend, convey.ShouldEqual, config.BackendMemory)
			convey.So(cfg.SnapshotMonths, convey.ShouldEqual, 24)
			convey.So(cfg.SnapshotCron, convey.ShouldEqual, "0 0 3 1 * *")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown backend", func(c *config.Config) { c.DBBackend = "oracle" }},
			{"sql without dsn", func(c *config.Config) { c.DBBackend = config.BackendPostgres }},
			{"zero months", func(c *config.Config) { c.SnapshotMonths = 0 }},
			{"months beyond the lookback", func(c *config.Config) { c.SnapshotMonths = 25 }},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"negative multiplier", func(c *config.Config) { c.LevelMultipliers = map[string]float64{"local": -1} }},
		}
		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)
			convey.Convey("Then "+tc.name+" is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars(t)

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Disciplines, convey.ShouldResemble, []string{"enduro", "downhill"})
		})

		convey.Convey("When loading config with environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("PELOTON_ADDR", ":8080")
			t.Setenv("PELOTON_DB_BACKEND", "sqlite")
			t.Setenv("PELOTON_DB_DSN", "file:peloton.db")
			t.Setenv("PELOTON_MIGRATE_ON_START", "false")
			t.Setenv("PELOTON_SNAPSHOT_MONTHS", "6")
			t.Setenv("PELOTON_WORKER_COUNT", "3")
			t.Setenv("PELOTON_DISCIPLINES", "enduro, xco ,")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DBBackend, convey.ShouldEqual, "sqlite")
				convey.So(cfg.DBDSN, convey.ShouldEqual, "file:peloton.db")
				convey.So(cfg.MigrateOnStart, convey.ShouldBeFalse)
				convey.So(cfg.SnapshotMonths, convey.ShouldEqual, 6)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.Disciplines, convey.ShouldResemble, []string{"enduro", "xco"})
			})
		})

		convey.Convey("When loading config with YAML file and env", func() {
			clearConfigEnvVars(t)
			path := writeConfigFile(t, `
addr: ":9090"
log_format: json
snapshot_cron: ""
worker_count: 8
level_multipliers:
  regional: 1.05
disciplines: [downhill]
`)
			t.Setenv("PELOTON_CONFIG", path)
			t.Setenv("PELOTON_WORKER_COUNT", "2")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env overrides the file and the file overrides defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.SnapshotCron, convey.ShouldEqual, "")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.LevelMultipliers["regional"], convey.ShouldEqual, 1.05)
				convey.So(cfg.Disciplines, convey.ShouldResemble, []string{"downhill"})
				convey.So(cfg.SnapshotMonths, convey.ShouldEqual, 24)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			clearConfigEnvVars(t)
			t.Setenv("PELOTON_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with non-existent file", func() {
			clearConfigEnvVars(t)
			t.Setenv("PELOTON_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid values", func() {
			clearConfigEnvVars(t)
			t.Setenv("PELOTON_DB_BACKEND", "oracle")

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("PELOTON_WORKER_COUNT", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peloton.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PELOTON_CONFIG", "PELOTON_ADDR", "PELOTON_DB_BACKEND", "PELOTON_DB_DSN",
		"PELOTON_MIGRATE_ON_START", "PELOTON_SNAPSHOT_MONTHS", "PELOTON_WORKER_COUNT",
		"PELOTON_DISCIPLINES", "PELOTON_LOG_LEVEL", "PELOTON_LOG_FORMAT",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
