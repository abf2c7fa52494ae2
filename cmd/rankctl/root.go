package main

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/peloton/internal/adapters/storage"
	service "github.com/okian/peloton/internal/app"
	"github.com/okian/peloton/internal/config"
	"github.com/okian/peloton/pkg/logger"
	"github.com/spf13/cobra"
)

// env carries the state shared by every subcommand of one invocation.
type env struct {
	cfg   *config.Config
	store storage.Store
	svc   *service.Service
	out   io.Writer

	backend string
	dsn     string
}

// skipStore marks commands that open their own database handle.
const skipStore = "skip-store"

func newRootCmd() *cobra.Command {
	e := &env{out: os.Stdout}
	root := &cobra.Command{
		Use:   "rankctl",
		Short: "Recalculate event points, rankings and club standings",
		Long: `rankctl drives the ranking engine against a configured store.

Configuration is read the same way as the server: defaults, then the YAML
file named by PELOTON_CONFIG, then PELOTON_* environment variables.
--db-backend and --db-dsn override the store selection.`,
		SilenceUsage:      true,
		PersistentPreRunE: e.open,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return e.close()
		},
	}
	root.SetOut(os.Stdout)
	root.PersistentFlags().StringVar(&e.backend, "db-backend", "", "store backend: memory, sqlite, postgres, mysql")
	root.PersistentFlags().StringVar(&e.dsn, "db-dsn", "", "data source name of the SQL store")

	root.AddCommand(
		newMigrateCmd(e),
		newSeedCmd(e),
		newRecalcCmd(e),
		newBackfillCmd(e),
		newClubPointsCmd(e),
		newShowCmd(e),
		newExportCmd(e),
	)
	return root
}

func (e *env) open(cmd *cobra.Command, _ []string) error {
	e.out = cmd.OutOrStdout()
	ctx := cmd.Context()
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if e.backend != "" {
		cfg.DBBackend = e.backend
	}
	if e.dsn != "" {
		cfg.DBDSN = e.dsn
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	e.cfg = cfg
	if cmd.Annotations[skipStore] != "" {
		return nil
	}

	e.store, err = storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	e.svc = service.New(e.store,
		service.WithLogger(logger.Named("rankctl")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithLevelMultipliers(cfg.LevelMultipliers),
		service.WithDisciplines(cfg.Disciplines...),
		service.WithSnapshotMonths(cfg.SnapshotMonths),
	)
	return nil
}

func (e *env) close() error {
	if e.svc != nil {
		e.svc.Stop()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}
