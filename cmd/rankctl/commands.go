package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/peloton/internal/adapters/export"
	"github.com/okian/peloton/internal/adapters/sqlstore"
	"github.com/okian/peloton/internal/config"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/seed"
	"github.com/spf13/cobra"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

var errUsage = fmt.Errorf("rankctl: %w", model.ErrInvalidInput)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errUsage, raw)
	}
	return id, nil
}

func parseOptionalTime(raw, layout string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, want %s", errUsage, raw, layout)
	}
	return t, nil
}

func newMigrateCmd(e *env) *cobra.Command {
	var target int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
		Long: `Move the SQL store schema to a version.

Examples:
  # Migrate to the latest version
  rankctl migrate --db-backend sqlite --db-dsn ranking.db

  # Roll every migration back
  rankctl migrate --target-version 0`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipStore: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg.DBBackend == config.BackendMemory {
				return fmt.Errorf("%w: the memory backend has no schema", errUsage)
			}
			backend, err := sqlstore.ParseBackend(e.cfg.DBBackend)
			if err != nil {
				return err
			}
			s, err := sqlstore.Open(cmd.Context(), backend, e.cfg.DBDSN)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			v, err := sqlstore.Migrate(s.DB(), backend, target)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(e.out, "schema at version %d\n", v)
			return err
		},
	}
	cmd.Flags().IntVar(&target, "target-version", -1, "schema version to migrate to; -1 means latest")
	return cmd
}

func newSeedCmd(e *env) *cobra.Command {
	var (
		end  string
		full bool
	)
	cfg := seed.DefaultConfig(time.Time{})
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a generated demo season into the store",
		Long: `Generate a reproducible season of events, results, classes, point scales
and series, and load it into the store. With --recalculate every event is
scored, every discipline is backfilled and every series gets club points.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			t, err := parseOptionalTime(end, dayLayout)
			if err != nil {
				return err
			}
			if t.IsZero() {
				t = time.Now().UTC()
			}
			cfg.End = t
			cfg.Disciplines = cfg.Disciplines[:0]
			for _, d := range e.cfg.Disciplines {
				cfg.Disciplines = append(cfg.Disciplines, model.Discipline(d))
			}

			season, err := seed.Generate(cfg)
			if err != nil {
				return err
			}
			if err := seed.Load(ctx, e.store, season); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(e.out, "loaded %d events, %d results, %d series\n",
				len(season.Events), len(season.Results), len(season.Series)); err != nil {
				return err
			}
			if !full {
				return nil
			}

			batch, err := e.svc.RecalculateEvents(ctx, season.EventIDs())
			if err != nil {
				return err
			}
			if err := printReport(e.out, batch.Report,
				row("requested", batch.Requested), row("succeeded", batch.Succeeded)); err != nil {
				return err
			}
			backfills, err := e.svc.BackfillAll(ctx)
			for _, b := range backfills {
				if perr := printBackfill(e.out, b); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			var errs []error
			for _, se := range season.Series {
				sum, err := e.svc.RecalculateSeriesClubPoints(ctx, se.Series.ID)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if err := printClubPoints(e.out, sum); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	cmd.Flags().IntVar(&cfg.Riders, "riders", cfg.Riders, "number of riders")
	cmd.Flags().IntVar(&cfg.Clubs, "clubs", cfg.Clubs, "number of clubs")
	cmd.Flags().IntVar(&cfg.Months, "months", cfg.Months, "months of events ending at --end")
	cmd.Flags().IntVar(&cfg.EventsPerMonth, "events-per-month", cfg.EventsPerMonth, "events per discipline and month")
	cmd.Flags().StringVar(&end, "end", "", "last day of the season (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&full, "recalculate", false, "score, backfill and allocate club points after loading")
	return cmd
}

func newRecalcCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc-event ID [ID...]",
		Short: "Recalculate positions, points and ranking points of events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := parseID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			if len(ids) == 1 {
				sum, err := e.svc.RecalculateEvent(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				return printEvent(e.out, sum)
			}
			sum, err := e.svc.RecalculateEvents(cmd.Context(), ids)
			if perr := printReport(e.out, sum.Report,
				row("requested", sum.Requested), row("succeeded", sum.Succeeded)); perr != nil {
				return perr
			}
			return err
		},
	}
}

func newBackfillCmd(e *env) *cobra.Command {
	var (
		months int
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "backfill [DISCIPLINE]",
		Short: "Rebuild monthly ranking snapshots",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				sums, err := e.svc.BackfillAll(cmd.Context())
				for _, s := range sums {
					if perr := printBackfill(e.out, s); perr != nil {
						return perr
					}
				}
				return err
			}
			if months <= 0 {
				months = e.cfg.SnapshotMonths
			}
			sum, err := e.svc.BackfillSnapshots(cmd.Context(), model.Discipline(args[0]), months)
			if err != nil {
				return err
			}
			return printBackfill(e.out, sum)
		},
	}
	cmd.Flags().IntVar(&months, "months", 0, "months to rebuild, newest first (default snapshot_months)")
	cmd.Flags().BoolVar(&all, "all", false, "backfill every configured discipline")
	return cmd
}

func newClubPointsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "club-points SERIES_ID",
		Short: "Recalculate club points and standings of a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			sum, err := e.svc.RecalculateSeriesClubPoints(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printClubPoints(e.out, sum)
		},
	}
}

func newShowCmd(e *env) *cobra.Command {
	show := &cobra.Command{
		Use:   "show",
		Short: "Print rankings and standings",
	}

	var (
		month, asOf string
		live        bool
		top         int
	)
	ranking := &cobra.Command{
		Use:   "ranking DISCIPLINE",
		Short: "Print a stored monthly ranking, or the live ranking with --live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := model.Discipline(args[0])
			if live {
				t, err := parseOptionalTime(asOf, dayLayout)
				if err != nil {
					return err
				}
				view, err := e.svc.LiveRanking(cmd.Context(), d, t)
				if err != nil {
					return err
				}
				return printRanking(e.out, view, top)
			}
			m, err := parseOptionalTime(month, monthLayout)
			if err != nil {
				return err
			}
			view, err := e.svc.Snapshot(cmd.Context(), d, m)
			if err != nil {
				return err
			}
			return printRanking(e.out, view, top)
		},
	}
	ranking.Flags().StringVar(&month, "month", "", "snapshot month (YYYY-MM, default latest)")
	ranking.Flags().BoolVar(&live, "live", false, "aggregate live instead of reading a snapshot")
	ranking.Flags().StringVar(&asOf, "as-of", "", "reference day of the live ranking (YYYY-MM-DD, default today)")
	ranking.Flags().IntVar(&top, "top", 0, "print only the first N rows")

	standings := &cobra.Command{
		Use:   "standings SERIES_ID",
		Short: "Print the club standings of a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rows, err := e.svc.ClubStandings(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printStandings(e.out, rows)
		},
	}

	show.AddCommand(ranking, standings)
	return show
}

func newExportCmd(e *env) *cobra.Command {
	exp := &cobra.Command{
		Use:   "export",
		Short: "Export rankings and standings to Parquet",
		Long: `Write stored snapshots or club standings as Parquet files for use with
DuckDB, pandas or Spark.`,
	}

	var month, out string
	snap := &cobra.Command{
		Use:   "snapshot DISCIPLINE",
		Short: "Export one monthly ranking snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d := model.Discipline(args[0])
			m, err := parseOptionalTime(month, monthLayout)
			if err != nil {
				return err
			}
			if m.IsZero() {
				if m, err = e.store.LatestSnapshotDate(ctx, d); err != nil {
					return err
				}
			}
			rows, err := e.store.ListSnapshot(ctx, d, m)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("%w: no %s snapshot for %s", model.ErrNotFound, d, m.Format(monthLayout))
			}
			if err := export.WriteFile(out, export.SnapshotRows(rows)); err != nil {
				return err
			}
			_, err = fmt.Fprintf(e.out, "wrote %d rows to %s\n", len(rows), out)
			return err
		},
	}
	snap.Flags().StringVar(&month, "month", "", "snapshot month (YYYY-MM, default latest)")
	snap.Flags().StringVarP(&out, "out", "o", "snapshot.parquet", "output file")

	var standingsOut string
	standings := &cobra.Command{
		Use:   "standings SERIES_ID",
		Short: "Export the club standings of a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rows, err := e.store.ListClubStandings(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := export.WriteFile(standingsOut, export.StandingRows(rows)); err != nil {
				return err
			}
			_, err = fmt.Fprintf(e.out, "wrote %d rows to %s\n", len(rows), standingsOut)
			return err
		},
	}
	standings.Flags().StringVarP(&standingsOut, "out", "o", "standings.parquet", "output file")

	exp.AddCommand(snap, standings)
	return exp
}
