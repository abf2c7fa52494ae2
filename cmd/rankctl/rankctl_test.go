package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/peloton/internal/adapters/export"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRankctlOnSQLite(t *testing.T) {
	Convey("Given a SQLite store in a temp dir", t, func() {
		dir := t.TempDir()
		db := []string{"--db-backend", "sqlite", "--db-dsn", filepath.Join(dir, "ranking.db")}
		with := func(args ...string) []string { return append(args, db...) }

		out, err := execute(with("migrate")...)
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "schema at version 1")

		Convey("When a demo season is seeded and recalculated", func() {
			out, err := execute(with("seed", "--riders", "30", "--months", "3", "--recalculate")...)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "loaded 6 events")
			So(out, ShouldContainSubstring, "event_batch")

			Convey("Then the latest ranking can be printed", func() {
				out, err := execute(with("show", "ranking", "enduro", "--top", "5")...)
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "enduro")
			})

			Convey("Then series standings can be printed", func() {
				out, err := execute(with("show", "standings", "1")...)
				So(err, ShouldBeNil)
				So(out, ShouldNotBeEmpty)
			})

			Convey("Then the snapshot exports to Parquet", func() {
				file := filepath.Join(dir, "enduro.parquet")
				out, err := execute(with("export", "snapshot", "enduro", "-o", file)...)
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "wrote")

				f, err := os.Open(file)
				So(err, ShouldBeNil)
				defer f.Close()
				st, err := f.Stat()
				So(err, ShouldBeNil)
				rows, err := export.Read[export.SnapshotRow](f, st.Size())
				So(err, ShouldBeNil)
				So(len(rows), ShouldBeGreaterThan, 0)
				So(rows[0].Discipline, ShouldEqual, "enduro")
			})

			Convey("Then a single event recalculation is idempotent", func() {
				out, err := execute(with("recalc-event", "1")...)
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "positions changed")
			})
		})

		Convey("When an unknown series is requested", func() {
			_, err := execute(with("club-points", "99")...)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestRankctlUsage(t *testing.T) {
	Convey("Given the memory backend", t, func() {
		Convey("Then migrate is refused", func() {
			_, err := execute("migrate", "--db-backend", "memory")
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("Then ids must be positive numbers", func() {
			_, err := execute("recalc-event", "x", "--db-backend", "memory")
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("Then backfill needs a discipline unless --all is set", func() {
			_, err := execute("backfill", "--db-backend", "memory")
			So(err, ShouldNotBeNil)
			_, err = execute("backfill", "--all", "--db-backend", "memory")
			So(err, ShouldBeNil)
		})
	})
}
