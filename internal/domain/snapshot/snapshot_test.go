package snapshot_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/ranking"
	"github.com/okian/peloton/internal/domain/snapshot"
	"github.com/okian/peloton/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// world is an in-memory discipline with events and a snapshot table.
type world struct {
	events    []model.Event
	results   map[int64][]model.Result
	snapshots map[time.Time][]model.RankingSnapshot
	failOn    time.Time
}

func (w *world) ListEventsInRange(_ context.Context, d model.Discipline, from, to time.Time) ([]model.Event, error) {
	var out []model.Event
	for _, e := range w.events {
		if e.Discipline == d && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (w *world) ListFinishedResults(_ context.Context, id int64) ([]model.Result, error) {
	return w.results[id], nil
}

func (w *world) CountFinishedResults(ctx context.Context, d model.Discipline, from, to time.Time) (int, error) {
	events, _ := w.ListEventsInRange(ctx, d, from, to)
	n := 0
	for _, e := range events {
		n += len(w.results[e.ID])
	}
	return n, nil
}

func (w *world) ReplaceSnapshot(_ context.Context, _ model.Discipline, day time.Time, rows []model.RankingSnapshot) error {
	if day.Equal(w.failOn) {
		return errors.New("commit failed")
	}
	w.snapshots[day] = rows
	return nil
}

func finisher(rider int64, pos int, pts float64) model.Result {
	return model.Result{RiderID: rider, ClassID: 1, Position: pos, Points: pts, Status: model.StatusFinished}
}

func newWorld() *world {
	return &world{
		events: []model.Event{
			{ID: 1, Date: date(2024, 1, 13), Discipline: "enduro", Level: model.LevelRegional},
			{ID: 3, Date: date(2024, 3, 9), Discipline: "enduro", Level: model.LevelNational},
		},
		results: map[int64][]model.Result{
			1: {finisher(1, 1, 100), finisher(2, 2, 80), finisher(3, 3, 65)},
			3: {finisher(3, 1, 100), finisher(1, 2, 80), finisher(4, 3, 65)},
		},
		snapshots: make(map[time.Time][]model.RankingSnapshot),
	}
}

func byRider(rows []model.RankingSnapshot) map[int64]model.RankingSnapshot {
	out := make(map[int64]model.RankingSnapshot, len(rows))
	for _, r := range rows {
		out[r.RiderID] = r
	}
	return out
}

func TestBackfill(t *testing.T) {
	clock := snapshot.WithClock(func() time.Time { return date(2024, 3, 20) })

	Convey("Given three months where the middle month has no events", t, func() {
		w := newWorld()
		w.events = append(w.events, model.Event{ID: 2, Date: date(2024, 2, 10), Discipline: "enduro"})
		b := snapshot.NewBuilder(w, ranking.NewAggregator(w), clock)
		ctx := types.WithRunID(context.Background(), "run-42")

		sum, err := b.Backfill(ctx, "enduro", 3)
		So(err, ShouldBeNil)

		Convey("Then the empty month is skipped and no rows are written for it", func() {
			So(sum.MonthsProcessed, ShouldEqual, 2)
			So(sum.MonthsSkipped, ShouldEqual, 1)
			So(sum.Months[1].Skipped, ShouldBeTrue)
			_, written := w.snapshots[date(2024, 2, 1)]
			So(written, ShouldBeFalse)
			So(sum.Status, ShouldEqual, types.StatusSuccess)
		})

		Convey("Then first appearances have no previous position", func() {
			jan := byRider(w.snapshots[date(2024, 1, 1)])
			So(jan[1].RankingPosition, ShouldEqual, 1)
			So(jan[1].PreviousPosition, ShouldBeNil)
			So(jan[1].PositionChange, ShouldBeNil)
		})

		Convey("Then March compares against January", func() {
			mar := byRider(w.snapshots[date(2024, 3, 1)])
			So(*mar[3].PreviousPosition, ShouldEqual, 3)
			So(mar[3].RankingPosition, ShouldEqual, 2)
			So(*mar[3].PositionChange, ShouldEqual, 1)
			So(mar[1].RankingPosition, ShouldEqual, 1)
			So(*mar[1].PositionChange, ShouldEqual, 0)
			So(mar[4].RankingPosition, ShouldEqual, 4)
			So(mar[4].PreviousPosition, ShouldBeNil)
		})

		Convey("Then rows carry the run's generation", func() {
			So(sum.RunID, ShouldEqual, "run-42")
			So(w.snapshots[date(2024, 3, 1)][0].Generation, ShouldEqual, "run-42")
		})

		Convey("Then positions are dense in every snapshot", func() {
			for _, rows := range w.snapshots {
				seen := make(map[int]bool)
				for _, r := range rows {
					So(r.TotalRankingPoints, ShouldBeGreaterThan, 0)
					seen[r.RankingPosition] = true
				}
				for i := 1; i <= len(rows); i++ {
					So(seen[i], ShouldBeTrue)
				}
			}
		})
	})

	Convey("Given a rerun of the same window", t, func() {
		w := newWorld()
		b := snapshot.NewBuilder(w, ranking.NewAggregator(w), clock)
		_, err := b.Backfill(context.Background(), "enduro", 3)
		So(err, ShouldBeNil)
		first := w.snapshots[date(2024, 3, 1)]

		_, err = b.Backfill(context.Background(), "enduro", 1)
		So(err, ShouldBeNil)
		second := w.snapshots[date(2024, 3, 1)]

		Convey("Then a single-month run carries no previous positions", func() {
			So(len(second), ShouldEqual, len(first))
			So(second[0].PreviousPosition, ShouldBeNil)
		})
	})

	Convey("Given a month whose commit fails", t, func() {
		w := newWorld()
		w.failOn = date(2024, 1, 1)
		b := snapshot.NewBuilder(w, ranking.NewAggregator(w), clock)

		sum, err := b.Backfill(context.Background(), "enduro", 3)

		Convey("Then the run reports partial success", func() {
			So(err, ShouldBeNil)
			So(sum.Status, ShouldEqual, types.StatusPartial)
			So(sum.Errors, ShouldHaveLength, 1)
			So(sum.Errors[0].Item, ShouldEqual, "2024-01")
			So(sum.Months[0].Failed, ShouldBeTrue)
		})

		Convey("Then later months are still written without January positions", func() {
			mar := byRider(w.snapshots[date(2024, 3, 1)])
			So(mar, ShouldNotBeEmpty)
			So(mar[1].PreviousPosition, ShouldBeNil)
		})
	})

	Convey("Given a window with no results at all", t, func() {
		w := &world{results: map[int64][]model.Result{}, snapshots: map[time.Time][]model.RankingSnapshot{}}
		b := snapshot.NewBuilder(w, ranking.NewAggregator(w), clock)
		sum, err := b.Backfill(context.Background(), "enduro", 2)
		So(err, ShouldBeNil)
		So(sum.Status, ShouldEqual, types.StatusNoop)
		So(sum.Notes, ShouldHaveLength, 2)
	})

	Convey("Given invalid arguments", t, func() {
		b := snapshot.NewBuilder(newWorld(), nil)
		_, err := b.Backfill(context.Background(), "enduro", 0)
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		_, err = b.Backfill(context.Background(), "", 3)
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)

		Convey("Then month counts beyond the lookback are refused", func() {
			_, err := b.Backfill(context.Background(), "enduro", 25)
			So(errors.Is(err, snapshot.ErrInvalidMonths), ShouldBeTrue)
			_, err = b.Backfill(context.Background(), "enduro", 1<<62)
			So(errors.Is(err, snapshot.ErrInvalidMonths), ShouldBeTrue)
		})

		Convey("Then a shorter configured limit applies", func() {
			short := snapshot.NewBuilder(newWorld(), nil, snapshot.WithMaxMonths(6))
			_, err := short.Backfill(context.Background(), "enduro", 7)
			So(errors.Is(err, snapshot.ErrInvalidMonths), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		w := newWorld()
		b := snapshot.NewBuilder(w, ranking.NewAggregator(w), clock)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := b.Backfill(ctx, "enduro", 3)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
		So(w.snapshots, ShouldBeEmpty)
	})
}

func TestMonths(t *testing.T) {
	Convey("Given a date late in the year", t, func() {
		m := snapshot.Months(date(2024, 2, 29), 3)
		So(m, ShouldResemble, []time.Time{date(2023, 12, 1), date(2024, 1, 1), date(2024, 2, 1)})
	})
}
