package clubpoints_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/okian/peloton/internal/domain/clubpoints"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func row(rider, club, class int64, pos int, pts float64) model.Result {
	return model.Result{RiderID: rider, ClubID: club, ClassID: class, Position: pos, Points: pts, Status: model.StatusFinished}
}

type memStore struct {
	series    map[int64]model.Series
	events    map[int64][]model.Event
	results   map[int64][]model.Result
	details   map[int64][]model.ClubPointsDetail
	standings map[int64][]model.ClubStanding
	writes    int
	failWrite error
}

func (m *memStore) GetSeries(_ context.Context, id int64) (model.Series, error) {
	s, ok := m.series[id]
	if !ok {
		return model.Series{}, fmt.Errorf("series %d: %w", id, model.ErrNotFound)
	}
	return s, nil
}

func (m *memStore) ListSeriesEvents(_ context.Context, id int64) ([]model.Event, error) {
	return m.events[id], nil
}

func (m *memStore) ListFinishedResults(_ context.Context, id int64) ([]model.Result, error) {
	return m.results[id], nil
}

func (m *memStore) ReplaceClubStandings(_ context.Context, id int64, d []model.ClubPointsDetail, s []model.ClubStanding) error {
	if m.failWrite != nil {
		return m.failWrite
	}
	m.writes++
	m.details[id] = d
	m.standings[id] = s
	return nil
}

func newStore() *memStore {
	return &memStore{
		series: map[int64]model.Series{5: {ID: 5, Name: "Cup", Year: 2024}},
		events: map[int64][]model.Event{5: {{ID: 1}, {ID: 2}}},
		results: map[int64][]model.Result{
			1: {row(11, 100, 1, 1, 120), row(12, 100, 1, 3, 90), row(13, 100, 1, 4, 60), row(21, 200, 1, 2, 100), row(31, 0, 1, 5, 50)},
			2: {row(12, 100, 1, 1, 100), row(21, 200, 1, 2, 80), row(22, 200, 1, 3, 65)},
		},
		details:   map[int64][]model.ClubPointsDetail{},
		standings: map[int64][]model.ClubStanding{},
	}
}

func TestAllocate(t *testing.T) {
	Convey("Given one club with three riders in the same class", t, func() {
		details, err := clubpoints.Allocate(5, model.Event{ID: 1}, []model.Result{
			row(3, 100, 1, 6, 60),
			row(1, 100, 1, 1, 120),
			row(2, 100, 1, 3, 90),
		})
		So(err, ShouldBeNil)
		So(details, ShouldHaveLength, 3)

		Convey("Then the tiers are 100, 50 and 0 percent", func() {
			So(details[0].RiderID, ShouldEqual, 1)
			So(details[0].ClubPoints, ShouldEqual, 120)
			So(details[0].PercentageApplied, ShouldEqual, 100)
			So(details[1].ClubPoints, ShouldEqual, 45)
			So(details[1].PercentageApplied, ShouldEqual, 50)
			So(details[2].ClubPoints, ShouldEqual, 0)
			So(details[2].RiderRankInClub, ShouldEqual, 3)
		})

		Convey("Then the club total for the class is 165", func() {
			total := 0.0
			for _, d := range details {
				total += d.ClubPoints
			}
			So(total, ShouldEqual, 165)
		})
	})

	Convey("Given riders without a club and non-finishers", t, func() {
		details, err := clubpoints.Allocate(5, model.Event{ID: 1}, []model.Result{
			row(1, 0, 1, 1, 120),
			{RiderID: 2, ClubID: 100, ClassID: 1, Status: model.StatusDNF},
			row(3, 100, 1, 2, 90),
		})
		So(err, ShouldBeNil)

		Convey("Then only club finishers are ranked", func() {
			So(details, ShouldHaveLength, 1)
			So(details[0].RiderID, ShouldEqual, 3)
			So(details[0].RiderRankInClub, ShouldEqual, 1)
			So(details[0].ClubPoints, ShouldEqual, 90)
		})
	})

	Convey("Given an unplaced finisher still carrying imported points", t, func() {
		details, err := clubpoints.Allocate(5, model.Event{ID: 1}, []model.Result{
			row(10, 7, 1, 0, 200),
			row(11, 7, 1, 1, 100),
		})
		So(err, ShouldBeNil)

		Convey("Then the placed rider keeps the full share", func() {
			So(details, ShouldHaveLength, 1)
			So(details[0].RiderID, ShouldEqual, 11)
			So(details[0].RiderRankInClub, ShouldEqual, 1)
			So(details[0].PercentageApplied, ShouldEqual, 100)
			So(details[0].ClubPoints, ShouldEqual, 100)
		})
	})

	Convey("Given equal points inside a club", t, func() {
		details, err := clubpoints.Allocate(5, model.Event{ID: 1}, []model.Result{
			row(9, 100, 1, 4, 50),
			row(8, 100, 1, 4, 50),
			row(7, 100, 1, 3, 50),
		})
		So(err, ShouldBeNil)
		So(details[0].RiderID, ShouldEqual, 7)
		So(details[1].RiderID, ShouldEqual, 8)
		So(details[2].RiderID, ShouldEqual, 9)
	})

	Convey("Given many riders in many classes", t, func() {
		var results []model.Result
		for i := range 40 {
			results = append(results, row(int64(i+1), int64(i%3+1), int64(i%4+1), i+1, float64((i*37)%101)+0.5))
		}
		details, err := clubpoints.Allocate(5, model.Event{ID: 1}, results)
		So(err, ShouldBeNil)

		Convey("Then club points never exceed original points per club and class", func() {
			type key struct{ club, class int64 }
			orig := map[key]float64{}
			club := map[key]float64{}
			for _, d := range details {
				k := key{d.ClubID, d.ClassID}
				orig[k] += d.OriginalPoints
				club[k] += d.ClubPoints
			}
			for k := range orig {
				So(club[k], ShouldBeLessThanOrEqualTo, orig[k])
			}
		})
	})

	Convey("Given a malformed row", t, func() {
		_, err := clubpoints.Allocate(5, model.Event{ID: 1}, []model.Result{row(1, 100, 1, 1, math.NaN())})
		So(errors.Is(err, model.ErrMalformedResult), ShouldBeTrue)
	})
}

func TestStandings(t *testing.T) {
	Convey("Given details across two events", t, func() {
		standings := clubpoints.Standings(5, []model.ClubPointsDetail{
			{ClubID: 100, EventID: 1, RiderID: 11, ClubPoints: 120},
			{ClubID: 100, EventID: 1, RiderID: 12, ClubPoints: 45},
			{ClubID: 100, EventID: 2, RiderID: 12, ClubPoints: 100},
			{ClubID: 100, EventID: 2, RiderID: 13, ClubPoints: 0},
			{ClubID: 200, EventID: 1, RiderID: 21, ClubPoints: 265},
			{ClubID: 300, EventID: 2, RiderID: 31, ClubPoints: 0},
		})
		So(standings, ShouldHaveLength, 3)

		Convey("Then ties on total break on club id", func() {
			So(standings[0].ClubID, ShouldEqual, 100)
			So(standings[0].Ranking, ShouldEqual, 1)
			So(standings[1].ClubID, ShouldEqual, 200)
			So(standings[1].Ranking, ShouldEqual, 2)
		})

		Convey("Then participants and events only count non-zero rows", func() {
			So(standings[0].TotalPoints, ShouldEqual, 265)
			So(standings[0].TotalParticipants, ShouldEqual, 2)
			So(standings[0].EventsCount, ShouldEqual, 2)
			So(standings[0].BestEventPoints, ShouldEqual, 165)
		})

		Convey("Then clubs without points rank last", func() {
			So(standings[2].ClubID, ShouldEqual, 300)
			So(standings[2].TotalPoints, ShouldEqual, 0)
			So(standings[2].EventsCount, ShouldEqual, 0)
			So(standings[2].Ranking, ShouldEqual, 3)
		})
	})
}

func TestRecalculate(t *testing.T) {
	Convey("Given a series with two events", t, func() {
		store := newStore()
		alloc := clubpoints.NewAllocator(store)
		ctx := types.WithRunID(context.Background(), "run-7")

		sum, err := alloc.Recalculate(ctx, 5)
		So(err, ShouldBeNil)

		Convey("Then the summary reports events, clubs and points", func() {
			So(sum.Status, ShouldEqual, types.StatusSuccess)
			So(sum.EventsProcessed, ShouldEqual, 2)
			So(sum.TotalClubs, ShouldEqual, 2)
			// club 100: 120 + 45 + 100, club 200: 100 + 80 + 32.5
			So(sum.TotalPoints, ShouldEqual, 477.5)
			So(sum.RunID, ShouldEqual, "run-7")
		})

		Convey("Then standings are stored with the run's generation", func() {
			So(store.standings[5][0].ClubID, ShouldEqual, 100)
			So(store.standings[5][0].TotalPoints, ShouldEqual, 265)
			So(store.standings[5][0].Generation, ShouldEqual, "run-7")
			So(store.standings[5][1].TotalPoints, ShouldEqual, 212.5)
		})

		Convey("Then a second run produces identical rows", func() {
			firstDetails := store.details[5]
			firstStandings := store.standings[5]
			_, err := alloc.Recalculate(ctx, 5)
			So(err, ShouldBeNil)
			So(store.writes, ShouldEqual, 2)
			So(store.details[5], ShouldResemble, firstDetails)
			So(store.standings[5], ShouldResemble, firstStandings)
		})
	})

	Convey("Given an event with malformed results", t, func() {
		store := newStore()
		store.results[2] = append(store.results[2], row(23, 200, 1, -1, 10))

		sum, err := clubpoints.NewAllocator(store).Recalculate(context.Background(), 5)

		Convey("Then that event is skipped and the rest is written", func() {
			So(err, ShouldBeNil)
			So(sum.Status, ShouldEqual, types.StatusPartial)
			So(sum.EventsProcessed, ShouldEqual, 1)
			So(sum.Errors[0].Item, ShouldEqual, "event:2")
			So(store.writes, ShouldEqual, 1)
		})
	})

	Convey("Given an unknown series", t, func() {
		_, err := clubpoints.NewAllocator(newStore()).Recalculate(context.Background(), 99)
		So(errors.Is(err, clubpoints.ErrUnknownSeries), ShouldBeTrue)
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
	})

	Convey("Given a failing write", t, func() {
		store := newStore()
		store.failWrite = errors.New("disk full")
		_, err := clubpoints.NewAllocator(store).Recalculate(context.Background(), 5)
		So(errors.Is(err, store.failWrite), ShouldBeTrue)
		So(store.standings, ShouldBeEmpty)
	})

	Convey("Given a series without events", t, func() {
		store := newStore()
		store.events[5] = nil
		sum, err := clubpoints.NewAllocator(store).Recalculate(context.Background(), 5)
		So(err, ShouldBeNil)
		So(sum.Status, ShouldEqual, types.StatusNoop)
		So(sum.Notes, ShouldContain, "series has no events")
	})
}
