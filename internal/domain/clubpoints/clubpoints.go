// Package clubpoints re-weights individual results into club competition points
// and accumulates them into per-series club standings.
package clubpoints

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
)

// Store is what the allocator reads and writes. ReplaceClubStandings must swap
// every detail and standing row of the series atomically.
type Store interface {
	GetSeries(ctx context.Context, id int64) (model.Series, error)
	ListSeriesEvents(ctx context.Context, seriesID int64) ([]model.Event, error)
	ListFinishedResults(ctx context.Context, eventID int64) ([]model.Result, error)
	ReplaceClubStandings(ctx context.Context, seriesID int64, details []model.ClubPointsDetail, standings []model.ClubStanding) error
}

// Option applies a configuration option to the Allocator.
type Option func(*Allocator)

// WithClock sets the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) {
		if now != nil {
			a.now = now
		}
	}
}

// Allocator recomputes club standings for a series.
type Allocator struct {
	store Store
	now   func() time.Time
}

// NewAllocator creates an allocator on store.
func NewAllocator(store Store, opts ...Option) *Allocator {
	a := &Allocator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate ranks each club's riders inside every class of the event by original
// points and keeps 100% for the first, 50% for the second and nothing for the
// rest. Unplaced rows and rows without a club are ignored.
func Allocate(seriesID int64, event model.Event, results []model.Result) ([]model.ClubPointsDetail, error) {
	type key struct{ club, class int64 }
	groups := make(map[key][]model.Result)
	for _, r := range results {
		if !r.Scored() || !r.HasClub() {
			continue
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", event.ID, err)
		}
		k := key{r.ClubID, r.ClassID}
		groups[k] = append(groups[k], r)
	}

	keys := slices.SortedFunc(maps.Keys(groups), func(a, b key) int {
		if c := cmp.Compare(a.club, b.club); c != 0 {
			return c
		}
		return cmp.Compare(a.class, b.class)
	})

	var out []model.ClubPointsDetail
	for _, k := range keys {
		rows := groups[k]
		slices.SortFunc(rows, func(a, b model.Result) int {
			if c := cmp.Compare(b.Points, a.Points); c != 0 {
				return c
			}
			if c := cmp.Compare(a.Position, b.Position); c != 0 {
				return c
			}
			return cmp.Compare(a.RiderID, b.RiderID)
		})
		for i, r := range rows {
			rank := i + 1
			pct := model.ClubShare(rank)
			out = append(out, model.ClubPointsDetail{
				ClubID:            k.club,
				SeriesID:          seriesID,
				EventID:           event.ID,
				RiderID:           r.RiderID,
				ClassID:           k.class,
				OriginalPoints:    r.Points,
				PercentageApplied: pct,
				ClubPoints:        share(r.Points, pct),
				RiderRankInClub:   rank,
			})
		}
	}
	return out, nil
}

func share(points float64, pct int) float64 {
	return decimal.NewFromFloat(points).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

type clubTally struct {
	total    decimal.Decimal
	riders   map[int64]struct{}
	perEvent map[int64]decimal.Decimal
}

// Standings sums detail rows into one standing per club, ranked by total
// points descending, then club id ascending.
func Standings(seriesID int64, details []model.ClubPointsDetail) []model.ClubStanding {
	tallies := make(map[int64]*clubTally)
	for _, d := range details {
		t, ok := tallies[d.ClubID]
		if !ok {
			t = &clubTally{riders: make(map[int64]struct{}), perEvent: make(map[int64]decimal.Decimal)}
			tallies[d.ClubID] = t
		}
		if d.ClubPoints <= 0 {
			continue
		}
		p := decimal.NewFromFloat(d.ClubPoints)
		t.total = t.total.Add(p)
		t.riders[d.RiderID] = struct{}{}
		t.perEvent[d.EventID] = t.perEvent[d.EventID].Add(p)
	}

	type row struct {
		model.ClubStanding
		total decimal.Decimal
	}
	rows := make([]row, 0, len(tallies))
	for club, t := range tallies {
		best := decimal.Zero
		for _, p := range t.perEvent {
			if p.GreaterThan(best) {
				best = p
			}
		}
		rows = append(rows, row{
			ClubStanding: model.ClubStanding{
				ClubID:            club,
				SeriesID:          seriesID,
				TotalPoints:       t.total.InexactFloat64(),
				TotalParticipants: len(t.riders),
				EventsCount:       len(t.perEvent),
				BestEventPoints:   best.InexactFloat64(),
			},
			total: t.total,
		})
	}
	slices.SortFunc(rows, func(a, b row) int {
		if c := b.total.Cmp(a.total); c != 0 {
			return c
		}
		return cmp.Compare(a.ClubID, b.ClubID)
	})

	out := make([]model.ClubStanding, len(rows))
	for i, r := range rows {
		r.Ranking = i + 1
		out[i] = r.ClubStanding
	}
	return out
}

// Recalculate rebuilds every club points row of the series. Events with
// malformed results are skipped and reported; the remaining events are
// written in one replacement.
func (a *Allocator) Recalculate(ctx context.Context, seriesID int64) (types.ClubPointsSummary, error) {
	if seriesID <= 0 {
		return types.ClubPointsSummary{}, fmt.Errorf("series %d: %w", seriesID, ErrUnknownSeries)
	}
	if _, err := a.store.GetSeries(ctx, seriesID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return types.ClubPointsSummary{}, fmt.Errorf("series %d: %w", seriesID, ErrUnknownSeries)
		}
		return types.ClubPointsSummary{}, fmt.Errorf("get series %d: %w", seriesID, err)
	}

	start := a.now()
	sum := types.ClubPointsSummary{
		Report: types.Report{
			RunID:     types.RunID(ctx),
			Operation: "club_points",
			Scope:     "series:" + strconv.FormatInt(seriesID, 10),
			StartedAt: start,
		},
		SeriesID: seriesID,
	}

	events, err := a.store.ListSeriesEvents(ctx, seriesID)
	if err != nil {
		return sum, fmt.Errorf("list series events: %w", err)
	}
	if len(events) == 0 {
		sum.Note("series has no events")
	}

	var details []model.ClubPointsDetail
	for _, ev := range events {
		results, err := a.store.ListFinishedResults(ctx, ev.ID)
		if err != nil {
			return sum, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		d, err := Allocate(seriesID, ev, results)
		if err != nil {
			sum.AddError("event:"+strconv.FormatInt(ev.ID, 10), err)
			continue
		}
		details = append(details, d...)
		sum.EventsProcessed++
	}

	standings := Standings(seriesID, details)
	for i := range standings {
		standings[i].Generation = sum.RunID
	}
	if err := a.store.ReplaceClubStandings(ctx, seriesID, details, standings); err != nil {
		return sum, fmt.Errorf("replace club standings: %w", err)
	}

	total := decimal.Zero
	for _, s := range standings {
		total = total.Add(decimal.NewFromFloat(s.TotalPoints))
	}
	sum.TotalClubs = len(standings)
	sum.TotalPoints = total.InexactFloat64()
	sum.RowsWritten = len(details) + len(standings)
	sum.Settle(sum.EventsProcessed)
	sum.Duration = a.now().Sub(start)
	return sum, nil
}
