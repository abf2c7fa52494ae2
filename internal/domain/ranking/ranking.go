// Package ranking turns event points into weighted per-rider ranking points and
// aggregates them into the rolling two-tier rider ranking.
package ranking

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/peloton/internal/domain/eventpoints"
	"github.com/okian/peloton/internal/domain/model"
)

// DefaultLookbackMonths is the length of the ranking window.
const DefaultLookbackMonths = 24

var half = decimal.NewFromFloat(0.5) //nolint:gochecknoglobals // constant

// Reader is the slice of the result store the aggregator needs.
type Reader interface {
	ListEventsInRange(ctx context.Context, discipline model.Discipline, from, to time.Time) ([]model.Event, error)
	ListFinishedResults(ctx context.Context, eventID int64) ([]model.Result, error)
}

// Standing is one rider's line in a computed ranking.
type Standing struct {
	RiderID      int64
	Total        float64
	Points12     float64
	Points13To24 float64
	EventsCount  int
	Position     int
}

// Aggregator computes rider rankings. It keeps no state between calls.
type Aggregator struct {
	reader   Reader
	levels   map[model.EventLevel]float64
	lookback int
}

// NewAggregator creates an aggregator reading from r. r may be nil when only
// Weigh and Aggregate are used.
func NewAggregator(r Reader, opts ...Option) *Aggregator {
	a := &Aggregator{
		reader:   r,
		levels:   maps.Clone(model.DefaultLevelMultipliers),
		lookback: DefaultLookbackMonths,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LevelMultiplier returns the multiplier configured for level, 1.00 when unknown.
func (a *Aggregator) LevelMultiplier(level model.EventLevel) float64 {
	if m, ok := a.levels[model.EventLevel(strings.ToLower(string(level)))]; ok {
		return m
	}
	return 1.0
}

// Window returns the inclusive date range of events counted as of asOf.
func (a *Aggregator) Window(asOf time.Time) (from, to time.Time) {
	to = model.Day(asOf)
	return to.AddDate(0, -a.lookback, 0), to
}

// recentCutoff is the oldest date still counted at full weight.
func (a *Aggregator) recentCutoff(asOf time.Time) time.Time {
	return model.Day(asOf).AddDate(0, -a.lookback/2, 0)
}

// Weigh returns one RankingPoint per rider with a scored result in the event.
// A rider scored in several classes of the same event sums their base points.
// The field multiplier is taken from the live count of finishers in results.
func (a *Aggregator) Weigh(event model.Event, results []model.Result) []model.RankingPoint {
	participants := eventpoints.Participants(results)
	field := model.FieldMultiplier(participants)
	level := a.LevelMultiplier(event.Level)
	factor := decimal.NewFromFloat(field).Mul(decimal.NewFromFloat(level))

	base := make(map[int64]decimal.Decimal)
	for _, r := range results {
		if !r.Scored() {
			continue
		}
		base[r.RiderID] = base[r.RiderID].Add(decimal.NewFromFloat(r.Points))
	}

	riders := slices.Sorted(maps.Keys(base))
	out := make([]model.RankingPoint, 0, len(riders))
	for _, rider := range riders {
		b := base[rider]
		out = append(out, model.RankingPoint{
			RiderID:          rider,
			EventID:          event.ID,
			Discipline:       event.Discipline,
			EventDate:        model.Day(event.Date),
			BasePoints:       b.InexactFloat64(),
			FieldMultiplier:  field,
			LevelMultiplier:  level,
			WeightedPoints:   b.Mul(factor).Round(2).InexactFloat64(),
			ParticipantCount: participants,
		})
	}
	return out
}

type tally struct {
	recent, older decimal.Decimal
	events        map[int64]struct{}
}

// Aggregate folds weighted points into a ranking as of asOf. Points outside the
// window are ignored. Riders with a zero total are dropped; the rest are ordered
// by total descending, then rider id ascending, and numbered 1..N.
func (a *Aggregator) Aggregate(asOf time.Time, points []model.RankingPoint) []Standing {
	from, to := a.Window(asOf)
	cutoff := a.recentCutoff(asOf)

	tallies := make(map[int64]*tally)
	for _, p := range points {
		day := model.Day(p.EventDate)
		if day.Before(from) || day.After(to) {
			continue
		}
		t, ok := tallies[p.RiderID]
		if !ok {
			t = &tally{events: make(map[int64]struct{})}
			tallies[p.RiderID] = t
		}
		t.events[p.EventID] = struct{}{}
		w := decimal.NewFromFloat(p.WeightedPoints)
		if !day.Before(cutoff) {
			t.recent = t.recent.Add(w)
		} else {
			t.older = t.older.Add(w.Mul(half).Round(2))
		}
	}

	type row struct {
		Standing
		total decimal.Decimal
	}
	rows := make([]row, 0, len(tallies))
	for rider, t := range tallies {
		total := t.recent.Add(t.older)
		if !total.IsPositive() {
			continue
		}
		rows = append(rows, row{
			Standing: Standing{
				RiderID:      rider,
				Total:        total.InexactFloat64(),
				Points12:     t.recent.InexactFloat64(),
				Points13To24: t.older.InexactFloat64(),
				EventsCount:  len(t.events),
			},
			total: total,
		})
	}

	slices.SortFunc(rows, func(x, y row) int {
		if c := y.total.Cmp(x.total); c != 0 {
			return c
		}
		return cmp.Compare(x.RiderID, y.RiderID)
	})

	out := make([]Standing, len(rows))
	for i, r := range rows {
		r.Position = i + 1
		out[i] = r.Standing
	}
	return out
}

// Compute loads every event of discipline inside the window ending at asOf and
// returns the ranking. It performs no writes.
func (a *Aggregator) Compute(ctx context.Context, discipline model.Discipline, asOf time.Time) ([]Standing, error) {
	if discipline == "" {
		return nil, ErrMissingDiscipline
	}
	if asOf.IsZero() {
		return nil, ErrMissingAsOf
	}
	from, to := a.Window(asOf)
	events, err := a.reader.ListEventsInRange(ctx, discipline, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var points []model.RankingPoint
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := a.reader.ListFinishedResults(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		points = append(points, a.Weigh(ev, results)...)
	}
	return a.Aggregate(asOf, points), nil
}
