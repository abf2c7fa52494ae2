// Package snapshot persists the monthly ranking time series and tracks each
// rider's position change from one month to the next.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/ranking"
	"github.com/okian/peloton/internal/domain/types"
)

// Ranker computes the ranking of a discipline as of a date.
type Ranker interface {
	Compute(ctx context.Context, discipline model.Discipline, asOf time.Time) ([]ranking.Standing, error)
}

// Store is what the builder reads and writes. ReplaceSnapshot must swap the
// rows of one (discipline, month) atomically.
type Store interface {
	CountFinishedResults(ctx context.Context, discipline model.Discipline, from, to time.Time) (int, error)
	ReplaceSnapshot(ctx context.Context, discipline model.Discipline, snapshotDate time.Time, rows []model.RankingSnapshot) error
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithClock sets the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithMaxMonths sets the longest backfill accepted. Values below 1 are ignored.
func WithMaxMonths(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxMonths = n
		}
	}
}

// Builder backfills monthly ranking snapshots.
type Builder struct {
	store     Store
	ranker    Ranker
	now       func() time.Time
	maxMonths int
}

// NewBuilder creates a snapshot builder. Backfills are limited to the
// ranking lookback unless WithMaxMonths says otherwise.
func NewBuilder(store Store, ranker Ranker, opts ...Option) *Builder {
	b := &Builder{store: store, ranker: ranker, now: time.Now, maxMonths: ranking.DefaultLookbackMonths}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Months returns the first day of each of the n most recent months up to and
// including the month of now, oldest first.
func Months(now time.Time, n int) []time.Time {
	current := model.MonthStart(now)
	out := make([]time.Time, n)
	for i := range n {
		out[i] = current.AddDate(0, i-n+1, 0)
	}
	return out
}

// Rows converts a computed ranking into snapshot rows dated snapshotDate,
// reading each rider's previous position from prev.
func Rows(discipline model.Discipline, snapshotDate time.Time, standings []ranking.Standing, prev map[int64]int, generation string) []model.RankingSnapshot {
	rows := make([]model.RankingSnapshot, 0, len(standings))
	for _, s := range standings {
		row := model.RankingSnapshot{
			RiderID:            s.RiderID,
			Discipline:         discipline,
			SnapshotDate:       snapshotDate,
			TotalRankingPoints: s.Total,
			PointsLast12Months: s.Points12,
			PointsMonths13To24: s.Points13To24,
			EventsCount:        s.EventsCount,
			RankingPosition:    s.Position,
			Generation:         generation,
		}
		if p, ok := prev[s.RiderID]; ok {
			change := p - s.Position
			row.PreviousPosition = &p
			row.PositionChange = &change
		}
		rows = append(rows, row)
	}
	return rows
}

// Backfill rebuilds the snapshots of the months most recent months, oldest
// first. Months without finished results of their own are skipped.
// A failing month is recorded in the summary and does not stop the others;
// only cancellation aborts the run.
func (b *Builder) Backfill(ctx context.Context, discipline model.Discipline, months int) (types.BackfillSummary, error) {
	if discipline == "" {
		return types.BackfillSummary{}, ErrMissingDiscipline
	}
	if months < 1 || months > b.maxMonths {
		return types.BackfillSummary{}, fmt.Errorf("%w: got %d, limit %d", ErrInvalidMonths, months, b.maxMonths)
	}

	start := b.now()
	sum := types.BackfillSummary{
		Report: types.Report{
			RunID:     types.RunID(ctx),
			Operation: "backfill",
			Scope:     "ranking:" + string(discipline),
			StartedAt: start,
		},
		Discipline:      string(discipline),
		MonthsRequested: months,
	}

	prev := make(map[int64]int)
	for _, month := range Months(start, months) {
		if err := ctx.Err(); err != nil {
			sum.Duration = b.now().Sub(start)
			return sum, err
		}
		outcome, err := b.month(ctx, discipline, month, prev, sum.RunID)
		label := month.Format("2006-01")
		switch {
		case err != nil:
			outcome.Failed = true
			sum.AddError(label, err)
		case outcome.Skipped:
			sum.MonthsSkipped++
			sum.Note(label + ": no finished results")
		default:
			sum.MonthsProcessed++
			sum.RowsWritten += outcome.Riders
		}
		sum.Months = append(sum.Months, outcome)
	}

	sum.Settle(sum.MonthsProcessed)
	sum.Duration = b.now().Sub(start)
	return sum, nil
}

// month builds one snapshot. prev is advanced only after the month is stored,
// so a failed or skipped month leaves every rider's last known position intact.
func (b *Builder) month(ctx context.Context, discipline model.Discipline, month time.Time, prev map[int64]int, generation string) (types.MonthOutcome, error) {
	outcome := types.MonthOutcome{SnapshotDate: month}
	asOf := model.MonthEnd(month)

	n, err := b.store.CountFinishedResults(ctx, discipline, month, asOf)
	if err != nil {
		return outcome, fmt.Errorf("count results: %w", err)
	}
	if n == 0 {
		outcome.Skipped = true
		return outcome, nil
	}

	standings, err := b.ranker.Compute(ctx, discipline, asOf)
	if err != nil {
		return outcome, fmt.Errorf("compute ranking: %w", err)
	}
	rows := Rows(discipline, month, standings, prev, generation)
	if err := b.store.ReplaceSnapshot(ctx, discipline, month, rows); err != nil {
		return outcome, fmt.Errorf("replace snapshot: %w", err)
	}

	for _, s := range standings {
		prev[s.RiderID] = s.Position
	}
	outcome.Riders = len(rows)
	return outcome, nil
}
