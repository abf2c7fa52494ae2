// Package repository defines the result store contracts and an in-memory
// implementation of them.
package repository

import (
	"context"
	"time"

	"github.com/okian/peloton/internal/domain/model"
)

// Reader exposes the rows the engine reads. Implementations return slices the
// caller may modify.
type Reader interface {
	GetEvent(ctx context.Context, id int64) (model.Event, error)
	// ListFinishedResults returns the finished rows of an event ordered by result id.
	ListFinishedResults(ctx context.Context, eventID int64) ([]model.Result, error)
	// ListEventsInRange returns the discipline's events dated in [from, to], by date then id.
	ListEventsInRange(ctx context.Context, discipline model.Discipline, from, to time.Time) ([]model.Event, error)
	// CountFinishedResults counts finished rows of the discipline's events dated in [from, to].
	CountFinishedResults(ctx context.Context, discipline model.Discipline, from, to time.Time) (int, error)
	GetPointScale(ctx context.Context, id int64) (model.PointScale, error)
	ListClasses(ctx context.Context) ([]model.Class, error)
	GetSeries(ctx context.Context, id int64) (model.Series, error)
	ListSeriesEvents(ctx context.Context, seriesID int64) ([]model.Event, error)

	ListRankingPoints(ctx context.Context, eventID int64) ([]model.RankingPoint, error)
	// ListSnapshot returns one month's snapshot ordered by ranking position.
	ListSnapshot(ctx context.Context, discipline model.Discipline, snapshotDate time.Time) ([]model.RankingSnapshot, error)
	// LatestSnapshotDate returns the newest stored snapshot month, or ErrNotFound.
	LatestSnapshotDate(ctx context.Context, discipline model.Discipline) (time.Time, error)
	// ListClubStandings returns a series' standings ordered by ranking.
	ListClubStandings(ctx context.Context, seriesID int64) ([]model.ClubStanding, error)
	ListClubPointsDetails(ctx context.Context, seriesID int64) ([]model.ClubPointsDetail, error)
}

// Writer replaces derived rows. Every method clears the scope it names before
// inserting, so repeated calls with the same input leave the same state.
type Writer interface {
	ReplaceEventResults(ctx context.Context, eventID int64, updates []model.ResultUpdate) error
	ReplaceRankingPoints(ctx context.Context, eventID int64, points []model.RankingPoint) error
	ReplaceSnapshot(ctx context.Context, discipline model.Discipline, snapshotDate time.Time, rows []model.RankingSnapshot) error
	ReplaceClubStandings(ctx context.Context, seriesID int64, details []model.ClubPointsDetail, standings []model.ClubStanding) error
}

// Store is a Reader whose writes happen inside Update. Nothing written by fn
// is visible to readers until fn returns nil; a non-nil error discards it all.
type Store interface {
	Reader
	Update(ctx context.Context, fn func(w Writer) error) error
	Close() error
}

// Loader inserts the source rows owned by import tooling. The engine itself
// never calls it.
type Loader interface {
	PutEvent(ctx context.Context, e model.Event) error
	PutResults(ctx context.Context, results ...model.Result) error
	PutPointScale(ctx context.Context, s model.PointScale) error
	PutClass(ctx context.Context, c model.Class) error
	// PutSeries stores the series and replaces its event membership.
	PutSeries(ctx context.Context, s model.Series, eventIDs ...int64) error
}

// AutoCommit runs every single write of the wrapped store in its own Update.
type AutoCommit struct {
	Store
}

// ReplaceSnapshot replaces one month in its own transaction.
func (a AutoCommit) ReplaceSnapshot(ctx context.Context, discipline model.Discipline, snapshotDate time.Time, rows []model.RankingSnapshot) error {
	return a.Update(ctx, func(w Writer) error {
		return w.ReplaceSnapshot(ctx, discipline, snapshotDate, rows)
	})
}

// ReplaceClubStandings replaces a series in its own transaction.
func (a AutoCommit) ReplaceClubStandings(ctx context.Context, seriesID int64, details []model.ClubPointsDetail, standings []model.ClubStanding) error {
	return a.Update(ctx, func(w Writer) error {
		return w.ReplaceClubStandings(ctx, seriesID, details, standings)
	})
}
