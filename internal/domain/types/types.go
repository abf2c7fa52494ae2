// Package types contains the invocation summaries and read shapes shared by
// the service, its HTTP adapter and the CLI.
package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the overall outcome of one engine invocation.
type Status string

// Invocation outcomes.
const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusNoop    Status = "noop"
)

// ItemError is a non-fatal failure of one item inside a batch.
type ItemError struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// Report is the common part of every invocation summary.
type Report struct {
	RunID       string        `json:"run_id"`
	Operation   string        `json:"operation"`
	Scope       string        `json:"scope"`
	Status      Status        `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Errors      []ItemError   `json:"errors,omitempty"`
	Notes       []string      `json:"notes,omitempty"`
	RowsWritten int           `json:"rows_written"`
}

// AddError records a per-item failure.
func (r *Report) AddError(item string, err error) {
	r.Errors = append(r.Errors, ItemError{Item: item, Error: err.Error()})
}

// Note records explanatory metadata, e.g. why an invocation was a no-op.
func (r *Report) Note(msg string) {
	r.Notes = append(r.Notes, msg)
}

// Settle derives Status from the work done and the errors collected.
func (r *Report) Settle(processed int) {
	switch {
	case len(r.Errors) > 0:
		r.Status = StatusPartial
	case processed == 0:
		r.Status = StatusNoop
	default:
		r.Status = StatusSuccess
	}
}

// EventSummary reports one event recomputation.
type EventSummary struct {
	Report
	EventID          int64 `json:"event_id"`
	Participants     int   `json:"participants"`
	PositionsUpdated int   `json:"positions_updated"`
	PositionsChanged int   `json:"positions_changed"`
	ClassesFixed     int   `json:"classes_fixed"`
	RankingPoints    int   `json:"ranking_points"`
}

// BatchSummary reports a fan-out over several independent scopes.
type BatchSummary struct {
	Report
	Requested int            `json:"requested"`
	Succeeded int            `json:"succeeded"`
	Events    []EventSummary `json:"events,omitempty"`
}

// MonthOutcome describes one month of a backfill.
type MonthOutcome struct {
	SnapshotDate time.Time `json:"snapshot_date"`
	Riders       int       `json:"riders"`
	Skipped      bool      `json:"skipped"`
	Failed       bool      `json:"failed"`
}

// BackfillSummary reports a snapshot backfill for one discipline.
type BackfillSummary struct {
	Report
	Discipline      string         `json:"discipline"`
	MonthsRequested int            `json:"months_requested"`
	MonthsProcessed int            `json:"months_processed"`
	MonthsSkipped   int            `json:"months_skipped"`
	Months          []MonthOutcome `json:"months"`
}

// ClubPointsSummary reports a series club-points recomputation.
type ClubPointsSummary struct {
	Report
	SeriesID        int64   `json:"series_id"`
	EventsProcessed int     `json:"events_processed"`
	TotalClubs      int     `json:"total_clubs"`
	TotalPoints     float64 `json:"total_points"`
}

// RankingEntry is the read shape of one ranking row.
type RankingEntry struct {
	Rank             int     `json:"rank"`
	RiderID          int64   `json:"rider_id"`
	TotalPoints      float64 `json:"total_points"`
	Points12         float64 `json:"points_12"`
	Points13To24     float64 `json:"points_13_24"`
	EventsCount      int     `json:"events_count"`
	PreviousPosition *int    `json:"previous_position"`
	PositionChange   *int    `json:"position_change"`
}

// StandingEntry is the read shape of one club standing.
type StandingEntry struct {
	Rank              int     `json:"rank"`
	ClubID            int64   `json:"club_id"`
	TotalPoints       float64 `json:"total_points"`
	TotalParticipants int     `json:"total_participants"`
	EventsCount       int     `json:"events_count"`
	BestEventPoints   float64 `json:"best_event_points"`
}

type runIDKey struct{}

// WithRunID returns a context carrying the invocation's run id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id carried by ctx, or a fresh one.
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// RankingView is a ranking as served to readers: either a stored monthly
// snapshot or a live aggregation that was not written anywhere.
type RankingView struct {
	Discipline string         `json:"discipline"`
	Date       time.Time      `json:"date"`
	Live       bool           `json:"live"`
	Entries    []RankingEntry `json:"entries"`
}
