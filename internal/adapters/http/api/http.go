// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Recompute triggers.
	RecalculateEvent(ctx context.Context, eventID int64) (types.EventSummary, error)
	RecalculateEvents(ctx context.Context, eventIDs []int64) (types.BatchSummary, error)
	BackfillSnapshots(ctx context.Context, discipline model.Discipline, months int) (types.BackfillSummary, error)
	RecalculateSeriesClubPoints(ctx context.Context, seriesID int64) (types.ClubPointsSummary, error)

	// Read operations.
	LiveRanking(ctx context.Context, discipline model.Discipline, asOf time.Time) (types.RankingView, error)
	Snapshot(ctx context.Context, discipline model.Discipline, month time.Time) (types.RankingView, error)
	ClubStandings(ctx context.Context, seriesID int64) ([]types.StandingEntry, error)
}

// Server wires HTTP routes for the admin API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	eventsHandler   *EventsHandler
	rankingsHandler *RankingsHandler
	seriesHandler   *SeriesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		eventsHandler:   NewEventsHandler(deps),
		rankingsHandler: NewRankingsHandler(deps),
		seriesHandler:   NewSeriesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", instrument("healthz", s.healthHandler.HandleHealth))
	mux.Handle("GET /metrics", s.healthHandler.Metrics())
	mux.HandleFunc("GET /stats", instrument("stats", s.statsHandler.HandleStats))

	mux.HandleFunc("POST /events/recalculate", instrument("events_batch", s.eventsHandler.HandleRecalculateBatch))
	mux.HandleFunc("POST /events/{id}/recalculate", instrument("event", s.eventsHandler.HandleRecalculate))

	mux.HandleFunc("POST /rankings/{discipline}/backfill", instrument("backfill", s.rankingsHandler.HandleBackfill))
	mux.HandleFunc("GET /rankings/{discipline}", instrument("ranking", s.rankingsHandler.HandleSnapshot))
	mux.HandleFunc("GET /rankings/{discipline}/live", instrument("ranking_live", s.rankingsHandler.HandleLive))

	mux.HandleFunc("POST /series/{id}/club-points", instrument("club_points", s.seriesHandler.HandleClubPoints))
	mux.HandleFunc("GET /series/{id}/standings", instrument("standings", s.seriesHandler.HandleStandings))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	failed(w, code)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a service error onto a status code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrMalformedResult):
		writeError(w, http.StatusUnprocessableEntity, "malformed_data", err)
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "cancelled", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
