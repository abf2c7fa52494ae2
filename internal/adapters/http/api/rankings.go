package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/peloton/internal/domain/ranking"
)

// RankingsHandler serves snapshot backfills and ranking reads.
type RankingsHandler struct {
	deps Dependencies
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps Dependencies) *RankingsHandler {
	return &RankingsHandler{deps: deps}
}

// HandleBackfill handles POST /rankings/{discipline}/backfill?months=N.
func (h *RankingsHandler) HandleBackfill(w http.ResponseWriter, r *http.Request) {
	const op = "api.backfill"
	discipline, err := pathDiscipline(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	months := ranking.DefaultLookbackMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		if months, err = strconv.Atoi(raw); err != nil || months < 1 || months > ranking.DefaultLookbackMonths {
			writeFailure(w, badRequest(op, fmt.Errorf("invalid months %q, want 1..%d", raw, ranking.DefaultLookbackMonths)))
			return
		}
	}
	sum, err := h.deps.BackfillSnapshots(r.Context(), discipline, months)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleSnapshot handles GET /rankings/{discipline}?month=YYYY-MM.
func (h *RankingsHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.snapshot"
	discipline, err := pathDiscipline(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	month, err := queryTime(r, op, "month", "2006-01")
	if err != nil {
		writeFailure(w, err)
		return
	}
	view, err := h.deps.Snapshot(r.Context(), discipline, month)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleLive handles GET /rankings/{discipline}/live?as_of=YYYY-MM-DD.
func (h *RankingsHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	const op = "api.live_ranking"
	discipline, err := pathDiscipline(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	asOf, err := queryTime(r, op, "as_of", time.DateOnly)
	if err != nil {
		writeFailure(w, err)
		return
	}
	view, err := h.deps.LiveRanking(r.Context(), discipline, asOf)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
