package api

import "net/http"

// SeriesHandler serves club points of a series.
type SeriesHandler struct {
	deps Dependencies
}

// NewSeriesHandler creates a new series handler.
func NewSeriesHandler(deps Dependencies) *SeriesHandler {
	return &SeriesHandler{deps: deps}
}

// HandleClubPoints handles POST /series/{id}/club-points.
func (h *SeriesHandler) HandleClubPoints(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "api.club_points")
	if err != nil {
		writeFailure(w, err)
		return
	}
	sum, err := h.deps.RecalculateSeriesClubPoints(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type standingsResponse struct {
	SeriesID  int64 `json:"series_id"`
	Standings any   `json:"standings"`
}

// HandleStandings handles GET /series/{id}/standings.
func (h *SeriesHandler) HandleStandings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "api.standings")
	if err != nil {
		writeFailure(w, err)
		return
	}
	rows, err := h.deps.ClubStandings(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, standingsResponse{SeriesID: id, Standings: rows})
}
