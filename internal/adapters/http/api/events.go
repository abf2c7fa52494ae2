package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// EventsHandler handles event recomputation requests.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandleRecalculate handles POST /events/{id}/recalculate.
func (h *EventsHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	const op = "api.recalculate_event"
	id, err := pathID(r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	sum, err := h.deps.RecalculateEvent(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type batchRequest struct {
	EventIDs []int64 `json:"event_ids"`
}

// HandleRecalculateBatch handles POST /events/recalculate.
func (h *EventsHandler) HandleRecalculateBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.recalculate_events"
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, badRequest(op, err))
		return
	}
	if len(req.EventIDs) == 0 {
		writeFailure(w, badRequest(op, errors.New("event_ids must not be empty")))
		return
	}
	sum, err := h.deps.RecalculateEvents(r.Context(), req.EventIDs)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
