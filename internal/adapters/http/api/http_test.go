package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/peloton/internal/adapters/http/api"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	err error

	eventIDs   []int64
	discipline model.Discipline
	months     int
	asOf       time.Time
	month      time.Time
	seriesID   int64
}

func (m *mockDeps) RecalculateEvent(_ context.Context, id int64) (types.EventSummary, error) {
	m.eventIDs = []int64{id}
	return types.EventSummary{Report: types.Report{Status: types.StatusSuccess}, EventID: id, PositionsUpdated: 3}, m.err
}

func (m *mockDeps) RecalculateEvents(_ context.Context, ids []int64) (types.BatchSummary, error) {
	m.eventIDs = ids
	return types.BatchSummary{Requested: len(ids), Succeeded: len(ids)}, m.err
}

func (m *mockDeps) BackfillSnapshots(_ context.Context, d model.Discipline, months int) (types.BackfillSummary, error) {
	m.discipline, m.months = d, months
	return types.BackfillSummary{Discipline: string(d), MonthsRequested: months}, m.err
}

func (m *mockDeps) RecalculateSeriesClubPoints(_ context.Context, id int64) (types.ClubPointsSummary, error) {
	m.seriesID = id
	return types.ClubPointsSummary{SeriesID: id, TotalClubs: 2, TotalPoints: 200}, m.err
}

func (m *mockDeps) LiveRanking(_ context.Context, d model.Discipline, asOf time.Time) (types.RankingView, error) {
	m.discipline, m.asOf = d, asOf
	return types.RankingView{Discipline: string(d), Live: true, Entries: []types.RankingEntry{{Rank: 1, RiderID: 2, TotalPoints: 50}}}, m.err
}

func (m *mockDeps) Snapshot(_ context.Context, d model.Discipline, month time.Time) (types.RankingView, error) {
	m.discipline, m.month = d, month
	return types.RankingView{Discipline: string(d), Date: month}, m.err
}

func (m *mockDeps) ClubStandings(_ context.Context, id int64) ([]types.StandingEntry, error) {
	m.seriesID = id
	return []types.StandingEntry{{Rank: 1, ClubID: 7, TotalPoints: 140}}, m.err
}

type mockStats struct{}

func (mockStats) GetStats() map[string]any { return map[string]any{"workerCount": 4} }

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestEventRoutes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When an event is recalculated", func() {
			w := do(mux, http.MethodPost, "/events/12/recalculate", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.eventIDs, ShouldResemble, []int64{12})
			So(decode(w)["positions_updated"], ShouldEqual, 3)
		})

		Convey("When the event id is not a number", func() {
			w := do(mux, http.MethodPost, "/events/abc/recalculate", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When a batch is posted", func() {
			w := do(mux, http.MethodPost, "/events/recalculate", `{"event_ids":[1,2,3]}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.eventIDs, ShouldResemble, []int64{1, 2, 3})
		})

		Convey("When a batch is empty or malformed", func() {
			So(do(mux, http.MethodPost, "/events/recalculate", `{"event_ids":[]}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/events/recalculate", `{`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the wrong method is used", func() {
			So(do(mux, http.MethodGet, "/events/12/recalculate", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given a service failing with each error kind", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("x: %w", model.ErrInvalidInput), http.StatusBadRequest, "bad_request"},
			{fmt.Errorf("x: %w", model.ErrNotFound), http.StatusNotFound, "not_found"},
			{fmt.Errorf("%w: %w", model.ErrInvalidInput, model.ErrMalformedResult), http.StatusUnprocessableEntity, "malformed_data"},
			{context.Canceled, http.StatusServiceUnavailable, "cancelled"},
			{fmt.Errorf("disk on fire"), http.StatusInternalServerError, "internal"},
		}
		for _, tc := range cases {
			mux := newMux(&mockDeps{err: tc.err})
			w := do(mux, http.MethodPost, "/events/1/recalculate", "")
			So(w.Code, ShouldEqual, tc.status)
			So(decode(w)["code"], ShouldEqual, tc.code)
		}
	})
}

func TestRankingRoutes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When a backfill omits months the full window is used", func() {
			w := do(mux, http.MethodPost, "/rankings/enduro/backfill", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.discipline, ShouldEqual, model.Discipline("enduro"))
			So(deps.months, ShouldEqual, 24)
		})

		Convey("When a backfill names months", func() {
			So(do(mux, http.MethodPost, "/rankings/downhill/backfill?months=3", "").Code, ShouldEqual, http.StatusOK)
			So(deps.months, ShouldEqual, 3)
			So(do(mux, http.MethodPost, "/rankings/downhill/backfill?months=x", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/rankings/downhill/backfill?months=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/rankings/downhill/backfill?months=4611686018427387904", "").Code, ShouldEqual, http.StatusBadRequest)
			So(deps.months, ShouldEqual, 3)
		})

		Convey("When a stored month is requested", func() {
			w := do(mux, http.MethodGet, "/rankings/enduro?month=2024-03", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.month, ShouldEqual, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
			So(do(mux, http.MethodGet, "/rankings/enduro?month=March", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the latest snapshot is requested", func() {
			So(do(mux, http.MethodGet, "/rankings/enduro", "").Code, ShouldEqual, http.StatusOK)
			So(deps.month.IsZero(), ShouldBeTrue)
		})

		Convey("When the live ranking is requested", func() {
			w := do(mux, http.MethodGet, "/rankings/enduro/live?as_of=2024-06-01", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.asOf, ShouldEqual, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
			body := decode(w)
			So(body["live"], ShouldEqual, true)
			So(body["entries"], ShouldHaveLength, 1)
		})
	})
}

func TestSeriesRoutes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When club points are recalculated", func() {
			w := do(mux, http.MethodPost, "/series/9/club-points", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.seriesID, ShouldEqual, 9)
			So(decode(w)["total_points"], ShouldEqual, 200)
		})

		Convey("When standings are read", func() {
			w := do(mux, http.MethodGet, "/series/9/standings", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["series_id"], ShouldEqual, 9)
			So(body["standings"], ShouldHaveLength, 1)
		})

		Convey("When the series id is negative", func() {
			So(do(mux, http.MethodGet, "/series/-1/standings", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given an API server", t, func() {
		mux := newMux(&mockDeps{})

		Convey("Then /healthz reports ok", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("Then /stats returns the provider's stats", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["workerCount"], ShouldEqual, 4)
		})

		Convey("Then /metrics exposes request counters", func() {
			do(mux, http.MethodGet, "/healthz", "")
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "peloton_engine_http_requests_total")
		})

		Convey("Then failures are counted under the code sent to the client", func() {
			failing := newMux(&mockDeps{err: fmt.Errorf("%w: %w", model.ErrInvalidInput, model.ErrMalformedResult)})
			So(do(failing, http.MethodPost, "/events/3/recalculate", "").Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(do(failing, http.MethodGet, "/series/x/standings", "").Code, ShouldEqual, http.StatusBadRequest)
			body := do(mux, http.MethodGet, "/metrics", "").Body.String()
			So(body, ShouldContainSubstring, `peloton_engine_errors_total{component="http",error_type="malformed_data"}`)
			So(body, ShouldContainSubstring, `peloton_engine_errors_total{component="http",error_type="bad_request"}`)
		})
	})
}
