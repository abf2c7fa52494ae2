package repository

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/pkg/metrics"
)

const memoryBackend = "memory"

type snapshotKey struct {
	discipline model.Discipline
	month      time.Time
}

// state is one immutable generation of the store. Writers clone it, edit the
// clone and publish it; slices held by a published state are never modified.
type state struct {
	events        map[int64]model.Event
	results       map[int64][]model.Result // by event id
	scales        map[int64]model.PointScale
	classes       map[int64]model.Class
	series        map[int64]model.Series
	seriesEvents  map[int64][]int64
	rankingPoints map[int64][]model.RankingPoint // by event id
	snapshots     map[snapshotKey][]model.RankingSnapshot
	details       map[int64][]model.ClubPointsDetail // by series id
	standings     map[int64][]model.ClubStanding     // by series id
}

func emptyState() *state {
	return &state{
		events:        make(map[int64]model.Event),
		results:       make(map[int64][]model.Result),
		scales:        make(map[int64]model.PointScale),
		classes:       make(map[int64]model.Class),
		series:        make(map[int64]model.Series),
		seriesEvents:  make(map[int64][]int64),
		rankingPoints: make(map[int64][]model.RankingPoint),
		snapshots:     make(map[snapshotKey][]model.RankingSnapshot),
		details:       make(map[int64][]model.ClubPointsDetail),
		standings:     make(map[int64][]model.ClubStanding),
	}
}

func (s *state) clone() *state {
	return &state{
		events:        maps.Clone(s.events),
		results:       maps.Clone(s.results),
		scales:        maps.Clone(s.scales),
		classes:       maps.Clone(s.classes),
		series:        maps.Clone(s.series),
		seriesEvents:  maps.Clone(s.seriesEvents),
		rankingPoints: maps.Clone(s.rankingPoints),
		snapshots:     maps.Clone(s.snapshots),
		details:       maps.Clone(s.details),
		standings:     maps.Clone(s.standings),
	}
}

// MemoryStore is an in-memory Store and Loader. Reads are lock-free against
// the last published generation; writes are serialized.
type MemoryStore struct {
	mu     sync.Mutex // serializes writers
	cur    atomic.Pointer[state]
	closed atomic.Bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.cur.Store(emptyState())
	return s
}

func (s *MemoryStore) read(op string) (*state, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	metrics.RecordRepositoryQuery(memoryBackend, op)
	return s.cur.Load(), nil
}

// Update applies fn to a private copy of the store and publishes it when fn
// succeeds.
func (s *MemoryStore) Update(ctx context.Context, fn func(w Writer) error) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	next := s.cur.Load().clone()
	if err := fn(&memoryWriter{st: next}); err != nil {
		metrics.RecordErrorByComponent("repository", "rollback")
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cur.Store(next)
	metrics.RecordRepositoryUpdateLatency(memoryBackend, float64(time.Since(start).Milliseconds()))
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *MemoryStore) load(fn func(st *state) error) error {
	return s.Update(context.Background(), func(w Writer) error {
		return fn(w.(*memoryWriter).st)
	})
}

// GetEvent implements Reader.
func (s *MemoryStore) GetEvent(_ context.Context, id int64) (model.Event, error) {
	st, err := s.read("get_event")
	if err != nil {
		return model.Event{}, err
	}
	e, ok := st.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return e, nil
}

// ListFinishedResults implements Reader.
func (s *MemoryStore) ListFinishedResults(_ context.Context, eventID int64) ([]model.Result, error) {
	st, err := s.read("list_finished_results")
	if err != nil {
		return nil, err
	}
	var out []model.Result
	for _, r := range st.results[eventID] {
		if r.Finished() {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.Result) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func eventsWhere(st *state, keep func(model.Event) bool) []model.Event {
	var out []model.Event
	for _, e := range st.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b model.Event) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func inRange(discipline model.Discipline, from, to time.Time) func(model.Event) bool {
	from, to = model.Day(from), model.Day(to)
	return func(e model.Event) bool {
		d := model.Day(e.Date)
		return e.Discipline == discipline && !d.Before(from) && !d.After(to)
	}
}

// ListEventsInRange implements Reader.
func (s *MemoryStore) ListEventsInRange(_ context.Context, discipline model.Discipline, from, to time.Time) ([]model.Event, error) {
	st, err := s.read("list_events_in_range")
	if err != nil {
		return nil, err
	}
	return eventsWhere(st, inRange(discipline, from, to)), nil
}

// CountFinishedResults implements Reader.
func (s *MemoryStore) CountFinishedResults(_ context.Context, discipline model.Discipline, from, to time.Time) (int, error) {
	st, err := s.read("count_finished_results")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range eventsWhere(st, inRange(discipline, from, to)) {
		for _, r := range st.results[e.ID] {
			if r.Finished() {
				n++
			}
		}
	}
	return n, nil
}

// GetPointScale implements Reader.
func (s *MemoryStore) GetPointScale(_ context.Context, id int64) (model.PointScale, error) {
	st, err := s.read("get_point_scale")
	if err != nil {
		return model.PointScale{}, err
	}
	ps, ok := st.scales[id]
	if !ok {
		return model.PointScale{}, fmt.Errorf("point scale %d: %w", id, ErrNotFound)
	}
	return ps, nil
}

// ListClasses implements Reader.
func (s *MemoryStore) ListClasses(_ context.Context) ([]model.Class, error) {
	st, err := s.read("list_classes")
	if err != nil {
		return nil, err
	}
	return slices.SortedFunc(maps.Values(st.classes), func(a, b model.Class) int { return cmp.Compare(a.ID, b.ID) }), nil
}

// GetSeries implements Reader.
func (s *MemoryStore) GetSeries(_ context.Context, id int64) (model.Series, error) {
	st, err := s.read("get_series")
	if err != nil {
		return model.Series{}, err
	}
	se, ok := st.series[id]
	if !ok {
		return model.Series{}, fmt.Errorf("series %d: %w", id, ErrNotFound)
	}
	return se, nil
}

// ListSeriesEvents implements Reader.
func (s *MemoryStore) ListSeriesEvents(_ context.Context, seriesID int64) ([]model.Event, error) {
	st, err := s.read("list_series_events")
	if err != nil {
		return nil, err
	}
	members := st.seriesEvents[seriesID]
	return eventsWhere(st, func(e model.Event) bool { return slices.Contains(members, e.ID) }), nil
}

// ListRankingPoints implements Reader.
func (s *MemoryStore) ListRankingPoints(_ context.Context, eventID int64) ([]model.RankingPoint, error) {
	st, err := s.read("list_ranking_points")
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.rankingPoints[eventID]), nil
}

// ListSnapshot implements Reader.
func (s *MemoryStore) ListSnapshot(_ context.Context, discipline model.Discipline, snapshotDate time.Time) ([]model.RankingSnapshot, error) {
	st, err := s.read("list_snapshot")
	if err != nil {
		return nil, err
	}
	rows := slices.Clone(st.snapshots[snapshotKey{discipline, model.MonthStart(snapshotDate)}])
	slices.SortFunc(rows, func(a, b model.RankingSnapshot) int { return cmp.Compare(a.RankingPosition, b.RankingPosition) })
	return rows, nil
}

// LatestSnapshotDate implements Reader.
func (s *MemoryStore) LatestSnapshotDate(_ context.Context, discipline model.Discipline) (time.Time, error) {
	st, err := s.read("latest_snapshot_date")
	if err != nil {
		return time.Time{}, err
	}
	var latest time.Time
	for k, rows := range st.snapshots {
		if k.discipline == discipline && len(rows) > 0 && k.month.After(latest) {
			latest = k.month
		}
	}
	if latest.IsZero() {
		return time.Time{}, fmt.Errorf("snapshot %s: %w", discipline, ErrNotFound)
	}
	return latest, nil
}

// ListClubStandings implements Reader.
func (s *MemoryStore) ListClubStandings(_ context.Context, seriesID int64) ([]model.ClubStanding, error) {
	st, err := s.read("list_club_standings")
	if err != nil {
		return nil, err
	}
	rows := slices.Clone(st.standings[seriesID])
	slices.SortFunc(rows, func(a, b model.ClubStanding) int { return cmp.Compare(a.Ranking, b.Ranking) })
	return rows, nil
}

// ListClubPointsDetails implements Reader.
func (s *MemoryStore) ListClubPointsDetails(_ context.Context, seriesID int64) ([]model.ClubPointsDetail, error) {
	st, err := s.read("list_club_points_details")
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.details[seriesID]), nil
}

// PutEvent implements Loader.
func (s *MemoryStore) PutEvent(_ context.Context, e model.Event) error {
	return s.load(func(st *state) error {
		e.Date = model.Day(e.Date)
		st.events[e.ID] = e
		return nil
	})
}

// PutResults implements Loader. A row replaces any existing row with its id.
func (s *MemoryStore) PutResults(_ context.Context, results ...model.Result) error {
	return s.load(func(st *state) error {
		for _, r := range results {
			if _, ok := st.events[r.EventID]; !ok {
				return fmt.Errorf("result %d: event %d: %w", r.ID, r.EventID, ErrNotFound)
			}
			rows := slices.DeleteFunc(slices.Clone(st.results[r.EventID]), func(x model.Result) bool { return x.ID == r.ID })
			st.results[r.EventID] = append(rows, r)
		}
		return nil
	})
}

// PutPointScale implements Loader.
func (s *MemoryStore) PutPointScale(_ context.Context, ps model.PointScale) error {
	return s.load(func(st *state) error {
		st.scales[ps.ID] = ps
		return nil
	})
}

// PutClass implements Loader.
func (s *MemoryStore) PutClass(_ context.Context, c model.Class) error {
	return s.load(func(st *state) error {
		st.classes[c.ID] = c
		return nil
	})
}

// PutSeries implements Loader.
func (s *MemoryStore) PutSeries(_ context.Context, se model.Series, eventIDs ...int64) error {
	return s.load(func(st *state) error {
		st.series[se.ID] = se
		st.seriesEvents[se.ID] = slices.Clone(eventIDs)
		return nil
	})
}

type memoryWriter struct {
	st *state
}

func (w *memoryWriter) ReplaceEventResults(_ context.Context, eventID int64, updates []model.ResultUpdate) error {
	rows := slices.Clone(w.st.results[eventID])
	index := make(map[int64]int, len(rows))
	for i, r := range rows {
		index[r.ID] = i
	}
	for _, u := range updates {
		i, ok := index[u.ResultID]
		if !ok {
			return fmt.Errorf("event %d result %d: %w", eventID, u.ResultID, ErrForeignResult)
		}
		r := &rows[i]
		if u.ClassID != 0 {
			r.ClassID = u.ClassID
		}
		r.Position = u.Position
		r.Points = u.Points
		r.Run1Points = u.Run1Points
		r.Run2Points = u.Run2Points
	}
	w.st.results[eventID] = rows
	return nil
}

func (w *memoryWriter) ReplaceRankingPoints(_ context.Context, eventID int64, points []model.RankingPoint) error {
	if len(points) == 0 {
		delete(w.st.rankingPoints, eventID)
		return nil
	}
	w.st.rankingPoints[eventID] = slices.Clone(points)
	return nil
}

func (w *memoryWriter) ReplaceSnapshot(_ context.Context, discipline model.Discipline, snapshotDate time.Time, rows []model.RankingSnapshot) error {
	key := snapshotKey{discipline, model.MonthStart(snapshotDate)}
	if len(rows) == 0 {
		delete(w.st.snapshots, key)
		return nil
	}
	w.st.snapshots[key] = slices.Clone(rows)
	return nil
}

func (w *memoryWriter) ReplaceClubStandings(_ context.Context, seriesID int64, details []model.ClubPointsDetail, standings []model.ClubStanding) error {
	w.st.details[seriesID] = slices.Clone(details)
	w.st.standings[seriesID] = slices.Clone(standings)
	return nil
}
