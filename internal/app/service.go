// Package service wires the scoring components to a result store. It owns the
// rules every recomputation shares: one run id per invocation, one writer per
// scope, and one transaction per scope replacement.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/clubpoints"
	"github.com/okian/peloton/internal/domain/eventpoints"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/pointscale"
	"github.com/okian/peloton/internal/domain/ranking"
	"github.com/okian/peloton/internal/domain/snapshot"
	"github.com/okian/peloton/internal/domain/types"
	"github.com/okian/peloton/pkg/logger"
	"github.com/okian/peloton/pkg/metrics"
)

// Service runs recomputations against one store.
type Service struct {
	store repository.Store

	calc    *eventpoints.Calculator
	agg     *ranking.Aggregator
	builder *snapshot.Builder
	clubs   *clubpoints.Allocator

	// scope name -> writer lock
	locks *xsync.Map[string, *sync.Mutex]
	pool  pond.Pool

	workerCount    int
	fixClasses     bool
	levels         map[model.EventLevel]float64
	disciplines    []model.Discipline
	snapshotMonths int
	now            func() time.Time

	logger logger.Logger
}

// New constructs a Service over store. Call Stop to release its workers.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		locks:          xsync.NewMap[string, *sync.Mutex](),
		workerCount:    defaultWorkerCount(),
		fixClasses:     true,
		levels:         make(map[model.EventLevel]float64),
		disciplines:    []model.Discipline{"enduro", "downhill"},
		snapshotMonths: ranking.DefaultLookbackMonths,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	// Single writes of the domain builders each commit on their own.
	auto := repository.AutoCommit{Store: store}
	s.calc = eventpoints.NewCalculator(eventpoints.WithClassCorrection(s.fixClasses))
	s.agg = ranking.NewAggregator(store, ranking.WithLevelMultipliers(s.levels))
	s.builder = snapshot.NewBuilder(auto, s.agg, snapshot.WithClock(s.now))
	s.clubs = clubpoints.NewAllocator(auto, clubpoints.WithClock(s.now))
	s.pool = pond.NewPool(s.workerCount)
	metrics.UpdateWorkerCount(s.workerCount)
	return s
}

// Stop waits for running batches and releases the worker pool.
func (s *Service) Stop() {
	s.pool.StopAndWait()
	metrics.UpdateWorkerRunning(0)
}

// run stamps ctx with the invocation's run id, keeping one set by a caller.
func (s *Service) run(ctx context.Context) (context.Context, string) {
	id := types.RunID(ctx)
	ctx = types.WithRunID(ctx, id)
	return logger.WithFields(ctx, logger.String("run_id", id)), id
}

// lock serializes writers of one scope. Disjoint scopes never wait on each other.
func (s *Service) lock(scope string) func() {
	start := time.Now()
	mu, _ := s.locks.LoadOrStore(scope, &sync.Mutex{})
	mu.Lock()
	metrics.RecordScopeLockWait(float64(time.Since(start).Microseconds()) / 1000)
	return mu.Unlock
}

func (s *Service) finish(ctx context.Context, r types.Report, err error) {
	status := string(r.Status)
	if err != nil {
		status = "failed"
		metrics.RecordErrorByComponent("service", r.Operation)
		s.logger.Error(ctx, "recomputation failed",
			logger.String("operation", r.Operation),
			logger.String("scope", r.Scope),
			logger.Error(err),
		)
	} else {
		s.logger.Info(ctx, "recomputation finished",
			logger.String("operation", r.Operation),
			logger.String("scope", r.Scope),
			logger.String("status", status),
			logger.Int("rows_written", r.RowsWritten),
			logger.Int("errors", len(r.Errors)),
			logger.Duration("duration", r.Duration),
		)
	}
	metrics.RecordRecalculation(r.Operation, status, float64(r.Duration.Microseconds())/1000)
	metrics.AddRowsWritten(r.Operation, r.RowsWritten)
	metrics.AddItemErrors(r.Operation, len(r.Errors))
}

// RecalculateEvent re-derives the placements and points of one event and
// rewrites its result rows and ranking points in a single transaction.
func (s *Service) RecalculateEvent(ctx context.Context, eventID int64) (types.EventSummary, error) {
	if eventID <= 0 {
		return types.EventSummary{}, fmt.Errorf("event %d: %w", eventID, ErrUnknownScope)
	}
	ctx, runID := s.run(ctx)
	scope := "event:" + strconv.FormatInt(eventID, 10)
	unlock := s.lock(scope)
	defer unlock()

	start := s.now()
	sum := types.EventSummary{
		Report: types.Report{
			RunID:     runID,
			Operation: "event",
			Scope:     scope,
			StartedAt: start,
		},
		EventID: eventID,
	}
	err := s.recalculateEvent(ctx, &sum)
	sum.Duration = s.now().Sub(start)
	s.finish(ctx, sum.Report, err)
	if err != nil {
		return sum, err
	}
	return sum, nil
}

func (s *Service) recalculateEvent(ctx context.Context, sum *types.EventSummary) error {
	ev, err := s.store.GetEvent(ctx, sum.EventID)
	if err != nil {
		return fmt.Errorf("get event %d: %w", sum.EventID, err)
	}
	results, err := s.store.ListFinishedResults(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	var scale *model.PointScale
	loaded, ok, err := pointscale.NewResolver(s.store).Scale(ctx, ev.PointScaleID)
	if err != nil {
		return err
	}
	if ok {
		scale = &loaded
	}

	classes, err := s.store.ListClasses(ctx)
	if err != nil {
		return fmt.Errorf("list classes: %w", err)
	}

	out, err := s.calc.Calculate(ev, scale, results, classes)
	if err != nil {
		if errors.Is(err, model.ErrMalformedResult) {
			return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
		}
		return err
	}

	switch {
	case len(out.Updates) == 0:
		sum.Note("event has no finished results")
	case out.ScaleMissing:
		sum.Note("event has no point scale; placements set, points are 0")
	}

	points := s.agg.Weigh(ev, apply(results, out.Updates))
	computedAt := s.now()
	for i := range points {
		points[i].ComputedAt = computedAt
		points[i].Generation = sum.RunID
	}

	err = s.store.Update(ctx, func(w repository.Writer) error {
		if err := w.ReplaceEventResults(ctx, ev.ID, out.Updates); err != nil {
			return err
		}
		return w.ReplaceRankingPoints(ctx, ev.ID, points)
	})
	if err != nil {
		return fmt.Errorf("write event %d: %w", ev.ID, err)
	}

	sum.Participants = out.Participants
	sum.PositionsUpdated = len(out.Updates)
	sum.PositionsChanged = out.Changed
	sum.ClassesFixed = out.ClassesFixed
	sum.RankingPoints = len(points)
	sum.RowsWritten = len(out.Updates) + len(points)
	sum.Settle(len(out.Updates))
	metrics.AddClassesFixed(out.ClassesFixed)
	return nil
}

// apply returns a copy of results carrying the derived class, position and points.
func apply(results []model.Result, updates []model.ResultUpdate) []model.Result {
	byID := make(map[int64]model.ResultUpdate, len(updates))
	for _, u := range updates {
		byID[u.ResultID] = u
	}
	out := make([]model.Result, len(results))
	for i, r := range results {
		if u, ok := byID[r.ID]; ok {
			r.ClassID = u.ClassID
			r.Position = u.Position
			r.Points = u.Points
			r.Run1Points = u.Run1Points
			r.Run2Points = u.Run2Points
		}
		out[i] = r
	}
	return out
}

// RecalculateEvents recomputes several events concurrently. Each event is its
// own scope; a failing event is reported and does not stop the others.
func (s *Service) RecalculateEvents(ctx context.Context, eventIDs []int64) (types.BatchSummary, error) {
	ctx, runID := s.run(ctx)
	start := s.now()
	sum := types.BatchSummary{
		Report: types.Report{
			RunID:     runID,
			Operation: "event_batch",
			Scope:     "events",
			StartedAt: start,
		},
	}

	seen := make(map[int64]struct{}, len(eventIDs))
	ids := make([]int64, 0, len(eventIDs))
	for _, id := range eventIDs {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sum.Requested = len(ids)
	if len(ids) == 0 {
		sum.Note("no events requested")
	}

	summaries := make([]types.EventSummary, len(ids))
	failures := make([]error, len(ids))
	group := s.pool.NewGroupContext(ctx)
	for i, id := range ids {
		group.Submit(func() {
			metrics.UpdateWorkerRunning(s.pool.RunningWorkers())
			summaries[i], failures[i] = s.RecalculateEvent(group.Context(), id)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return sum, err
	}
	metrics.UpdateWorkerRunning(s.pool.RunningWorkers())

	for i, id := range ids {
		if failures[i] != nil {
			sum.AddError("event:"+strconv.FormatInt(id, 10), failures[i])
			continue
		}
		sum.Succeeded++
		sum.RowsWritten += summaries[i].RowsWritten
		sum.Events = append(sum.Events, summaries[i])
	}
	sum.Settle(sum.Succeeded)
	sum.Duration = s.now().Sub(start)
	s.finish(ctx, sum.Report, nil)
	return sum, ctx.Err()
}

// BackfillSnapshots rebuilds the monthly snapshots of one discipline.
func (s *Service) BackfillSnapshots(ctx context.Context, discipline model.Discipline, months int) (types.BackfillSummary, error) {
	ctx, _ = s.run(ctx)
	unlock := s.lock("ranking:" + string(discipline))
	defer unlock()

	sum, err := s.builder.Backfill(ctx, discipline, months)
	if errors.Is(err, model.ErrInvalidInput) {
		return sum, err
	}
	s.finish(ctx, sum.Report, err)
	if err != nil {
		return sum, err
	}
	for i := len(sum.Months) - 1; i >= 0; i-- {
		if m := sum.Months[i]; !m.Skipped && !m.Failed {
			metrics.UpdateSnapshotRiders(string(discipline), m.Riders)
			break
		}
	}
	return sum, nil
}

// BackfillAll rebuilds the configured window of every configured discipline,
// disciplines in parallel.
func (s *Service) BackfillAll(ctx context.Context) ([]types.BackfillSummary, error) {
	ctx, _ = s.run(ctx)
	out := make([]types.BackfillSummary, len(s.disciplines))
	errs := make([]error, len(s.disciplines))
	group := s.pool.NewGroupContext(ctx)
	for i, d := range s.disciplines {
		group.Submit(func() {
			out[i], errs[i] = s.BackfillSnapshots(group.Context(), d, s.snapshotMonths)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("%s: %w", d, errs[i])
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return out, err
	}
	return out, errors.Join(errs...)
}

// RecalculateSeriesClubPoints rebuilds the club points of one series.
func (s *Service) RecalculateSeriesClubPoints(ctx context.Context, seriesID int64) (types.ClubPointsSummary, error) {
	ctx, _ = s.run(ctx)
	unlock := s.lock("series:" + strconv.FormatInt(seriesID, 10))
	defer unlock()

	sum, err := s.clubs.Recalculate(ctx, seriesID)
	if errors.Is(err, model.ErrInvalidInput) {
		return sum, err
	}
	s.finish(ctx, sum.Report, err)
	return sum, err
}

// LiveRanking aggregates the ranking as of asOf without writing it.
func (s *Service) LiveRanking(ctx context.Context, discipline model.Discipline, asOf time.Time) (types.RankingView, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = model.Day(asOf)
	standings, err := s.agg.Compute(ctx, discipline, asOf)
	if err != nil {
		return types.RankingView{}, err
	}
	view := types.RankingView{
		Discipline: string(discipline),
		Date:       asOf,
		Live:       true,
		Entries:    make([]types.RankingEntry, len(standings)),
	}
	for i, st := range standings {
		view.Entries[i] = types.RankingEntry{
			Rank:         st.Position,
			RiderID:      st.RiderID,
			TotalPoints:  st.Total,
			Points12:     st.Points12,
			Points13To24: st.Points13To24,
			EventsCount:  st.EventsCount,
		}
	}
	return view, nil
}

// Snapshot returns the stored snapshot of month, or the newest one when month is zero.
func (s *Service) Snapshot(ctx context.Context, discipline model.Discipline, month time.Time) (types.RankingView, error) {
	if discipline == "" {
		return types.RankingView{}, fmt.Errorf("discipline: %w", ErrUnknownScope)
	}
	if month.IsZero() {
		latest, err := s.store.LatestSnapshotDate(ctx, discipline)
		if errors.Is(err, model.ErrNotFound) {
			return types.RankingView{}, fmt.Errorf("%s: %w", discipline, ErrNoSnapshot)
		}
		if err != nil {
			return types.RankingView{}, err
		}
		month = latest
	}
	month = model.MonthStart(month)

	rows, err := s.store.ListSnapshot(ctx, discipline, month)
	if err != nil {
		return types.RankingView{}, err
	}
	if len(rows) == 0 {
		return types.RankingView{}, fmt.Errorf("%s %s: %w", discipline, month.Format("2006-01"), ErrNoSnapshot)
	}
	view := types.RankingView{
		Discipline: string(discipline),
		Date:       month,
		Entries:    make([]types.RankingEntry, len(rows)),
	}
	for i, r := range rows {
		view.Entries[i] = types.RankingEntry{
			Rank:             r.RankingPosition,
			RiderID:          r.RiderID,
			TotalPoints:      r.TotalRankingPoints,
			Points12:         r.PointsLast12Months,
			Points13To24:     r.PointsMonths13To24,
			EventsCount:      r.EventsCount,
			PreviousPosition: r.PreviousPosition,
			PositionChange:   r.PositionChange,
		}
	}
	return view, nil
}

// ClubStandings returns the stored standings of a series.
func (s *Service) ClubStandings(ctx context.Context, seriesID int64) ([]types.StandingEntry, error) {
	if _, err := s.store.GetSeries(ctx, seriesID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListClubStandings(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	out := make([]types.StandingEntry, len(rows))
	for i, r := range rows {
		out[i] = types.StandingEntry{
			Rank:              r.Ranking,
			ClubID:            r.ClubID,
			TotalPoints:       r.TotalPoints,
			TotalParticipants: r.TotalParticipants,
			EventsCount:       r.EventsCount,
			BestEventPoints:   r.BestEventPoints,
		}
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	metrics.UpdateSystemGoroutineCount()
	disciplines := make([]string, len(s.disciplines))
	for i, d := range s.disciplines {
		disciplines[i] = string(d)
	}
	return map[string]any{
		"workerCount":    s.workerCount,
		"runningWorkers": s.pool.RunningWorkers(),
		"completedTasks": s.pool.CompletedTasks(),
		"scopes":         s.locks.Size(),
		"disciplines":    disciplines,
		"snapshotMonths": s.snapshotMonths,
	}
}
