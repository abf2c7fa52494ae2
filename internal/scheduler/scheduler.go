// Package scheduler runs the monthly snapshot backfill on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/peloton/internal/domain/types"
	"github.com/okian/peloton/pkg/logger"
	"github.com/okian/peloton/pkg/metrics"
)

const jobName = "snapshot_backfill"

// ErrInvalidSpec is returned for cron expressions the parser rejects.
var ErrInvalidSpec = errors.New("invalid cron spec")

// Job is the work the scheduler triggers.
type Job interface {
	BackfillAll(ctx context.Context) ([]types.BackfillSummary, error)
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithTimeout bounds each run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler triggers Job on a six-field (seconds first) cron spec.
// Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	spec    string
	timeout time.Duration
	logger  logger.Logger
	ctx     context.Context //nolint:containedctx // parent of scheduled runs
	cancel  context.CancelFunc
}

// New validates spec and prepares the cron entry. Nothing runs before Start.
func New(spec string, job Job, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{job: job, spec: spec, timeout: time.Hour}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("scheduler")
	}

	cl := cronLogger{l: s.logger}
	s.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunOnce(s.ctx) }); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSpec, spec, err)
	}
	return s, nil
}

// Start begins scheduling in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info(ctx, "scheduler started", logger.String("spec", s.spec))
}

// Stop cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunOnce runs the job immediately, bounded by the configured timeout.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	sums, err := s.job.BackfillAll(ctx)
	status := "ok"
	for _, sum := range sums {
		if sum.Status == types.StatusPartial {
			status = "partial"
		}
	}
	if err != nil {
		status = "failed"
		s.logger.Error(ctx, "scheduled backfill failed", logger.Error(err))
	}
	metrics.RecordSchedulerRun(jobName, status)
	s.logger.Info(ctx, "scheduled backfill finished",
		logger.String("status", status),
		logger.Int("disciplines", len(sums)),
		logger.Duration("duration", time.Since(start)),
	)
	return err
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(context.Background(), msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(context.Background(), msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
