package service

import (
	"runtime"
	"strings"
	"time"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the size of the pool used for fan-out batches.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLevelMultipliers overrides event level multipliers, keyed by level name.
func WithLevelMultipliers(overrides map[string]float64) Option {
	return func(s *Service) {
		for level, m := range overrides {
			s.levels[model.EventLevel(strings.ToLower(level))] = m
		}
	}
}

// WithDisciplines sets the disciplines BackfillAll covers.
func WithDisciplines(disciplines ...string) Option {
	return func(s *Service) {
		s.disciplines = s.disciplines[:0]
		for _, d := range disciplines {
			if d = strings.TrimSpace(d); d != "" {
				s.disciplines = append(s.disciplines, model.Discipline(d))
			}
		}
	}
}

// WithSnapshotMonths sets how many months BackfillAll rebuilds.
func WithSnapshotMonths(months int) Option {
	return func(s *Service) {
		if months > 0 {
			s.snapshotMonths = months
		}
	}
}

// WithClassCorrection toggles relocation of results raced in the wrong class.
func WithClassCorrection(enabled bool) Option {
	return func(s *Service) { s.fixClasses = enabled }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func defaultWorkerCount() int { return runtime.NumCPU() }
