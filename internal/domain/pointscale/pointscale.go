// Package pointscale resolves finishing positions into raw points using the
// named point tables of each discipline.
package pointscale

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/peloton/internal/domain/model"
)

// Run selects which column of a scale to read.
type Run int

const (
	// RunAny reads the single-run points column.
	RunAny Run = iota
	// Run1 reads the qualifying-run column of a dual-run scale.
	Run1
	// Run2 reads the final-run column of a dual-run scale.
	Run2
)

// Source loads point scales. Unknown ids must yield an error matching model.ErrNotFound.
type Source interface {
	GetPointScale(ctx context.Context, id int64) (model.PointScale, error)
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithScales preloads scales, bypassing the source for their ids.
func WithScales(scales ...model.PointScale) Option {
	return func(r *Resolver) {
		for _, s := range scales {
			r.cache[s.ID] = cached{scale: s, ok: true}
		}
	}
}

type cached struct {
	scale model.PointScale
	ok    bool
}

// Resolver maps (scale, position, run) to points. A Resolver caches every
// scale it loads, so one instance should live for one invocation.
type Resolver struct {
	src   Source
	mu    sync.Mutex
	cache map[int64]cached
}

// NewResolver creates a resolver reading from src. src may be nil when every
// scale is preloaded with WithScales.
func NewResolver(src Source, opts ...Option) *Resolver {
	r := &Resolver{src: src, cache: make(map[int64]cached)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scale returns the scale for id; ok is false when no such scale exists.
func (r *Resolver) Scale(ctx context.Context, id int64) (model.PointScale, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, hit := r.cache[id]; hit {
		return c.scale, c.ok, nil
	}
	if id <= 0 || r.src == nil {
		r.cache[id] = cached{}
		return model.PointScale{}, false, nil
	}
	s, err := r.src.GetPointScale(ctx, id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		r.cache[id] = cached{}
		return model.PointScale{}, false, nil
	case err != nil:
		return model.PointScale{}, false, fmt.Errorf("load point scale %d: %w", id, err)
	}
	r.cache[id] = cached{scale: s, ok: true}
	return s, true, nil
}

// Resolve returns the points paid at position. Unknown scales and positions
// past the last paying position resolve to 0.
func (r *Resolver) Resolve(ctx context.Context, scaleID int64, position int, run Run) (float64, error) {
	if position <= 0 {
		return 0, fmt.Errorf("position %d: %w", position, ErrInvalidPosition)
	}
	s, ok, err := r.Scale(ctx, scaleID)
	if err != nil || !ok {
		return 0, err
	}
	return Points(s, position, run), nil
}

// Points reads one position from a loaded scale. Single-run scales ignore run.
// Callers must pass position >= 1.
func Points(s model.PointScale, position int, run Run) float64 {
	v, ok := s.Value(position)
	if !ok {
		return 0
	}
	if !s.DualRun {
		return v.Points
	}
	switch run {
	case Run1:
		return v.Run1Points
	case Run2:
		return v.Run2Points
	default:
		return v.Points
	}
}
