package ranking

import (
	"strings"

	"github.com/okian/peloton/internal/domain/model"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLevelMultipliers overrides the multiplier of the given event levels.
// Levels not present keep their default.
func WithLevelMultipliers(overrides map[model.EventLevel]float64) Option {
	return func(a *Aggregator) {
		for level, m := range overrides {
			a.levels[model.EventLevel(strings.ToLower(string(level)))] = m
		}
	}
}

// WithLookback sets the window length in months. Rows older than half of it
// count at half weight.
func WithLookback(months int) Option {
	return func(a *Aggregator) {
		if months >= 2 {
			a.lookback = months
		}
	}
}
