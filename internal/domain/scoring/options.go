package scoring

import (
	"time"

	"github.com/okian/cevs/internal/domain/country"
	"github.com/okian/cevs/internal/domain/schema"
	"github.com/okian/cevs/pkg/logger"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWeights replaces the scoring constants.
func WithWeights(w Weights) Option {
	return func(a *Aggregator) {
		a.weights = w
	}
}

// WithResolver sets how country hints are normalized.
func WithResolver(r country.Resolver) Option {
	return func(a *Aggregator) {
		if r != nil {
			a.countries = r
		}
	}
}

// WithLogger sets the logger used for skipped sources.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithClock replaces time.Now for ComputedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithTrend sets the pollutant and window of the pollution rule.
func WithTrend(pollutant string, window int) Option {
	return func(a *Aggregator) {
		if pollutant != "" {
			a.pollutant = schema.NormalizePollutant(pollutant)
		}
		if window > 0 {
			a.window = window
		}
	}
}
