package cache

import (
	"time"

	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/pkg/logger"
)

// Option configures a Cache.
type Option func(*Cache)

// WithSource registers a loader for source with its bounds.
func WithSource(source model.SourceID, cfg SourceConfig, loader Loader) Option {
	return func(c *Cache) {
		c.pending = append(c.pending, pendingSource{source: source, cfg: cfg, loader: loader})
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}
