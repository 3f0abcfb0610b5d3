package service

import (
	"time"

	"github.com/okian/cevs/internal/adapters/source"
	"github.com/okian/cevs/internal/config"
	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
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

// WithFetcher serves source from f instead of the configured adapter.
func WithFetcher(id model.SourceID, f source.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetchers[id] = f
		}
	}
}

// WithClock replaces time.Now for cache expiry and score timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
