package country

import (
	"github.com/okian/cevs/internal/domain/dedupe"
	"github.com/okian/cevs/pkg/logger"
)

const defaultSeenSize = 4096

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used for first-sighting warnings.
func WithLogger(l logger.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.log = l
		}
	}
}

// WithSeenSet replaces the first-sighting set.
func WithSeenSet(d dedupe.Deduper) Option {
	return func(n *Normalizer) {
		if d != nil {
			n.seen = d
		}
	}
}
