package filter

import "github.com/okian/cevs/internal/domain/country"

// Option configures an Engine.
type Option func(*Engine)

// WithMaxLimit caps page sizes.
func WithMaxLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

// WithDefaultLimit sets the page size used when none is requested.
func WithDefaultLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.defaultLimit = n
		}
	}
}

// WithResolver sets how country filters are normalized.
func WithResolver(r country.Resolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.countries = r
		}
	}
}
