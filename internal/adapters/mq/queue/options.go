package queue

import "github.com/okian/cevs/internal/domain/dedupe"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of queued jobs.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithPendingSet replaces the set used to detect pending jobs.
func WithPendingSet(d dedupe.Deduper) Option {
	return func(q *InMemoryQueue) {
		if d != nil {
			q.pending = d
		}
	}
}
