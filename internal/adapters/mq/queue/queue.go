// Package queue holds pending cache refresh jobs.
//
// The queue is bounded and never blocks producers. A job whose source and
// parameters are already pending is rejected until a worker marks it done.
package queue

import (
	"context"
	"sync"

	"github.com/okian/cevs/internal/domain/dedupe"
	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/pkg/metrics"
)

const defaultQueueCapacity = 64

// Job is the payload flowing through the queue.
type Job = model.RefreshJob

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns false when the queue is full, closed,
	// or the same job is already pending.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel that receives jobs until the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Done releases a dequeued job so it may be enqueued again.
	Done(j Job)

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs and closes dequeue channels.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	pending  dedupe.Deduper

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	if q.pending == nil {
		q.pending = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(q.capacity * 2))
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Key identifies a job for pending-job detection.
func Key(j Job) string {
	return string(j.Source) + "?" + j.Params.Key()
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		metrics.RecordQueueRejected()
		return false
	}

	key := Key(j)
	if q.pending.SeenAndRecord(ctx, key) {
		metrics.RecordQueueRejected()
		return false
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return true
	default:
		q.pending.Unrecord(ctx, key)
		metrics.RecordQueueRejected()
		return false
	}
}

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.jobs))
			case <-ctx.Done():
				q.Done(j)
				return
			}
		}
	}()
	return out
}

// Done releases a job.
func (q *InMemoryQueue) Done(j Job) {
	q.pending.Unrecord(context.Background(), Key(j))
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
