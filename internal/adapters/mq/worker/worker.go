// Package worker runs cache refresh jobs off the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/cevs/internal/adapters/mq/queue"
	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/pkg/logger"
	"github.com/okian/cevs/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job results reported to metrics.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Refresher reloads one cache slot.
type Refresher interface {
	Refresh(ctx context.Context, source model.SourceID, params model.Params) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, source model.SourceID, params model.Params) error

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context, source model.SourceID, params model.Params) error {
	return f(ctx, source, params)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
	Done(j queue.Job)
}

// Worker processes refresh jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	refresher Refresher
	name      string
	processed *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, r Refresher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		refresher: r,
		name:      "worker",
		processed: &atomic.Int64{},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Warn(ctx, "cache refresh failed",
					logger.String("source_id", string(j.Source)),
					logger.String("params", j.Params.Key()),
					logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error {
	defer w.queue.Done(j)
	start := time.Now()

	err := w.refresher.Refresh(ctx, j.Source, j.Params)
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	metrics.RecordWarmupJob(result, time.Since(start).Seconds())
	w.processed.Add(1)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", j.Source, err)
	}
	w.logger.Debug(ctx, "cache refreshed", logger.String("source_id", string(j.Source)))
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed atomic.Int64
	logger    logger.Logger
}

// NewPool creates a pool of workerCount workers. A non-positive count uses
// one worker per CPU.
func NewPool(workerCount int, q Queue, r Refresher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	probe := &InMemoryWorker{logger: p.logger}
	for _, opt := range opts {
		opt(probe)
	}
	p.logger = probe.logger.Named("worker-pool")

	for i := range p.workers {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)))
		w := NewInMemoryWorker(q, r, wopts...)
		w.processed = &p.processed
		p.workers[i] = w
	}
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs finished, failed ones included.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Shutdown closes the queue, if it can be closed, and waits for the workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return firstErr
}
