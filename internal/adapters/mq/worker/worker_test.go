package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/cevs/internal/adapters/mq/queue"
	worker "github.com/okian/cevs/internal/adapters/mq/worker"
	model "github.com/okian/cevs/internal/domain/model"
)

type mockRefresher struct {
	mu    sync.Mutex
	calls []model.SourceID
	errs  map[model.SourceID]error
	seen  chan model.SourceID
}

func newMockRefresher() *mockRefresher {
	return &mockRefresher{errs: map[model.SourceID]error{}, seen: make(chan model.SourceID, 16)}
}

func (m *mockRefresher) Refresh(_ context.Context, source model.SourceID, _ model.Params) error {
	m.mu.Lock()
	m.calls = append(m.calls, source)
	err := m.errs[source]
	m.mu.Unlock()
	m.seen <- source
	return err
}

func waitFor(ch <-chan model.SourceID, n int) []model.SourceID {
	var out []model.SourceID
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case s := <-ch:
			out = append(out, s)
		case <-timeout:
			return out
		}
	}
	return out
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		ref := newMockRefresher()
		w := worker.NewInMemoryWorker(q, ref, worker.WithName("test"))
		go w.Run(ctx)

		convey.Convey("When jobs are enqueued", func() {
			convey.So(q.Enqueue(ctx, queue.Job{Source: model.SourcePermits}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, queue.Job{Source: model.SourceGridded}), convey.ShouldBeTrue)

			convey.Convey("Then each is refreshed once and released", func() {
				got := waitFor(ref.seen, 2)
				convey.So(got, convey.ShouldResemble, []model.SourceID{model.SourcePermits, model.SourceGridded})
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(q.Enqueue(ctx, queue.Job{Source: model.SourcePermits}), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a refresh fails", func() {
			ref.errs[model.SourceEmissions] = errors.New("upstream down")
			q.Enqueue(ctx, queue.Job{Source: model.SourceEmissions})
			q.Enqueue(ctx, queue.Job{Source: model.SourceRegional})

			convey.Convey("Then the worker keeps going", func() {
				got := waitFor(ref.seen, 2)
				convey.So(got, convey.ShouldResemble, []model.SourceID{model.SourceEmissions, model.SourceRegional})
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue is closed", func() {
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then shutdown completes", func() {
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		ref := newMockRefresher()
		pool := worker.NewPool(3, q, ref)
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		for _, id := range model.Sources {
			convey.So(q.Enqueue(ctx, queue.Job{Source: id}), convey.ShouldBeTrue)
		}

		got := waitFor(ref.seen, len(model.Sources))
		convey.So(len(got), convey.ShouldEqual, len(model.Sources))
		convey.So(got, convey.ShouldContain, model.SourceCertifications)

		convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
		convey.So(q.IsClosed(), convey.ShouldBeTrue)
		convey.So(pool.Processed(), convey.ShouldEqual, int64(len(model.Sources)))
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), worker.RefresherFunc(func(context.Context, model.SourceID, model.Params) error { return nil }))
		convey.So(pool.Size(), convey.ShouldBeGreaterThanOrEqualTo, 1)
	})
}
