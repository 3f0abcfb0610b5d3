package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/cevs/internal/domain/model"
)

func job(source model.SourceID, kv ...string) Job {
	p := model.Params{}
	for i := 0; i+1 < len(kv); i += 2 {
		p[kv[i]] = kv[i+1]
	}
	return Job{Source: source, Params: p}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, job(model.SourcePermits)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue(ctx)
	if j.Source != model.SourcePermits {
		t.Errorf("expected permits, got %v", j.Source)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, job(model.SourcePermits)) || !q.Enqueue(ctx, job(model.SourceEmissions)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, job(model.SourceGridded)) {
		t.Error("expected enqueue to fail when full")
	}

	// a rejected job must not stay marked as pending
	<-q.Dequeue(ctx)
	if !q.Enqueue(ctx, job(model.SourceGridded)) {
		t.Error("expected enqueue to succeed after space freed")
	}
}

func TestInMemoryQueue_PendingJobs(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	first := job(model.SourceGridded, "country", "germany", "year", "2020")
	same := job(model.SourceGridded, "year", "2020", "country", "germany")
	other := job(model.SourceGridded, "country", "france")

	if !q.Enqueue(ctx, first) {
		t.Fatal("expected first enqueue to succeed")
	}
	if q.Enqueue(ctx, same) {
		t.Error("expected an equivalent pending job to be rejected")
	}
	if !q.Enqueue(ctx, other) {
		t.Error("expected a different job to be accepted")
	}

	got := <-q.Dequeue(ctx)
	if q.Enqueue(ctx, same) {
		t.Error("expected job to stay pending until Done")
	}
	q.Done(got)
	if !q.Enqueue(ctx, same) {
		t.Error("expected enqueue to succeed after Done")
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if q.IsClosed() {
		t.Error("expected queue to be open")
	}
	if err := q.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, job(model.SourcePermits)) {
		t.Error("expected enqueue on closed queue to fail")
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected dequeue channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel was not closed")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, job(model.SourcePermits)) {
		t.Error("expected enqueue with cancelled context to fail")
	}
}

func TestInMemoryQueue_Concurrent(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Enqueue(ctx, job(model.SourceRegional)) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("expected exactly one identical job accepted, got %d", accepted)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}
}
