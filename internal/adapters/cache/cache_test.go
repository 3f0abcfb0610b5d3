package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cevs/internal/adapters/cache"
	"github.com/okian/cevs/internal/domain/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingLoader returns one record naming the params key, or fails while fail is set.
type countingLoader struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (l *countingLoader) Load(_ context.Context, p model.Params) ([]model.Record, error) {
	l.calls.Add(1)
	if l.fail.Load() {
		return nil, errors.New("upstream down")
	}
	return []model.Record{{Source: model.SourcePermits, Entity: "PT " + p.Key(), Value: 1}}, nil
}

func newCache(l cache.Loader, clock *fakeClock, cfg cache.SourceConfig) *cache.Cache {
	c, err := cache.New(
		cache.WithSource(model.SourcePermits, cfg, l),
		cache.WithClock(clock.Now),
	)
	So(err, ShouldBeNil)
	return c
}

func TestCacheGet(t *testing.T) {
	ctx := context.Background()

	Convey("Given a cache over a counting loader", t, func() {
		loader := &countingLoader{}
		clock := newClock()
		c := newCache(loader, clock, cache.SourceConfig{TTL: time.Minute, Capacity: 2})

		Convey("When equivalent params are requested twice within the TTL", func() {
			first, err := c.Get(ctx, model.SourcePermits, model.Params{"page": "1", "nama": "hijau"})
			So(err, ShouldBeNil)
			second, err := c.Get(ctx, model.SourcePermits, model.Params{"nama": "hijau", "page": "1", "status": ""})
			So(err, ShouldBeNil)

			Convey("Then the loader runs once and both see the same data", func() {
				So(loader.calls.Load(), ShouldEqual, 1)
				So(first.Hit, ShouldBeFalse)
				So(second.Hit, ShouldBeTrue)
				So(second.Records, ShouldResemble, first.Records)
				So(second.Key, ShouldEqual, first.Key)
				So(second.FetchedAt, ShouldEqual, clock.Now())
			})
		})

		Convey("When the TTL elapses", func() {
			_, _ = c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})
			clock.Advance(time.Minute)
			res, err := c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})

			Convey("Then the entry is refetched, never served as fresh", func() {
				So(err, ShouldBeNil)
				So(res.Stale, ShouldBeFalse)
				So(res.Hit, ShouldBeFalse)
				So(loader.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the loader fails", func() {
			loader.fail.Store(true)
			_, err := c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})

			Convey("Then a source error is returned and nothing is cached", func() {
				So(errors.Is(err, model.ErrSourceUnavailable), ShouldBeTrue)
				So(model.CategoryOf(err), ShouldEqual, model.ErrorOutage)

				loader.fail.Store(false)
				res, err := c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})
				So(err, ShouldBeNil)
				So(len(res.Records), ShouldEqual, 1)
				So(loader.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When an expired entry fails to refresh without stale fallback", func() {
			_, _ = c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})
			clock.Advance(2 * time.Minute)
			loader.fail.Store(true)
			_, err := c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})

			So(errors.Is(err, model.ErrSourceUnavailable), ShouldBeTrue)
		})

		Convey("When more keys than the capacity are cached", func() {
			for _, q := range []string{"a", "b", "c"} {
				_, _ = c.Get(ctx, model.SourcePermits, model.Params{"q": q})
			}
			_, _ = c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})

			Convey("Then the least recently used key was evicted", func() {
				So(loader.calls.Load(), ShouldEqual, 4)
				So(c.Stats()[0].Entries, ShouldEqual, 2)
			})
		})

		Convey("When a caller mutates the returned records", func() {
			res, _ := c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})
			res.Records[0] = model.Record{Entity: "changed"}
			again, _ := c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})

			Convey("Then the cached snapshot is unchanged", func() {
				So(again.Records[0].Entity, ShouldEqual, "PT q=a")
			})
		})

		Convey("When a fresh entry is refreshed", func() {
			_, _ = c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})
			clock.Advance(time.Second)
			res, err := c.Refresh(ctx, model.SourcePermits, model.Params{"q": "a"})

			So(err, ShouldBeNil)
			So(loader.calls.Load(), ShouldEqual, 2)
			So(res.FetchedAt, ShouldEqual, clock.Now())
		})

		Convey("When an unregistered source is requested", func() {
			_, err := c.Get(ctx, model.SourceGridded, nil)
			So(errors.Is(err, cache.ErrUnknownSource), ShouldBeTrue)
			So(c.Invalidate(model.SourceGridded), ShouldNotBeNil)
		})

		Convey("When a source is invalidated", func() {
			_, _ = c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})
			So(c.Invalidate(model.SourcePermits), ShouldBeNil)
			_, _ = c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})
			So(loader.calls.Load(), ShouldEqual, 2)
		})
	})
}

func TestCacheStaleFallback(t *testing.T) {
	ctx := context.Background()

	Convey("Given a source that allows stale fallback", t, func() {
		loader := &countingLoader{}
		clock := newClock()
		c := newCache(loader, clock, cache.SourceConfig{TTL: time.Minute, Capacity: 4, StaleOnError: true})

		first, err := c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})
		So(err, ShouldBeNil)

		Convey("When the entry expires and the refresh fails", func() {
			clock.Advance(5 * time.Minute)
			loader.fail.Store(true)
			res, err := c.Get(ctx, model.SourcePermits, model.Params{"q": "a"})

			Convey("Then the old snapshot is returned marked stale", func() {
				So(err, ShouldBeNil)
				So(res.Stale, ShouldBeTrue)
				So(res.Records, ShouldResemble, first.Records)
				So(res.FetchedAt, ShouldEqual, first.FetchedAt)
			})
		})

		Convey("When a key with no prior entry fails", func() {
			loader.fail.Store(true)
			_, err := c.Get(ctx, model.SourcePermits, model.Params{"q": "new"})
			So(errors.Is(err, model.ErrSourceUnavailable), ShouldBeTrue)
		})
	})
}

func TestCacheCollapsing(t *testing.T) {
	Convey("Given a slow loader", t, func() {
		var calls atomic.Int64
		release := make(chan struct{})
		loader := cache.LoaderFunc(func(ctx context.Context, p model.Params) ([]model.Record, error) {
			calls.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return []model.Record{{Entity: "shared"}}, nil
		})
		c := newCache(loader, newClock(), cache.SourceConfig{TTL: time.Hour, Capacity: 8})

		Convey("When many callers miss the same key at once", func() {
			const n = 32
			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := c.Get(context.Background(), model.SourcePermits, model.Params{"q": "x"})
					if err == nil && len(res.Records) != 1 {
						err = errors.New("missing records")
					}
					errs <- err
				}()
			}
			time.Sleep(20 * time.Millisecond)
			close(release)
			wg.Wait()
			close(errs)

			Convey("Then the loader ran once and every caller got the result", func() {
				So(calls.Load(), ShouldEqual, 1)
				for err := range errs {
					So(err, ShouldBeNil)
				}
			})
		})

		Convey("When the waiting caller gives up", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				_, err := c.Get(ctx, model.SourcePermits, model.Params{"q": "y"})
				done <- err
			}()
			time.Sleep(10 * time.Millisecond)
			cancel()
			err := <-done

			Convey("Then the caller returns while the fetch completes for later callers", func() {
				So(errors.Is(err, model.ErrSourceUnavailable), ShouldBeTrue)
				close(release)

				var res cache.Result
				for i := 0; i < 100; i++ {
					res, err = c.Get(context.Background(), model.SourcePermits, model.Params{"q": "y"})
					if err == nil && res.Hit {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(err, ShouldBeNil)
				So(res.Hit, ShouldBeTrue)
				So(res.Records[0].Entity, ShouldEqual, "shared")
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})
}

func TestCacheConstruction(t *testing.T) {
	Convey("Given a nil loader", t, func() {
		_, err := cache.New(cache.WithSource(model.SourcePermits, cache.SourceConfig{}, nil))
		So(errors.Is(err, cache.ErrNilLoader), ShouldBeTrue)
	})

	Convey("Given zero-valued bounds", t, func() {
		c, err := cache.New(
			cache.WithSource(model.SourceGridded, cache.SourceConfig{}, &countingLoader{}),
			cache.WithSource(model.SourcePermits, cache.SourceConfig{}, &countingLoader{}),
		)
		So(err, ShouldBeNil)

		Convey("Then defaults apply and stats follow source order", func() {
			st := c.Stats()
			So(len(st), ShouldEqual, 2)
			So(st[0].Source, ShouldEqual, model.SourcePermits)
			So(st[0].TTL, ShouldEqual, time.Hour)
			So(st[0].Capacity, ShouldBeGreaterThan, 0)
			So(c.Sources(), ShouldResemble, []model.SourceID{model.SourcePermits, model.SourceGridded})
		})
	})
}
