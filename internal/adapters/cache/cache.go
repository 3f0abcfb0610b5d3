// Package cache keeps bounded, time-limited snapshots of each source.
//
// Every source has its own LRU of parameter combinations and its own TTL.
// Concurrent misses on one key share a single upstream fetch.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/pkg/logger"
	"github.com/okian/cevs/pkg/metrics"
	"github.com/okian/cevs/pkg/tracing"
)

const (
	defaultTTL          = time.Hour
	defaultCapacity     = 128
	defaultFetchTimeout = 30 * time.Second
)

// SourceConfig bounds one source's cache.
type SourceConfig struct {
	TTL          time.Duration
	Capacity     int
	StaleOnError bool
	FetchTimeout time.Duration
}

func (c SourceConfig) withDefaults() SourceConfig {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.Capacity <= 0 {
		c.Capacity = defaultCapacity
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	return c
}

// Loader fetches and parses one parameter combination.
type Loader interface {
	Load(ctx context.Context, params model.Params) ([]model.Record, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, params model.Params) ([]model.Record, error)

func (f LoaderFunc) Load(ctx context.Context, params model.Params) ([]model.Record, error) {
	return f(ctx, params)
}

// Result is a read-only view of one cache entry.
type Result struct {
	Records   []model.Record
	FetchedAt time.Time
	Key       string
	Hit       bool // served without waiting on a fetch
	Stale     bool // older than TTL, served because the refresh failed
}

// Stats describes one source's cache.
type Stats struct {
	Source       model.SourceID `json:"source"`
	Entries      int            `json:"entries"`
	Capacity     int            `json:"capacity"`
	TTL          time.Duration  `json:"ttl"`
	StaleOnError bool           `json:"stale_on_error"`
}

// entry is never mutated after it is stored.
type entry struct {
	records   []model.Record
	fetchedAt time.Time
	key       string
}

type slot struct {
	source model.SourceID
	cfg    SourceConfig
	loader Loader
	items  *lru.Cache[string, *entry]
	group  singleflight.Group
}

type pendingSource struct {
	source model.SourceID
	cfg    SourceConfig
	loader Loader
}

// Cache is safe for concurrent use. The set of sources is fixed by New.
type Cache struct {
	slots   map[model.SourceID]*slot
	now     func() time.Time
	log     logger.Logger
	pending []pendingSource
}

// New builds a cache for the sources registered with WithSource.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		slots: make(map[model.SourceID]*slot),
		now:   time.Now,
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, p := range c.pending {
		if p.loader == nil {
			return nil, fmt.Errorf("%w: %s", ErrNilLoader, p.source)
		}
		s := &slot{source: p.source, cfg: p.cfg.withDefaults(), loader: p.loader}
		src := string(p.source)
		items, err := lru.NewWithEvict[string, *entry](s.cfg.Capacity, func(string, *entry) {
			metrics.RecordCacheEviction(src)
		})
		if err != nil {
			return nil, fmt.Errorf("cache %s: %w", p.source, err)
		}
		s.items = items
		c.slots[p.source] = s
	}
	c.pending = nil
	return c, nil
}

// Get returns the snapshot for (source, params), fetching it when absent or
// expired. Failures are never cached. When the source allows it, an expired
// entry is returned with Stale set instead of the error.
func (c *Cache) Get(ctx context.Context, source model.SourceID, params model.Params) (Result, error) {
	s, err := c.slot(source)
	if err != nil {
		return Result{}, err
	}
	key := params.Key()
	if e, ok := s.items.Get(key); ok && c.fresh(s, e) {
		metrics.RecordCacheRequest(string(source), "hit")
		return view(e, true, false), nil
	}
	metrics.RecordCacheRequest(string(source), "miss")
	return c.load(ctx, s, key, params, false)
}

// Refresh fetches (source, params) even when a fresh entry exists.
func (c *Cache) Refresh(ctx context.Context, source model.SourceID, params model.Params) (Result, error) {
	s, err := c.slot(source)
	if err != nil {
		return Result{}, err
	}
	return c.load(ctx, s, params.Key(), params, true)
}

// Invalidate drops every entry of source.
func (c *Cache) Invalidate(source model.SourceID) error {
	s, err := c.slot(source)
	if err != nil {
		return err
	}
	s.items.Purge()
	metrics.UpdateCacheEntries(string(source), 0)
	return nil
}

// Stats reports per-source occupancy in source order.
func (c *Cache) Stats() []Stats {
	out := make([]Stats, 0, len(c.slots))
	for id, s := range c.slots {
		out = append(out, Stats{
			Source:       id,
			Entries:      s.items.Len(),
			Capacity:     s.cfg.Capacity,
			TTL:          s.cfg.TTL,
			StaleOnError: s.cfg.StaleOnError,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source.Order() < out[j].Source.Order() })
	return out
}

// Sources lists the registered sources in source order.
func (c *Cache) Sources() []model.SourceID {
	out := make([]model.SourceID, 0, len(c.slots))
	for _, st := range c.Stats() {
		out = append(out, st.Source)
	}
	return out
}

func (c *Cache) slot(source model.SourceID) (*slot, error) {
	s, ok := c.slots[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return s, nil
}

func (c *Cache) fresh(s *slot, e *entry) bool {
	return c.now().Sub(e.fetchedAt) < s.cfg.TTL
}

type outcome struct {
	e       *entry
	fetched bool
}

func (c *Cache) load(ctx context.Context, s *slot, key string, params model.Params, force bool) (Result, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		if !force {
			if e, ok := s.items.Peek(key); ok && c.fresh(s, e) {
				return outcome{e: e}, nil
			}
		}
		e, err := c.fetch(ctx, s, key, params)
		if err != nil {
			return nil, err
		}
		return outcome{e: e, fetched: true}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		// The fetch carries on for other waiters.
		return Result{}, model.NewSourceError(s.source, model.ErrorTimeout, ctx.Err())
	}

	if res.Err != nil {
		if s.cfg.StaleOnError {
			if e, ok := s.items.Peek(key); ok {
				metrics.RecordCacheRequest(string(s.source), "stale")
				c.log.Warn(ctx, "serving stale snapshot",
					logger.String("source_id", string(s.source)),
					logger.String("key", key),
					logger.Duration("age", c.now().Sub(e.fetchedAt)),
					logger.Error(res.Err))
				return view(e, false, true), nil
			}
		}
		return Result{}, res.Err
	}
	o := res.Val.(outcome)
	return view(o.e, !o.fetched && !res.Shared, false), nil
}

// fetch runs detached from the caller's cancellation, bounded by FetchTimeout,
// because other callers may be waiting on it.
func (c *Cache) fetch(ctx context.Context, s *slot, key string, params model.Params) (*entry, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
	defer cancel()
	fctx, span := tracing.StartSpan(fctx, "cache", "fetch", tracing.Source(string(s.source)), attribute.String("cevs.key", key))

	start := time.Now()
	recs, err := s.loader.Load(fctx, params.Clone())
	metrics.RecordFetchDuration(string(s.source), time.Since(start).Seconds())
	if err != nil {
		err = classify(fctx, s.source, err)
		metrics.RecordFetchError(string(s.source), string(model.CategoryOf(err)))
		c.log.Error(fctx, "source fetch failed",
			logger.String("source_id", string(s.source)),
			logger.String("key", key),
			logger.Error(err))
		tracing.End(span, err)
		return nil, err
	}
	if recs == nil {
		recs = []model.Record{}
	}
	e := &entry{records: recs, fetchedAt: c.now(), key: key}
	s.items.Add(key, e)
	metrics.UpdateCacheEntries(string(s.source), s.items.Len())
	span.SetAttributes(attribute.Int("cevs.records", len(recs)))
	tracing.End(span, nil)
	return e, nil
}

func classify(ctx context.Context, source model.SourceID, err error) error {
	var se *model.SourceError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return model.NewSourceError(source, model.ErrorTimeout, err)
	}
	return model.NewSourceError(source, model.ErrorOutage, err)
}

func view(e *entry, hit, stale bool) Result {
	return Result{
		Records:   append(make([]model.Record, 0, len(e.records)), e.records...),
		FetchedAt: e.fetchedAt,
		Key:       e.key,
		Hit:       hit,
		Stale:     stale,
	}
}
