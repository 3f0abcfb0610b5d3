// Package service wires sources, cache, filters and scoring into the
// operations served by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/cevs/internal/adapters/cache"
	"github.com/okian/cevs/internal/adapters/mq/queue"
	"github.com/okian/cevs/internal/adapters/mq/worker"
	"github.com/okian/cevs/internal/adapters/source"
	"github.com/okian/cevs/internal/config"
	"github.com/okian/cevs/internal/domain/country"
	"github.com/okian/cevs/internal/domain/dedupe"
	"github.com/okian/cevs/internal/domain/filter"
	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/internal/domain/schema"
	"github.com/okian/cevs/internal/domain/scoring"
	"github.com/okian/cevs/internal/domain/trend"
	"github.com/okian/cevs/pkg/logger"
)

// Trend window bounds for gridded queries.
const (
	minWindow = 1
	maxWindow = 50
)

// ErrUnknownSource is returned for a source name outside the fixed set.
var ErrUnknownSource = errors.New("unknown source")

// Query is a single-source request.
type Query struct {
	filter.Filters
	Page  int
	Limit int
}

// QueryResult is one page of a single source. Stale marks data served from
// an expired snapshot because the upstream failed.
type QueryResult struct {
	filter.Page
	Filters   filter.Filters
	Stale     bool
	FetchedAt time.Time
}

// TrendResult is a gridded emissions trend with its snapshot metadata.
type TrendResult struct {
	model.Trend
	Stale     bool
	FetchedAt time.Time
}

// StatsResult summarizes one source.
type StatsResult struct {
	filter.Summary
	Source    model.SourceID
	Stale     bool
	FetchedAt time.Time
}

// Service implements the API dependencies. Queries are safe for concurrent
// use once New returns; Start and Stop control the cache warmer.
type Service struct {
	mu sync.Mutex

	cfg      *config.Config
	logger   logger.Logger
	now      func() time.Time
	fetchers map[model.SourceID]source.Fetcher

	countries *country.Normalizer
	cache     *cache.Cache
	engine    *filter.Engine
	gridded   *trend.Gridded
	scorer    *scoring.Aggregator

	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	started bool
	cancel  context.CancelFunc
	ticker  sync.WaitGroup
}

// New builds a Service from configuration. Sources without a URL serve the
// built-in sample rows.
func New(ctx context.Context, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:      config.New(ctx),
		logger:   logger.Nop(),
		now:      time.Now,
		fetchers: map[model.SourceID]source.Fetcher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	cfg := s.cfg

	s.countries = country.NewNormalizer(
		country.WithLogger(s.logger.Named("country")),
		country.WithSeenSet(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.SeenSize))),
	)

	cacheOpts := []cache.Option{cache.WithClock(s.now), cache.WithLogger(s.logger.Named("cache"))}
	for _, id := range model.Sources {
		sc := sourceConfig(cfg, id)
		f, err := s.fetcher(id, sc)
		if err != nil {
			return nil, err
		}
		cacheOpts = append(cacheOpts, cache.WithSource(id, cache.SourceConfig{
			TTL:          sc.TTL,
			Capacity:     sc.Capacity,
			StaleOnError: sc.StaleOnError,
			FetchTimeout: sc.FetchTimeout,
		}, source.NewParsed(f, s.countries)))
	}
	c, err := cache.New(cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}
	s.cache = c

	s.engine = filter.New(
		filter.WithMaxLimit(cfg.Page.MaxLimit),
		filter.WithDefaultLimit(cfg.Page.DefaultLimit),
	)

	s.gridded = trend.NewGridded(s)
	tp, err := trend.Select(cfg.Trend.Source, s.gridded, trend.NewRegional(s, cfg.Trend.RegionalIndicator))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	s.scorer = scoring.NewAggregator(s, tp,
		scoring.WithWeights(weights(cfg.Weights)),
		scoring.WithResolver(s.countries),
		scoring.WithLogger(s.logger.Named("scoring")),
		scoring.WithClock(s.now),
		scoring.WithTrend(cfg.Trend.Pollutant, cfg.Trend.Window),
	)
	return s, nil
}

func (s *Service) fetcher(id model.SourceID, sc config.Source) (source.Fetcher, error) {
	if f, ok := s.fetchers[id]; ok {
		return f, nil
	}
	if sc.URL == "" {
		return source.NewSampleSource(id), nil
	}
	opts := []source.HTTPOption{source.WithFormat(sc.Format)}
	for k, v := range sc.Headers {
		opts = append(opts, source.WithHeader(k, v))
	}
	f, err := source.NewHTTPSource(source.NewBaseConnector(id, sc.Rate, sc.Burst), sc.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %w", config.ErrInvalidConfig, id, err)
	}
	return f, nil
}

func sourceConfig(cfg *config.Config, id model.SourceID) config.Source {
	switch id {
	case model.SourcePermits:
		return cfg.Sources.Permits
	case model.SourceEmissions:
		return cfg.Sources.Emissions
	case model.SourceCertifications:
		return cfg.Sources.Certifications
	case model.SourceRegional:
		return cfg.Sources.Regional
	default:
		return cfg.Sources.Gridded
	}
}

func weights(w config.Weights) scoring.Weights {
	return scoring.Weights{
		Base:               w.Base,
		CertificationBonus: w.CertificationBonus,
		EmissionsReference: w.EmissionsReference,
		EmissionsWeight:    w.EmissionsWeight,
		EmissionsCap:       w.EmissionsCap,
		PollutionWeight:    w.PollutionWeight,
		PollutionCap:       w.PollutionCap,
		RenewablesTarget:   w.RenewablesTarget,
		RenewablesWeight:   w.RenewablesWeight,
		RenewablesCap:      w.RenewablesCap,
		PolicyBonus:        w.PolicyBonus,
		PolicyPenalty:      w.PolicyPenalty,
	}
}

// Records returns the full snapshot of a source. It backs scoring and trends.
func (s *Service) Records(ctx context.Context, id model.SourceID, params model.Params) ([]model.Record, error) {
	res, err := s.cache.Get(ctx, id, params)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// QueryPermits lists national permit registry records.
func (s *Service) QueryPermits(ctx context.Context, q Query) (QueryResult, error) {
	return s.query(ctx, model.SourcePermits, q)
}

// QueryEmissions lists facility emissions records.
func (s *Service) QueryEmissions(ctx context.Context, q Query) (QueryResult, error) {
	return s.query(ctx, model.SourceEmissions, q)
}

// QueryCertifications lists environmental certifications.
func (s *Service) QueryCertifications(ctx context.Context, q Query) (QueryResult, error) {
	return s.query(ctx, model.SourceCertifications, q)
}

// QueryRegionalIndicators lists regional indicator records.
func (s *Service) QueryRegionalIndicators(ctx context.Context, q Query) (QueryResult, error) {
	return s.query(ctx, model.SourceRegional, q)
}

// normalizeCountry reports raw through the diagnostic Normalizer. The filter
// engine then sees a canonical key and normalizes it again without reporting.
func (s *Service) normalizeCountry(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return s.countries.Normalize(raw)
}

// query fetches the snapshot keyed by the request's filters and narrows it.
// An unavailable source is an error here, unless a stale snapshot was served.
func (s *Service) query(ctx context.Context, id model.SourceID, q Query) (QueryResult, error) {
	f := q.Filters
	f.Source = ""
	if err := s.engine.Validate(f); err != nil {
		return QueryResult{}, err
	}
	f.Country = s.normalizeCountry(f.Country)

	res, err := s.cache.Get(ctx, id, upstreamParams(f))
	if err != nil {
		return QueryResult{}, err
	}
	page, err := s.engine.Apply(res.Records, f, q.Page, q.Limit)
	if err != nil {
		return QueryResult{}, err
	}
	return QueryResult{Page: page, Filters: f, Stale: res.Stale, FetchedAt: res.FetchedAt}, nil
}

// upstreamParams forwards the filters to the adapter. Sample sources ignore
// them; the engine applies them locally either way.
func upstreamParams(f filter.Filters) model.Params {
	p := model.Params{
		"entity":    strings.TrimSpace(f.Entity),
		"country":   f.Country,
		"pollutant": schema.NormalizePollutant(f.Pollutant),
	}
	if f.Year != 0 {
		p["year"] = strconv.Itoa(f.Year)
	}
	if f.YearFrom != 0 {
		p["year_from"] = strconv.Itoa(f.YearFrom)
	}
	if f.YearTo != 0 {
		p["year_to"] = strconv.Itoa(f.YearTo)
	}
	for k, v := range f.Attributes {
		p[strings.ToLower(k)] = v
	}
	return p
}

// QueryGriddedEmissions returns the recent trend of a pollutant for a
// country. Pollutant defaults to PM2.5 and window to 3 years, clamped to
// [1, 50].
func (s *Service) QueryGriddedEmissions(ctx context.Context, countryRaw, pollutant string, window int) (TrendResult, error) {
	if strings.TrimSpace(countryRaw) == "" {
		return TrendResult{}, model.InvalidInput("country", "must not be empty")
	}
	if strings.TrimSpace(pollutant) == "" {
		pollutant = schema.PM25
	}
	if window == 0 {
		window = trend.DefaultWindow
	}
	window = max(minWindow, min(maxWindow, window))

	snap := &snapshot{cache: s.cache}
	t, err := trend.NewGridded(snap).Trend(ctx, s.countries.Normalize(countryRaw), pollutant, window)
	if err != nil {
		return TrendResult{}, err
	}
	t.Stale = snap.res.Stale
	return TrendResult{Trend: t, Stale: snap.res.Stale, FetchedAt: snap.res.FetchedAt}, nil
}

// snapshot remembers the cache result a provider read.
type snapshot struct {
	cache *cache.Cache
	res   cache.Result
}

func (s *snapshot) Records(ctx context.Context, id model.SourceID, params model.Params) ([]model.Record, error) {
	res, err := s.cache.Get(ctx, id, params)
	if err != nil {
		return nil, err
	}
	s.res = res
	return res.Records, nil
}

// ComputeCompositeScore scores entity across every source. Unavailable
// sources are reported in the result, never as an error.
func (s *Service) ComputeCompositeScore(ctx context.Context, entity, countryHint string) (model.CompositeScore, error) {
	return s.scorer.ComputeScore(ctx, entity, countryHint)
}

// statsAttribute is the attribute each source is broken down by.
var statsAttribute = map[model.SourceID]string{
	model.SourcePermits:        "status",
	model.SourceEmissions:      "state",
	model.SourceCertifications: "certificate",
	model.SourceRegional:       "indicator",
	model.SourceGridded:        "sector",
}

// Stats summarizes the records of a source matching f.
func (s *Service) Stats(ctx context.Context, name string, f filter.Filters) (StatsResult, error) {
	id, ok := model.ParseSource(name)
	if !ok {
		return StatsResult{}, model.InvalidInput("source", fmt.Sprintf("%v %q", ErrUnknownSource, name))
	}
	f.Source = ""
	if err := s.engine.Validate(f); err != nil {
		return StatsResult{}, err
	}
	f.Country = s.normalizeCountry(f.Country)
	res, err := s.cache.Get(ctx, id, model.Params{})
	if err != nil {
		return StatsResult{}, err
	}
	matched := s.engine.Match(res.Records, f)
	return StatsResult{
		Summary:   filter.Summarize(matched, statsAttribute[id]),
		Source:    id,
		Stale:     res.Stale,
		FetchedAt: res.FetchedAt,
	}, nil
}

// Start launches the cache warmer when enabled. It enqueues one refresh per
// source and repeats on the configured interval.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true
	w := s.cfg.Warmup
	if !w.Enabled {
		s.logger.Info(ctx, "cache warmer disabled")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(w.QueueSize))
	s.pool = worker.NewPool(w.Workers, s.queue, worker.RefresherFunc(s.refresh), worker.WithLogger(s.logger))
	s.pool.Start(runCtx)
	s.warm(runCtx)

	if w.Interval > 0 {
		s.ticker.Add(1)
		go func() {
			defer s.ticker.Done()
			t := time.NewTicker(w.Interval)
			defer t.Stop()
			for {
				select {
				case <-runCtx.Done():
					return
				case <-t.C:
					s.warm(runCtx)
				}
			}
		}()
	}

	s.logger.Info(ctx, "cache warmer started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", w.QueueSize),
		logger.Duration("interval", w.Interval))
	return nil
}

func (s *Service) refresh(ctx context.Context, id model.SourceID, params model.Params) error {
	_, err := s.cache.Refresh(ctx, id, params)
	return err
}

func (s *Service) warm(ctx context.Context) {
	for _, id := range model.Sources {
		if !s.queue.Enqueue(ctx, model.RefreshJob{Source: id, Params: model.Params{}}) {
			s.logger.Debug(ctx, "refresh already pending or queue full", logger.String("source_id", string(id)))
		}
	}
}

// Stop stops the cache warmer and waits for in-flight refreshes.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	if s.cancel == nil {
		return
	}
	ctx := context.Background()
	s.cancel()
	s.ticker.Wait()
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel = nil
	s.logger.Info(ctx, "cache warmer stopped")
}

// GetStats returns runtime statistics for health and dashboards.
func (s *Service) GetStats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]any{
		"started":           s.started,
		"cache":             s.cache.Stats(),
		"unmappedCountries": s.countries.Unmapped(),
		"trendSource":       s.cfg.Trend.Source,
	}
	if s.queue != nil && s.cancel != nil {
		stats["queueLength"] = s.queue.Len(context.Background())
		stats["workerCount"] = s.pool.Size()
		stats["refreshesProcessed"] = s.pool.Processed()
	}
	return stats
}

// MaxLimit returns the page size ceiling.
func (s *Service) MaxLimit() int { return s.engine.MaxLimit() }
