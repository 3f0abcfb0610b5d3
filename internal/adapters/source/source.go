// Package source provides the upstream adapters that return raw rows.
package source

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/okian/cevs/internal/domain/country"
	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/internal/domain/schema"
	"github.com/okian/cevs/pkg/metrics"
)

// Fetcher returns the raw rows of one upstream for the given parameters.
type Fetcher interface {
	ID() model.SourceID
	Fetch(ctx context.Context, params model.Params) ([]model.RawRow, error)
}

// BaseConnector carries the identity and request pacing shared by fetchers.
type BaseConnector struct {
	id      model.SourceID
	limiter *rate.Limiter
}

// NewBaseConnector creates a connector allowing perSecond requests with the
// given burst. A non-positive rate means unlimited.
func NewBaseConnector(id model.SourceID, perSecond float64, burst int) *BaseConnector {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &BaseConnector{id: id, limiter: rate.NewLimiter(limit, burst)}
}

func (c *BaseConnector) ID() model.SourceID {
	return c.id
}

// Wait blocks until the rate limiter allows a request.
func (c *BaseConnector) Wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.NewSourceError(c.id, model.ErrorTimeout, err)
	}
	return nil
}

// FuncFetcher adapts a function to Fetcher.
type FuncFetcher struct {
	Source model.SourceID
	Fn     func(ctx context.Context, params model.Params) ([]model.RawRow, error)
}

func (f FuncFetcher) ID() model.SourceID { return f.Source }

func (f FuncFetcher) Fetch(ctx context.Context, params model.Params) ([]model.RawRow, error) {
	return f.Fn(ctx, params)
}

// Parsed turns a Fetcher into a record loader for the cache.
type Parsed struct {
	fetcher   Fetcher
	countries country.Resolver
}

// NewParsed wraps f; country fields are canonicalized through countries.
func NewParsed(f Fetcher, countries country.Resolver) *Parsed {
	if countries == nil {
		countries = country.Pure
	}
	return &Parsed{fetcher: f, countries: countries}
}

// Load fetches rows and parses them into records.
func (p *Parsed) Load(ctx context.Context, params model.Params) ([]model.Record, error) {
	id := p.fetcher.ID()
	rows, err := p.fetcher.Fetch(ctx, params)
	if err != nil {
		var se *model.SourceError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, model.NewSourceError(id, model.ErrorOutage, err)
	}
	recs, skipped, err := schema.Parse(id, rows, p.countries)
	if err != nil {
		return nil, model.NewSourceError(id, model.ErrorInternal, err)
	}
	metrics.RecordRowsSkipped(string(id), skipped)
	return recs, nil
}
