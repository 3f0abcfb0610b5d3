// Package scoring combines evidence from every source into one bounded
// composite score (CEVS).
package scoring

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/okian/cevs/internal/domain/country"
	"github.com/okian/cevs/internal/domain/filter"
	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/internal/domain/schema"
	"github.com/okian/cevs/internal/domain/trend"
	"github.com/okian/cevs/pkg/logger"
	"github.com/okian/cevs/pkg/metrics"
	"github.com/okian/cevs/pkg/tracing"
)

const (
	minScore = 0
	maxScore = 100
)

// RecordSource returns the cached records of a source.
type RecordSource interface {
	Records(ctx context.Context, source model.SourceID, params model.Params) ([]model.Record, error)
}

// Aggregator computes composite scores. It holds no mutable state.
type Aggregator struct {
	src       RecordSource
	trend     trend.Provider
	weights   Weights
	countries country.Resolver
	log       logger.Logger
	now       func() time.Time
	pollutant string
	window    int
}

// NewAggregator creates an Aggregator reading records from src and pollution
// trends from tp. tp may be nil, which disables the pollution rule.
func NewAggregator(src RecordSource, tp trend.Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		src:       src,
		trend:     tp,
		weights:   DefaultWeights(),
		countries: country.Pure,
		log:       logger.Nop(),
		now:       time.Now,
		pollutant: schema.PM25,
		window:    trend.DefaultWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Weights returns the constants in use.
func (a *Aggregator) Weights() Weights { return a.weights }

// evidence is what each source contributed; fields are written by one
// goroutine each.
type evidence struct {
	certifications []model.Record
	emissions      []model.Record
	regional       []model.Record
	permits        []model.Record
	trend          model.Trend
	trendSource    model.SourceID

	mu          sync.Mutex
	unavailable map[model.SourceID]bool
}

func (e *evidence) fail(id model.SourceID) {
	e.mu.Lock()
	e.unavailable[id] = true
	e.mu.Unlock()
}

// ComputeScore scores entity, optionally in the context of countryHint.
// Sources that fail are listed in SourcesUnavailable and never fail the call.
func (a *Aggregator) ComputeScore(ctx context.Context, entity, countryHint string) (model.CompositeScore, error) {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return model.CompositeScore{}, model.InvalidInput("company", "must not be empty")
	}
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "scoring", "compute", attribute.String("cevs.entity", entity))

	key := ""
	if strings.TrimSpace(countryHint) != "" {
		key = a.countries.Normalize(countryHint)
	}

	ev := a.gather(ctx, entity, key)
	score := a.assemble(entity, countryHint, key, ev)

	span.SetAttributes(attribute.Float64("cevs.score", score.Score), attribute.Int("cevs.components", len(score.Components)))
	tracing.End(span, nil)
	metrics.RecordCompositeScore(score.ClampedTotal)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	return score, nil
}

func (a *Aggregator) gather(ctx context.Context, entity, key string) *evidence {
	ev := &evidence{unavailable: map[model.SourceID]bool{}}
	var g errgroup.Group

	query := func(id model.SourceID, keep func(model.Record) bool, dst *[]model.Record) {
		g.Go(func() error {
			recs, err := a.src.Records(ctx, id, model.Params{})
			if err != nil {
				a.skip(ctx, ev, id, err)
				return nil
			}
			var out []model.Record
			for _, r := range recs {
				if keep(r) {
					out = append(out, r)
				}
			}
			*dst = out
			return nil
		})
	}

	query(model.SourceCertifications, func(r model.Record) bool {
		return filter.MatchEntity(r.Entity, entity) && (key == "" || r.Country == key)
	}, &ev.certifications)
	query(model.SourceEmissions, func(r model.Record) bool {
		return filter.MatchEntity(r.Entity, entity)
	}, &ev.emissions)
	query(model.SourcePermits, func(r model.Record) bool {
		return filter.MatchEntity(r.Entity, entity)
	}, &ev.permits)

	if key != "" {
		query(model.SourceRegional, func(r model.Record) bool {
			return r.Country == key && strings.EqualFold(r.Pollutant, schema.RenewableIndicator)
		}, &ev.regional)

		if a.trend != nil {
			g.Go(func() error {
				t, err := a.trend.Trend(ctx, key, a.pollutant, a.window)
				if err != nil {
					a.skip(ctx, ev, failedSource(err, a.trend), err)
					return nil
				}
				ev.trend = t
				ev.trendSource = trend.SourceOf(t)
				return nil
			})
		}
	}

	_ = g.Wait() // every task absorbs its own error
	return ev
}

func (a *Aggregator) skip(ctx context.Context, ev *evidence, id model.SourceID, err error) {
	ev.fail(id)
	metrics.RecordSourceSkip(string(id))
	a.log.Warn(ctx, "source excluded from composite score",
		logger.String("source_id", string(id)),
		logger.String("category", string(model.CategoryOf(err))),
		logger.Error(err))
}

func failedSource(err error, p trend.Provider) model.SourceID {
	var se *model.SourceError
	if errors.As(err, &se) && se.Source.Valid() {
		return se.Source
	}
	if p.Name() == trend.ModeRegional {
		return model.SourceRegional
	}
	return model.SourceGridded
}

// assemble applies the rules in their fixed order, independent of which
// goroutine finished first.
func (a *Aggregator) assemble(entity, hint, key string, ev *evidence) model.CompositeScore {
	w := a.weights
	var comps []model.ScoreComponent
	add := func(c model.ScoreComponent, ok bool) {
		if ok && finite(c.Value) {
			c.Value = round(c.Value, 4)
			comps = append(comps, c)
		}
	}
	add(certificationRule(w, ev.certifications))
	add(emissionsRule(w, ev.emissions))
	add(pollutionRule(w, ev.trend, ev.trendSource))
	add(renewablesRule(w, ev.regional))
	add(policyRule(w, ev.permits))

	total := decimal.NewFromFloat(w.Base)
	for _, c := range comps {
		total = total.Add(decimal.NewFromFloat(c.Value))
	}
	raw := total.InexactFloat64()
	clamped := clamp(raw, minScore, maxScore)

	score := model.CompositeScore{
		Entity:             entity,
		CountryHint:        strings.TrimSpace(hint),
		Country:            key,
		Base:               w.Base,
		RawTotal:           raw,
		ClampedTotal:       clamped,
		Score:              round(clamped, 2),
		Components:         comps,
		SourcesUsed:        contributors(comps),
		SourcesUnavailable: ordered(ev.unavailable),
		ComputedAt:         a.now().UTC(),
	}
	if score.Components == nil {
		score.Components = []model.ScoreComponent{}
	}
	if ev.trend.Source != "" {
		score.PollutionSource = ev.trend.Source
	}
	return score
}

// contributors lists component sources in component order, first
// appearance only.
func contributors(comps []model.ScoreComponent) []model.SourceID {
	out := make([]model.SourceID, 0, len(comps))
	seen := map[model.SourceID]bool{}
	for _, c := range comps {
		if !seen[c.Source] {
			seen[c.Source] = true
			out = append(out, c.Source)
		}
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// round rounds half away from zero. Non-finite values round to 0.
func round(v float64, places int32) float64 {
	if !finite(v) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func ordered(set map[model.SourceID]bool) []model.SourceID {
	out := make([]model.SourceID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out
}
