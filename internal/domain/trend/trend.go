// Package trend computes pollutant trends per country from cached records.
package trend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/cevs/internal/domain/country"
	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/internal/domain/schema"
)

// DefaultWindow is the number of trailing points used when none is given.
const DefaultWindow = 3

// Provider modes accepted by Select.
const (
	ModeGridded  = "gridded"
	ModeRegional = "regional"
	ModeAuto     = "auto"
)

// ErrUnknownMode rejects an unsupported provider mode.
var ErrUnknownMode = errors.New("trend: unknown provider mode")

// Provider computes a trend for a country and pollutant.
type Provider interface {
	Name() string
	Trend(ctx context.Context, countryKey, pollutant string, window int) (model.Trend, error)
}

// RecordSource returns the cached records of a source.
type RecordSource interface {
	Records(ctx context.Context, source model.SourceID, params model.Params) ([]model.Record, error)
}

// Compute builds a trend over the last window points of a yearly series.
// Values of the same year are summed. Fewer than two points in the window
// yield a zero trend with no years.
func Compute(recs []model.Record, window int) model.Trend {
	if window < 1 {
		window = DefaultWindow
	}
	byYear := map[int]float64{}
	for _, r := range recs {
		if r.Year == 0 {
			continue
		}
		byYear[r.Year] += r.Value
	}
	series := make([]model.Point, 0, len(byYear))
	for y, v := range byYear {
		series = append(series, model.Point{Year: y, Value: v})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Year < series[j].Year })

	if len(series) > window {
		series = series[len(series)-window:]
	}
	t := model.Trend{Series: series, Years: []int{}, Window: window}
	if len(series) < 2 {
		return t
	}
	for _, p := range series {
		t.Years = append(t.Years, p.Year)
	}
	t.First = series[0].Value
	t.Last = series[len(series)-1].Value
	t.Slope = t.Last - t.First
	t.Increase = t.Slope > 0
	return t
}

// Gridded reads the global gridded emissions source.
type Gridded struct {
	src RecordSource
}

// NewGridded creates a gridded provider over src.
func NewGridded(src RecordSource) *Gridded { return &Gridded{src: src} }

func (g *Gridded) Name() string { return ModeGridded }

func (g *Gridded) Trend(ctx context.Context, countryKey, pollutant string, window int) (model.Trend, error) {
	key := country.Normalize(countryKey)
	recs, err := g.src.Records(ctx, model.SourceGridded, model.Params{})
	if err != nil {
		return model.Trend{}, err
	}
	var matched []model.Record
	for _, r := range recs {
		if r.Country == key && schema.SamePollutant(r.Pollutant, pollutant) {
			matched = append(matched, r)
		}
	}
	t := Compute(matched, window)
	t.Country, t.Pollutant, t.Source = key, schema.NormalizePollutant(pollutant), g.Name()
	return t, nil
}

// Regional reads the regional indicator source. A configured indicator
// replaces the requested pollutant, since regional sets name their series
// differently.
type Regional struct {
	src       RecordSource
	indicator string
}

// NewRegional creates a regional provider; indicator may be empty.
func NewRegional(src RecordSource, indicator string) *Regional {
	return &Regional{src: src, indicator: strings.TrimSpace(indicator)}
}

func (r *Regional) Name() string { return ModeRegional }

func (r *Regional) Trend(ctx context.Context, countryKey, pollutant string, window int) (model.Trend, error) {
	key := country.Normalize(countryKey)
	indicator := pollutant
	if r.indicator != "" {
		indicator = r.indicator
	}
	recs, err := r.src.Records(ctx, model.SourceRegional, model.Params{})
	if err != nil {
		return model.Trend{}, err
	}
	var matched []model.Record
	for _, rec := range recs {
		if rec.Country == key && strings.EqualFold(rec.Pollutant, indicator) {
			matched = append(matched, rec)
		}
	}
	t := Compute(matched, window)
	t.Country, t.Pollutant, t.Source = key, indicator, r.Name()
	return t, nil
}

// Chain returns the first usable trend among its providers.
type Chain struct {
	providers []Provider
}

// NewChain tries providers in order.
func NewChain(providers ...Provider) *Chain { return &Chain{providers: providers} }

func (c *Chain) Name() string { return ModeAuto }

// Trend returns the first trend with at least two points. When none is
// usable it returns the first successful result, or the last error.
func (c *Chain) Trend(ctx context.Context, countryKey, pollutant string, window int) (model.Trend, error) {
	var (
		fallback *model.Trend
		lastErr  error
	)
	for _, p := range c.providers {
		t, err := p.Trend(ctx, countryKey, pollutant, window)
		if err != nil {
			lastErr = err
			continue
		}
		if t.Usable() {
			return t, nil
		}
		if fallback == nil {
			fallback = &t
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no providers", ErrUnknownMode)
	}
	return model.Trend{}, lastErr
}

// SourceOf reports which record source produced t.
func SourceOf(t model.Trend) model.SourceID {
	if t.Source == ModeRegional {
		return model.SourceRegional
	}
	return model.SourceGridded
}

// Select picks the provider for mode once, at configuration time.
// "edgar" and "eea" are accepted as aliases of gridded and regional.
func Select(mode string, gridded, regional Provider) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeGridded, "edgar":
		return gridded, nil
	case ModeRegional, "eea":
		return regional, nil
	case ModeAuto, "":
		return NewChain(gridded, regional), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
