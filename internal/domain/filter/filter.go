// Package filter narrows record sets and slices them into pages.
package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/cevs/internal/domain/country"
	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/internal/domain/schema"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// Filters are conjunctive constraints. Zero values impose no constraint.
type Filters struct {
	Entity     string            `json:"entity,omitempty"`
	Country    string            `json:"country,omitempty"`
	Year       int               `json:"year,omitempty" validate:"omitempty,min=1900,max=2100"`
	YearFrom   int               `json:"year_from,omitempty" validate:"omitempty,min=1900,max=2100"`
	YearTo     int               `json:"year_to,omitempty" validate:"omitempty,min=1900,max=2100,gtefield=YearFrom"`
	Pollutant  string            `json:"pollutant,omitempty"`
	Source     model.SourceID    `json:"source,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Empty reports whether no constraint is set.
func (f Filters) Empty() bool {
	return f.Entity == "" && f.Country == "" && f.Year == 0 && f.YearFrom == 0 &&
		f.YearTo == 0 && f.Pollutant == "" && f.Source == "" && len(f.Attributes) == 0
}

// Page is one slice of a filtered, stably ordered record set.
type Page struct {
	Records    []model.Record `json:"records"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
	HasNext    bool           `json:"has_next"`
	HasPrev    bool           `json:"has_prev"`
}

// Engine applies Filters and pagination uniformly across sources.
type Engine struct {
	defaultLimit int
	maxLimit     int
	countries    country.Resolver
	validate     *validator.Validate
}

// New creates an Engine. Country filters are normalized by the engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		countries:    country.Pure,
		validate:     validator.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.defaultLimit > e.maxLimit {
		e.defaultLimit = e.maxLimit
	}
	return e
}

// MaxLimit returns the page size ceiling.
func (e *Engine) MaxLimit() int { return e.maxLimit }

// Validate checks f without applying it.
func (e *Engine) Validate(f Filters) error {
	if err := e.validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return model.InvalidInput(strings.ToLower(fe.Field()), fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param()))
		}
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return nil
}

// Clamp normalizes page and limit to the engine's bounds.
func (e *Engine) Clamp(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = e.defaultLimit
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}
	return page, limit
}

// Apply filters records, orders them by (source order, arrival) and returns
// the requested page. Input records are not modified.
func (e *Engine) Apply(records []model.Record, f Filters, page, limit int) (Page, error) {
	if err := e.Validate(f); err != nil {
		return Page{}, err
	}
	page, limit = e.Clamp(page, limit)

	matched := e.Match(records, f)
	Sort(matched)

	total := len(matched)
	totalPages := (total + limit - 1) / limit
	out := []model.Record{}
	if page <= totalPages {
		start := (page - 1) * limit
		end := start + limit
		if end > total {
			end = total
		}
		out = matched[start:end]
	}
	return Page{
		Records:    out,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}, nil
}

// Match returns the records satisfying f in input order, without validation.
func (e *Engine) Match(records []model.Record, f Filters) []model.Record {
	p := e.compile(f)
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if p(r) {
			out = append(out, r)
		}
	}
	return out
}

// Sort orders records by source order, then arrival order.
func Sort(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		oi, oj := records[i].Source.Order(), records[j].Source.Order()
		if oi != oj {
			return oi < oj
		}
		return records[i].Seq < records[j].Seq
	})
}

type predicate func(model.Record) bool

func (e *Engine) compile(f Filters) predicate {
	var ps []predicate

	if name := CleanName(f.Entity); name != "" {
		ps = append(ps, func(r model.Record) bool { return strings.Contains(CleanName(r.Entity), name) })
	}
	if strings.TrimSpace(f.Country) != "" {
		key := e.countries.Normalize(f.Country)
		ps = append(ps, func(r model.Record) bool { return r.Country == key })
	}
	if f.Year != 0 {
		ps = append(ps, func(r model.Record) bool { return r.Year == f.Year })
	}
	if f.YearFrom != 0 {
		ps = append(ps, func(r model.Record) bool { return r.Year != 0 && r.Year >= f.YearFrom })
	}
	if f.YearTo != 0 {
		ps = append(ps, func(r model.Record) bool { return r.Year != 0 && r.Year <= f.YearTo })
	}
	if strings.TrimSpace(f.Pollutant) != "" {
		ps = append(ps, func(r model.Record) bool { return schema.SamePollutant(r.Pollutant, f.Pollutant) })
	}
	if f.Source != "" {
		ps = append(ps, func(r model.Record) bool { return r.Source == f.Source })
	}
	for k, v := range f.Attributes {
		if strings.TrimSpace(v) == "" {
			continue
		}
		want := strings.TrimSpace(v)
		ps = append(ps, func(r model.Record) bool { return strings.EqualFold(r.Attr(k), want) })
	}

	return func(r model.Record) bool {
		for _, p := range ps {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// CleanName lowercases a name and collapses whitespace so entity
// comparisons ignore case and spacing.
func CleanName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// MatchEntity reports whether a record name refers to the queried entity.
func MatchEntity(recordName, query string) bool {
	q := CleanName(query)
	return q != "" && strings.Contains(CleanName(recordName), q)
}
