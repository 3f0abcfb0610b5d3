// Package api serves the query and scoring operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/cevs/internal/app"
	"github.com/okian/cevs/internal/domain/filter"
	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/internal/domain/types"
	"github.com/okian/cevs/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	QueryPermits(ctx context.Context, q service.Query) (service.QueryResult, error)
	QueryEmissions(ctx context.Context, q service.Query) (service.QueryResult, error)
	QueryCertifications(ctx context.Context, q service.Query) (service.QueryResult, error)
	QueryRegionalIndicators(ctx context.Context, q service.Query) (service.QueryResult, error)
	QueryGriddedEmissions(ctx context.Context, country, pollutant string, window int) (service.TrendResult, error)
	ComputeCompositeScore(ctx context.Context, entity, countryHint string) (model.CompositeScore, error)
	Stats(ctx context.Context, source string, f filter.Filters) (service.StatsResult, error)
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps   Dependencies
	log    logger.Logger
	health *HealthHandler
	stats  *StatsHandler
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		deps:   deps,
		log:    log,
		health: NewHealthHandler(deps),
		stats:  NewStatsHandler(deps, log),
	}
}

// Router returns a chi router with every route and middleware mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID, Recoverer(s.log), Metrics)
	s.Register(r)
	return r
}

// Register attaches all routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.health.HandleHealth)
	r.Method(http.MethodGet, "/metrics", MetricsHandler())

	r.Get("/permits", s.handleQuery("permits", s.deps.QueryPermits, "company", "status", "service_type"))
	r.Get("/permits/search", s.handlePermitSearch)
	r.Get("/global/emissions", s.handleQuery("emissions", s.deps.QueryEmissions, "facility", "state", "county"))
	r.Get("/global/iso", s.handleQuery("certifications", s.deps.QueryCertifications, "company", "certificate"))
	r.Get("/global/eea", s.handleQuery("regional", s.deps.QueryRegionalIndicators, "", "indicator"))
	r.Get("/global/edgar", s.handleGridded)
	r.Get("/global/cevs/{company}", s.handleScore)

	r.Get("/stats", s.stats.HandleStats)
	r.Get("/stats/{source}", s.stats.HandleSourceStats)
}

type queryFunc func(ctx context.Context, q service.Query) (service.QueryResult, error)

// handleQuery serves a single-source list endpoint. entityParam names the
// query parameter holding the entity filter; attrs are exact-match
// attribute filters.
func (s *Server) handleQuery(op string, query queryFunc, entityParam string, attrs ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseQuery(r, entityParam, attrs...)
		if err != nil {
			s.writeError(w, r, Wrap(op, err))
			return
		}
		res, err := query(r.Context(), q)
		if err != nil {
			s.writeError(w, r, Wrap(op, err))
			return
		}
		s.writePage(w, r, res)
	}
}

func (s *Server) handlePermitSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		s.writeError(w, r, NewKind("permits search", ErrBadRequest, "q must not be empty"))
		return
	}
	q, err := parseQuery(r, "", "status", "service_type")
	if err != nil {
		s.writeError(w, r, Wrap("permits search", err))
		return
	}
	q.Entity = term
	res, err := s.deps.QueryPermits(r.Context(), q)
	if err != nil {
		s.writeError(w, r, Wrap("permits search", err))
		return
	}
	s.writePage(w, r, res)
}

func (s *Server) handleGridded(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	window, err := intParam(v.Get("window"), "window")
	if err != nil {
		s.writeError(w, r, Wrap("gridded", err))
		return
	}
	res, err := s.deps.QueryGriddedEmissions(r.Context(), v.Get("country"), v.Get("pollutant"), window)
	if err != nil {
		s.writeError(w, r, Wrap("gridded", err))
		return
	}
	writeJSON(w, http.StatusOK, types.Success(res.Trend, types.Meta{
		Filters:   map[string]any{"country": res.Country, "pollutant": res.Pollutant, "window": res.Window},
		Stale:     res.Stale,
		FetchedAt: res.FetchedAt,
		RequestID: requestIDFrom(r.Context()),
	}))
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")
	score, err := s.deps.ComputeCompositeScore(r.Context(), company, r.URL.Query().Get("country"))
	if err != nil {
		s.writeError(w, r, Wrap("cevs", err))
		return
	}
	writeJSON(w, http.StatusOK, types.Success(score, types.Meta{
		Filters:   filtersMap(filter.Filters{Entity: score.Entity, Country: score.Country}),
		Stale:     len(score.SourcesUnavailable) > 0,
		FetchedAt: score.ComputedAt,
		RequestID: requestIDFrom(r.Context()),
	}))
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, res service.QueryResult) {
	rows := make([]map[string]any, len(res.Records))
	for i, rec := range res.Records {
		rows[i] = rec.Fields()
	}
	writeJSON(w, http.StatusOK, types.Paginated(rows, types.Pagination{
		Page:       res.Page.Page,
		Limit:      res.Limit,
		Total:      res.Total,
		TotalPages: res.TotalPages,
		HasNext:    res.HasNext,
		HasPrev:    res.HasPrev,
	}, types.Meta{
		Filters:   filtersMap(res.Filters),
		Stale:     res.Stale,
		FetchedAt: res.FetchedAt,
		RequestID: requestIDFrom(r.Context()),
	}))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", logger.String("path", r.URL.Path), logger.Error(err))
	} else {
		s.log.Debug(r.Context(), "request rejected", logger.String("path", r.URL.Path), logger.Error(err))
	}
	writeJSON(w, status, types.Failure(code, err.Error(), requestIDFrom(r.Context())))
}

// parseQuery reads the shared list parameters.
func parseQuery(r *http.Request, entityParam string, attrs ...string) (service.Query, error) {
	v := r.URL.Query()
	var (
		q   service.Query
		err error
	)
	if entityParam != "" {
		q.Entity = v.Get(entityParam)
	}
	q.Country = v.Get("country")
	q.Pollutant = v.Get("pollutant")
	ints := []struct {
		name string
		dst  *int
	}{
		{"year", &q.Year},
		{"year_from", &q.YearFrom},
		{"year_to", &q.YearTo},
		{"page", &q.Page},
		{"limit", &q.Limit},
	}
	for _, p := range ints {
		if *p.dst, err = intParam(v.Get(p.name), p.name); err != nil {
			return service.Query{}, err
		}
	}
	for _, a := range attrs {
		if val := strings.TrimSpace(v.Get(a)); val != "" {
			if q.Attributes == nil {
				q.Attributes = map[string]string{}
			}
			q.Attributes[a] = val
		}
	}
	return q, nil
}

func intParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.InvalidInput(name, "must be an integer")
	}
	return n, nil
}

func filtersMap(f filter.Filters) map[string]any {
	m := map[string]any{}
	if f.Entity != "" {
		m["entity"] = f.Entity
	}
	if f.Country != "" {
		m["country"] = f.Country
	}
	if f.Year != 0 {
		m["year"] = f.Year
	}
	if f.YearFrom != 0 {
		m["year_from"] = f.YearFrom
	}
	if f.YearTo != 0 {
		m["year_to"] = f.YearTo
	}
	if f.Pollutant != "" {
		m["pollutant"] = f.Pollutant
	}
	for k, v := range f.Attributes {
		m[k] = v
	}
	return m
}

// writeJSON encodes v before writing the header, so an unencodable value
// becomes a 500 envelope instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(types.Failure("internal", "response could not be encoded", w.Header().Get(RequestIDHeader)))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
