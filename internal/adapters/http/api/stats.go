package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/cevs/internal/domain/types"
	"github.com/okian/cevs/pkg/logger"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps Dependencies, log logger.Logger) *StatsHandler {
	return &StatsHandler{deps: deps, log: log}
}

// HandleStats handles GET /stats with runtime statistics.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.Success(h.deps.GetStats(), types.Meta{RequestID: requestIDFrom(r.Context())}))
}

// HandleSourceStats handles GET /stats/{source}, summarizing the records
// that match the shared list filters.
func (h *StatsHandler) HandleSourceStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	q, err := parseQuery(r, "entity")
	if err != nil {
		h.fail(w, r, Wrap("stats", err))
		return
	}
	res, err := h.deps.Stats(r.Context(), name, q.Filters)
	if err != nil {
		h.fail(w, r, Wrap("stats", err))
		return
	}
	writeJSON(w, http.StatusOK, types.Success(res.Summary, types.Meta{
		Filters:   filtersMap(q.Filters),
		Stale:     res.Stale,
		FetchedAt: res.FetchedAt,
		RequestID: requestIDFrom(r.Context()),
	}))
}

func (h *StatsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "stats failed", logger.Error(err))
	}
	writeJSON(w, status, types.Failure(code, err.Error(), requestIDFrom(r.Context())))
}
