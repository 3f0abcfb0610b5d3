package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/cevs/internal/domain/types"
	"github.com/okian/cevs/pkg/metrics"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	stats StatsProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{stats: stats}
}

// HandleHealth handles GET /healthz. The process is healthy while it can
// answer; per-source cache state is included for operators.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.stats != nil {
		stats := h.stats.GetStats()
		body["cache"] = stats["cache"]
		body["started"] = stats["started"]
	}
	writeJSON(w, http.StatusOK, types.Success(body, types.Meta{RequestID: requestIDFrom(r.Context())}))
}

// MetricsHandler serves the custom metrics registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
