package http

import (
	"net/http"

	"github.com/go-chi/render"

	apierrors "pkoinsight/internal/errors"
)

// MetricsHandler exposes the Prometheus scrape endpoint.
type MetricsHandler struct {
	exporter http.Handler
}

// NewMetricsHandler wraps the exporter's handler. A nil handler means the
// metric exporter is disabled.
func NewMetricsHandler(exporter http.Handler) *MetricsHandler {
	return &MetricsHandler{exporter: exporter}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		render.Render(w, r, apierrors.NewProblemDetails(http.StatusServiceUnavailable,
			apierrors.TypeServiceDown, "Metrics Disabled",
			"the prometheus metric exporter is not enabled", r.URL.Path))
		return
	}
	h.exporter.ServeHTTP(w, r)
}
