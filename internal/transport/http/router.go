// Package httptransport assembles the HTTP surface from the per-feature
// handlers. Transport concerns live here; business logic stays in the
// services.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tessera/internal/platform/metrics"
	"tessera/internal/platform/middleware"
	"tessera/internal/ratelimit"
)

// Registrable is implemented by every feature handler.
type Registrable interface {
	Register(r chi.Router)
}

// NewRouter wires the shared middleware chain, the operational endpoints and
// every feature handler into one router.
func NewRouter(logger *slog.Logger, httpMetrics *metrics.Metrics, limiter *ratelimit.Middleware, handlers ...Registrable) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	if httpMetrics != nil {
		r.Use(middleware.LatencyMiddleware(httpMetrics))
	}
	if limiter != nil {
		r.Use(limiter.Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
