package middleware

import (
	"net/http"
	"strconv"
	"time"

	"tessera/internal/platform/metrics"
)

// LatencyMiddleware records request latency into the HTTP metrics.
func LatencyMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			m.ObserveRequest(r.Method, strconv.Itoa(ww.status), start)
		})
	}
}
