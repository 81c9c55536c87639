package middleware

import (
	"net/http"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/observability"
	"github.com/go-chi/chi/v5"
)

// MetricsMiddleware records latency per route template so escrow ids never
// become label values.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := observability.TrackInFlight()
		defer done()

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		observability.ObserveHTTP(r.Method, routePattern(r), rw.status, time.Since(start))
	})
}

// routePattern is only complete after the router has matched, so callers read
// it once next has returned.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
