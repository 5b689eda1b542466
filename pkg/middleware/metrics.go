package middleware

import (
	"net/http"
	"strconv"
	"time"

	"slograph/pkg/metrics"
)

// Metrics records request counts, durations, and in-flight gauges for every route.
func Metrics(route string) Middleware {
	m := metrics.Get()
	tracker := metrics.NewRequestTracker(m.HTTPRequestsInFlight)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracker.Start(route)
			defer tracker.End(route)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			m.RecordHTTPRequest(route, r.Method, strconv.Itoa(rec.status), duration)
		})
	}
}
