package middleware

import (
	"fmt"
	"net/http"
	"time"

	"slograph/pkg/logger"
	"slograph/pkg/ratelimit"
)

// KeyExtractor derives a rate-limit bucket key from an incoming request,
// e.g. the caller's API key or remote address.
type KeyExtractor func(r *http.Request) string

// DefaultKeyExtractor keys on the X-API-Key header, falling back to RemoteAddr.
func DefaultKeyExtractor(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.RemoteAddr
}

// RateLimit enforces a request quota per key, fail-open on limiter errors.
func RateLimit(limiter ratelimit.Limiter, keyFn KeyExtractor) Middleware {
	if keyFn == nil {
		keyFn = DefaultKeyExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Log.Warn("rate limit check failed", "error", err, "key", key)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				info, infoErr := limiter.GetInfo(r.Context(), key)
				if infoErr != nil {
					info = &ratelimit.LimitInfo{Limit: 0, ResetAt: time.Now().Add(time.Minute)}
				}

				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", info.ResetAt.Format(time.RFC3339))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
