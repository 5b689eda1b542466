package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"slograph/pkg/audit"
	"slograph/pkg/logger"
)

// AuditConfig configures the Audit middleware.
type AuditConfig struct {
	ServiceName    string
	ExcludeRoutes  map[string]bool
	Logger         audit.Logger
}

// Audit records every request as an audit.Entry via the configured logger.
func Audit(cfg *AuditConfig) Middleware {
	if cfg.Logger == nil {
		cfg.Logger = audit.Get()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.ExcludeRoutes != nil && cfg.ExcludeRoutes[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)

			builder := audit.NewEntry().
				Service(cfg.ServiceName).
				Method(r.Method + " " + r.URL.Path).
				Action(methodToAction(r.Method)).
				Client(r.RemoteAddr, r.UserAgent()).
				RequestID(r.Header.Get("X-Request-ID")).
				Duration(duration)

			if rec.status >= 400 {
				builder.Outcome(audit.OutcomeFailure).Error(httpStatusCode(rec.status), http.StatusText(rec.status))
			} else {
				builder.Outcome(audit.OutcomeSuccess)
			}

			entry := builder.Build()

			go func() {
				if err := cfg.Logger.Log(context.Background(), entry); err != nil {
					logger.Log.Warn("failed to write audit log", "error", err)
				}
			}()
		})
	}
}

func httpStatusCode(status int) string {
	return http.StatusText(status)
}

func methodToAction(method string) audit.Action {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut:
		return audit.ActionCreate
	case http.MethodPatch:
		return audit.ActionUpdate
	case http.MethodDelete:
		return audit.ActionDelete
	default:
		return audit.ActionRead
	}
}
