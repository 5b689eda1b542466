package http

import (
	"net/http"
	"strings"
	"time"

	"slograph/internal/constraint"
	"slograph/internal/cycles"
	"slograph/internal/graphstore"
	"slograph/internal/impact"
	"slograph/internal/lifecycle"
	"slograph/pkg/middleware"
	"slograph/pkg/telemetry"
)

// Handler composes the analysis pipeline's entry points (C1-C11) behind
// one REST surface.
type Handler struct {
	Store      graphstore.Store
	Alerts     cycles.Store
	Constraint *constraint.Orchestrator
	Impact     *impact.Orchestrator
	Lifecycle  *lifecycle.Orchestrator
}

// NewRouter wires every resource's handlers onto a method+path-pattern
// http.ServeMux. No third-party router is used: nothing in the retrieved
// dependency set covers HTTP routing, and the standard library's pattern
// matching (Go 1.22+) is sufficient for this surface's fixed, shallow path
// set.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	routes := []struct {
		pattern string
		fn      http.HandlerFunc
	}{
		{"POST /v1/ingest", h.handleIngest},
		{"GET /v1/services/{service_id}/subgraph", h.handleSubgraph},
		{"GET /v1/services/{service_id}/constraint-analysis", h.handleConstraintAnalysis},
		{"GET /v1/services/{service_id}/error-budget", h.handleErrorBudget},
		{"POST /v1/services/{service_id}/impact-analysis", h.handleImpactAnalysis},
		{"POST /v1/services/{service_id}/slo", h.handleManageSLO},
		{"GET /v1/services/{service_id}/slo", h.handleGetActiveSLO},
		{"GET /v1/services/{service_id}/slo/audit", h.handleGetAuditHistory},
	}
	for _, rt := range routes {
		route := routeLabel(rt.pattern)
		wrapped := telemetry.HTTPServerMiddleware(route)(rt.fn)
		mux.Handle(rt.pattern, middleware.Metrics(route)(wrapped))
	}

	mux.HandleFunc("GET /healthz", handleHealthz)

	return mux
}

// routeLabel strips the method prefix from a mux pattern for use as a
// Prometheus label, e.g. "GET /v1/services/{service_id}/subgraph" ->
// "/v1/services/{service_id}/subgraph".
func routeLabel(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// timeNow is a seam for deterministic tests; production always uses the
// wall clock.
var timeNow = time.Now
