package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"slograph/internal/telemetryport"
	"slograph/pkg/domain"
)

func buildConstraintTestGraph() *domain.Graph {
	g := domain.NewGraph()
	g.UpsertService(&domain.Service{ServiceID: "checkout", Type: domain.ServiceTypeInternal})
	g.UpsertService(&domain.Service{ServiceID: "payments", Type: domain.ServiceTypeInternal})
	sla := 0.999
	g.UpsertService(&domain.Service{ServiceID: "stripe", Type: domain.ServiceTypeExternal, PublishedSLA: &sla})

	g.UpsertEdge(&domain.DependencyEdge{
		From: "checkout", To: "payments", DiscoverySource: domain.DiscoverySourceManual,
		CommunicationMode: domain.CommunicationModeSync, Criticality: domain.EdgeCriticalityHard,
	})
	g.UpsertEdge(&domain.DependencyEdge{
		From: "payments", To: "stripe", DiscoverySource: domain.DiscoverySourceManual,
		CommunicationMode: domain.CommunicationModeSync, Criticality: domain.EdgeCriticalityHard,
	})
	return g
}

func TestHandleConstraintAnalysis_HappyPath(t *testing.T) {
	h, _ := newTestHandler(buildConstraintTestGraph())
	telemetry := telemetryport.NewFake()
	telemetry.Set("checkout", 0.9999, 30)
	telemetry.Set("payments", 0.9995, 30)
	telemetry.Set("stripe", 0.998, 30)
	h.Constraint.Telemetry = telemetry

	router := NewRouter(h)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/services/checkout/constraint-analysis", nil)
	router.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp constraintAnalysisResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ServiceID != "checkout" {
		t.Errorf("expected service_id checkout, got %q", resp.ServiceID)
	}
	if resp.TotalHardDependencies != 2 {
		t.Errorf("expected 2 hard dependencies, got %d", resp.TotalHardDependencies)
	}
	if resp.TotalExternalDependencies != 1 {
		t.Errorf("expected 1 external dependency (stripe), got %d", resp.TotalExternalDependencies)
	}
}

func TestHandleConstraintAnalysis_RejectsOutOfRangeTarget(t *testing.T) {
	h, _ := newTestHandler(buildConstraintTestGraph())
	router := NewRouter(h)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/services/checkout/constraint-analysis?desired_target_pct=50", nil)
	router.ServeHTTP(rr, req)

	if rr.Code != 400 {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleErrorBudget_ForcesDepthOne(t *testing.T) {
	h, _ := newTestHandler(buildConstraintTestGraph())
	telemetry := telemetryport.NewFake()
	telemetry.Set("checkout", 0.9999, 30)
	telemetry.Set("payments", 0.9995, 30)
	h.Constraint.Telemetry = telemetry

	router := NewRouter(h)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/services/checkout/error-budget?max_depth=5", nil)
	router.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp constraintAnalysisResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MaxDepth != 1 {
		t.Errorf("expected error-budget view to force max_depth=1 regardless of query, got %d", resp.MaxDepth)
	}
}
