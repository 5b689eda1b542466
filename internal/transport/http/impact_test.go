package http

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"slograph/internal/telemetryport"
	"slograph/pkg/domain"
)

func buildImpactTestGraph() *domain.Graph {
	g := domain.NewGraph()
	g.UpsertService(&domain.Service{ServiceID: "payments", Type: domain.ServiceTypeInternal})
	g.UpsertService(&domain.Service{ServiceID: "checkout", Type: domain.ServiceTypeInternal})

	g.UpsertEdge(&domain.DependencyEdge{
		From: "checkout", To: "payments", DiscoverySource: domain.DiscoverySourceManual,
		CommunicationMode: domain.CommunicationModeSync, Criticality: domain.EdgeCriticalityHard,
	})
	return g
}

func TestHandleImpactAnalysis_SourcesServiceIDFromPath(t *testing.T) {
	h, _ := newTestHandler(buildImpactTestGraph())
	telemetry := telemetryport.NewFake()
	telemetry.Set("checkout", 0.999, 30)
	h.Impact.Telemetry = telemetry

	router := NewRouter(h)

	body := impactAnalysisRequest{
		ProposedChange: proposedChangeDTO{
			SLIType:           "availability",
			CurrentTargetPct:  99.9,
			ProposedTargetPct: 99.5,
		},
		MaxDepth: 5,
	}
	buf, _ := json.Marshal(body)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/services/payments/impact-analysis", bytes.NewReader(buf))
	router.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp impactAnalysisResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ServiceID != "payments" {
		t.Errorf("expected service_id from the URL path (payments), got %q", resp.ServiceID)
	}
}

func TestHandleImpactAnalysis_RequiresSLIType(t *testing.T) {
	h, _ := newTestHandler(buildImpactTestGraph())
	router := NewRouter(h)

	body := impactAnalysisRequest{}
	buf, _ := json.Marshal(body)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/services/payments/impact-analysis", bytes.NewReader(buf))
	router.ServeHTTP(rr, req)

	if rr.Code != 400 {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
