package impact

import (
	"context"
	"testing"

	"slograph/internal/graphstore"
	"slograph/internal/telemetryport"
	"slograph/pkg/domain"
)

// buildImpactGraph wires: checkout -> payments -> ledger, fraud -> ledger.
// ledger is the service under a proposed SLO change; payments is a direct
// (depth 1) upstream dependent, checkout is transitive (depth 2).
func buildImpactGraph() *domain.Graph {
	g := domain.NewGraph()
	g.UpsertService(&domain.Service{ServiceID: "checkout", Type: domain.ServiceTypeInternal})
	g.UpsertService(&domain.Service{ServiceID: "payments", Type: domain.ServiceTypeInternal})
	g.UpsertService(&domain.Service{ServiceID: "ledger", Type: domain.ServiceTypeInternal})
	g.UpsertService(&domain.Service{ServiceID: "fraud", Type: domain.ServiceTypeInternal})

	g.UpsertEdge(&domain.DependencyEdge{
		From: "checkout", To: "payments", DiscoverySource: domain.DiscoverySourceManual,
		CommunicationMode: domain.CommunicationModeSync, Criticality: domain.EdgeCriticalityHard,
	})
	g.UpsertEdge(&domain.DependencyEdge{
		From: "payments", To: "ledger", DiscoverySource: domain.DiscoverySourceManual,
		CommunicationMode: domain.CommunicationModeSync, Criticality: domain.EdgeCriticalityHard,
	})
	g.UpsertEdge(&domain.DependencyEdge{
		From: "fraud", To: "ledger", DiscoverySource: domain.DiscoverySourceManual,
		CommunicationMode: domain.CommunicationModeSync, Criticality: domain.EdgeCriticalityHard,
	})
	return g
}

func TestAnalyze_IdentifiesDirectAndTransitiveUpstream(t *testing.T) {
	g := buildImpactGraph()
	store := graphstore.NewInMemory(g)
	telemetry := telemetryport.NewFake()

	orch := &Orchestrator{Store: store, Telemetry: telemetry}
	result, err := orch.Analyze(context.Background(), Request{
		ServiceID:      "ledger",
		ProposedChange: ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.0},
		LookbackDays:   30,
		MaxDepth:       5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byID := make(map[string]ImpactedService)
	for _, s := range result.ImpactedServices {
		byID[s.ServiceID] = s
	}
	if _, ok := byID["ledger"]; ok {
		t.Error("expected the changed service itself to be excluded from impacted services")
	}
	if payments, ok := byID["payments"]; !ok || payments.Depth != directDepth {
		t.Errorf("expected payments at depth 1 (direct), got %+v", payments)
	}
	if fraud, ok := byID["fraud"]; !ok || fraud.Depth != directDepth {
		t.Errorf("expected fraud at depth 1 (direct), got %+v", fraud)
	}
	if checkout, ok := byID["checkout"]; !ok || checkout.Depth != transitiveDepth {
		t.Errorf("expected checkout at depth 2 (transitive), got %+v", checkout)
	}
}

func TestAnalyze_ServiceNotFound(t *testing.T) {
	store := graphstore.NewInMemory(domain.NewGraph())
	telemetry := telemetryport.NewFake()

	orch := &Orchestrator{Store: store, Telemetry: telemetry}
	_, err := orch.Analyze(context.Background(), Request{
		ServiceID:      "missing",
		ProposedChange: ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.0},
	})
	if err == nil {
		t.Fatal("expected an error for an unknown service")
	}
}

func TestAnalyze_NoUpstreamServices(t *testing.T) {
	g := domain.NewGraph()
	g.UpsertService(&domain.Service{ServiceID: "leaf"})
	store := graphstore.NewInMemory(g)
	telemetry := telemetryport.NewFake()

	orch := &Orchestrator{Store: store, Telemetry: telemetry}
	result, err := orch.Analyze(context.Background(), Request{
		ServiceID:      "leaf",
		ProposedChange: ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.0},
		LookbackDays:   30,
		MaxDepth:       5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ImpactedServices) != 0 {
		t.Fatalf("expected no impacted services for a service with no upstream dependents, got %d", len(result.ImpactedServices))
	}
}

func TestAnalyze_UsesObservedTelemetryWhenAvailable(t *testing.T) {
	g := buildImpactGraph()
	store := graphstore.NewInMemory(g)
	telemetry := telemetryport.NewFake()
	telemetry.Set("payments", 0.995, 30)

	orch := &Orchestrator{Store: store, Telemetry: telemetry}
	result, err := orch.Analyze(context.Background(), Request{
		ServiceID:      "ledger",
		ProposedChange: ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.0},
		LookbackDays:   30,
		MaxDepth:       5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ImpactedServices) == 0 {
		t.Fatal("expected impacted services to be populated")
	}
}

type fakeActiveSLOs struct {
	targets map[string]float64
}

func (f fakeActiveSLOs) ActiveTargetPct(ctx context.Context, serviceID string) (*float64, error) {
	v, ok := f.targets[serviceID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func TestAnalyze_FlagsAtRiskUpstreamFromActiveSLO(t *testing.T) {
	g := buildImpactGraph()
	store := graphstore.NewInMemory(g)
	telemetry := telemetryport.NewFake()
	activeSLOs := fakeActiveSLOs{targets: map[string]float64{"payments": 99.99}}

	orch := &Orchestrator{Store: store, Telemetry: telemetry, ActiveSLOs: activeSLOs}
	result, err := orch.Analyze(context.Background(), Request{
		ServiceID:      "ledger",
		ProposedChange: ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 90.0},
		LookbackDays:   30,
		MaxDepth:       5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary.SLOsAtRisk == 0 {
		t.Fatal("expected at least one SLO at risk given a severe degradation and an active target")
	}
}

func TestAnalyze_DefaultsLookbackAndDepth(t *testing.T) {
	g := buildImpactGraph()
	store := graphstore.NewInMemory(g)
	telemetry := telemetryport.NewFake()

	orch := &Orchestrator{Store: store, Telemetry: telemetry}
	_, err := orch.Analyze(context.Background(), Request{
		ServiceID:      "ledger",
		ProposedChange: ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.0},
	})
	if err != nil {
		t.Fatalf("unexpected error with zero-value lookback/depth: %v", err)
	}
}
