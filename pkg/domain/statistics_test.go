package domain

import (
	"testing"
	"time"
)

func TestCalculateGraphStatistics(t *testing.T) {
	g := buildTestGraph()

	stats := CalculateGraphStatistics(g)

	if stats.ServiceCount != 4 {
		t.Fatalf("expected 4 services, got %d", stats.ServiceCount)
	}
	if stats.EdgeCount != 3 {
		t.Fatalf("expected 3 edges, got %d", stats.EdgeCount)
	}
	if stats.ExternalCount != 1 {
		t.Fatalf("expected 1 external service, got %d", stats.ExternalCount)
	}
	if stats.CycleCount != 0 {
		t.Fatalf("expected 0 cycles, got %d", stats.CycleCount)
	}
}

func TestCalculateGraphStatistics_StaleEdges(t *testing.T) {
	g := NewGraph()
	g.UpsertService(&Service{ServiceID: "a"})
	g.UpsertService(&Service{ServiceID: "b"})

	now := time.Now()
	g.UpsertEdge(&DependencyEdge{From: "a", To: "b", DiscoverySource: DiscoverySourceManual, LastObservedAt: now.Add(-30 * 24 * time.Hour)})
	g.MarkStaleEdges(7*24*time.Hour, now)

	stats := CalculateGraphStatistics(g)
	if stats.StaleEdgeCount != 1 {
		t.Fatalf("expected 1 stale edge, got %d", stats.StaleEdgeCount)
	}
}

func TestCalculateGraphStatistics_MaxFanIn(t *testing.T) {
	g := buildTestGraph()

	stats := CalculateGraphStatistics(g)
	if stats.MaxFanInServiceID != "payments" || stats.MaxFanIn != 1 {
		t.Fatalf("unexpected max fan-in: %s/%d", stats.MaxFanInServiceID, stats.MaxFanIn)
	}
}

func TestFanInTier(t *testing.T) {
	tests := []struct {
		fanIn    int
		expected CriticalityTier
	}{
		{0, CriticalityLow},
		{1, CriticalityLow},
		{2, CriticalityMedium},
		{5, CriticalityHigh},
		{10, CriticalityCritical},
		{50, CriticalityCritical},
	}

	for _, tt := range tests {
		if got := FanInTier(tt.fanIn); got != tt.expected {
			t.Errorf("FanInTier(%d) = %s, want %s", tt.fanIn, got, tt.expected)
		}
	}
}

func TestFindCriticalServices(t *testing.T) {
	g := NewGraph()
	g.UpsertService(&Service{ServiceID: "hub"})
	for i := 0; i < 3; i++ {
		caller := &Service{ServiceID: string(rune('a' + i))}
		g.UpsertService(caller)
		g.UpsertEdge(&DependencyEdge{From: caller.ServiceID, To: "hub", DiscoverySource: DiscoverySourceManual})
	}

	critical := FindCriticalServices(g)
	if len(critical) != 1 || critical[0].ServiceID != "hub" {
		t.Fatalf("expected hub to be the only critical service, got %v", critical)
	}
	if critical[0].FanIn != 3 {
		t.Fatalf("expected fan-in of 3, got %d", critical[0].FanIn)
	}
}
