package domain

import "testing"

func TestDownstreamImpact(t *testing.T) {
	g := buildTestGraph()

	r := DownstreamImpact(g, "stripe")
	if !r.Visited["payments"] || !r.Visited["checkout"] {
		t.Fatalf("expected stripe's downstream impact to include payments and checkout: %+v", r.Visited)
	}
	if r.Level["payments"] != 1 || r.Level["checkout"] != 2 {
		t.Fatalf("unexpected levels: %+v", r.Level)
	}
}

func TestUpstreamDependencies(t *testing.T) {
	g := buildTestGraph()

	r := UpstreamDependencies(g, "checkout")
	if !r.Visited["payments"] || !r.Visited["stripe"] || !r.Visited["postgres"] {
		t.Fatalf("expected checkout's upstream to include payments, stripe, postgres: %+v", r.Visited)
	}
}

func TestBoundedDownstreamImpact(t *testing.T) {
	g := buildTestGraph()

	r := BoundedDownstreamImpact(g, "stripe", 1)
	if !r.Visited["payments"] {
		t.Fatal("expected payments within depth 1")
	}
	if r.Visited["checkout"] {
		t.Fatal("expected checkout to be excluded beyond depth 1")
	}
}

func TestConnectedServicesExcludesStart(t *testing.T) {
	g := buildTestGraph()

	r := DownstreamImpact(g, "stripe")
	connected := r.ConnectedServices("stripe")
	for _, id := range connected {
		if id == "stripe" {
			t.Fatal("ConnectedServices should exclude the starting service")
		}
	}
	if len(connected) != 2 {
		t.Fatalf("expected 2 connected services, got %v", connected)
	}
}

func TestDownstreamImpact_IsolatedService(t *testing.T) {
	g := NewGraph()
	g.UpsertService(&Service{ServiceID: "lonely"})

	r := DownstreamImpact(g, "lonely")
	if len(r.Visited) != 1 {
		t.Fatalf("expected only the start service to be visited, got %v", r.Visited)
	}
}
