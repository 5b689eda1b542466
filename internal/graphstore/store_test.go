package graphstore

import (
	"context"
	"testing"
	"time"

	"slograph/pkg/apperror"
	"slograph/pkg/domain"
)

func buildStoreTestGraph() *domain.Graph {
	g := domain.NewGraph()
	g.UpsertService(&domain.Service{ServiceID: "checkout"})
	g.UpsertService(&domain.Service{ServiceID: "payments"})
	g.UpsertService(&domain.Service{ServiceID: "ledger"})
	g.UpsertService(&domain.Service{ServiceID: "fraud"})

	g.UpsertEdge(&domain.DependencyEdge{From: "checkout", To: "payments", DiscoverySource: domain.DiscoverySourceManual, LastObservedAt: time.Now()})
	g.UpsertEdge(&domain.DependencyEdge{From: "payments", To: "ledger", DiscoverySource: domain.DiscoverySourceManual, LastObservedAt: time.Now()})
	g.UpsertEdge(&domain.DependencyEdge{From: "checkout", To: "fraud", DiscoverySource: domain.DiscoverySourceManual, LastObservedAt: time.Now()})
	return g
}

func TestGetService_Found(t *testing.T) {
	store := NewInMemory(buildStoreTestGraph())
	svc, err := store.GetService(context.Background(), "checkout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.ServiceID != "checkout" {
		t.Errorf("expected checkout, got %s", svc.ServiceID)
	}
}

func TestGetService_NotFound(t *testing.T) {
	store := NewInMemory(buildStoreTestGraph())
	_, err := store.GetService(context.Background(), "missing")
	if !apperror.Is(err, apperror.CodeServiceNotFound) {
		t.Fatalf("expected CodeServiceNotFound, got %v", err)
	}
}

func TestGetEdgesBySourceAndTarget(t *testing.T) {
	store := NewInMemory(buildStoreTestGraph())

	bySource, err := store.GetEdgesBySource(context.Background(), "checkout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bySource) != 2 {
		t.Fatalf("expected 2 edges sourced from checkout, got %d", len(bySource))
	}

	byTarget, err := store.GetEdgesByTarget(context.Background(), "ledger")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byTarget) != 1 {
		t.Fatalf("expected 1 edge targeting ledger, got %d", len(byTarget))
	}
}

func TestBulkUpsertEdges_RejectsSelfLoop(t *testing.T) {
	store := NewInMemory(buildStoreTestGraph())
	err := store.BulkUpsertEdges(context.Background(), []*domain.DependencyEdge{
		{From: "checkout", To: "checkout", DiscoverySource: domain.DiscoverySourceManual},
	})
	if !apperror.Is(err, apperror.CodeSelfLoop) {
		t.Fatalf("expected CodeSelfLoop, got %v", err)
	}
}

func TestTraverse_Downstream(t *testing.T) {
	store := NewInMemory(buildStoreTestGraph())
	result, err := store.Traverse(context.Background(), "checkout", Downstream, 5, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := make(map[string]bool)
	for _, svc := range result.Services {
		ids[svc.ServiceID] = true
	}
	for _, want := range []string{"checkout", "payments", "ledger", "fraud"} {
		if !ids[want] {
			t.Errorf("expected %s in traversal result, got %v", want, ids)
		}
	}
}

func TestTraverse_DepthBound(t *testing.T) {
	store := NewInMemory(buildStoreTestGraph())
	result, err := store.Traverse(context.Background(), "checkout", Downstream, 1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := make(map[string]bool)
	for _, svc := range result.Services {
		ids[svc.ServiceID] = true
	}
	if ids["ledger"] {
		t.Error("expected ledger to be excluded at depth 1 (two hops away)")
	}
	if !ids["payments"] || !ids["fraud"] {
		t.Error("expected direct dependencies to be included at depth 1")
	}
}

func TestTraverse_InvalidDepthRejected(t *testing.T) {
	store := NewInMemory(buildStoreTestGraph())
	_, err := store.Traverse(context.Background(), "checkout", Upstream, 0, false)
	if !apperror.Is(err, apperror.CodeInvalidArgument) {
		t.Fatalf("expected CodeInvalidArgument for depth 0, got %v", err)
	}

	_, err = store.Traverse(context.Background(), "checkout", Upstream, 11, false)
	if !apperror.Is(err, apperror.CodeInvalidArgument) {
		t.Fatalf("expected CodeInvalidArgument for depth 11, got %v", err)
	}
}

func TestTraverse_UnknownRootNotFound(t *testing.T) {
	store := NewInMemory(buildStoreTestGraph())
	_, err := store.Traverse(context.Background(), "nope", Upstream, 5, false)
	if !apperror.Is(err, apperror.CodeServiceNotFound) {
		t.Fatalf("expected CodeServiceNotFound, got %v", err)
	}
}

func TestTraverse_ExcludesStaleEdgesByDefault(t *testing.T) {
	g := buildStoreTestGraph()
	g.MarkStaleEdges(0, time.Now().Add(time.Hour)) // everything becomes stale
	store := NewInMemory(g)

	result, err := store.Traverse(context.Background(), "checkout", Downstream, 5, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Edges) != 0 {
		t.Fatalf("expected no edges when all are stale and includeStale=false, got %d", len(result.Edges))
	}

	resultIncl, err := store.Traverse(context.Background(), "checkout", Downstream, 5, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resultIncl.Edges) == 0 {
		t.Fatal("expected stale edges to be included when includeStale=true")
	}
}

func TestAdjacencyList(t *testing.T) {
	store := NewInMemory(buildStoreTestGraph())
	adjacency, err := store.AdjacencyList(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(adjacency["checkout"]) != 2 {
		t.Errorf("expected checkout to have 2 downstream neighbors, got %v", adjacency["checkout"])
	}
}

func TestMarkStaleEdges_DefaultsThreshold(t *testing.T) {
	g := domain.NewGraph()
	g.UpsertService(&domain.Service{ServiceID: "a"})
	g.UpsertService(&domain.Service{ServiceID: "b"})
	g.UpsertEdge(&domain.DependencyEdge{
		From: "a", To: "b", DiscoverySource: domain.DiscoverySourceManual,
		LastObservedAt: time.Now().Add(-300 * 24 * time.Hour),
	})
	store := NewInMemory(g)

	marked, err := store.MarkStaleEdges(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected 1 stale edge marked, got %d", marked)
	}
}
