// Package graphstore implements the dependency graph store (C1): service
// and edge persistence plus bounded recursive traversal. Store is the
// interface the rest of the system depends on; InMemory is a
// pkg/domain.Graph-backed implementation used directly in tests and local
// development; Postgres is the table-backed implementation, which runs its
// whole-graph operations through an InMemory built from a fresh snapshot.
package graphstore

import (
	"context"
	"time"

	"slograph/pkg/apperror"
	"slograph/pkg/domain"
)

// Direction selects which way a traversal follows edges relative to the
// current frontier.
type Direction int

const (
	Upstream Direction = iota
	Downstream
	Both
)

const (
	MinTraversalDepth = 1
	MaxTraversalDepth = 10

	// DefaultStaleThreshold is the default age after which an edge is
	// considered stale if MarkStaleEdges is called without an explicit
	// threshold.
	DefaultStaleThreshold = 168 * time.Hour
)

// TraversalResult is the node and edge set returned by a bounded traversal.
// The root service is always present in Services; Edges is the subset of
// edges whose endpoints are both in Services.
type TraversalResult struct {
	Services        []*domain.Service
	Edges           []*domain.DependencyEdge
	MaxDepthReached int
}

// Store is the graph persistence and traversal port used by the rest of the
// analysis pipeline.
type Store interface {
	GetService(ctx context.Context, serviceID string) (*domain.Service, error)
	BulkUpsertServices(ctx context.Context, services []*domain.Service) error
	GetEdgesBySource(ctx context.Context, serviceID string) ([]*domain.DependencyEdge, error)
	GetEdgesByTarget(ctx context.Context, serviceID string) ([]*domain.DependencyEdge, error)
	BulkUpsertEdges(ctx context.Context, edges []*domain.DependencyEdge) error
	Traverse(ctx context.Context, root string, direction Direction, maxDepth int, includeStale bool) (*TraversalResult, error)
	AdjacencyList(ctx context.Context) (map[string][]string, error)
	MarkStaleEdges(ctx context.Context, threshold time.Duration) (int, error)
	// Graph returns the underlying dependency graph for read-only analyses
	// that operate directly on its adjacency (cycle detection, statistics)
	// rather than through a bounded traversal.
	Graph(ctx context.Context) (*domain.Graph, error)
}

// InMemory is a Store backed directly by a pkg/domain.Graph, guarded by the
// graph's own RWMutex. It is the full implementation used in tests and
// local development; Postgres also builds one from each snapshot it loads
// to run Traverse and AdjacencyList.
type InMemory struct {
	graph *domain.Graph
}

// NewInMemory wraps an existing graph as a Store.
func NewInMemory(g *domain.Graph) *InMemory {
	return &InMemory{graph: g}
}

func (s *InMemory) GetService(ctx context.Context, serviceID string) (*domain.Service, error) {
	svc, ok := s.graph.GetService(serviceID)
	if !ok {
		return nil, apperror.NewWithField(apperror.CodeServiceNotFound, "service not found", "service_id").
			WithDetails("service_id", serviceID)
	}
	return svc, nil
}

func (s *InMemory) BulkUpsertServices(ctx context.Context, services []*domain.Service) error {
	for _, svc := range services {
		s.graph.UpsertService(svc)
	}
	return nil
}

func (s *InMemory) GetEdgesBySource(ctx context.Context, serviceID string) ([]*domain.DependencyEdge, error) {
	var result []*domain.DependencyEdge
	for key, edge := range s.graph.Edges {
		if key.From == serviceID {
			result = append(result, edge)
		}
	}
	return result, nil
}

func (s *InMemory) GetEdgesByTarget(ctx context.Context, serviceID string) ([]*domain.DependencyEdge, error) {
	var result []*domain.DependencyEdge
	for key, edge := range s.graph.Edges {
		if key.To == serviceID {
			result = append(result, edge)
		}
	}
	return result, nil
}

func (s *InMemory) BulkUpsertEdges(ctx context.Context, edges []*domain.DependencyEdge) error {
	for _, edge := range edges {
		if edge.From == edge.To {
			return apperror.NewWithField(apperror.CodeSelfLoop, "dependency edge source and target must differ", "from").
				WithDetails("service_id", edge.From)
		}
		s.graph.UpsertEdge(edge)
	}
	return nil
}

// Traverse performs a bounded BFS from root following edges in the given
// direction, omitting stale edges unless includeStale is set.
func (s *InMemory) Traverse(ctx context.Context, root string, direction Direction, maxDepth int, includeStale bool) (*TraversalResult, error) {
	if _, ok := s.graph.GetService(root); !ok {
		return nil, apperror.NewWithField(apperror.CodeServiceNotFound, "traversal root not found", "service_id").
			WithDetails("service_id", root)
	}
	if maxDepth < MinTraversalDepth || maxDepth > MaxTraversalDepth {
		return nil, apperror.NewWithField(apperror.CodeInvalidArgument, "max_depth must be in [1,10]", "max_depth")
	}

	visited := map[string]int{root: 0}
	queue := []string{root}

	neighbors := func(id string) []string {
		switch direction {
		case Upstream:
			return s.graph.Dependents(id)
		case Downstream:
			return s.graph.Dependencies(id)
		default:
			return append(append([]string{}, s.graph.Dependencies(id)...), s.graph.Dependents(id)...)
		}
	}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		if visited[u] >= maxDepth {
			continue
		}
		for _, v := range neighbors(u) {
			if _, seen := visited[v]; seen {
				continue
			}
			visited[v] = visited[u] + 1
			queue = append(queue, v)
		}
	}

	services := make([]*domain.Service, 0, len(visited))
	maxDepthReached := 0
	for id, depth := range visited {
		if svc, ok := s.graph.GetService(id); ok {
			services = append(services, svc)
		}
		if depth > maxDepthReached {
			maxDepthReached = depth
		}
	}

	var edges []*domain.DependencyEdge
	for key, edge := range s.graph.Edges {
		if !includeStale && edge.IsStale {
			continue
		}
		_, fromIn := visited[key.From]
		_, toIn := visited[key.To]
		if fromIn && toIn {
			edges = append(edges, edge)
		}
	}

	return &TraversalResult{Services: services, Edges: edges, MaxDepthReached: maxDepthReached}, nil
}

// AdjacencyList returns the non-stale downstream adjacency of every service,
// the input C3's cycle detection consumes.
func (s *InMemory) AdjacencyList(ctx context.Context) (map[string][]string, error) {
	adjacency := make(map[string][]string)
	for id := range s.graph.Services {
		var neighbors []string
		for _, to := range s.graph.Dependencies(id) {
			stale := true
			for _, edge := range s.graph.EdgesBetween(id, to) {
				if !edge.IsStale {
					stale = false
					break
				}
			}
			if !stale {
				neighbors = append(neighbors, to)
			}
		}
		adjacency[id] = neighbors
	}
	return adjacency, nil
}

func (s *InMemory) MarkStaleEdges(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return s.graph.MarkStaleEdges(threshold, timeNow()), nil
}

// Graph returns the backing graph directly for callers that need to run
// whole-graph analyses (e.g. cycle detection) rather than a bounded
// traversal.
func (s *InMemory) Graph(ctx context.Context) (*domain.Graph, error) {
	return s.graph, nil
}

// timeNow is a seam for deterministic tests; production always uses the
// wall clock.
var timeNow = time.Now
