package http

import (
	"net/http"
	"strconv"

	"slograph/internal/graphstore"
	"slograph/internal/merge"
	"slograph/pkg/apperror"
	"slograph/pkg/domain"
)

type subgraphStatsDTO struct {
	TotalNodes         int `json:"total_nodes"`
	TotalEdges         int `json:"total_edges"`
	UpstreamServices   int `json:"upstream_services"`
	DownstreamServices int `json:"downstream_services"`
	MaxDepthReached    int `json:"max_depth_reached"`
}

type subgraphResponse struct {
	ServiceID string            `json:"service_id"`
	Direction string            `json:"direction"`
	Nodes     []serviceDTO      `json:"nodes"`
	Edges     []edgeDTO         `json:"edges"`
	Stats     subgraphStatsDTO  `json:"stats"`
}

// handleSubgraph returns the bounded neighborhood of a service in the
// requested direction, with multi-source edges reconciled to one view per
// (from, to) pair (C2) rather than the raw per-source rows storage keeps.
func (h *Handler) handleSubgraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serviceID := r.PathValue("service_id")

	direction, err := parseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	depth, err := parseDepth(r.URL.Query().Get("depth"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	includeStale := r.URL.Query().Get("include_stale") == "true"

	result, err := h.Store.Traverse(ctx, serviceID, direction, depth, includeStale)
	if err != nil {
		writeError(w, r, err)
		return
	}

	nodes := make([]serviceDTO, 0, len(result.Services))
	for _, svc := range result.Services {
		nodes = append(nodes, toServiceDTO(svc))
	}

	edges := reconcileByPair(result.Edges)
	edgeDTOs := make([]edgeDTO, 0, len(edges))
	for _, e := range edges {
		edgeDTOs = append(edgeDTOs, toEdgeDTO(e))
	}

	var upstream, downstream int
	if direction == graphstore.Upstream || direction == graphstore.Both {
		upstream = countExcluding(result.Services, serviceID)
	}
	if direction == graphstore.Downstream || direction == graphstore.Both {
		downstream = countExcluding(result.Services, serviceID)
	}

	writeJSON(w, http.StatusOK, subgraphResponse{
		ServiceID: serviceID,
		Direction: r.URL.Query().Get("direction"),
		Nodes:     nodes,
		Edges:     edgeDTOs,
		Stats: subgraphStatsDTO{
			TotalNodes:         len(nodes),
			TotalEdges:         len(edgeDTOs),
			UpstreamServices:   upstream,
			DownstreamServices: downstream,
			MaxDepthReached:    result.MaxDepthReached,
		},
	})
}

func countExcluding(services []*domain.Service, root string) int {
	count := 0
	for _, s := range services {
		if s.ServiceID != root {
			count++
		}
	}
	return count
}

// reconcileByPair groups edges by (from, to) and returns the highest
// priority edge for each pair, the read-time view C2 produces.
func reconcileByPair(edges []*domain.DependencyEdge) []*domain.DependencyEdge {
	type pair struct{ from, to string }
	grouped := make(map[pair][]*domain.DependencyEdge)
	var order []pair

	for _, e := range edges {
		p := pair{e.From, e.To}
		if _, ok := grouped[p]; !ok {
			order = append(order, p)
		}
		grouped[p] = append(grouped[p], e)
	}

	result := make([]*domain.DependencyEdge, 0, len(order))
	for _, p := range order {
		result = append(result, merge.Reconcile(grouped[p]).Retained)
	}
	return result
}

func parseDirection(s string) (graphstore.Direction, error) {
	switch s {
	case "", "both":
		return graphstore.Both, nil
	case "upstream":
		return graphstore.Upstream, nil
	case "downstream":
		return graphstore.Downstream, nil
	default:
		return graphstore.Both, apperror.NewWithField(apperror.CodeInvalidArgument,
			"direction must be one of upstream, downstream, both", "direction")
	}
}

func parseDepth(s string) (int, error) {
	if s == "" {
		return graphstore.MaxTraversalDepth, nil
	}
	depth, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperror.NewWithField(apperror.CodeInvalidArgument, "depth must be an integer", "depth")
	}
	if depth < graphstore.MinTraversalDepth || depth > graphstore.MaxTraversalDepth {
		return 0, apperror.NewWithField(apperror.CodeInvalidArgument, "depth must be in [1,10]", "depth")
	}
	return depth, nil
}
