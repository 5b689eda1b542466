package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"slograph/internal/cycles"
	"slograph/internal/graphstore"
	"slograph/internal/merge"
	"slograph/pkg/apperror"
	"slograph/pkg/domain"
)

type ingestNodeDTO struct {
	ServiceID string            `json:"service_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type ingestEdgeAttributesDTO struct {
	CommunicationMode string            `json:"communication_mode"`
	Criticality       string            `json:"criticality"`
	Protocol          *string           `json:"protocol,omitempty"`
	TimeoutMs         *int              `json:"timeout_ms,omitempty"`
	RetryConfig       map[string]string `json:"retry_config,omitempty"`
}

type ingestEdgeDTO struct {
	Source     string                  `json:"source"`
	Target     string                  `json:"target"`
	Attributes ingestEdgeAttributesDTO `json:"attributes"`
}

type ingestRequest struct {
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Nodes     []ingestNodeDTO `json:"nodes"`
	Edges     []ingestEdgeDTO `json:"edges"`
}

type cycleAlertDTO struct {
	AlertID string   `json:"alert_id"`
	Path    []string `json:"path"`
}

type conflictDTO struct {
	From           string `json:"from"`
	To             string `json:"to"`
	ExistingSource string `json:"existing_source"`
	NewSource      string `json:"new_source"`
	Resolution     string `json:"resolution"`
}

type ingestResponse struct {
	ReceivedNodes    int             `json:"received_nodes"`
	ReceivedEdges    int             `json:"received_edges"`
	UpsertedServices int             `json:"upserted_services"`
	UpsertedEdges    int             `json:"upserted_edges"`
	DiscoveredCycles []cycleAlertDTO `json:"discovered_cycles,omitempty"`
	Conflicts        []conflictDTO   `json:"conflicts,omitempty"`
	Warnings         []string        `json:"warnings,omitempty"`
}

// handleIngest accepts a batch of service nodes and dependency edges from a
// single discovery source, auto-creating any service an edge references but
// no node describes, then runs cycle detection and multi-source conflict
// reconciliation over the affected pairs.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	source, ok := domain.ParseDiscoverySource(req.Source)
	if !ok {
		writeError(w, r, apperror.NewWithField(apperror.CodeInvalidArgument,
			fmt.Sprintf("unrecognized source %q: must be one of manual, service_mesh, otel_service_graph, kubernetes", req.Source),
			"source"))
		return
	}

	observedAt := req.Timestamp
	if observedAt.IsZero() {
		observedAt = timeNow()
	}

	var warnings []string
	known := make(map[string]bool)

	services := make([]*domain.Service, 0, len(req.Nodes))
	for _, node := range req.Nodes {
		if node.ServiceID == "" {
			warnings = append(warnings, "skipped a node with an empty service_id")
			continue
		}
		criticality, err := parseServiceCriticality(node.Metadata["criticality"])
		if err != nil {
			writeError(w, r, err)
			return
		}

		svc, _ := existingOrNewService(ctx, h.Store, node.ServiceID, observedAt)
		svc.Team = node.Metadata["team"]
		svc.Criticality = criticality
		svc.Metadata = node.Metadata
		svc.UpdatedAt = observedAt
		services = append(services, svc)
		known[node.ServiceID] = true
	}

	edges := make([]*domain.DependencyEdge, 0, len(req.Edges))
	for _, e := range req.Edges {
		if e.Source == e.Target {
			warnings = append(warnings, fmt.Sprintf("skipped self-referential edge for %s", e.Source))
			continue
		}
		mode, err := parseCommunicationMode(e.Attributes.CommunicationMode)
		if err != nil {
			writeError(w, r, err)
			return
		}
		criticality, err := parseEdgeCriticality(e.Attributes.Criticality)
		if err != nil {
			writeError(w, r, err)
			return
		}

		for _, id := range []string{e.Source, e.Target} {
			if known[id] {
				continue
			}
			svc, isNew := existingOrNewService(ctx, h.Store, id, observedAt)
			if isNew {
				svc.Discovered = true
				svc.Criticality = domain.ServiceCriticalityMedium
			}
			services = append(services, svc)
			known[id] = true
		}

		edges = append(edges, &domain.DependencyEdge{
			From:              e.Source,
			To:                e.Target,
			CommunicationMode: mode,
			Criticality:       criticality,
			Protocol:          e.Attributes.Protocol,
			TimeoutMs:         e.Attributes.TimeoutMs,
			RetryConfig:       e.Attributes.RetryConfig,
			DiscoverySource:   source,
			ConfidenceScore:   merge.ConfidenceScore(source, 1),
			LastObservedAt:    observedAt,
			CreatedAt:         observedAt,
		})
	}

	if err := h.Store.BulkUpsertServices(ctx, services); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Store.BulkUpsertEdges(ctx, edges); err != nil {
		writeError(w, r, err)
		return
	}
	if len(edges) > 0 && h.Constraint != nil && h.Constraint.Cache != nil {
		// Every cached bound was computed from a graph shape this batch
		// just changed; a targeted per-graph-hash invalidation can't reach
		// entries keyed by a shape this ingest made stale, so drop it all.
		if _, err := h.Constraint.Cache.InvalidateAll(ctx); err != nil {
			warnings = append(warnings, "analysis cache invalidation failed: "+err.Error())
		}
	}

	conflicts := h.reconcileConflicts(ctx, edges)

	var discovered []cycleAlertDTO
	if h.Alerts != nil {
		if graph, err := h.Store.Graph(ctx); err == nil {
			detected := cycles.Detect(graph)
			_, fresh, err := h.Alerts.ReconcileAndStore(ctx, detected)
			if err != nil {
				warnings = append(warnings, "cycle detection ran but alert reconciliation failed: "+err.Error())
			}
			for _, a := range fresh {
				discovered = append(discovered, cycleAlertDTO{AlertID: a.ID.String(), Path: a.Path})
			}
		}
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		ReceivedNodes:    len(req.Nodes),
		ReceivedEdges:    len(req.Edges),
		UpsertedServices: len(services),
		UpsertedEdges:    len(edges),
		DiscoveredCycles: discovered,
		Conflicts:        conflicts,
		Warnings:         warnings,
	})
}

// existingOrNewService looks up a service by ID, returning a fresh,
// not-yet-stored Service seeded for creation when none exists, and whether
// it had to be created.
func existingOrNewService(ctx context.Context, store graphstore.Store, id string, now time.Time) (*domain.Service, bool) {
	if svc, err := store.GetService(ctx, id); err == nil {
		return svc, false
	}
	return &domain.Service{
		ServiceID: id,
		Type:      domain.ServiceTypeInternal,
		CreatedAt: now,
		UpdatedAt: now,
	}, true
}

// reconcileConflicts runs the read-time merge reconciliation (C2) over every
// distinct (from, to) pair touched by this ingestion batch, surfacing a
// conflict record for each edge a higher-priority discovery source overrode.
func (h *Handler) reconcileConflicts(ctx context.Context, edges []*domain.DependencyEdge) []conflictDTO {
	type pair struct{ from, to string }
	seen := make(map[pair]bool)
	var conflicts []conflictDTO

	for _, e := range edges {
		p := pair{e.From, e.To}
		if seen[p] {
			continue
		}
		seen[p] = true

		candidates, err := h.Store.GetEdgesBySource(ctx, e.From)
		if err != nil {
			continue
		}
		var forPair []*domain.DependencyEdge
		for _, c := range candidates {
			if c.To == e.To {
				forPair = append(forPair, c)
			}
		}
		if len(forPair) < 2 {
			continue
		}

		result := merge.Reconcile(forPair)
		for _, c := range result.Conflicts {
			conflicts = append(conflicts, conflictDTO{
				From:           e.From,
				To:             e.To,
				ExistingSource: c.ExistingSource.String(),
				NewSource:      c.NewSource.String(),
				Resolution:     c.Resolution,
			})
		}
	}

	return conflicts
}
