package impact

import (
	"context"

	"slograph/internal/graphstore"
	"slograph/internal/telemetryport"
)

// DefaultLookbackDays is used when a caller supplies no lookback window.
const DefaultLookbackDays = 30

// ActiveSLOProvider resolves a service's currently active SLO target
// percentage, if any.
type ActiveSLOProvider interface {
	ActiveTargetPct(ctx context.Context, serviceID string) (*float64, error)
}

// Orchestrator composes C1, C4, and the pure impact computation (C10) into
// one request/response pipeline: given a proposed SLO change on one
// service, it finds every upstream service and recomputes how the change
// would move their composite availability bound.
type Orchestrator struct {
	Store      graphstore.Store
	Telemetry  telemetryport.Port
	ActiveSLOs ActiveSLOProvider // may be nil: treated as "no active SLO" for every service
}

// Request is one impact-analysis invocation.
type Request struct {
	ServiceID      string
	ProposedChange ProposedChange
	LookbackDays   int
	MaxDepth       int
}

// Analyze runs the full impact-analysis pipeline for a single proposed
// change.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*Result, error) {
	if _, err := o.Store.GetService(ctx, req.ServiceID); err != nil {
		return nil, err
	}

	lookbackDays := req.LookbackDays
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = graphstore.MaxTraversalDepth
	}

	traversal, err := o.Store.Traverse(ctx, req.ServiceID, graphstore.Upstream, maxDepth, false)
	if err != nil {
		return nil, err
	}

	directUpstreamIDs, err := o.directUpstreamIDs(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	availabilities := make(map[string]float64)
	activeTargets := make(map[string]float64)
	upstream := make([]UpstreamService, 0, len(traversal.Services))

	for _, svc := range traversal.Services {
		if svc.ServiceID == req.ServiceID {
			continue
		}

		if availability, ok := o.observedAvailability(ctx, svc.ServiceID, lookbackDays); ok {
			availabilities[svc.ServiceID] = availability
		}
		if target, err := o.activeTargetPct(ctx, svc.ServiceID); err == nil && target != nil {
			activeTargets[svc.ServiceID] = *target
		}

		directDeps, err := o.Store.GetEdgesBySource(ctx, svc.ServiceID)
		if err != nil {
			return nil, err
		}
		dependencies := make([]Dependency, 0, len(directDeps))
		for _, edge := range directDeps {
			dependencies = append(dependencies, Dependency{TargetID: edge.To, IsHard: edge.IsHardSync()})
		}

		depth := transitiveDepth
		if directUpstreamIDs[svc.ServiceID] {
			depth = directDepth
		}

		upstream = append(upstream, UpstreamService{
			ServiceID:    svc.ServiceID,
			Depth:        depth,
			Dependencies: dependencies,
		})
	}

	if changedAvailability, ok := o.observedAvailability(ctx, req.ServiceID, lookbackDays); ok {
		availabilities[req.ServiceID] = changedAvailability
	}

	result := Compute(req.ServiceID, req.ProposedChange, upstream, availabilities, activeTargets)
	return &result, nil
}

const (
	directDepth     = 1
	transitiveDepth = 2
)

func (o *Orchestrator) directUpstreamIDs(ctx context.Context, serviceID string) (map[string]bool, error) {
	edges, err := o.Store.GetEdgesByTarget(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(edges))
	for _, edge := range edges {
		ids[edge.From] = true
	}
	return ids, nil
}

func (o *Orchestrator) observedAvailability(ctx context.Context, serviceID string, lookbackDays int) (float64, bool) {
	reading, err := o.Telemetry.GetAvailabilitySLI(ctx, serviceID, lookbackDays)
	if err != nil || reading == nil {
		return 0, false
	}
	return reading.AvailabilityRatio, true
}

func (o *Orchestrator) activeTargetPct(ctx context.Context, serviceID string) (*float64, error) {
	if o.ActiveSLOs == nil {
		return nil, nil
	}
	return o.ActiveSLOs.ActiveTargetPct(ctx, serviceID)
}
