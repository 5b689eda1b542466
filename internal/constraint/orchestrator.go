// Package constraint implements the constraint-analysis orchestrator (C9):
// it composes the graph store, telemetry port, external-provider buffer,
// composite bound engine, error-budget analyzer, and unachievability
// detector into one request/response pipeline.
package constraint

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"slograph/internal/budget"
	"slograph/internal/buffer"
	"slograph/internal/composite"
	"slograph/internal/graphstore"
	"slograph/internal/telemetryport"
	"slograph/internal/unachievable"
	"slograph/pkg/apperror"
	"slograph/pkg/cache"
	"slograph/pkg/domain"
)

// DefaultTargetPct is used when the caller supplies no target and the
// service carries no active SLO.
const DefaultTargetPct = 99.9

// DefaultObservedAvailability substitutes for a dependency with no
// telemetry reading.
const DefaultObservedAvailability = 0.999

// ActiveSLOProvider resolves a service's currently active SLO target, if
// any. A nil result with a nil error means the service has no active SLO.
type ActiveSLOProvider interface {
	ActiveTargetPct(ctx context.Context, serviceID string) (*float64, error)
}

// CycleAlertProvider looks up open circular-dependency alert paths that
// involve a given service, used to surface "scc_supernodes" in the response.
type CycleAlertProvider interface {
	OpenAlertPathsContaining(ctx context.Context, serviceID string) ([][]string, error)
}

// Orchestrator composes C1, C4, C5, C6, C7, and C8 into a single
// constraint-analysis request/response pipeline.
type Orchestrator struct {
	Store         graphstore.Store
	Telemetry     telemetryport.Port
	ActiveSLOs    ActiveSLOProvider // may be nil: treated as "no active SLO"
	CycleAlerts   CycleAlertProvider // may be nil: treated as "no open alerts"
	MaxConcurrent int               // worker-pool width for telemetry fan-out; 0 means runtime.NumCPU()
	Cache         *cache.AnalysisCache // may be nil: caching disabled
}

// Request is one constraint-analysis invocation.
type Request struct {
	ServiceID        string
	DesiredTargetPct *float64
	LookbackDays     int
	MaxDepth         int
}

// DependencyRisk is the per-dependency view combining its availability,
// error-budget consumption, risk tier, and external classification.
type DependencyRisk struct {
	ServiceID      string
	Availability   float64
	ConsumptionPct float64
	Risk           budget.RiskLevel
	IsExternal     bool
}

// Result is the aggregate constraint-analysis record.
type Result struct {
	ServiceID                string
	AnalyzedAt               time.Time
	DesiredTargetPct         float64
	CompositeAvailabilityPct float64
	IsAchievable             bool
	HasHighRiskDependencies  bool
	DependencyRisks          []DependencyRisk
	TotalBudgetMinutes       float64
	SelfConsumptionPct       float64
	UnachievableWarning      *unachievable.Warning
	SoftDependencyNames      []string
	SCCSupernodes            [][]string
	TotalHardDependencies    int
	TotalSoftDependencies    int
	TotalExternalDependencies int
	LookbackDays             int
	MaxDepth                 int
}

// Analyze runs the full constraint-analysis pipeline for a single service.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*Result, error) {
	if _, err := o.Store.GetService(ctx, req.ServiceID); err != nil {
		return nil, err
	}

	targetPct, err := o.resolveTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	traversal, err := o.Store.Traverse(ctx, req.ServiceID, graphstore.Downstream, req.MaxDepth, false)
	if err != nil {
		return nil, err
	}
	if len(traversal.Edges) == 0 {
		return nil, apperror.NewWithField(apperror.CodeInvalidArgument, "service has no dependencies registered; cannot perform constraint analysis", "service_id").
			WithDetails("service_id", req.ServiceID)
	}

	servicesByID := make(map[string]*domain.Service, len(traversal.Services))
	for _, s := range traversal.Services {
		servicesByID[s.ServiceID] = s
	}

	var hardSync, soft []*domain.DependencyEdge
	externalIDs := make(map[string]bool)
	for _, edge := range traversal.Edges {
		target, ok := servicesByID[edge.To]
		if !ok {
			continue
		}
		if edge.IsHardSync() {
			hardSync = append(hardSync, edge)
		} else {
			soft = append(soft, edge)
		}
		if target.Type == domain.ServiceTypeExternal {
			externalIDs[target.ServiceID] = true
		}
	}

	softNames := make([]string, 0, len(soft))
	for _, edge := range soft {
		if target, ok := servicesByID[edge.To]; ok {
			softNames = append(softNames, target.ServiceID)
		}
	}

	cacheTier := cacheTierKey(targetPct, req.LookbackDays)
	subgraph := subgraphFor(traversal)

	var cached *cache.CachedConstraintAnalysis
	if o.Cache != nil {
		if hit, found, err := o.Cache.Get(ctx, subgraph, cacheTier); err == nil && found {
			cached = hit
		}
	}

	var selfAvailability float64
	var risks []DependencyRisk
	var budgetBreakdown budget.Breakdown
	var compositeResult composite.Result

	if cached != nil {
		selfAvailability = cached.SelfAvailability
		budgetBreakdown = budget.Breakdown{
			TotalBudgetMinutes: cached.TotalBudgetMinutes,
			SelfConsumptionPct: cached.SelfConsumptionPct,
		}
		compositeResult = composite.Result{BoundPct: cached.CompositeBound, Bound: cached.CompositeBound / 100}
		risks = make([]DependencyRisk, 0, len(cached.Dependencies))
		for _, d := range cached.Dependencies {
			risks = append(risks, DependencyRisk{
				ServiceID:      d.ServiceID,
				Availability:   d.Availability,
				ConsumptionPct: d.ConsumptionPct,
				Risk:           budget.RiskLevel(d.Risk),
				IsExternal:     d.IsExternal,
			})
			if budget.RiskLevel(d.Risk) == budget.RiskHigh {
				budgetBreakdown.HighRiskDependencies = append(budgetBreakdown.HighRiskDependencies, d.ServiceID)
			}
		}
	} else {
		resolved := o.resolveDependencyAvailabilities(ctx, hardSync, servicesByID, req.LookbackDays)

		selfAvailability = DefaultObservedAvailability
		if reading, err := o.Telemetry.GetAvailabilitySLI(ctx, req.ServiceID, req.LookbackDays); err == nil && reading != nil {
			selfAvailability = reading.AvailabilityRatio
		}

		compositeDeps := make([]composite.Dependency, 0, len(resolved))
		budgetDeps := make([]budget.Dependency, 0, len(resolved))
		risks = make([]DependencyRisk, 0, len(resolved))

		for _, dep := range resolved {
			compositeDeps = append(compositeDeps, composite.Dependency{
				ServiceID:    dep.ServiceID,
				Availability: dep.Availability,
				IsHard:       true,
				Substituted:  dep.Substituted,
			})
			budgetDeps = append(budgetDeps, budget.Dependency{ServiceID: dep.ServiceID, Availability: dep.Availability})
		}

		compositeResult = composite.Compute(selfAvailability, compositeDeps)
		budgetBreakdown = budget.Analyze(selfAvailability, targetPct, budgetDeps)

		riskByID := make(map[string]budget.DependencyAssessment, len(budgetBreakdown.Dependencies))
		for _, a := range budgetBreakdown.Dependencies {
			riskByID[a.ServiceID] = a
		}
		for _, dep := range resolved {
			assessment := riskByID[dep.ServiceID]
			risks = append(risks, DependencyRisk{
				ServiceID:      dep.ServiceID,
				Availability:   dep.Availability,
				ConsumptionPct: assessment.ConsumptionPct,
				Risk:           assessment.Risk,
				IsExternal:     externalIDs[dep.ServiceID],
			})
		}

		if o.Cache != nil {
			toCache := &cache.CachedConstraintAnalysis{
				Tier:                      cacheTier,
				TargetPct:                 targetPct,
				CompositeBound:            compositeResult.BoundPct,
				Achievable:                unachievable.Check(targetPct, compositeResult.Bound, len(hardSync)) == nil,
				DependencyDepth:           traversal.MaxDepthReached,
				SelfAvailability:          selfAvailability,
				SoftDependencyNames:       softNames,
				TotalBudgetMinutes:        budgetBreakdown.TotalBudgetMinutes,
				SelfConsumptionPct:        budgetBreakdown.SelfConsumptionPct,
				TotalHardDependencies:     len(hardSync),
				TotalSoftDependencies:     len(soft),
				TotalExternalDependencies: len(externalIDs),
			}
			for _, r := range risks {
				toCache.Dependencies = append(toCache.Dependencies, &cache.CachedDependencyRisk{
					ServiceID:      r.ServiceID,
					Availability:   r.Availability,
					ConsumptionPct: r.ConsumptionPct,
					Risk:           string(r.Risk),
					IsExternal:     r.IsExternal,
				})
			}
			_ = o.Cache.Set(ctx, subgraph, cacheTier, toCache, 0)
		}
	}

	warning := unachievable.Check(targetPct, compositeResult.Bound, len(hardSync))

	var sccSupernodes [][]string
	if o.CycleAlerts != nil {
		if paths, err := o.CycleAlerts.OpenAlertPathsContaining(ctx, req.ServiceID); err == nil {
			sccSupernodes = paths
		}
	}

	return &Result{
		ServiceID:                 req.ServiceID,
		AnalyzedAt:                analyzedAtNow(),
		DesiredTargetPct:          targetPct,
		CompositeAvailabilityPct:  compositeResult.BoundPct,
		IsAchievable:              warning == nil,
		HasHighRiskDependencies:   len(budgetBreakdown.HighRiskDependencies) > 0,
		DependencyRisks:           risks,
		TotalBudgetMinutes:        budgetBreakdown.TotalBudgetMinutes,
		SelfConsumptionPct:        budgetBreakdown.SelfConsumptionPct,
		UnachievableWarning:       warning,
		SoftDependencyNames:       softNames,
		SCCSupernodes:             sccSupernodes,
		TotalHardDependencies:     len(hardSync),
		TotalSoftDependencies:     len(soft),
		TotalExternalDependencies: len(externalIDs),
		LookbackDays:              req.LookbackDays,
		MaxDepth:                  req.MaxDepth,
	}, nil
}

// cacheTierKey folds the request dimensions the cache doesn't get from the
// graph hash itself (desired target, lookback window) into AnalysisCache's
// tier string.
func cacheTierKey(targetPct float64, lookbackDays int) string {
	return fmt.Sprintf("constraint:%.4f:%d", targetPct, lookbackDays)
}

// subgraphFor builds the minimal domain.Graph a traversal touches, used
// only to compute a stable cache key; it is never persisted.
func subgraphFor(traversal *graphstore.TraversalResult) *domain.Graph {
	g := domain.NewGraph()
	for _, svc := range traversal.Services {
		g.UpsertService(svc)
	}
	for _, edge := range traversal.Edges {
		g.UpsertEdge(edge)
	}
	return g
}

func (o *Orchestrator) resolveTarget(ctx context.Context, req Request) (float64, error) {
	if req.DesiredTargetPct != nil {
		return *req.DesiredTargetPct, nil
	}
	if o.ActiveSLOs != nil {
		target, err := o.ActiveSLOs.ActiveTargetPct(ctx, req.ServiceID)
		if err != nil {
			return 0, err
		}
		if target != nil {
			return *target, nil
		}
	}
	return DefaultTargetPct, nil
}

// resolvedDependency is one hard-sync target's resolved availability, ready
// to feed C6/C7.
type resolvedDependency struct {
	ServiceID    string
	Availability float64
	Substituted  bool
}

// resolveDependencyAvailabilities fans out one telemetry read per hard-sync
// target over a bounded worker pool, applying the external-provider buffer
// (C5) to external targets.
func (o *Orchestrator) resolveDependencyAvailabilities(ctx context.Context, edges []*domain.DependencyEdge, servicesByID map[string]*domain.Service, lookbackDays int) []resolvedDependency {
	type task struct {
		index int
		edge  *domain.DependencyEdge
	}

	results := make([]resolvedDependency, len(edges))
	tasks := make(chan task, len(edges))
	for i, edge := range edges {
		tasks <- task{index: i, edge: edge}
	}
	close(tasks)

	workers := o.MaxConcurrent
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(edges) {
		workers = len(edges)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results[t.index] = o.resolveSingleDependency(ctx, t.edge, servicesByID, lookbackDays)
			}
		}()
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) resolveSingleDependency(ctx context.Context, edge *domain.DependencyEdge, servicesByID map[string]*domain.Service, lookbackDays int) resolvedDependency {
	target, ok := servicesByID[edge.To]
	if !ok {
		return resolvedDependency{ServiceID: edge.To, Availability: DefaultObservedAvailability, Substituted: true}
	}

	reading, _ := o.Telemetry.GetAvailabilitySLI(ctx, target.ServiceID, lookbackDays)
	var observed *float64
	if reading != nil {
		ratio := reading.AvailabilityRatio
		observed = &ratio
	}

	if target.Type == domain.ServiceTypeExternal {
		result := buffer.Adjust(buffer.Input{
			PublishedSLA:         target.PublishedSLA,
			ObservedAvailability: observed,
		})
		return resolvedDependency{ServiceID: target.ServiceID, Availability: result.EffectiveAvailability}
	}

	if observed != nil {
		return resolvedDependency{ServiceID: target.ServiceID, Availability: *observed}
	}
	return resolvedDependency{ServiceID: target.ServiceID, Availability: DefaultObservedAvailability, Substituted: true}
}

// analyzedAtNow is a seam over time.Now for deterministic tests.
var analyzedAtNow = time.Now
