package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slograph/pkg/domain"
)

// AnalysisCache caches the result of a constraint-analysis run, keyed by the
// hash of the dependency graph that produced it and the SLO tier evaluated.
type AnalysisCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// CachedConstraintAnalysis is the cached outcome of a single analysis run.
// It carries enough of constraint.Result to skip re-resolving dependency
// availabilities over the telemetry port on a cache hit; fields that are
// cheap to recompute from a fresh traversal (e.g. open-cycle supernodes)
// are deliberately left out and always recomputed.
type CachedConstraintAnalysis struct {
	Tier              string               `json:"tier"`
	TargetPct         float64              `json:"target_pct"`
	CompositeBound    float64              `json:"composite_bound"`
	Achievable        bool                 `json:"achievable"`
	DependencyDepth   int                  `json:"dependency_depth"`
	LimitingEdges     []*LimitingEdgeCache `json:"limiting_edges,omitempty"`
	ComputedAt        time.Time            `json:"computed_at"`

	SelfAvailability          float64                `json:"self_availability"`
	Dependencies              []*CachedDependencyRisk `json:"dependencies,omitempty"`
	SoftDependencyNames       []string                `json:"soft_dependency_names,omitempty"`
	TotalBudgetMinutes        float64                 `json:"total_budget_minutes"`
	SelfConsumptionPct        float64                 `json:"self_consumption_pct"`
	TotalHardDependencies     int                     `json:"total_hard_dependencies"`
	TotalSoftDependencies     int                     `json:"total_soft_dependencies"`
	TotalExternalDependencies int                     `json:"total_external_dependencies"`
}

// CachedDependencyRisk is one resolved dependency's availability and risk
// classification, cached so a hit doesn't need a fresh telemetry read.
type CachedDependencyRisk struct {
	ServiceID      string  `json:"service_id"`
	Availability   float64 `json:"availability"`
	ConsumptionPct float64 `json:"consumption_pct"`
	Risk           string  `json:"risk"`
	IsExternal     bool    `json:"is_external"`
}

// LimitingEdgeCache is a cached dependency edge identified as constraining
// the composite availability bound.
type LimitingEdgeCache struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	Availability float64 `json:"availability"`
	Criticality  float64 `json:"criticality"`
}

// NewAnalysisCache creates a cache for constraint-analysis results.
func NewAnalysisCache(cache Cache, defaultTTL time.Duration) *AnalysisCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &AnalysisCache{
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// Get returns the cached analysis for a graph and tier, if present.
func (ac *AnalysisCache) Get(ctx context.Context, graph *domain.Graph, tier string) (*CachedConstraintAnalysis, bool, error) {
	graphHash := GraphHash(graph)
	key := BuildAnalysisKey(graphHash, tier)

	data, err := ac.cache.Get(ctx, key)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var result CachedConstraintAnalysis
	if err := json.Unmarshal(data, &result); err != nil {
		// Corrupted entry: drop it and treat as a cache miss.
		_ = ac.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}

	return &result, true, nil
}

// Set stores an analysis result, using the cache's default TTL when ttl <= 0.
func (ac *AnalysisCache) Set(ctx context.Context, graph *domain.Graph, tier string, result *CachedConstraintAnalysis, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ac.defaultTTL
	}

	graphHash := GraphHash(graph)
	key := BuildAnalysisKey(graphHash, tier)

	result.ComputedAt = time.Now()

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return ac.cache.Set(ctx, key, data, ttl)
}

// Invalidate removes every cached tier result for the given graph.
func (ac *AnalysisCache) Invalidate(ctx context.Context, graph *domain.Graph) error {
	graphHash := GraphHash(graph)
	pattern := fmt.Sprintf("analysis:*:%s", graphHash)
	_, err := ac.cache.DeleteByPattern(ctx, pattern)
	return err
}

// InvalidateAll removes every cached analysis result, regardless of graph.
func (ac *AnalysisCache) InvalidateAll(ctx context.Context) (int64, error) {
	return ac.cache.DeleteByPattern(ctx, "analysis:*")
}
