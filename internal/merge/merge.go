// Package merge reconciles dependency edges discovered for the same
// (source, target) pair by more than one discovery mechanism into a single
// view: the highest-priority edge plus a record of every source it
// overrode. Storage never collapses these edges (pkg/domain.Graph keeps one
// per discovery source); this package only reconciles them at read time.
package merge

import (
	"math"

	"slograph/pkg/domain"
)

// baseConfidence is the starting confidence score assigned to an edge purely
// by virtue of how it was discovered, before any observation-count boost.
var baseConfidence = map[domain.DiscoverySource]float64{
	domain.DiscoverySourceManual:           1.00,
	domain.DiscoverySourceServiceMesh:      0.95,
	domain.DiscoverySourceOTelServiceGraph: 0.85,
	domain.DiscoverySourceKubernetes:       0.75,
}

// MaxObservationBoost caps how much repeated observation can raise a source's
// base confidence.
const MaxObservationBoost = 0.10

// ObservationBoostRate scales the logarithmic contribution of observation
// count to confidence.
const ObservationBoostRate = 0.02

// ConfidenceScore computes a discovery source's confidence score from its
// base score and how many times the edge has been observed, clamped to
// [0, 1].
func ConfidenceScore(source domain.DiscoverySource, observationCount int) float64 {
	base := baseConfidence[source]
	boost := math.Min(MaxObservationBoost, ObservationBoostRate*math.Log(float64(observationCount)+1))
	score := base + boost
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Conflict records that one discovery source's edge took priority over
// another's for the same (source, target) pair.
type Conflict struct {
	ExistingSource domain.DiscoverySource
	NewSource      domain.DiscoverySource
	Resolution     string
}

// Result is the outcome of reconciling every known edge between one
// (source, target) pair.
type Result struct {
	Retained  *domain.DependencyEdge
	Conflicts []Conflict
}

// priority returns the merge rank of a discovery source; lower means higher
// priority. Manual beats service_mesh beats otel_service_graph beats
// kubernetes, matching DiscoverySource's declaration order.
func priority(s domain.DiscoverySource) int {
	return int(s)
}

// Reconcile picks the highest-priority edge among every edge discovered for
// the same (source, target) pair, regardless of which discovery source
// found it, and records a conflict for every edge it overrides. A single
// edge is returned unchanged with no conflicts. Reconcile does not mutate
// any of its inputs or the graph; it is a pure read-time view.
func Reconcile(edges []*domain.DependencyEdge) Result {
	if len(edges) == 0 {
		return Result{}
	}

	retained := edges[0]
	for _, e := range edges[1:] {
		if priority(e.DiscoverySource) < priority(retained.DiscoverySource) {
			retained = e
		}
	}

	var conflicts []Conflict
	for _, e := range edges {
		if e == retained {
			continue
		}
		conflicts = append(conflicts, Conflict{
			ExistingSource: retained.DiscoverySource,
			NewSource:      e.DiscoverySource,
			Resolution:     retained.DiscoverySource.String() + " takes priority over " + e.DiscoverySource.String(),
		})
	}

	return Result{Retained: retained, Conflicts: conflicts}
}
