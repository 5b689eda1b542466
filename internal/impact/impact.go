// Package impact computes the cascading effect of a proposed SLO change on
// every upstream service (C10): for each service that transitively depends
// on the one being changed, it recomputes the composite availability bound
// under both the current and proposed target and flags any resulting SLO
// breach.
package impact

import (
	"fmt"
	"math"
	"sort"

	"slograph/internal/composite"
)

// ProposedChange describes an SLO modification under evaluation.
type ProposedChange struct {
	SLIType           string
	CurrentTargetPct  float64
	ProposedTargetPct float64
}

// IsDegradation reports whether the change lowers the target.
func (p ProposedChange) IsDegradation() bool {
	return p.ProposedTargetPct < p.CurrentTargetPct
}

// Dependency is one of an upstream service's direct dependencies, as seen
// for impact purposes: only whether it is hard/sync matters, plus its
// identity so the changed service can be singled out.
type Dependency struct {
	TargetID string
	IsHard   bool
}

// UpstreamService is one service found upstream of the service being
// changed, along with its direct dependencies.
type UpstreamService struct {
	ServiceID    string
	Depth        int
	Dependencies []Dependency
}

// ImpactedService is the computed before/after composite bound for one
// upstream service.
type ImpactedService struct {
	ServiceID                      string
	Relationship                   string
	CurrentCompositeAvailabilityPct float64
	ProjectedCompositeAvailabilityPct float64
	Delta                           float64
	CurrentSLOTarget                *float64
	SLOAtRisk                       *bool
	RiskDetail                      string
	Depth                           int
}

// Summary aggregates the impacted-service list into a few headline figures.
type Summary struct {
	TotalImpacted  int
	SLOsAtRisk     int
	Recommendation string
	LatencyNote    string
}

// Result is the full impact-analysis outcome for one proposed change.
type Result struct {
	ServiceID       string
	ProposedChange  ProposedChange
	ImpactedServices []ImpactedService
	Summary         Summary
}

const defaultAvailability = 0.999

// latencyNote is attached whenever the SLI under change is latency, or any
// degradation is proposed: percentiles can't be composed across a call
// chain the way availability ratios can.
const latencyNote = "Latency SLOs for upstream services may also be affected. " +
	"Latency impact cannot be computed mathematically (percentiles are non-additive). " +
	"Review upstream latency budgets manually."

// Compute recomputes the composite availability bound of every upstream
// service under the current and proposed target for changedServiceID, and
// flags any that would breach their own active SLO target as a result.
//
// availabilities maps a service ID to its best-known observed availability
// ratio; a missing entry defaults to 0.999. activeTargets maps a service ID
// to its active SLO target percentage, when one exists.
func Compute(changedServiceID string, change ProposedChange, upstream []UpstreamService, availabilities map[string]float64, activeTargets map[string]float64) Result {
	currentRatio := change.CurrentTargetPct / 100.0
	proposedRatio := change.ProposedTargetPct / 100.0

	impacted := make([]ImpactedService, 0, len(upstream))

	for _, u := range upstream {
		selfAvailability := availabilityOrDefault(availabilities, u.ServiceID)

		var currentDeps, projectedDeps []composite.Dependency
		for _, dep := range u.Dependencies {
			if dep.TargetID == changedServiceID {
				currentDeps = append(currentDeps, composite.Dependency{ServiceID: dep.TargetID, Availability: currentRatio, IsHard: dep.IsHard})
				projectedDeps = append(projectedDeps, composite.Dependency{ServiceID: dep.TargetID, Availability: proposedRatio, IsHard: dep.IsHard})
				continue
			}
			availability := availabilityOrDefault(availabilities, dep.TargetID)
			currentDeps = append(currentDeps, composite.Dependency{ServiceID: dep.TargetID, Availability: availability, IsHard: dep.IsHard})
			projectedDeps = append(projectedDeps, composite.Dependency{ServiceID: dep.TargetID, Availability: availability, IsHard: dep.IsHard})
		}

		currentResult := composite.Compute(selfAvailability, currentDeps)
		projectedResult := composite.Compute(selfAvailability, projectedDeps)
		delta := round2(projectedResult.BoundPct - currentResult.BoundPct)

		var sloTarget *float64
		var atRisk *bool
		var riskDetail string
		if target, ok := activeTargets[u.ServiceID]; ok {
			t := target
			sloTarget = &t
			risk := projectedResult.BoundPct < target
			atRisk = &risk
			if risk {
				riskDetail = fmt.Sprintf("composite drops below SLO target (%.1f%% > %.2f%%)", target, projectedResult.BoundPct)
			}
		}

		relationship := "upstream"
		if u.Depth != 1 {
			relationship = fmt.Sprintf("upstream (transitive, depth=%d)", u.Depth)
		}

		impacted = append(impacted, ImpactedService{
			ServiceID:                         u.ServiceID,
			Relationship:                      relationship,
			CurrentCompositeAvailabilityPct:   round2(currentResult.BoundPct),
			ProjectedCompositeAvailabilityPct: round2(projectedResult.BoundPct),
			Delta:                             delta,
			CurrentSLOTarget:                  sloTarget,
			SLOAtRisk:                         atRisk,
			RiskDetail:                        riskDetail,
			Depth:                             u.Depth,
		})
	}

	sort.SliceStable(impacted, func(i, j int) bool {
		return abs(impacted[i].Delta) > abs(impacted[j].Delta)
	})

	atRiskCount := 0
	for _, s := range impacted {
		if s.SLOAtRisk != nil && *s.SLOAtRisk {
			atRiskCount++
		}
	}

	note := ""
	if change.SLIType == "latency" || change.IsDegradation() {
		note = latencyNote
	}

	return Result{
		ServiceID:      changedServiceID,
		ProposedChange: change,
		ImpactedServices: impacted,
		Summary: Summary{
			TotalImpacted:  len(impacted),
			SLOsAtRisk:     atRiskCount,
			Recommendation: recommendation(changedServiceID, change, len(impacted), atRiskCount),
			LatencyNote:    note,
		},
	}
}

func recommendation(serviceID string, change ProposedChange, totalImpacted, atRisk int) string {
	if atRisk == 0 && totalImpacted == 0 {
		return fmt.Sprintf("No upstream services are impacted by this change to %s.", serviceID)
	}
	if atRisk == 0 {
		return fmt.Sprintf(
			"Changing %s from %g%% to %g%% affects %d upstream service(s) but none are at risk of SLO breach.",
			serviceID, change.CurrentTargetPct, change.ProposedTargetPct, totalImpacted,
		)
	}
	return fmt.Sprintf(
		"Reducing %s to %g%% puts %d upstream service(s) at risk of SLO breach.",
		serviceID, change.ProposedTargetPct, atRisk,
	)
}

func availabilityOrDefault(availabilities map[string]float64, serviceID string) float64 {
	if v, ok := availabilities[serviceID]; ok {
		return v
	}
	return defaultAvailability
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
