package impact

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestCompute_NoUpstream_EmptyResult(t *testing.T) {
	result := Compute("ledger", ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.0}, nil, nil, nil)
	if len(result.ImpactedServices) != 0 {
		t.Fatalf("expected no impacted services, got %d", len(result.ImpactedServices))
	}
	if result.Summary.TotalImpacted != 0 || result.Summary.SLOsAtRisk != 0 {
		t.Errorf("expected zeroed summary, got %+v", result.Summary)
	}
}

func TestCompute_DegradationLowersProjectedBound(t *testing.T) {
	upstream := []UpstreamService{
		{
			ServiceID: "payments",
			Depth:     1,
			Dependencies: []Dependency{
				{TargetID: "ledger", IsHard: true},
			},
		},
	}
	availabilities := map[string]float64{"payments": 0.999}

	result := Compute("ledger", ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.0}, upstream, availabilities, nil)
	if len(result.ImpactedServices) != 1 {
		t.Fatalf("expected 1 impacted service, got %d", len(result.ImpactedServices))
	}
	impacted := result.ImpactedServices[0]
	if impacted.ProjectedCompositeAvailabilityPct >= impacted.CurrentCompositeAvailabilityPct {
		t.Errorf("expected projected bound to drop below current: current=%v projected=%v",
			impacted.CurrentCompositeAvailabilityPct, impacted.ProjectedCompositeAvailabilityPct)
	}
	if impacted.Delta >= 0 {
		t.Errorf("expected negative delta for a degradation, got %v", impacted.Delta)
	}
}

func TestCompute_RelationshipLabelByDepth(t *testing.T) {
	upstream := []UpstreamService{
		{ServiceID: "direct", Depth: 1, Dependencies: []Dependency{{TargetID: "ledger", IsHard: true}}},
		{ServiceID: "transitive", Depth: 2, Dependencies: []Dependency{{TargetID: "ledger", IsHard: true}}},
	}
	result := Compute("ledger", ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.5}, upstream, nil, nil)

	byID := make(map[string]ImpactedService)
	for _, s := range result.ImpactedServices {
		byID[s.ServiceID] = s
	}
	if byID["direct"].Relationship != "upstream" {
		t.Errorf("expected depth-1 relationship %q, got %q", "upstream", byID["direct"].Relationship)
	}
	if byID["transitive"].Relationship != "upstream (transitive, depth=2)" {
		t.Errorf("unexpected transitive relationship label: %q", byID["transitive"].Relationship)
	}
}

func TestCompute_SLOAtRiskFlaggedWhenProjectedBelowTarget(t *testing.T) {
	upstream := []UpstreamService{
		{ServiceID: "payments", Depth: 1, Dependencies: []Dependency{{TargetID: "ledger", IsHard: true}}},
	}
	activeTargets := map[string]float64{"payments": 99.99}

	result := Compute("ledger", ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 95.0}, upstream, nil, activeTargets)
	impacted := result.ImpactedServices[0]
	if impacted.SLOAtRisk == nil || !*impacted.SLOAtRisk {
		t.Fatal("expected SLOAtRisk to be true given a severe degradation")
	}
	if impacted.RiskDetail == "" {
		t.Error("expected a populated risk detail message")
	}
	if result.Summary.SLOsAtRisk != 1 {
		t.Errorf("expected 1 SLO at risk, got %d", result.Summary.SLOsAtRisk)
	}
}

func TestCompute_NoActiveTargetLeavesRiskUnset(t *testing.T) {
	upstream := []UpstreamService{
		{ServiceID: "payments", Depth: 1, Dependencies: []Dependency{{TargetID: "ledger", IsHard: true}}},
	}
	result := Compute("ledger", ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.5}, upstream, nil, nil)
	impacted := result.ImpactedServices[0]
	if impacted.SLOAtRisk != nil {
		t.Errorf("expected nil SLOAtRisk when no active target exists, got %v", *impacted.SLOAtRisk)
	}
}

func TestCompute_SortedByAbsoluteDeltaDescending(t *testing.T) {
	upstream := []UpstreamService{
		{ServiceID: "small-delta", Depth: 1, Dependencies: []Dependency{
			{TargetID: "ledger", IsHard: true},
			{TargetID: "cache", IsHard: true},
		}},
		{ServiceID: "big-delta", Depth: 1, Dependencies: []Dependency{
			{TargetID: "ledger", IsHard: true},
		}},
	}
	availabilities := map[string]float64{"cache": 0.9999}

	result := Compute("ledger", ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 90.0}, upstream, availabilities, nil)
	if len(result.ImpactedServices) != 2 {
		t.Fatalf("expected 2 impacted services, got %d", len(result.ImpactedServices))
	}
	first, second := result.ImpactedServices[0], result.ImpactedServices[1]
	if math.Abs(first.Delta) < math.Abs(second.Delta) {
		t.Errorf("expected services sorted by descending |delta|, got %v then %v", first.Delta, second.Delta)
	}
}

func TestCompute_OnlyChangedDependencySubstituted(t *testing.T) {
	upstream := []UpstreamService{
		{ServiceID: "payments", Depth: 1, Dependencies: []Dependency{
			{TargetID: "ledger", IsHard: true},
			{TargetID: "fraud", IsHard: true},
		}},
	}
	availabilities := map[string]float64{"fraud": 0.95}

	result := Compute("ledger", ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.9}, upstream, availabilities, nil)
	impacted := result.ImpactedServices[0]
	// unchanged proposal for ledger means current and projected bounds should match exactly
	if !almostEqual(impacted.CurrentCompositeAvailabilityPct, impacted.ProjectedCompositeAvailabilityPct) {
		t.Errorf("expected identical bounds when target is unchanged, got current=%v projected=%v",
			impacted.CurrentCompositeAvailabilityPct, impacted.ProjectedCompositeAvailabilityPct)
	}
}

func TestCompute_RecommendationVariants(t *testing.T) {
	noImpact := Compute("ledger", ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.0}, nil, nil, nil)
	if noImpact.Summary.Recommendation == "" {
		t.Error("expected a non-empty recommendation for zero-impact case")
	}

	upstream := []UpstreamService{
		{ServiceID: "payments", Depth: 1, Dependencies: []Dependency{{TargetID: "ledger", IsHard: true}}},
	}
	safe := Compute("ledger", ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.89}, upstream, nil, nil)
	if safe.Summary.SLOsAtRisk != 0 {
		t.Fatalf("expected no SLOs at risk for a negligible change, got %d", safe.Summary.SLOsAtRisk)
	}
	if safe.Summary.Recommendation == "" {
		t.Error("expected a non-empty recommendation for the no-risk case")
	}

	risky := Compute("ledger", ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 90.0}, upstream, nil, map[string]float64{"payments": 99.99})
	if risky.Summary.SLOsAtRisk == 0 {
		t.Fatal("expected at least one SLO at risk for a severe degradation")
	}
	if risky.Summary.Recommendation == "" {
		t.Error("expected a non-empty recommendation for the at-risk case")
	}
}

func TestCompute_LatencyNoteAttachedForLatencySLI(t *testing.T) {
	result := Compute("ledger", ProposedChange{SLIType: "latency", CurrentTargetPct: 200, ProposedTargetPct: 150}, nil, nil, nil)
	if result.Summary.LatencyNote == "" {
		t.Error("expected a latency note when SLIType is latency")
	}
}

func TestCompute_LatencyNoteAttachedForDegradation(t *testing.T) {
	result := Compute("ledger", ProposedChange{SLIType: "availability", CurrentTargetPct: 99.9, ProposedTargetPct: 99.0}, nil, nil, nil)
	if result.Summary.LatencyNote == "" {
		t.Error("expected a latency note to also be attached for any degradation")
	}
}

func TestCompute_NoLatencyNoteForImprovement(t *testing.T) {
	result := Compute("ledger", ProposedChange{SLIType: "availability", CurrentTargetPct: 99.0, ProposedTargetPct: 99.9}, nil, nil, nil)
	if result.Summary.LatencyNote != "" {
		t.Errorf("expected no latency note for an improvement, got %q", result.Summary.LatencyNote)
	}
}

func TestProposedChange_IsDegradation(t *testing.T) {
	if !(ProposedChange{CurrentTargetPct: 99.9, ProposedTargetPct: 99.0}).IsDegradation() {
		t.Error("expected a lowered target to be a degradation")
	}
	if (ProposedChange{CurrentTargetPct: 99.0, ProposedTargetPct: 99.9}).IsDegradation() {
		t.Error("expected a raised target to not be a degradation")
	}
}
