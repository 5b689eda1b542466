package lifecycle

import "testing"

func TestResolveTierTargets_UsesConfiguredOverride(t *testing.T) {
	configured := map[string]TierTargets{
		"balanced": {AvailabilityTargetPct: 99.95, LatencyP95Ms: 100, LatencyP99Ms: 400},
	}
	got := resolveTierTargets(TierBalanced, configured)
	if got.AvailabilityTargetPct != 99.95 {
		t.Errorf("expected configured override to win, got %+v", got)
	}
}

func TestResolveTierTargets_FallsBackToHardcodedDefaults(t *testing.T) {
	got := resolveTierTargets(TierAggressive, nil)
	if got.AvailabilityTargetPct != 99.95 {
		t.Errorf("expected hardcoded aggressive default, got %+v", got)
	}
}

func TestResolveTierTargets_UnknownTierFallsBackToBalanced(t *testing.T) {
	got := resolveTierTargets(Tier("nonsense"), nil)
	want := tierDefaults[TierBalanced]
	if got != want {
		t.Errorf("expected balanced fallback %+v, got %+v", want, got)
	}
}

func TestSnapshotOf_NilSLOReturnsNil(t *testing.T) {
	if snapshotOf(nil) != nil {
		t.Error("expected nil snapshot for nil active SLO")
	}
}

func TestSnapshotOf_CapturesFields(t *testing.T) {
	availability := 99.9
	slo := &ActiveSLO{
		ServiceID:          "checkout",
		AvailabilityTarget: &availability,
		Source:             SourceManual,
		SelectedTier:       TierBalanced,
		ActivatedBy:        "alice@example.com",
	}
	snap := snapshotOf(slo)
	if snap == nil {
		t.Fatal("expected a non-nil snapshot")
	}
	if *snap.AvailabilityTarget != 99.9 {
		t.Errorf("expected snapshot availability 99.9, got %v", *snap.AvailabilityTarget)
	}
	if snap.ActivatedBy != "alice@example.com" {
		t.Errorf("expected snapshot to capture ActivatedBy, got %q", snap.ActivatedBy)
	}
}
