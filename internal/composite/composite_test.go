package composite

import "testing"

func TestCompute_OnlyHardDependenciesCount(t *testing.T) {
	result := Compute(0.999, []Dependency{
		{ServiceID: "payments", Availability: 0.995, IsHard: true},
		{ServiceID: "recs", Availability: 0.5, IsHard: false}, // soft, ignored
	})

	expected := 0.999 * 0.995
	if diff := result.Bound - expected; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected bound %f, got %f", expected, result.Bound)
	}
	if result.ConsideredCount != 1 {
		t.Fatalf("expected 1 considered dependency, got %d", result.ConsideredCount)
	}
}

func TestCompute_RedundantGroupCombination(t *testing.T) {
	result := Compute(1.0, []Dependency{
		{ServiceID: "cache-a", Availability: 0.9, IsHard: true, RedundantGroup: "cache"},
		{ServiceID: "cache-b", Availability: 0.9, IsHard: true, RedundantGroup: "cache"},
	})

	// combined = 1 - (1-0.9)*(1-0.9) = 1 - 0.01 = 0.99
	expected := 0.99
	if diff := result.Bound - expected; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected redundant-group bound %f, got %f", expected, result.Bound)
	}
	if result.ConsideredCount != 1 {
		t.Fatalf("expected the redundant group to count once, got %d", result.ConsideredCount)
	}
}

func TestCompute_SubstitutesMissingTelemetry(t *testing.T) {
	result := Compute(1.0, []Dependency{
		{ServiceID: "ledger", IsHard: true, Substituted: true},
	})

	if len(result.Substitutions) != 1 {
		t.Fatalf("expected 1 recorded substitution, got %d", len(result.Substitutions))
	}
	if result.Substitutions[0].Used != DefaultSubstitutedAvailability {
		t.Fatalf("expected substituted availability %f, got %f", DefaultSubstitutedAvailability, result.Substitutions[0].Used)
	}
}

func TestCompute_NoDependencies_ReturnsSelf(t *testing.T) {
	result := Compute(0.9995, nil)

	if result.Bound != 0.9995 {
		t.Fatalf("expected bound to equal self availability, got %f", result.Bound)
	}
	if result.ConsideredCount != 0 {
		t.Fatalf("expected 0 considered dependencies, got %d", result.ConsideredCount)
	}
}
