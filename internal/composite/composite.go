// Package composite computes the composite availability bound for a service
// from its own observed availability and its hard dependencies' availabilities.
package composite

import "slograph/pkg/domain"

// DefaultSubstitutedAvailability is used for an internal dependency with no
// telemetry reading, in place of a hard failure.
const DefaultSubstitutedAvailability = 0.999

// Dependency is one input to the composite bound calculation.
type Dependency struct {
	ServiceID       string
	Availability    float64
	IsHard          bool
	RedundantGroup  string // empty when not part of a redundant group
	Substituted     bool   // true if Availability was defaulted, not observed
}

// Substitution records that a dependency's availability was defaulted
// because telemetry was unavailable.
type Substitution struct {
	ServiceID string
	Used      float64
}

// Result is the outcome of a composite bound computation.
type Result struct {
	Bound            float64 // ratio in [0,1]
	BoundPct         float64
	ConsideredCount  int // hard dependencies (post redundant-group collapse) entering the product
	Substitutions    []Substitution
}

// Compute derives the composite availability bound C = s * Π a_i over hard
// dependencies, collapsing any redundant group into 1 - Π(1 - a_j) before
// it enters the product. Soft and async dependencies (IsHard == false) are
// ignored entirely.
func Compute(selfAvailability float64, deps []Dependency) Result {
	bound := selfAvailability

	var substitutions []Substitution
	groups := make(map[string][]float64)
	considered := 0

	for _, d := range deps {
		if !d.IsHard {
			continue
		}

		availability := d.Availability
		if d.Substituted {
			availability = DefaultSubstitutedAvailability
			substitutions = append(substitutions, Substitution{ServiceID: d.ServiceID, Used: availability})
		}

		if d.RedundantGroup != "" {
			groups[d.RedundantGroup] = append(groups[d.RedundantGroup], availability)
			continue
		}

		bound *= availability
		considered++
	}

	for _, members := range groups {
		unavailabilityProduct := 1.0
		for _, a := range members {
			unavailabilityProduct *= 1 - a
		}
		combined := 1 - unavailabilityProduct
		bound *= combined
		considered++
	}

	bound = domain.ClampAvailability(bound)

	return Result{
		Bound:           bound,
		BoundPct:        bound * 100,
		ConsideredCount: considered,
		Substitutions:   substitutions,
	}
}
