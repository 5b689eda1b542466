// Package unachievable flags SLO targets that are mathematically impossible
// given a service's composite availability bound, applying the 10x rule to
// suggest what each hard dependency would need to provide instead.
package unachievable

import (
	"fmt"
	"strings"

	"slograph/pkg/domain"
)

// Warning describes why a desired SLO target cannot be met by the current
// dependency chain, and what would need to change.
type Warning struct {
	DesiredTargetPct        float64
	CompositeBoundPct       float64
	Gap                     float64
	RequiredDepAvailability float64
	Message                 string
	RemediationGuidance     string
}

// Check compares a desired SLO target against a composite availability bound
// and the number of hard-sync dependencies feeding it. It returns nil when
// the target is achievable (composite bound meets or exceeds the target,
// within domain.Epsilon), and a populated Warning otherwise.
func Check(desiredTargetPct, compositeBound float64, hardDependencyCount int) *Warning {
	desiredTargetRatio := desiredTargetPct / 100.0

	if domain.FloatGreater(compositeBound, desiredTargetRatio) || domain.FloatEquals(compositeBound, desiredTargetRatio) {
		return nil
	}

	compositeBoundPct := compositeBound * 100.0
	gap := desiredTargetPct - compositeBoundPct
	requiredPct := RequiredDependencyAvailability(desiredTargetPct, hardDependencyCount)

	return &Warning{
		DesiredTargetPct:        desiredTargetPct,
		CompositeBoundPct:       compositeBoundPct,
		Gap:                     gap,
		RequiredDepAvailability: requiredPct,
		Message:                warningMessage(desiredTargetPct, compositeBoundPct),
		RemediationGuidance:     remediationGuidance(requiredPct, hardDependencyCount),
	}
}

// RequiredDependencyAvailability applies the 10x rule: the service's error
// budget is split evenly across itself and its N hard dependencies (N+1
// components total), so each dependency must provide 1 - errorBudget/(N+1).
func RequiredDependencyAvailability(desiredTargetPct float64, hardDependencyCount int) float64 {
	if hardDependencyCount == 0 {
		return desiredTargetPct
	}

	targetRatio := desiredTargetPct / 100.0
	errorBudget := 1.0 - targetRatio
	perComponentBudget := errorBudget / float64(hardDependencyCount+1)

	return (1.0 - perComponentBudget) * 100.0
}

func warningMessage(desiredTargetPct, compositeBoundPct float64) string {
	return fmt.Sprintf(
		"The desired target of %g%% is unachievable. Composite availability bound is %.2f%% given current dependency chain.",
		desiredTargetPct, compositeBoundPct,
	)
}

func remediationGuidance(requiredPct float64, hardDependencyCount int) string {
	lines := []string{
		"Suggested remediations:",
		"1. Add redundant paths: deploy replicas for critical dependencies to achieve parallel availability.",
		fmt.Sprintf("2. Convert to async: move %d hard sync dependencies to async/queue-based communication.", hardDependencyCount),
		fmt.Sprintf("3. Relax target: consider a more achievable target given %d hard dependencies (each needs %.4f%% availability).", hardDependencyCount, requiredPct),
	}
	return strings.Join(lines, "\n")
}
