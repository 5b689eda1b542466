// Package budget computes monthly error-budget consumption for a service and
// its hard-sync dependencies, classifying each as low, moderate, or high risk.
package budget

import "slograph/pkg/domain"

// MonthlyMinutes is the number of minutes in a 30-day month used to size the
// monthly error budget.
const MonthlyMinutes = 43200.0

// Risk classification thresholds, expressed as error-budget consumption
// percentages.
const (
	HighRiskThreshold     = 30.0
	ModerateRiskThreshold = 20.0
)

// uncappedConsumption is the sentinel returned for a dependency/self
// consumption figure when the SLO target leaves no error budget at all.
const uncappedConsumption = 999999.99

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Dependency is one hard-sync dependency's observed availability, feeding
// into the per-dependency consumption calculation.
type Dependency struct {
	ServiceID    string
	Availability float64
}

// DependencyAssessment is the computed consumption and risk level for a
// single dependency.
type DependencyAssessment struct {
	ServiceID        string
	Availability     float64
	ConsumptionPct   float64
	Risk             RiskLevel
}

// Breakdown is the full error-budget analysis for a service.
type Breakdown struct {
	TotalBudgetMinutes            float64
	SelfConsumptionPct            float64
	Dependencies                  []DependencyAssessment
	HighRiskDependencies          []string
	TotalDependencyConsumptionPct float64
}

// MonthlyBudgetMinutes returns the monthly error-budget size, in minutes, for
// an SLO target expressed as a percentage (e.g. 99.9).
func MonthlyBudgetMinutes(targetPct float64) float64 {
	return (1.0 - targetPct/100.0) * MonthlyMinutes
}

// ConsumptionPct returns the percentage of the error budget consumed by an
// availability figure at the given SLO target. It can exceed 100 when the
// input is less available than the target allows, and saturates to a large
// sentinel when the target leaves no budget at all (target >= 100%).
func ConsumptionPct(availability, targetPct float64) float64 {
	errorBudget := 1.0 - targetPct/100.0
	if errorBudget <= 0 {
		return uncappedConsumption
	}
	unavailability := 1.0 - availability
	return (unavailability / errorBudget) * 100.0
}

// ClassifyRisk maps a consumption percentage onto a risk tier.
func ClassifyRisk(consumptionPct float64) RiskLevel {
	switch {
	case domain.FloatGreater(consumptionPct, HighRiskThreshold):
		return RiskHigh
	case consumptionPct >= ModerateRiskThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

// Analyze computes the full error-budget breakdown for a service given its
// own observed availability, its SLO target, and its hard-sync dependencies.
// Soft and async dependencies do not consume error budget and must be
// excluded from deps before calling Analyze.
func Analyze(selfAvailability, targetPct float64, deps []Dependency) Breakdown {
	breakdown := Breakdown{
		TotalBudgetMinutes: MonthlyBudgetMinutes(targetPct),
		SelfConsumptionPct: ConsumptionPct(selfAvailability, targetPct),
	}

	for _, dep := range deps {
		consumption := ConsumptionPct(dep.Availability, targetPct)
		risk := ClassifyRisk(consumption)

		breakdown.Dependencies = append(breakdown.Dependencies, DependencyAssessment{
			ServiceID:      dep.ServiceID,
			Availability:   dep.Availability,
			ConsumptionPct: consumption,
			Risk:           risk,
		})
		breakdown.TotalDependencyConsumptionPct += consumption

		if risk == RiskHigh {
			breakdown.HighRiskDependencies = append(breakdown.HighRiskDependencies, dep.ServiceID)
		}
	}

	return breakdown
}
