package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Standard span/attribute keys used across the ingestion, analysis, and
// lifecycle packages.
const (
	// Graph
	AttrGraphServices = "graph.services"
	AttrGraphEdges    = "graph.edges"
	AttrServiceID     = "graph.service_id"
	AttrCyclesFound   = "graph.cycles_found"

	// Constraint analysis
	AttrAnalysisMode       = "analysis.mode"
	AttrTargetAvailability = "analysis.target_availability"
	AttrComputedBound      = "analysis.computed_bound"
	AttrDependencyDepth    = "analysis.dependency_depth"

	// Validation
	AttrValidationLevel  = "validation.level"
	AttrValidationErrors = "validation.errors"
	AttrValidationPassed = "validation.passed"

	// Impact / unachievability
	AttrImpactedServicesCount = "impact.affected_services_count"
	AttrUnachievableGapPct    = "unachievable.gap_pct"
)

// GraphAttributes returns attributes describing the shape of the dependency
// graph under analysis.
func GraphAttributes(services, edges int, serviceID string, cyclesFound int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrGraphServices, services),
		attribute.Int(AttrGraphEdges, edges),
		attribute.String(AttrServiceID, serviceID),
		attribute.Int(AttrCyclesFound, cyclesFound),
	}
}

// AnalysisAttributes returns attributes describing a constraint-analysis run.
func AnalysisAttributes(mode string, targetAvailability, computedBound float64, depth int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAnalysisMode, mode),
		attribute.Float64(AttrTargetAvailability, targetAvailability),
		attribute.Float64(AttrComputedBound, computedBound),
		attribute.Int(AttrDependencyDepth, depth),
	}
}

// ValidationAttributes returns attributes describing a validation pass.
func ValidationAttributes(level string, errorsCount int, passed bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrValidationLevel, level),
		attribute.Int(AttrValidationErrors, errorsCount),
		attribute.Bool(AttrValidationPassed, passed),
	}
}

// ImpactAttributes returns attributes describing an impact-analysis run.
func ImpactAttributes(affectedServices int, unachievableGapPct float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrImpactedServicesCount, affectedServices),
		attribute.Float64(AttrUnachievableGapPct, unachievableGapPct),
	}
}
