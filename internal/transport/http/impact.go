package http

import (
	"net/http"

	"slograph/internal/impact"
	"slograph/pkg/apperror"
)

type proposedChangeDTO struct {
	SLIType          string  `json:"sli_type"`
	CurrentTargetPct float64 `json:"current_target_pct"`
	ProposedTargetPct float64 `json:"proposed_target_pct"`
}

type impactAnalysisRequest struct {
	ProposedChange proposedChangeDTO `json:"proposed_change"`
	MaxDepth       int               `json:"max_depth"`
}

type impactedServiceDTO struct {
	ServiceID                         string   `json:"service_id"`
	Relationship                      string   `json:"relationship"`
	CurrentCompositeAvailabilityPct   float64  `json:"current_composite_availability_pct"`
	ProjectedCompositeAvailabilityPct float64  `json:"projected_composite_availability_pct"`
	Delta                             float64  `json:"delta"`
	CurrentSLOTarget                  *float64 `json:"current_slo_target,omitempty"`
	SLOAtRisk                         *bool    `json:"slo_at_risk,omitempty"`
	RiskDetail                        string   `json:"risk_detail,omitempty"`
	Depth                             int      `json:"depth"`
}

type impactSummaryDTO struct {
	TotalImpacted  int    `json:"total_impacted"`
	SLOsAtRisk     int    `json:"slos_at_risk"`
	Recommendation string `json:"recommendation"`
	LatencyNote    string `json:"latency_note,omitempty"`
}

type impactAnalysisResponse struct {
	ServiceID        string                `json:"service_id"`
	ProposedChange   proposedChangeDTO     `json:"proposed_change"`
	ImpactedServices []impactedServiceDTO  `json:"impacted_services"`
	Summary          impactSummaryDTO      `json:"summary"`
}

// handleImpactAnalysis runs C10 for a proposed SLI target change on one
// service, scoped by the path's service_id rather than a body field, to
// keep every endpoint's resource addressed the same way.
func (h *Handler) handleImpactAnalysis(w http.ResponseWriter, r *http.Request) {
	serviceID := r.PathValue("service_id")

	var body impactAnalysisRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	if body.ProposedChange.SLIType == "" {
		writeError(w, r, apperror.NewWithField(apperror.CodeInvalidArgument,
			"proposed_change.sli_type is required", "proposed_change.sli_type"))
		return
	}

	result, err := h.Impact.Analyze(r.Context(), impact.Request{
		ServiceID: serviceID,
		ProposedChange: impact.ProposedChange{
			SLIType:           body.ProposedChange.SLIType,
			CurrentTargetPct:  body.ProposedChange.CurrentTargetPct,
			ProposedTargetPct: body.ProposedChange.ProposedTargetPct,
		},
		MaxDepth: body.MaxDepth,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	impacted := make([]impactedServiceDTO, 0, len(result.ImpactedServices))
	for _, svc := range result.ImpactedServices {
		impacted = append(impacted, impactedServiceDTO{
			ServiceID:                         svc.ServiceID,
			Relationship:                      svc.Relationship,
			CurrentCompositeAvailabilityPct:   svc.CurrentCompositeAvailabilityPct,
			ProjectedCompositeAvailabilityPct: svc.ProjectedCompositeAvailabilityPct,
			Delta:                             svc.Delta,
			CurrentSLOTarget:                  svc.CurrentSLOTarget,
			SLOAtRisk:                         svc.SLOAtRisk,
			RiskDetail:                        svc.RiskDetail,
			Depth:                             svc.Depth,
		})
	}

	writeJSON(w, http.StatusOK, impactAnalysisResponse{
		ServiceID:      result.ServiceID,
		ProposedChange: body.ProposedChange,
		ImpactedServices: impacted,
		Summary: impactSummaryDTO{
			TotalImpacted:  result.Summary.TotalImpacted,
			SLOsAtRisk:     result.Summary.SLOsAtRisk,
			Recommendation: result.Summary.Recommendation,
			LatencyNote:    result.Summary.LatencyNote,
		},
	})
}
