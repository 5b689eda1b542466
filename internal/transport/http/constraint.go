package http

import (
	"net/http"
	"strconv"

	"slograph/internal/constraint"
	"slograph/pkg/apperror"
)

type dependencyRiskDTO struct {
	ServiceID      string  `json:"service_id"`
	Availability   float64 `json:"availability"`
	ConsumptionPct float64 `json:"consumption_pct"`
	Risk           string  `json:"risk"`
	IsExternal     bool    `json:"is_external"`
}

type unachievableWarningDTO struct {
	DesiredTargetPct        float64 `json:"desired_target_pct"`
	CompositeBoundPct       float64 `json:"composite_bound_pct"`
	Gap                     float64 `json:"gap"`
	RequiredDepAvailability float64 `json:"required_dependency_availability"`
	Message                 string  `json:"message"`
	RemediationGuidance     string  `json:"remediation_guidance"`
}

type constraintAnalysisResponse struct {
	ServiceID                 string                   `json:"service_id"`
	AnalyzedAt                string                   `json:"analyzed_at"`
	DesiredTargetPct          float64                  `json:"desired_target_pct"`
	CompositeAvailabilityPct  float64                  `json:"composite_availability_pct"`
	IsAchievable              bool                     `json:"is_achievable"`
	HasHighRiskDependencies   bool                     `json:"has_high_risk_dependencies"`
	DependencyRisks           []dependencyRiskDTO      `json:"dependency_risks"`
	TotalBudgetMinutes        float64                  `json:"total_budget_minutes"`
	SelfConsumptionPct        float64                  `json:"self_consumption_pct"`
	UnachievableWarning       *unachievableWarningDTO  `json:"unachievable_warning,omitempty"`
	SoftDependencyNames       []string                 `json:"soft_dependency_names,omitempty"`
	SCCSupernodes             [][]string               `json:"scc_supernodes,omitempty"`
	TotalHardDependencies     int                      `json:"total_hard_dependencies"`
	TotalSoftDependencies     int                      `json:"total_soft_dependencies"`
	TotalExternalDependencies int                      `json:"total_external_dependencies"`
	LookbackDays              int                      `json:"lookback_days"`
	MaxDepth                  int                      `json:"max_depth"`
}

func toConstraintResponse(result *constraint.Result) constraintAnalysisResponse {
	risks := make([]dependencyRiskDTO, 0, len(result.DependencyRisks))
	for _, dr := range result.DependencyRisks {
		risks = append(risks, dependencyRiskDTO{
			ServiceID:      dr.ServiceID,
			Availability:   dr.Availability,
			ConsumptionPct: dr.ConsumptionPct,
			Risk:           string(dr.Risk),
			IsExternal:     dr.IsExternal,
		})
	}

	var warning *unachievableWarningDTO
	if result.UnachievableWarning != nil {
		warning = &unachievableWarningDTO{
			DesiredTargetPct:        result.UnachievableWarning.DesiredTargetPct,
			CompositeBoundPct:       result.UnachievableWarning.CompositeBoundPct,
			Gap:                     result.UnachievableWarning.Gap,
			RequiredDepAvailability: result.UnachievableWarning.RequiredDepAvailability,
			Message:                 result.UnachievableWarning.Message,
			RemediationGuidance:     result.UnachievableWarning.RemediationGuidance,
		}
	}

	return constraintAnalysisResponse{
		ServiceID:                 result.ServiceID,
		AnalyzedAt:                result.AnalyzedAt.Format(httpTimeFormat),
		DesiredTargetPct:          result.DesiredTargetPct,
		CompositeAvailabilityPct:  result.CompositeAvailabilityPct,
		IsAchievable:              result.IsAchievable,
		HasHighRiskDependencies:   result.HasHighRiskDependencies,
		DependencyRisks:           risks,
		TotalBudgetMinutes:        result.TotalBudgetMinutes,
		SelfConsumptionPct:        result.SelfConsumptionPct,
		UnachievableWarning:       warning,
		SoftDependencyNames:       result.SoftDependencyNames,
		SCCSupernodes:             result.SCCSupernodes,
		TotalHardDependencies:     result.TotalHardDependencies,
		TotalSoftDependencies:     result.TotalSoftDependencies,
		TotalExternalDependencies: result.TotalExternalDependencies,
		LookbackDays:              result.LookbackDays,
		MaxDepth:                  result.MaxDepth,
	}
}

const httpTimeFormat = "2006-01-02T15:04:05Z07:00"

// handleConstraintAnalysis runs the full constraint-analysis pipeline (C9)
// for a service at its requested or default target.
func (h *Handler) handleConstraintAnalysis(w http.ResponseWriter, r *http.Request) {
	req, err := parseConstraintQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.Constraint.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toConstraintResponse(result))
}

// handleErrorBudget is the lighter error-budget-only view, restricted to a
// depth-1 (direct dependencies only) analysis.
func (h *Handler) handleErrorBudget(w http.ResponseWriter, r *http.Request) {
	req, err := parseConstraintQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.MaxDepth = 1

	result, err := h.Constraint.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toConstraintResponse(result))
}

func parseConstraintQuery(r *http.Request) (constraint.Request, error) {
	serviceID := r.PathValue("service_id")
	q := r.URL.Query()

	req := constraint.Request{
		ServiceID:    serviceID,
		LookbackDays: 30,
		MaxDepth:     5,
	}

	if raw := q.Get("desired_target_pct"); raw != "" {
		pct, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return constraint.Request{}, apperror.NewWithField(apperror.CodeInvalidArgument,
				"desired_target_pct must be a number", "desired_target_pct")
		}
		if pct < 90 || pct > 99.9999 {
			return constraint.Request{}, apperror.NewWithField(apperror.CodeInvalidArgument,
				"desired_target_pct must be in [90, 99.9999]", "desired_target_pct")
		}
		req.DesiredTargetPct = &pct
	}

	if raw := q.Get("lookback_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 7 || days > 365 {
			return constraint.Request{}, apperror.NewWithField(apperror.CodeInvalidArgument,
				"lookback_days must be an integer in [7,365]", "lookback_days")
		}
		req.LookbackDays = days
	}

	if raw := q.Get("max_depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 1 || depth > 10 {
			return constraint.Request{}, apperror.NewWithField(apperror.CodeInvalidArgument,
				"max_depth must be an integer in [1,10]", "max_depth")
		}
		req.MaxDepth = depth
	}

	return req, nil
}
