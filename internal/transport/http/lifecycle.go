package http

import (
	"net/http"

	"github.com/google/uuid"

	"slograph/internal/lifecycle"
	"slograph/pkg/apperror"
)

type modificationsDTO struct {
	AvailabilityTargetPct *float64 `json:"availability_target_pct,omitempty"`
	LatencyP95TargetMs    *int     `json:"latency_p95_target_ms,omitempty"`
	LatencyP99TargetMs    *int     `json:"latency_p99_target_ms,omitempty"`
}

type manageSLORequest struct {
	Action           string             `json:"action"`
	SelectedTier     string             `json:"selected_tier"`
	Modifications    *modificationsDTO  `json:"modifications,omitempty"`
	Rationale        string             `json:"rationale"`
	Actor            string             `json:"actor"`
	RecommendationID *string            `json:"recommendation_id,omitempty"`
}

type activeSLODTO struct {
	ID                  string   `json:"id"`
	ServiceID           string   `json:"service_id"`
	AvailabilityTarget  *float64 `json:"availability_target,omitempty"`
	LatencyP95TargetMs  *int     `json:"latency_p95_target_ms,omitempty"`
	LatencyP99TargetMs  *int     `json:"latency_p99_target_ms,omitempty"`
	Source              string   `json:"source"`
	RecommendationID    *string  `json:"recommendation_id,omitempty"`
	SelectedTier        string   `json:"selected_tier"`
	ActivatedAt         string   `json:"activated_at"`
	ActivatedBy         string   `json:"activated_by"`
}

func toActiveSLODTO(s *lifecycle.ActiveSLO) *activeSLODTO {
	if s == nil {
		return nil
	}
	dto := &activeSLODTO{
		ID:                 s.ID.String(),
		ServiceID:          s.ServiceID,
		AvailabilityTarget: s.AvailabilityTarget,
		LatencyP95TargetMs: s.LatencyP95TargetMs,
		LatencyP99TargetMs: s.LatencyP99TargetMs,
		Source:             string(s.Source),
		SelectedTier:       string(s.SelectedTier),
		ActivatedAt:        s.ActivatedAt.Format(httpTimeFormat),
		ActivatedBy:        s.ActivatedBy,
	}
	if s.RecommendationID != nil {
		id := s.RecommendationID.String()
		dto.RecommendationID = &id
	}
	return dto
}

type manageSLOResponse struct {
	ServiceID         string            `json:"service_id"`
	Status            string            `json:"status"`
	Action            string            `json:"action"`
	ActiveSLO         *activeSLODTO     `json:"active_slo,omitempty"`
	ModificationDelta map[string]string `json:"modification_delta,omitempty"`
	Message           string            `json:"message"`
}

type snapshotDTO struct {
	AvailabilityTarget *float64 `json:"availability_target,omitempty"`
	LatencyP95TargetMs *int     `json:"latency_p95_target_ms,omitempty"`
	LatencyP99TargetMs *int     `json:"latency_p99_target_ms,omitempty"`
	Source             string   `json:"source,omitempty"`
	SelectedTier        string   `json:"selected_tier,omitempty"`
	ActivatedBy         string   `json:"activated_by,omitempty"`
}

func toSnapshotDTO(s *lifecycle.Snapshot) *snapshotDTO {
	if s == nil {
		return nil
	}
	return &snapshotDTO{
		AvailabilityTarget: s.AvailabilityTarget,
		LatencyP95TargetMs: s.LatencyP95TargetMs,
		LatencyP99TargetMs: s.LatencyP99TargetMs,
		Source:             string(s.Source),
		SelectedTier:       string(s.SelectedTier),
		ActivatedBy:        s.ActivatedBy,
	}
}

type auditEntryDTO struct {
	ID                string            `json:"id"`
	ServiceID         string            `json:"service_id"`
	Action            string            `json:"action"`
	Actor             string            `json:"actor"`
	RecommendationID  *string           `json:"recommendation_id,omitempty"`
	PreviousSLO       *snapshotDTO      `json:"previous_slo,omitempty"`
	NewSLO            *snapshotDTO      `json:"new_slo,omitempty"`
	SelectedTier      string            `json:"selected_tier,omitempty"`
	Rationale         string            `json:"rationale,omitempty"`
	ModificationDelta map[string]string `json:"modification_delta,omitempty"`
	Timestamp         string            `json:"timestamp"`
}

type auditHistoryResponse struct {
	ServiceID  string          `json:"service_id"`
	Entries    []auditEntryDTO `json:"entries"`
	TotalCount int             `json:"total_count"`
}

// handleManageSLO executes one accept/modify/reject action for a service
// (C11).
func (h *Handler) handleManageSLO(w http.ResponseWriter, r *http.Request) {
	serviceID := r.PathValue("service_id")

	var body manageSLORequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	req := lifecycle.Request{
		ServiceID:    serviceID,
		Action:       lifecycle.Action(body.Action),
		Actor:        body.Actor,
		SelectedTier: lifecycle.Tier(body.SelectedTier),
		Rationale:    body.Rationale,
	}

	if body.RecommendationID != nil {
		id, err := uuid.Parse(*body.RecommendationID)
		if err != nil {
			writeError(w, r, apperror.NewWithField(apperror.CodeInvalidArgument,
				"recommendation_id must be a UUID", "recommendation_id"))
			return
		}
		req.RecommendationID = &id
	}

	if body.Modifications != nil {
		req.Modifications = &lifecycle.Modifications{
			AvailabilityTargetPct: body.Modifications.AvailabilityTargetPct,
			LatencyP95TargetMs:    body.Modifications.LatencyP95TargetMs,
			LatencyP99TargetMs:    body.Modifications.LatencyP99TargetMs,
		}
	}

	resp, err := h.Lifecycle.Manage(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, manageSLOResponse{
		ServiceID:         resp.ServiceID,
		Status:            resp.Status,
		Action:            string(resp.Action),
		ActiveSLO:         toActiveSLODTO(resp.ActiveSLO),
		ModificationDelta: resp.ModificationDelta,
		Message:           resp.Message,
	})
}

// handleGetActiveSLO returns the currently active SLO for a service. A
// service with no accepted SLO yet is reported as NotFound, not an empty
// object.
func (h *Handler) handleGetActiveSLO(w http.ResponseWriter, r *http.Request) {
	serviceID := r.PathValue("service_id")

	active, err := h.Lifecycle.GetActiveSLO(r.Context(), serviceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if active == nil {
		writeError(w, r, apperror.NewWithField(apperror.CodeSLONotFound,
			"no active SLO for service", "service_id").WithDetails("service_id", serviceID))
		return
	}

	writeJSON(w, http.StatusOK, toActiveSLODTO(active))
}

// handleGetAuditHistory returns the full audit trail for a service, newest
// entry first.
func (h *Handler) handleGetAuditHistory(w http.ResponseWriter, r *http.Request) {
	serviceID := r.PathValue("service_id")

	history, err := h.Lifecycle.GetAuditHistory(r.Context(), serviceID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries := make([]auditEntryDTO, len(history.Entries))
	for i := 0; i < len(history.Entries); i++ {
		e := history.Entries[len(history.Entries)-1-i]
		var recID *string
		if e.RecommendationID != nil {
			id := e.RecommendationID.String()
			recID = &id
		}
		entries[i] = auditEntryDTO{
			ID:                e.ID.String(),
			ServiceID:         e.ServiceID,
			Action:            string(e.Action),
			Actor:             e.Actor,
			RecommendationID:  recID,
			PreviousSLO:       toSnapshotDTO(e.PreviousSLO),
			NewSLO:            toSnapshotDTO(e.NewSLO),
			SelectedTier:      string(e.SelectedTier),
			Rationale:         e.Rationale,
			ModificationDelta: e.ModificationDelta,
			Timestamp:         e.Timestamp.Format(httpTimeFormat),
		}
	}

	writeJSON(w, http.StatusOK, auditHistoryResponse{
		ServiceID:  serviceID,
		Entries:    entries,
		TotalCount: history.TotalCount,
	})
}
