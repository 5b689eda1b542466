package http

import (
	"fmt"
	"time"

	"slograph/pkg/apperror"
	"slograph/pkg/domain"
)

// serviceDTO is the wire representation of a domain.Service: pkg/domain
// types carry no json tags by design (storage and analysis never serialize
// them directly), so this package owns the one-way translation at the
// boundary via a convertX-style helper per type.
type serviceDTO struct {
	ServiceID    string            `json:"service_id"`
	Team         string            `json:"team,omitempty"`
	Criticality  string            `json:"criticality"`
	Type         string            `json:"type"`
	PublishedSLA *float64          `json:"published_sla,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Discovered   bool              `json:"discovered"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func toServiceDTO(s *domain.Service) serviceDTO {
	return serviceDTO{
		ServiceID:    s.ServiceID,
		Team:         s.Team,
		Criticality:  s.Criticality.String(),
		Type:         s.Type.String(),
		PublishedSLA: s.PublishedSLA,
		Metadata:     s.Metadata,
		Discovered:   s.Discovered,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// edgeDTO is the wire representation of a domain.DependencyEdge.
type edgeDTO struct {
	From              string            `json:"from"`
	To                string            `json:"to"`
	CommunicationMode string            `json:"communication_mode"`
	Criticality       string            `json:"criticality"`
	Protocol          *string           `json:"protocol,omitempty"`
	TimeoutMs         *int              `json:"timeout_ms,omitempty"`
	RetryConfig       map[string]string `json:"retry_config,omitempty"`
	DiscoverySource   string            `json:"discovery_source"`
	ConfidenceScore   float64           `json:"confidence_score"`
	LastObservedAt    time.Time         `json:"last_observed_at"`
	IsStale           bool              `json:"is_stale"`
}

func toEdgeDTO(e *domain.DependencyEdge) edgeDTO {
	return edgeDTO{
		From:              e.From,
		To:                e.To,
		CommunicationMode: e.CommunicationMode.String(),
		Criticality:       e.Criticality.String(),
		Protocol:          e.Protocol,
		TimeoutMs:         e.TimeoutMs,
		RetryConfig:       e.RetryConfig,
		DiscoverySource:   e.DiscoverySource.String(),
		ConfidenceScore:   e.ConfidenceScore,
		LastObservedAt:    e.LastObservedAt,
		IsStale:           e.IsStale,
	}
}

// parseServiceCriticality maps the wire vocabulary onto domain.ServiceCriticality,
// defaulting unrecognized or absent values to medium per the ingestion
// auto-discovery rule.
func parseServiceCriticality(s string) (domain.ServiceCriticality, error) {
	switch s {
	case "", "medium":
		return domain.ServiceCriticalityMedium, nil
	case "low":
		return domain.ServiceCriticalityLow, nil
	case "high":
		return domain.ServiceCriticalityHigh, nil
	case "critical":
		return domain.ServiceCriticalityCritical, nil
	default:
		return domain.ServiceCriticalityUnspecified, apperror.NewWithField(apperror.CodeInvalidArgument,
			fmt.Sprintf("unrecognized criticality %q: must be one of low, medium, high, critical", s), "criticality")
	}
}

func parseCommunicationMode(s string) (domain.CommunicationMode, error) {
	switch s {
	case "sync":
		return domain.CommunicationModeSync, nil
	case "async":
		return domain.CommunicationModeAsync, nil
	default:
		return domain.CommunicationModeUnspecified, apperror.NewWithField(apperror.CodeInvalidArgument,
			fmt.Sprintf("unrecognized communication_mode %q: must be sync or async", s), "communication_mode")
	}
}

func parseEdgeCriticality(s string) (domain.EdgeCriticality, error) {
	switch s {
	case "hard":
		return domain.EdgeCriticalityHard, nil
	case "soft":
		return domain.EdgeCriticalitySoft, nil
	case "degraded":
		return domain.EdgeCriticalityDegraded, nil
	default:
		return domain.EdgeCriticalityUnspecified, apperror.NewWithField(apperror.CodeInvalidArgument,
			fmt.Sprintf("unrecognized edge criticality %q: must be hard, soft, or degraded", s), "criticality")
	}
}
