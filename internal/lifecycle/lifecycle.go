// Package lifecycle implements the SLO recommendation lifecycle and audit
// trail (C11): accepting, modifying, or rejecting a recommended SLO moves a
// service's active target, and every action — including rejection — is
// recorded in an append-only audit log.
package lifecycle

import (
	"time"

	"github.com/google/uuid"
)

// Action is one lifecycle action taken on an SLO recommendation.
type Action string

const (
	ActionAccept          Action = "accept"
	ActionModify          Action = "modify"
	ActionReject          Action = "reject"
	ActionAutoApprove     Action = "auto_approve"
	ActionExpire          Action = "expire"
	ActionDriftTriggered  Action = "drift_triggered"
)

// Source records how an active SLO came to be set.
type Source string

const (
	SourceRecommendationAccepted Source = "recommendation_accepted"
	SourceRecommendationModified Source = "recommendation_modified"
	SourceManual                 Source = "manual"
)

// Tier is one of the three recommendation risk tiers a service can accept.
type Tier string

const (
	TierConservative Tier = "conservative"
	TierBalanced     Tier = "balanced"
	TierAggressive   Tier = "aggressive"
)

// ActiveSLO is the currently accepted SLO target for a service.
type ActiveSLO struct {
	ID                  uuid.UUID
	ServiceID           string
	AvailabilityTarget  *float64
	LatencyP95TargetMs  *int
	LatencyP99TargetMs  *int
	Source              Source
	RecommendationID    *uuid.UUID
	SelectedTier        Tier
	ActivatedAt         time.Time
	ActivatedBy         string
}

// Snapshot captures an ActiveSLO's fields for embedding in an audit entry,
// independent of any future ActiveSLO schema change.
type Snapshot struct {
	AvailabilityTarget *float64
	LatencyP95TargetMs *int
	LatencyP99TargetMs *int
	Source             Source
	SelectedTier       Tier
	ActivatedBy        string
	ActivatedAt        time.Time
}

func snapshotOf(slo *ActiveSLO) *Snapshot {
	if slo == nil {
		return nil
	}
	return &Snapshot{
		AvailabilityTarget: slo.AvailabilityTarget,
		LatencyP95TargetMs: slo.LatencyP95TargetMs,
		LatencyP99TargetMs: slo.LatencyP99TargetMs,
		Source:             slo.Source,
		SelectedTier:       slo.SelectedTier,
		ActivatedBy:        slo.ActivatedBy,
		ActivatedAt:        slo.ActivatedAt,
	}
}

// AuditEntry is an immutable record of one lifecycle action.
type AuditEntry struct {
	ID                 uuid.UUID
	ServiceID          string
	Action             Action
	Actor              string
	RecommendationID   *uuid.UUID
	PreviousSLO        *Snapshot
	NewSLO             *Snapshot
	SelectedTier       Tier
	Rationale          string
	ModificationDelta  map[string]string
	Timestamp          time.Time
}

// tierDefaults is the hardcoded fallback used when no configured tier
// defaults are supplied; ties to the "balanced" entry the way the original
// demo tier table falls back on an unknown tier name.
var tierDefaults = map[Tier]TierTargets{
	TierConservative: {AvailabilityTargetPct: 99.5, LatencyP95Ms: 300, LatencyP99Ms: 1200},
	TierBalanced:     {AvailabilityTargetPct: 99.9, LatencyP95Ms: 200, LatencyP99Ms: 800},
	TierAggressive:   {AvailabilityTargetPct: 99.95, LatencyP95Ms: 150, LatencyP99Ms: 500},
}

// TierTargets is the availability/latency target triple associated with a
// named risk tier.
type TierTargets struct {
	AvailabilityTargetPct float64
	LatencyP95Ms          int
	LatencyP99Ms          int
}

func resolveTierTargets(tier Tier, configured map[string]TierTargets) TierTargets {
	if configured != nil {
		if t, ok := configured[string(tier)]; ok {
			return t
		}
		if t, ok := configured[string(TierBalanced)]; ok {
			return t
		}
	}
	if t, ok := tierDefaults[tier]; ok {
		return t
	}
	return tierDefaults[TierBalanced]
}
