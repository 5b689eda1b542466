package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slograph/pkg/apperror"
)

// DefaultLockTTL bounds how long a stuck lifecycle action can hold a
// service's write lock before a crashed holder's lock expires on its own.
const DefaultLockTTL = 10 * time.Second

// Modifications carries the subset of tier targets a modify action
// overrides; a nil field leaves the tier default in place.
type Modifications struct {
	AvailabilityTargetPct *float64
	LatencyP95TargetMs    *int
	LatencyP99TargetMs    *int
}

// Request is one lifecycle action invocation.
type Request struct {
	ServiceID        string
	Action           Action
	Actor            string
	RecommendationID *uuid.UUID
	SelectedTier     Tier
	Rationale        string
	Modifications    *Modifications
}

// Response is the outcome of one lifecycle action.
type Response struct {
	ServiceID         string
	Status            string // "active" or "rejected"
	Action            Action
	ActiveSLO         *ActiveSLO
	ModificationDelta map[string]string
	Message           string
}

// AuditHistory is the audit trail for one service.
type AuditHistory struct {
	ServiceID  string
	Entries    []AuditEntry
	TotalCount int
}

// Orchestrator implements C11: it composes the lifecycle Store, an optional
// per-service Locker, and the tier-defaults table into the accept/modify/
// reject workflow.
type Orchestrator struct {
	Store       Store
	Locker      Locker // may be nil: no cross-process serialization
	LockTTL     time.Duration
	TierDefaults map[string]TierTargets // from config.LifecycleConfig.Tiers; may be nil
	Now         func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) lockTTL() time.Duration {
	if o.LockTTL > 0 {
		return o.LockTTL
	}
	return DefaultLockTTL
}

// Manage executes one accept/modify/reject action for a service.
func (o *Orchestrator) Manage(ctx context.Context, req Request) (*Response, error) {
	switch req.Action {
	case ActionAccept, ActionModify, ActionReject:
	default:
		return nil, apperror.NewWithField(apperror.CodeInvalidArgument,
			fmt.Sprintf("invalid action %q: must be accept, modify, or reject", req.Action), "action")
	}

	if o.Locker != nil {
		release, err := o.Locker.TryAcquire(ctx, req.ServiceID, o.lockTTL())
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeConflict, "service has a lifecycle action already in progress").
				WithDetails("service_id", req.ServiceID)
		}
		defer release(ctx)
	}

	switch req.Action {
	case ActionAccept:
		return o.handleAccept(ctx, req)
	case ActionModify:
		return o.handleModify(ctx, req)
	default:
		return o.handleReject(ctx, req)
	}
}

func (o *Orchestrator) handleAccept(ctx context.Context, req Request) (*Response, error) {
	previous, err := o.Store.GetActiveSLO(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	targets := resolveTierTargets(req.SelectedTier, o.TierDefaults)
	availability := targets.AvailabilityTargetPct
	p95 := targets.LatencyP95Ms
	p99 := targets.LatencyP99Ms

	active := &ActiveSLO{
		ID:                 uuid.New(),
		ServiceID:          req.ServiceID,
		AvailabilityTarget: &availability,
		LatencyP95TargetMs: &p95,
		LatencyP99TargetMs: &p99,
		Source:             SourceRecommendationAccepted,
		RecommendationID:   req.RecommendationID,
		SelectedTier:       req.SelectedTier,
		ActivatedAt:        o.now(),
		ActivatedBy:        req.Actor,
	}
	if err := o.Store.SetActiveSLO(ctx, active); err != nil {
		return nil, err
	}

	if err := o.Store.AppendAuditEntry(ctx, &AuditEntry{
		ID:               uuid.New(),
		ServiceID:        req.ServiceID,
		Action:           ActionAccept,
		Actor:            req.Actor,
		RecommendationID: req.RecommendationID,
		PreviousSLO:      snapshotOf(previous),
		NewSLO:           snapshotOf(active),
		SelectedTier:     req.SelectedTier,
		Rationale:        req.Rationale,
		Timestamp:        o.now(),
	}); err != nil {
		return nil, err
	}

	return &Response{
		ServiceID: req.ServiceID,
		Status:    "active",
		Action:    ActionAccept,
		ActiveSLO: active,
		Message:   fmt.Sprintf("SLO accepted for %s at %s tier.", req.ServiceID, req.SelectedTier),
	}, nil
}

func (o *Orchestrator) handleModify(ctx context.Context, req Request) (*Response, error) {
	previous, err := o.Store.GetActiveSLO(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	targets := resolveTierTargets(req.SelectedTier, o.TierDefaults)
	availability := targets.AvailabilityTargetPct
	p95 := targets.LatencyP95Ms
	p99 := targets.LatencyP99Ms
	delta := make(map[string]string)

	if req.Modifications != nil {
		if req.Modifications.AvailabilityTargetPct != nil {
			original := availability
			availability = *req.Modifications.AvailabilityTargetPct
			delta["availability"] = fmt.Sprintf("%g (was %g from %s tier)", availability, original, req.SelectedTier)
		}
		if req.Modifications.LatencyP95TargetMs != nil {
			p95 = *req.Modifications.LatencyP95TargetMs
			delta["latency_p95_ms"] = fmt.Sprintf("%d", p95)
		}
		if req.Modifications.LatencyP99TargetMs != nil {
			p99 = *req.Modifications.LatencyP99TargetMs
			delta["latency_p99_ms"] = fmt.Sprintf("%d", p99)
		}
	}
	if len(delta) == 0 {
		delta = nil
	}

	active := &ActiveSLO{
		ID:                 uuid.New(),
		ServiceID:          req.ServiceID,
		AvailabilityTarget: &availability,
		LatencyP95TargetMs: &p95,
		LatencyP99TargetMs: &p99,
		Source:             SourceRecommendationModified,
		RecommendationID:   req.RecommendationID,
		SelectedTier:       req.SelectedTier,
		ActivatedAt:        o.now(),
		ActivatedBy:        req.Actor,
	}
	if err := o.Store.SetActiveSLO(ctx, active); err != nil {
		return nil, err
	}

	if err := o.Store.AppendAuditEntry(ctx, &AuditEntry{
		ID:                uuid.New(),
		ServiceID:         req.ServiceID,
		Action:            ActionModify,
		Actor:             req.Actor,
		RecommendationID:  req.RecommendationID,
		PreviousSLO:       snapshotOf(previous),
		NewSLO:            snapshotOf(active),
		SelectedTier:      req.SelectedTier,
		Rationale:         req.Rationale,
		ModificationDelta: delta,
		Timestamp:         o.now(),
	}); err != nil {
		return nil, err
	}

	return &Response{
		ServiceID:         req.ServiceID,
		Status:            "active",
		Action:            ActionModify,
		ActiveSLO:         active,
		ModificationDelta: delta,
		Message:           fmt.Sprintf("SLO modified for %s. Changes: %v", req.ServiceID, delta),
	}, nil
}

func (o *Orchestrator) handleReject(ctx context.Context, req Request) (*Response, error) {
	if err := o.Store.AppendAuditEntry(ctx, &AuditEntry{
		ID:               uuid.New(),
		ServiceID:        req.ServiceID,
		Action:           ActionReject,
		Actor:            req.Actor,
		RecommendationID: req.RecommendationID,
		SelectedTier:     req.SelectedTier,
		Rationale:        req.Rationale,
		Timestamp:        o.now(),
	}); err != nil {
		return nil, err
	}

	return &Response{
		ServiceID: req.ServiceID,
		Status:    "rejected",
		Action:    ActionReject,
		Message:   fmt.Sprintf("Recommendation rejected for %s. Rationale: %s", req.ServiceID, req.Rationale),
	}, nil
}

// GetActiveSLO returns the current active SLO for a service, or nil if none
// has ever been accepted.
func (o *Orchestrator) GetActiveSLO(ctx context.Context, serviceID string) (*ActiveSLO, error) {
	return o.Store.GetActiveSLO(ctx, serviceID)
}

// GetAuditHistory returns the full audit trail for a service.
func (o *Orchestrator) GetAuditHistory(ctx context.Context, serviceID string) (*AuditHistory, error) {
	entries, err := o.Store.GetAuditLog(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return &AuditHistory{ServiceID: serviceID, Entries: entries, TotalCount: len(entries)}, nil
}
