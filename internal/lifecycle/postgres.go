package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"slograph/pkg/database"
	"slograph/pkg/telemetry"
)

// Postgres is a Store backed by the active_slos and slo_audit_log tables.
// SetActiveSLO and AppendAuditEntry are called back to back by the
// orchestrator for every accept/modify action. Each runs as its own
// statement on the pool and the pair is not wrapped in one transaction, so
// a failed audit insert leaves the preceding active-SLO write in place.
type Postgres struct {
	db database.DB
}

// NewPostgres wraps a database.DB as a lifecycle Store.
func NewPostgres(db database.DB) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)

func (p *Postgres) GetActiveSLO(ctx context.Context, serviceID string) (*ActiveSLO, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.GetActiveSLO")
	defer span.End()

	const query = `
		SELECT id, service_id, availability_target, latency_p95_target_ms,
			latency_p99_target_ms, source, recommendation_id, selected_tier,
			activated_at, activated_by
		FROM active_slos
		WHERE service_id = $1
	`

	slo := &ActiveSLO{}
	var source, tier string
	var recommendationID *uuid.UUID

	err := p.db.QueryRow(ctx, query, serviceID).Scan(
		&slo.ID,
		&slo.ServiceID,
		&slo.AvailabilityTarget,
		&slo.LatencyP95TargetMs,
		&slo.LatencyP99TargetMs,
		&source,
		&recommendationID,
		&tier,
		&slo.ActivatedAt,
		&slo.ActivatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No active SLO is a valid, common state, not an error: a newly
			// discovered service has none until one is accepted.
			return nil, nil
		}
		return nil, fmt.Errorf("get active slo: %w", err)
	}

	slo.Source = Source(source)
	slo.SelectedTier = Tier(tier)
	slo.RecommendationID = recommendationID
	return slo, nil
}

func (p *Postgres) SetActiveSLO(ctx context.Context, slo *ActiveSLO) error {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.SetActiveSLO")
	defer span.End()

	const query = `
		INSERT INTO active_slos (
			id, service_id, availability_target, latency_p95_target_ms,
			latency_p99_target_ms, source, recommendation_id, selected_tier,
			activated_at, activated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (service_id) DO UPDATE SET
			id = EXCLUDED.id,
			availability_target = EXCLUDED.availability_target,
			latency_p95_target_ms = EXCLUDED.latency_p95_target_ms,
			latency_p99_target_ms = EXCLUDED.latency_p99_target_ms,
			source = EXCLUDED.source,
			recommendation_id = EXCLUDED.recommendation_id,
			selected_tier = EXCLUDED.selected_tier,
			activated_at = EXCLUDED.activated_at,
			activated_by = EXCLUDED.activated_by
	`

	_, err := p.db.Exec(ctx, query,
		slo.ID,
		slo.ServiceID,
		slo.AvailabilityTarget,
		slo.LatencyP95TargetMs,
		slo.LatencyP99TargetMs,
		string(slo.Source),
		slo.RecommendationID,
		string(slo.SelectedTier),
		slo.ActivatedAt,
		slo.ActivatedBy,
	)
	if err != nil {
		return fmt.Errorf("set active slo: %w", err)
	}
	return nil
}

func (p *Postgres) AppendAuditEntry(ctx context.Context, entry *AuditEntry) error {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.AppendAuditEntry")
	defer span.End()

	previousSLO, err := json.Marshal(entry.PreviousSLO)
	if err != nil {
		return fmt.Errorf("marshal previous slo snapshot: %w", err)
	}
	newSLO, err := json.Marshal(entry.NewSLO)
	if err != nil {
		return fmt.Errorf("marshal new slo snapshot: %w", err)
	}

	const query = `
		INSERT INTO slo_audit_log (
			id, service_id, action, actor, recommendation_id, previous_slo,
			new_slo, selected_tier, rationale, modification_delta, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = p.db.Exec(ctx, query,
		entry.ID,
		entry.ServiceID,
		string(entry.Action),
		entry.Actor,
		entry.RecommendationID,
		previousSLO,
		newSLO,
		string(entry.SelectedTier),
		entry.Rationale,
		entry.ModificationDelta,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (p *Postgres) GetAuditLog(ctx context.Context, serviceID string) ([]AuditEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.GetAuditLog")
	defer span.End()

	const query = `
		SELECT id, service_id, action, actor, recommendation_id, previous_slo,
			new_slo, selected_tier, rationale, modification_delta, occurred_at
		FROM slo_audit_log
		WHERE service_id = $1
		ORDER BY occurred_at ASC
	`

	rows, err := p.db.Query(ctx, query, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var action, tier string
		var previousSLO, newSLO []byte

		if err := rows.Scan(
			&entry.ID,
			&entry.ServiceID,
			&action,
			&entry.Actor,
			&entry.RecommendationID,
			&previousSLO,
			&newSLO,
			&tier,
			&entry.Rationale,
			&entry.ModificationDelta,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.Action = Action(action)
		entry.SelectedTier = Tier(tier)
		if err := json.Unmarshal(previousSLO, &entry.PreviousSLO); err != nil {
			return nil, fmt.Errorf("unmarshal previous slo snapshot: %w", err)
		}
		if err := json.Unmarshal(newSLO, &entry.NewSLO); err != nil {
			return nil, fmt.Errorf("unmarshal new slo snapshot: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit log rows: %w", err)
	}
	return entries, nil
}
