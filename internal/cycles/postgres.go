package cycles

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"slograph/pkg/database"
	"slograph/pkg/telemetry"
)

// queryer is the read subset both database.DB and pgx.Tx satisfy, letting
// all reads go through the same code whether or not they're inside a
// transaction.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres is a Store backed by the circular_dependency_alerts table.
// ReconcileAndStore reads the full table, reconciles in Go exactly as
// InMemoryStore does, then writes the merged set back inside one
// transaction so a concurrent ingest can't interleave a partial write.
type Postgres struct {
	db  database.DB
	now func() time.Time
}

// NewPostgres wraps a database.DB as a cycle-alert Store.
func NewPostgres(db database.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

var _ Store = (*Postgres)(nil)

func (p *Postgres) All(ctx context.Context) ([]Alert, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.All")
	defer span.End()
	return p.all(ctx, p.db)
}

func (p *Postgres) all(ctx context.Context, q queryer) ([]Alert, error) {
	const query = `
		SELECT id, path, canonical_key, status, resolution_note, detected_at
		FROM circular_dependency_alerts
	`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var path pgtype.Array[string]
		var status string
		if err := rows.Scan(&a.ID, &path, &a.CanonicalKey, &status, &a.ResolutionNote, &a.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Path = path.Elements
		a.Status = AlertStatus(status)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("alert rows: %w", err)
	}
	return alerts, nil
}

func (p *Postgres) ReconcileAndStore(ctx context.Context, detected []Alert) ([]Alert, []Alert, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.ReconcileAndStore")
	defer span.End()

	type result struct {
		merged []Alert
		fresh  []Alert
	}

	res, err := database.WithTransactionResult(ctx, p.db, func(tx pgx.Tx) (result, error) {
		existing, err := p.all(ctx, tx)
		if err != nil {
			return result{}, err
		}

		known := make(map[string]bool, len(existing))
		for _, a := range existing {
			known[a.CanonicalKey] = true
		}

		merged := Reconcile(existing, detected)

		var fresh []Alert
		for i, a := range merged {
			if known[a.CanonicalKey] {
				continue
			}
			a.ID = uuid.New()
			a.DetectedAt = p.now()
			merged[i] = a
			fresh = append(fresh, a)
		}

		const upsert = `
			INSERT INTO circular_dependency_alerts (
				id, path, canonical_key, status, resolution_note, detected_at
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (canonical_key) DO UPDATE SET
				status = EXCLUDED.status,
				resolution_note = EXCLUDED.resolution_note
		`
		for _, a := range merged {
			_, err := tx.Exec(ctx, upsert,
				a.ID, a.Path, a.CanonicalKey, string(a.Status), a.ResolutionNote, a.DetectedAt,
			)
			if err != nil {
				return result{}, fmt.Errorf("upsert alert %s: %w", a.CanonicalKey, err)
			}
		}

		return result{merged: merged, fresh: fresh}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res.merged, res.fresh, nil
}

func (p *Postgres) OpenAlertPathsContaining(ctx context.Context, serviceID string) ([][]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.OpenAlertPathsContaining")
	defer span.End()

	const query = `
		SELECT path FROM circular_dependency_alerts
		WHERE status = $1 AND $2 = ANY(path)
	`
	rows, err := p.db.Query(ctx, query, string(AlertOpen), serviceID)
	if err != nil {
		return nil, fmt.Errorf("open alert paths: %w", err)
	}
	defer rows.Close()

	var paths [][]string
	for rows.Next() {
		var path pgtype.Array[string]
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan alert path: %w", err)
		}
		paths = append(paths, path.Elements)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("alert path rows: %w", err)
	}
	return paths, nil
}
