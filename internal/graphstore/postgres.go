package graphstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"slograph/pkg/apperror"
	"slograph/pkg/database"
	"slograph/pkg/domain"
	"slograph/pkg/telemetry"
)

// Postgres is a Store backed by the services and service_dependencies
// tables. Single-service and single-edge operations go straight to SQL;
// whole-graph operations (Traverse, AdjacencyList, Graph) load a snapshot
// into a domain.Graph and delegate to the same traversal logic InMemory
// uses; every such call loads a fresh snapshot, nothing is cached.
type Postgres struct {
	db database.DB
}

// NewPostgres wraps a database.DB as a graph Store.
func NewPostgres(db database.DB) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)

func (p *Postgres) GetService(ctx context.Context, serviceID string) (*domain.Service, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.GetService")
	defer span.End()

	const query = `
		SELECT internal_id, service_id, team, criticality, service_type,
			published_sla, metadata, discovered, created_at, updated_at
		FROM services
		WHERE service_id = $1
	`

	svc := &domain.Service{}
	var criticality, serviceType int
	var metadata map[string]string

	err := p.db.QueryRow(ctx, query, serviceID).Scan(
		&svc.InternalID,
		&svc.ServiceID,
		&svc.Team,
		&criticality,
		&serviceType,
		&svc.PublishedSLA,
		&metadata,
		&svc.Discovered,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewWithField(apperror.CodeServiceNotFound, "service not found", "service_id").
				WithDetails("service_id", serviceID)
		}
		return nil, fmt.Errorf("get service: %w", err)
	}

	svc.Criticality = domain.ServiceCriticality(criticality)
	svc.Type = domain.ServiceType(serviceType)
	svc.Metadata = metadata
	if svc.Metadata == nil {
		svc.Metadata = make(map[string]string)
	}
	return svc, nil
}

func (p *Postgres) BulkUpsertServices(ctx context.Context, services []*domain.Service) error {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.BulkUpsertServices")
	defer span.End()

	return database.WithTransaction(ctx, p.db, func(tx pgx.Tx) error {
		const query = `
			INSERT INTO services (
				internal_id, service_id, team, criticality, service_type,
				published_sla, metadata, discovered, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (service_id) DO UPDATE SET
				team = EXCLUDED.team,
				criticality = EXCLUDED.criticality,
				service_type = EXCLUDED.service_type,
				published_sla = EXCLUDED.published_sla,
				metadata = EXCLUDED.metadata,
				discovered = services.discovered AND EXCLUDED.discovered,
				updated_at = EXCLUDED.updated_at
		`
		for _, svc := range services {
			if svc.InternalID == uuid.Nil {
				svc.InternalID = uuid.New()
			}
			_, err := tx.Exec(ctx, query,
				svc.InternalID,
				svc.ServiceID,
				svc.Team,
				int(svc.Criticality),
				int(svc.Type),
				svc.PublishedSLA,
				svc.Metadata,
				svc.Discovered,
				svc.CreatedAt,
				svc.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("upsert service %q: %w", svc.ServiceID, err)
			}
		}
		return nil
	})
}

func (p *Postgres) GetEdgesBySource(ctx context.Context, serviceID string) ([]*domain.DependencyEdge, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.GetEdgesBySource")
	defer span.End()
	return p.queryEdges(ctx, "source_service_id = $1", serviceID)
}

func (p *Postgres) GetEdgesByTarget(ctx context.Context, serviceID string) ([]*domain.DependencyEdge, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.GetEdgesByTarget")
	defer span.End()
	return p.queryEdges(ctx, "target_service_id = $1", serviceID)
}

func (p *Postgres) queryEdges(ctx context.Context, where string, arg string) ([]*domain.DependencyEdge, error) {
	query := fmt.Sprintf(`
		SELECT internal_id, source_service_id, target_service_id, communication_mode,
			edge_criticality, protocol, timeout_ms, retry_config, discovery_source,
			confidence_score, last_observed_at, is_stale, created_at
		FROM service_dependencies
		WHERE %s
	`, where)

	rows, err := p.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

func scanEdges(rows pgx.Rows) ([]*domain.DependencyEdge, error) {
	var result []*domain.DependencyEdge
	for rows.Next() {
		edge := &domain.DependencyEdge{}
		var commMode, criticality, source int
		var retryConfig map[string]string

		if err := rows.Scan(
			&edge.InternalID,
			&edge.From,
			&edge.To,
			&commMode,
			&criticality,
			&edge.Protocol,
			&edge.TimeoutMs,
			&retryConfig,
			&source,
			&edge.ConfidenceScore,
			&edge.LastObservedAt,
			&edge.IsStale,
			&edge.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}

		edge.CommunicationMode = domain.CommunicationMode(commMode)
		edge.Criticality = domain.EdgeCriticality(criticality)
		edge.DiscoverySource = domain.DiscoverySource(source)
		edge.RetryConfig = retryConfig
		result = append(result, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return result, nil
}

func (p *Postgres) BulkUpsertEdges(ctx context.Context, edges []*domain.DependencyEdge) error {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.BulkUpsertEdges")
	defer span.End()

	for _, edge := range edges {
		if edge.From == edge.To {
			return apperror.NewWithField(apperror.CodeSelfLoop, "dependency edge source and target must differ", "from").
				WithDetails("service_id", edge.From)
		}
	}

	return database.WithTransaction(ctx, p.db, func(tx pgx.Tx) error {
		const query = `
			INSERT INTO service_dependencies (
				internal_id, source_service_id, target_service_id, communication_mode,
				edge_criticality, protocol, timeout_ms, retry_config, discovery_source,
				confidence_score, last_observed_at, is_stale, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (source_service_id, target_service_id, discovery_source) DO UPDATE SET
				communication_mode = EXCLUDED.communication_mode,
				edge_criticality = EXCLUDED.edge_criticality,
				protocol = EXCLUDED.protocol,
				timeout_ms = EXCLUDED.timeout_ms,
				retry_config = EXCLUDED.retry_config,
				confidence_score = EXCLUDED.confidence_score,
				last_observed_at = EXCLUDED.last_observed_at,
				is_stale = EXCLUDED.is_stale
		`
		for _, edge := range edges {
			if edge.InternalID == uuid.Nil {
				edge.InternalID = uuid.New()
			}
			_, err := tx.Exec(ctx, query,
				edge.InternalID,
				edge.From,
				edge.To,
				int(edge.CommunicationMode),
				int(edge.Criticality),
				edge.Protocol,
				edge.TimeoutMs,
				edge.RetryConfig,
				int(edge.DiscoverySource),
				edge.ConfidenceScore,
				edge.LastObservedAt,
				edge.IsStale,
				edge.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("upsert edge %s->%s: %w", edge.From, edge.To, err)
			}
		}
		return nil
	})
}

// Traverse loads the full graph and delegates to InMemory's BFS; the
// services and service_dependencies tables are small enough (thousands,
// not millions, of rows in the deployments this targets) that a snapshot
// load per request is simpler than a recursive CTE and keeps the traversal
// semantics byte-for-byte identical to the in-memory store's.
func (p *Postgres) Traverse(ctx context.Context, root string, direction Direction, maxDepth int, includeStale bool) (*TraversalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.Traverse")
	defer span.End()

	g, err := p.loadGraph(ctx)
	if err != nil {
		return nil, err
	}
	return NewInMemory(g).Traverse(ctx, root, direction, maxDepth, includeStale)
}

func (p *Postgres) AdjacencyList(ctx context.Context) (map[string][]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.AdjacencyList")
	defer span.End()

	g, err := p.loadGraph(ctx)
	if err != nil {
		return nil, err
	}
	return NewInMemory(g).AdjacencyList(ctx)
}

func (p *Postgres) Graph(ctx context.Context) (*domain.Graph, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.Graph")
	defer span.End()
	return p.loadGraph(ctx)
}

func (p *Postgres) MarkStaleEdges(ctx context.Context, threshold time.Duration) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "Postgres.MarkStaleEdges")
	defer span.End()

	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}

	const query = `
		UPDATE service_dependencies
		SET is_stale = true
		WHERE is_stale = false AND last_observed_at < $1
	`
	tag, err := p.db.Exec(ctx, query, timeNow().Add(-threshold))
	if err != nil {
		return 0, fmt.Errorf("mark stale edges: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) loadGraph(ctx context.Context) (*domain.Graph, error) {
	g := domain.NewGraph()

	const serviceQuery = `
		SELECT internal_id, service_id, team, criticality, service_type,
			published_sla, metadata, discovered, created_at, updated_at
		FROM services
	`
	rows, err := p.db.Query(ctx, serviceQuery)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	for rows.Next() {
		svc := &domain.Service{}
		var criticality, serviceType int
		var metadata map[string]string
		if err := rows.Scan(
			&svc.InternalID, &svc.ServiceID, &svc.Team, &criticality, &serviceType,
			&svc.PublishedSLA, &metadata, &svc.Discovered, &svc.CreatedAt, &svc.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan service: %w", err)
		}
		svc.Criticality = domain.ServiceCriticality(criticality)
		svc.Type = domain.ServiceType(serviceType)
		svc.Metadata = metadata
		if svc.Metadata == nil {
			svc.Metadata = make(map[string]string)
		}
		g.UpsertService(svc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("services rows: %w", err)
	}

	const edgeQuery = `
		SELECT internal_id, source_service_id, target_service_id, communication_mode,
			edge_criticality, protocol, timeout_ms, retry_config, discovery_source,
			confidence_score, last_observed_at, is_stale, created_at
		FROM service_dependencies
	`
	edgeRows, err := p.db.Query(ctx, edgeQuery)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	defer edgeRows.Close()

	edges, err := scanEdges(edgeRows)
	if err != nil {
		return nil, err
	}
	for _, edge := range edges {
		g.UpsertEdge(edge)
	}

	return g, nil
}
