package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ServiceType distinguishes services we operate ourselves from third-party
// dependencies we only observe.
type ServiceType int

const (
	ServiceTypeUnspecified ServiceType = iota
	ServiceTypeInternal
	ServiceTypeExternal
)

// String returns the wire/log representation of a service type.
func (t ServiceType) String() string {
	switch t {
	case ServiceTypeInternal:
		return "internal"
	case ServiceTypeExternal:
		return "external"
	default:
		return "unspecified"
	}
}

// ServiceCriticality is an operator-assigned rating of how much outage of a
// service matters, independent of its measured fan-in.
type ServiceCriticality int

const (
	ServiceCriticalityUnspecified ServiceCriticality = iota
	ServiceCriticalityLow
	ServiceCriticalityMedium
	ServiceCriticalityHigh
	ServiceCriticalityCritical
)

// String returns the wire/log representation of a criticality rating.
func (c ServiceCriticality) String() string {
	switch c {
	case ServiceCriticalityLow:
		return "low"
	case ServiceCriticalityMedium:
		return "medium"
	case ServiceCriticalityHigh:
		return "high"
	case ServiceCriticalityCritical:
		return "critical"
	default:
		return "unspecified"
	}
}

// CommunicationMode is whether a call sits on the synchronous critical path.
type CommunicationMode int

const (
	CommunicationModeUnspecified CommunicationMode = iota
	CommunicationModeSync
	CommunicationModeAsync
)

// String returns the wire/log representation of a communication mode.
func (m CommunicationMode) String() string {
	switch m {
	case CommunicationModeSync:
		return "sync"
	case CommunicationModeAsync:
		return "async"
	default:
		return "unspecified"
	}
}

// EdgeCriticality is whether the caller fails, degrades, or merely loses a
// nice-to-have when the dependency is unavailable.
type EdgeCriticality int

const (
	EdgeCriticalityUnspecified EdgeCriticality = iota
	EdgeCriticalityHard
	EdgeCriticalitySoft
	EdgeCriticalityDegraded
)

// String returns the wire/log representation of an edge criticality.
func (c EdgeCriticality) String() string {
	switch c {
	case EdgeCriticalityHard:
		return "hard"
	case EdgeCriticalitySoft:
		return "soft"
	case EdgeCriticalityDegraded:
		return "degraded"
	default:
		return "unspecified"
	}
}

// DiscoverySource identifies who told the system an edge exists. Order here
// is significant: it is also the merge priority, highest first.
type DiscoverySource int

const (
	DiscoverySourceUnspecified DiscoverySource = iota
	DiscoverySourceManual
	DiscoverySourceServiceMesh
	DiscoverySourceOTelServiceGraph
	DiscoverySourceKubernetes
)

// String returns the wire/log representation of a discovery source.
func (s DiscoverySource) String() string {
	switch s {
	case DiscoverySourceManual:
		return "manual"
	case DiscoverySourceServiceMesh:
		return "service_mesh"
	case DiscoverySourceOTelServiceGraph:
		return "otel_service_graph"
	case DiscoverySourceKubernetes:
		return "kubernetes"
	default:
		return "unspecified"
	}
}

// ParseDiscoverySource maps the wire string back to a DiscoverySource.
func ParseDiscoverySource(s string) (DiscoverySource, bool) {
	switch s {
	case "manual":
		return DiscoverySourceManual, true
	case "service_mesh":
		return DiscoverySourceServiceMesh, true
	case "otel_service_graph":
		return DiscoverySourceOTelServiceGraph, true
	case "kubernetes":
		return DiscoverySourceKubernetes, true
	default:
		return DiscoverySourceUnspecified, false
	}
}

// DependencyKey uniquely identifies a directed edge, matching the
// (source, target, discovery_source) uniqueness triple: the same logical
// edge may be reported once per discovery source and is reconciled at
// merge time rather than collapsed in storage.
type DependencyKey struct {
	From   string
	To     string
	Source DiscoverySource
}

// String renders a DependencyKey for logs and error messages.
func (k DependencyKey) String() string {
	return fmt.Sprintf("%s->%s[%s]", k.From, k.To, k.Source)
}

// Service is a node in the dependency graph. ServiceID is the stable,
// immutable business identifier used everywhere outside storage; InternalID
// is the opaque identifier assigned at creation.
type Service struct {
	InternalID   uuid.UUID
	ServiceID    string
	Team         string
	Criticality  ServiceCriticality
	Type         ServiceType
	PublishedSLA *float64 // only meaningful when Type == ServiceTypeExternal
	Metadata     map[string]string
	Discovered   bool // true when auto-created as an edge endpoint, never explicitly registered
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep copy of the service.
func (s *Service) Clone() *Service {
	clone := &Service{
		InternalID:  s.InternalID,
		ServiceID:   s.ServiceID,
		Team:        s.Team,
		Criticality: s.Criticality,
		Type:        s.Type,
		Discovered:  s.Discovered,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Metadata:    make(map[string]string, len(s.Metadata)),
	}
	if s.PublishedSLA != nil {
		v := *s.PublishedSLA
		clone.PublishedSLA = &v
	}
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// DependencyEdge is a directed edge describing one service's reliance on
// another, as ingested from a single discovery source.
type DependencyEdge struct {
	InternalID        uuid.UUID
	From              string // source ServiceID
	To                string // target ServiceID
	CommunicationMode CommunicationMode
	Criticality       EdgeCriticality
	Protocol          *string
	TimeoutMs         *int
	RetryConfig       map[string]string
	DiscoverySource   DiscoverySource
	ConfidenceScore   float64 // 0..1
	LastObservedAt    time.Time
	IsStale           bool
	CreatedAt         time.Time
}

// Clone returns a deep copy of the edge.
func (e *DependencyEdge) Clone() *DependencyEdge {
	clone := &DependencyEdge{
		InternalID:        e.InternalID,
		From:              e.From,
		To:                e.To,
		CommunicationMode: e.CommunicationMode,
		Criticality:       e.Criticality,
		DiscoverySource:   e.DiscoverySource,
		ConfidenceScore:   e.ConfidenceScore,
		LastObservedAt:    e.LastObservedAt,
		IsStale:           e.IsStale,
		CreatedAt:         e.CreatedAt,
	}
	if e.Protocol != nil {
		v := *e.Protocol
		clone.Protocol = &v
	}
	if e.TimeoutMs != nil {
		v := *e.TimeoutMs
		clone.TimeoutMs = &v
	}
	if e.RetryConfig != nil {
		clone.RetryConfig = make(map[string]string, len(e.RetryConfig))
		for k, v := range e.RetryConfig {
			clone.RetryConfig[k] = v
		}
	}
	return clone
}

// Key returns the edge's DependencyKey.
func (e *DependencyEdge) Key() DependencyKey {
	return DependencyKey{From: e.From, To: e.To, Source: e.DiscoverySource}
}

// IsHard reports whether the edge is a hard dependency.
func (e *DependencyEdge) IsHard() bool {
	return e.Criticality == EdgeCriticalityHard
}

// IsSync reports whether the edge is on the synchronous critical path.
func (e *DependencyEdge) IsSync() bool {
	return e.CommunicationMode == CommunicationModeSync
}

// IsHardSync reports whether the edge is both hard and synchronous, the
// only kind that participates in composite-bound and error-budget math.
func (e *DependencyEdge) IsHardSync() bool {
	return e.IsHard() && e.IsSync()
}

// RefreshObservation marks the edge as freshly re-observed, the same-source
// re-ingestion path: refresh LastObservedAt and clear IsStale.
func (e *DependencyEdge) RefreshObservation(at time.Time) {
	e.LastObservedAt = at
	e.IsStale = false
}

// StaleAsOf reports whether the edge should be considered stale given a
// staleness window, independent of its persisted IsStale flag.
func (e *DependencyEdge) StaleAsOf(window time.Duration, now time.Time) bool {
	return now.Sub(e.LastObservedAt) > window
}

// Graph is the service dependency graph: services plus the directed edges
// between them, keyed by business ServiceID, with adjacency indices for
// traversal. Multiple edges between the same pair of services (one per
// discovery source) are all retained; adjacency only records an edge once
// per neighbor regardless of how many sources report it.
type Graph struct {
	Services map[string]*Service
	Edges    map[DependencyKey]*DependencyEdge

	outgoing map[string]map[string]int // service -> neighbor -> edge count from that neighbor relation
	incoming map[string]map[string]int

	mu sync.RWMutex
}

// NewGraph returns a new, empty dependency graph.
func NewGraph() *Graph {
	return &Graph{
		Services: make(map[string]*Service),
		Edges:    make(map[DependencyKey]*DependencyEdge),
		outgoing: make(map[string]map[string]int),
		incoming: make(map[string]map[string]int),
	}
}

// UpsertService adds or replaces a service node.
func (g *Graph) UpsertService(svc *Service) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Services[svc.ServiceID] = svc
}

// UpsertEdge adds or replaces a dependency edge for its (from, to, source)
// key, updating adjacency indices.
func (g *Graph) UpsertEdge(edge *DependencyEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := edge.Key()
	if _, existed := g.Edges[key]; !existed {
		g.addAdjacency(edge.From, edge.To)
	}
	g.Edges[key] = edge
}

func (g *Graph) addAdjacency(from, to string) {
	if g.outgoing[from] == nil {
		g.outgoing[from] = make(map[string]int)
	}
	if g.incoming[to] == nil {
		g.incoming[to] = make(map[string]int)
	}
	g.outgoing[from][to]++
	g.incoming[to][from]++
}

// GetService returns a service by business ID.
func (g *Graph) GetService(id string) (*Service, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	svc, ok := g.Services[id]
	return svc, ok
}

// GetEdge returns a specific (from, to, source) edge, if present.
func (g *Graph) GetEdge(from, to string, source DiscoverySource) (*DependencyEdge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edge, ok := g.Edges[DependencyKey{From: from, To: to, Source: source}]
	return edge, ok
}

// EdgesBetween returns every edge (one per discovery source) from one
// service directly to another.
func (g *Graph) EdgesBetween(from, to string) []*DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*DependencyEdge
	for key, edge := range g.Edges {
		if key.From == from && key.To == to {
			result = append(result, edge)
		}
	}
	return result
}

// Dependencies returns the distinct services that id directly calls.
func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]string, 0, len(g.outgoing[id]))
	for to := range g.outgoing[id] {
		result = append(result, to)
	}
	return result
}

// Dependents returns the distinct services that directly call id.
func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]string, 0, len(g.incoming[id]))
	for from := range g.incoming[id] {
		result = append(result, from)
	}
	return result
}

// ServiceCount returns the number of services in the graph.
func (g *Graph) ServiceCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.Services)
}

// EdgeCount returns the number of edges in the graph (all discovery sources).
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.Edges)
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := NewGraph()
	for id, svc := range g.Services {
		clone.Services[id] = svc.Clone()
	}
	for key, edge := range g.Edges {
		clone.Edges[key] = edge.Clone()
		clone.addAdjacency(edge.From, edge.To)
	}
	return clone
}

// ServicesByType returns every service of the given type.
func (g *Graph) ServicesByType(t ServiceType) []*Service {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*Service
	for _, svc := range g.Services {
		if svc.Type == t {
			result = append(result, svc)
		}
	}
	return result
}

// StaleEdges returns every edge currently flagged IsStale.
func (g *Graph) StaleEdges() []*DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*DependencyEdge
	for _, edge := range g.Edges {
		if edge.IsStale {
			result = append(result, edge)
		}
	}
	return result
}

// MarkStaleEdges flags edges not observed within window as of now and
// returns how many were newly marked.
func (g *Graph) MarkStaleEdges(window time.Duration, now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	var marked int
	for _, edge := range g.Edges {
		if !edge.IsStale && edge.StaleAsOf(window, now) {
			edge.IsStale = true
			marked++
		}
	}
	return marked
}

// Validate reports structural problems in the graph: dangling edges and
// self-loops, which the ingestion layer must reject before merge.
func (g *Graph) Validate() []error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	for key, edge := range g.Edges {
		if _, ok := g.Services[edge.From]; !ok {
			errs = append(errs, fmt.Errorf("edge %s references unknown service %q", key, edge.From))
		}
		if _, ok := g.Services[edge.To]; !ok {
			errs = append(errs, fmt.Errorf("edge %s references unknown service %q", key, edge.To))
		}
		if edge.From == edge.To {
			errs = append(errs, fmt.Errorf("self-loop detected at service %q", edge.From))
		}
		if edge.ConfidenceScore < 0 || edge.ConfidenceScore > 1 {
			errs = append(errs, fmt.Errorf("edge %s has confidence_score out of [0,1]: %f", key, edge.ConfidenceScore))
		}
	}

	return errs
}
