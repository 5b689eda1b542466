package lifecycle

import (
	"context"
	"sync"
)

// Store persists active SLOs and their audit trail. A Postgres-backed
// implementation sits behind the same interface in production; InMemory is
// used in tests and local development.
type Store interface {
	GetActiveSLO(ctx context.Context, serviceID string) (*ActiveSLO, error)
	SetActiveSLO(ctx context.Context, slo *ActiveSLO) error
	AppendAuditEntry(ctx context.Context, entry *AuditEntry) error
	GetAuditLog(ctx context.Context, serviceID string) ([]AuditEntry, error)
}

// InMemory is a Store backed by plain maps guarded by a mutex, mirroring
// the append-only semantics a Postgres-backed store would also provide:
// SetActiveSLO overwrites, AppendAuditEntry never does.
type InMemory struct {
	mu         sync.RWMutex
	activeSLOs map[string]ActiveSLO
	auditLog   map[string][]AuditEntry
}

// NewInMemory returns an empty in-memory lifecycle store.
func NewInMemory() *InMemory {
	return &InMemory{
		activeSLOs: make(map[string]ActiveSLO),
		auditLog:   make(map[string][]AuditEntry),
	}
}

func (s *InMemory) GetActiveSLO(ctx context.Context, serviceID string) (*ActiveSLO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slo, ok := s.activeSLOs[serviceID]
	if !ok {
		return nil, nil
	}
	return &slo, nil
}

func (s *InMemory) SetActiveSLO(ctx context.Context, slo *ActiveSLO) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeSLOs[slo.ServiceID] = *slo
	return nil
}

func (s *InMemory) AppendAuditEntry(ctx context.Context, entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLog[entry.ServiceID] = append(s.auditLog[entry.ServiceID], *entry)
	return nil
}

func (s *InMemory) GetAuditLog(ctx context.Context, serviceID string) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.auditLog[serviceID]
	out := make([]AuditEntry, len(entries))
	copy(out, entries)
	return out, nil
}

var _ Store = (*InMemory)(nil)
