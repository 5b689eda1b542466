package cycles

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists circular-dependency alerts across ingestion batches so a
// cycle already known and resolved is not reopened by a later re-ingest of
// the same edges.
type Store interface {
	All(ctx context.Context) ([]Alert, error)
	// ReconcileAndStore merges freshly detected alerts into the stored set
	// (see Reconcile), assigns IDs and detection timestamps to any alert
	// that is new, persists the merged set, and returns it alongside the
	// subset that is newly discovered this call.
	ReconcileAndStore(ctx context.Context, detected []Alert) (all []Alert, fresh []Alert, err error)
	// OpenAlertPathsContaining returns the path of every open alert that
	// includes the given service, the SCC-supernode view consumed by
	// constraint analysis.
	OpenAlertPathsContaining(ctx context.Context, serviceID string) ([][]string, error)
}

// InMemoryStore is a Store guarded by a mutex, the full implementation used
// in tests and local development.
type InMemoryStore struct {
	mu     sync.RWMutex
	alerts []Alert
	now    func() time.Time
}

// NewInMemoryStore returns an empty alert store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: time.Now}
}

var _ Store = (*InMemoryStore)(nil)

func (s *InMemoryStore) All(ctx context.Context) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Alert, len(s.alerts))
	copy(out, s.alerts)
	return out, nil
}

func (s *InMemoryStore) ReconcileAndStore(ctx context.Context, detected []Alert) ([]Alert, []Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]bool, len(s.alerts))
	for _, a := range s.alerts {
		known[a.CanonicalKey] = true
	}

	merged := Reconcile(s.alerts, detected)

	var fresh []Alert
	for i, a := range merged {
		if known[a.CanonicalKey] {
			continue
		}
		a.ID = uuid.New()
		a.DetectedAt = s.now()
		merged[i] = a
		fresh = append(fresh, a)
	}

	s.alerts = merged

	out := make([]Alert, len(merged))
	copy(out, merged)
	return out, fresh, nil
}

func (s *InMemoryStore) OpenAlertPathsContaining(ctx context.Context, serviceID string) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var paths [][]string
	for _, a := range s.alerts {
		if a.Status != AlertOpen {
			continue
		}
		for _, svc := range a.Path {
			if svc == serviceID {
				paths = append(paths, append([]string{}, a.Path...))
				break
			}
		}
	}
	return paths, nil
}
