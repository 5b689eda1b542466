// Package cycles turns circular dependency paths discovered in the graph
// into alerts, deduplicated by their canonical rotation-invariant path.
package cycles

import (
	"time"

	"github.com/google/uuid"

	"slograph/pkg/domain"
)

type AlertStatus string

const (
	AlertOpen         AlertStatus = "open"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is a circular-dependency finding: an ordered cycle path plus its
// lifecycle status. Two alerts with the same CanonicalKey refer to the same
// logical cycle regardless of which node the path starts from.
type Alert struct {
	ID             uuid.UUID
	Path           []string
	CanonicalKey   string
	Status         AlertStatus
	ResolutionNote string
	DetectedAt     time.Time
}

// Detect runs cycle detection over the graph's non-stale edges and returns
// one open alert per distinct cycle, deduplicated by canonical path. A
// single-node SCC without a self-loop is never reported: the graph model
// forbids self-loops (source != target), so every cycle FindCycles returns
// already has at least two distinct services.
func Detect(g *domain.Graph) []Alert {
	found := domain.FindCycles(g)

	alerts := make([]Alert, 0, len(found))
	for _, cyc := range found {
		alerts = append(alerts, Alert{
			Path:         cyc.Services,
			CanonicalKey: cyc.CanonicalKey(),
			Status:       AlertOpen,
		})
	}
	return alerts
}

// Reconcile merges freshly detected alerts with a set of previously known
// alerts (keyed by CanonicalKey), preserving the status and resolution note
// of any alert that already existed rather than reopening it, and
// introducing new alerts as open.
func Reconcile(existing []Alert, detected []Alert) []Alert {
	byKey := make(map[string]Alert, len(existing))
	for _, a := range existing {
		byKey[a.CanonicalKey] = a
	}

	reconciled := make([]Alert, 0, len(detected))
	for _, d := range detected {
		if prior, ok := byKey[d.CanonicalKey]; ok {
			reconciled = append(reconciled, prior)
			continue
		}
		reconciled = append(reconciled, d)
	}
	return reconciled
}
