package telemetryport

import (
	"context"
	"sync"
)

// Fake is an in-memory Port used by tests and by local development without
// a telemetry backend wired up. Readings are seeded with Set; GetAvailabilitySLI
// returns nil, nil for any service that was never seeded, matching the
// "no data found" contract real implementations must honor.
type Fake struct {
	mu       sync.RWMutex
	readings map[string]AvailabilitySLI
	failures map[string]error
	calls    []string
}

// NewFake returns an empty Fake telemetry port.
func NewFake() *Fake {
	return &Fake{
		readings: make(map[string]AvailabilitySLI),
		failures: make(map[string]error),
	}
}

// Set seeds an availability reading for a service.
func (f *Fake) Set(serviceID string, ratio float64, windowDays int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings[serviceID] = AvailabilitySLI{
		ServiceID:         serviceID,
		AvailabilityRatio: ratio,
		WindowDays:        windowDays,
	}
}

// FailWith causes GetAvailabilitySLI to return err for the given service,
// simulating a downstream telemetry outage rather than a missing reading.
func (f *Fake) FailWith(serviceID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[serviceID] = err
}

// Calls returns every serviceID GetAvailabilitySLI was invoked with, in
// call order, for assertions about fan-out behavior.
func (f *Fake) Calls() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// GetAvailabilitySLI implements Port.
func (f *Fake) GetAvailabilitySLI(ctx context.Context, serviceID string, windowDays int) (*AvailabilitySLI, error) {
	f.mu.Lock()
	f.calls = append(f.calls, serviceID)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if err, ok := f.failures[serviceID]; ok {
		return nil, err
	}
	if reading, ok := f.readings[serviceID]; ok {
		reading.WindowDays = windowDays
		return &reading, nil
	}
	return nil, nil
}

var _ Port = (*Fake)(nil)
