// Package telemetryport defines the observed-availability collaborator (C4):
// an external system of record for how available a service actually was
// over some lookback window. Constraint analysis (C9) and impact analysis
// (C10) depend on this interface, never on a concrete client, so either can
// be tested against the in-memory fake in this package.
package telemetryport

import (
	"context"
	"time"

	"slograph/pkg/apperror"
)

// AvailabilitySLI is one observed-availability reading for a service over a
// lookback window.
type AvailabilitySLI struct {
	ServiceID         string
	AvailabilityRatio float64
	WindowDays        int
	SampleCount       int64
	ObservedAt        time.Time
}

// Port pulls observed availability ratios for a service over a lookback
// window. A nil *AvailabilitySLI with a nil error means no telemetry was
// found for the service — callers must substitute a default, not treat it
// as a failure.
type Port interface {
	GetAvailabilitySLI(ctx context.Context, serviceID string, windowDays int) (*AvailabilitySLI, error)
}

// ErrTelemetryPort wraps a downstream telemetry failure (as opposed to a
// legitimate "no data" result) in the apperror taxonomy so callers can
// distinguish "missing" from "the port is down".
func ErrTelemetryPort(serviceID string, cause error) error {
	return apperror.Wrap(cause, apperror.CodeTelemetryPort, "failed to query availability telemetry").
		WithField("service_id").WithDetails("service_id", serviceID)
}
