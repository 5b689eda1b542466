package telemetryport

import (
	"context"
	"errors"
	"testing"
)

func TestFake_UnseededServiceReturnsNilNil(t *testing.T) {
	f := NewFake()
	reading, err := f.GetAvailabilitySLI(context.Background(), "unknown", 30)
	if err != nil {
		t.Fatalf("expected no error for missing telemetry, got %v", err)
	}
	if reading != nil {
		t.Fatalf("expected nil reading for an unseeded service, got %+v", reading)
	}
}

func TestFake_SeededServiceReturnsReading(t *testing.T) {
	f := NewFake()
	f.Set("checkout", 0.998, 30)

	reading, err := f.GetAvailabilitySLI(context.Background(), "checkout", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reading == nil {
		t.Fatal("expected a reading for a seeded service")
	}
	if reading.AvailabilityRatio != 0.998 {
		t.Errorf("expected ratio 0.998, got %v", reading.AvailabilityRatio)
	}
}

func TestFake_FailureIsReturnedAsError(t *testing.T) {
	f := NewFake()
	wantErr := errors.New("telemetry backend down")
	f.FailWith("payments", wantErr)

	reading, err := f.GetAvailabilitySLI(context.Background(), "payments", 30)
	if err != wantErr {
		t.Fatalf("expected the seeded failure, got %v", err)
	}
	if reading != nil {
		t.Fatal("expected no reading on failure")
	}
}

func TestFake_RecordsCallsInOrder(t *testing.T) {
	f := NewFake()
	f.Set("a", 0.99, 30)
	f.Set("b", 0.98, 30)

	ctx := context.Background()
	_, _ = f.GetAvailabilitySLI(ctx, "a", 30)
	_, _ = f.GetAvailabilitySLI(ctx, "b", 30)

	calls := f.Calls()
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("expected calls [a b], got %v", calls)
	}
}

func TestFake_RespectsCanceledContext(t *testing.T) {
	f := NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.GetAvailabilitySLI(ctx, "anything", 30)
	if err == nil {
		t.Fatal("expected an error for a canceled context")
	}
}

func TestErrTelemetryPort_WrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := ErrTelemetryPort("checkout", cause)
	if err == nil {
		t.Fatal("expected a non-nil wrapped error")
	}
}
