package resilience

import (
	"errors"
	"testing"
	"time"
)

type transition struct{ from, to CircuitState }

func newTestBreaker(threshold, probes int) (*CircuitBreaker, *time.Time, *[]transition) {
	var seen []transition
	b := CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: threshold,
		OpenTimeout:      5 * time.Second,
		HalfOpenMaxReq:   probes,
		OnStateChange:    func(from, to CircuitState) { seen = append(seen, transition{from, to}) },
	}.Build()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now, &seen
}

func TestCircuitBreaker_TripAndRecover(t *testing.T) {
	b, now, seen := newTestBreaker(2, 1)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected allow in closed state: %v", err)
	}
	b.RecordFailure()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}
	b.RecordFailure()
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	*now = now.Add(6 * time.Second)
	if state := b.State(); state != CircuitStateHalfOpen {
		t.Fatalf("expected cooled down breaker to report half-open, got %s", state)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected second probe to be rejected, got %v", err)
	}
	b.RecordSuccess()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful probe, got %s", state)
	}

	want := []transition{
		{CircuitStateClosed, CircuitStateOpen},
		{CircuitStateOpen, CircuitStateHalfOpen},
		{CircuitStateHalfOpen, CircuitStateClosed},
	}
	if len(*seen) != len(want) {
		t.Fatalf("unexpected transitions: %+v", *seen)
	}
	for i := range want {
		if (*seen)[i] != want[i] {
			t.Fatalf("transition %d: got %+v want %+v", i, (*seen)[i], want[i])
		}
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	b, now, _ := newTestBreaker(1, 2)

	b.RecordFailure()
	*now = now.Add(6 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe, got %v", err)
	}
	b.RecordFailure()
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected reopened breaker, got %s", state)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected fresh open window, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	b, _, _ := newTestBreaker(2, 1)

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("non-consecutive failures must not trip, got %s", state)
	}
}

func TestCircuitBreaker_DoIgnoresNonFailures(t *testing.T) {
	b := NewCircuitBreaker(1, time.Minute, 1)
	errCaller := errors.New("bad request")
	errRemote := errors.New("connection refused")
	isRemote := func(err error) bool { return errors.Is(err, errRemote) }

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errCaller }, isRemote); !errors.Is(err, errCaller) {
			t.Fatalf("expected caller error passthrough, got %v", err)
		}
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("caller errors must not open the circuit, got %s", state)
	}

	_ = b.Do(func() error { return errRemote }, isRemote)
	if err := b.Do(func() error { return nil }, isRemote); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit after remote failure, got %v", err)
	}
}

func TestCircuitBreakerConfig_Build(t *testing.T) {
	if b := (CircuitBreakerConfig{}).Build(); b != nil {
		t.Fatalf("expected nil breaker when disabled")
	}

	b := CircuitBreakerConfig{Enabled: true}.Build()
	defaults := DefaultCircuitBreakerConfig()
	if b.failureThreshold != defaults.FailureThreshold || b.openTimeout != defaults.OpenTimeout || b.halfOpenMaxReq != defaults.HalfOpenMaxReq {
		t.Fatalf("expected defaults, got threshold=%d timeout=%s probes=%d", b.failureThreshold, b.openTimeout, b.halfOpenMaxReq)
	}
}
