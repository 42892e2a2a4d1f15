package resilience

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// CircuitBreakerConfig describes a breaker. Zero numeric fields fall back
// to the defaults.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int

	// OnStateChange runs after every transition, outside the breaker lock.
	OnStateChange func(from, to CircuitState)
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		OpenTimeout:      15 * time.Second,
		HalfOpenMaxReq:   2,
	}
}

// Build returns nil when the breaker is disabled; callers treat a nil
// breaker as always closed.
func (c CircuitBreakerConfig) Build() *CircuitBreaker {
	if !c.Enabled {
		return nil
	}
	defaults := DefaultCircuitBreakerConfig()
	if c.FailureThreshold < 1 {
		c.FailureThreshold = defaults.FailureThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = defaults.OpenTimeout
	}
	if c.HalfOpenMaxReq < 1 {
		c.HalfOpenMaxReq = defaults.HalfOpenMaxReq
	}
	b := NewCircuitBreaker(c.FailureThreshold, c.OpenTimeout, c.HalfOpenMaxReq)
	b.onStateChange = c.OnStateChange
	return b
}

// CircuitBreaker trips after a run of consecutive failures, rejects calls
// for openTimeout and then lets up to halfOpenMaxReq probes through. It
// closes again once every probe succeeds.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	openTimeout      time.Duration
	halfOpenMaxReq   int
	onStateChange    func(from, to CircuitState)
	now              func() time.Time

	state     CircuitState
	failures  int
	openedAt  time.Time
	probes    int
	successes int
}

func NewCircuitBreaker(failureThreshold int, openTimeout time.Duration, halfOpenMaxReq int) *CircuitBreaker {
	if openTimeout <= 0 {
		openTimeout = DefaultCircuitBreakerConfig().OpenTimeout
	}
	return &CircuitBreaker{
		failureThreshold: max(failureThreshold, 1),
		openTimeout:      openTimeout,
		halfOpenMaxReq:   max(halfOpenMaxReq, 1),
		state:            CircuitStateClosed,
		now:              time.Now,
	}
}

// Do runs fn when the breaker admits the call and records the outcome.
// Errors for which isFailure returns false count as successes, so caller
// mistakes (bad token, bad payload) never open the circuit.
func (b *CircuitBreaker) Do(fn func() error, isFailure func(error) bool) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn()
	if err != nil && (isFailure == nil || isFailure(err)) {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return err
}

func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	from := b.state
	err := b.admit()
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return err
}

func (b *CircuitBreaker) admit() error {
	if b.state == CircuitStateOpen {
		if !b.cooledDown() {
			return ErrCircuitOpen
		}
		b.enter(CircuitStateHalfOpen)
	}
	if b.state == CircuitStateHalfOpen {
		if b.probes >= b.halfOpenMaxReq {
			return ErrCircuitOpen
		}
		b.probes++
	}
	return nil
}

func (b *CircuitBreaker) RecordSuccess() {
	b.record(func() {
		switch b.state {
		case CircuitStateClosed:
			b.failures = 0
		case CircuitStateHalfOpen:
			b.probes = max(b.probes-1, 0)
			b.successes++
			if b.successes >= b.halfOpenMaxReq && b.probes == 0 {
				b.enter(CircuitStateClosed)
			}
		}
	})
}

func (b *CircuitBreaker) RecordFailure() {
	b.record(func() {
		switch b.state {
		case CircuitStateClosed:
			b.failures++
			if b.failures >= b.failureThreshold {
				b.enter(CircuitStateOpen)
			}
		case CircuitStateHalfOpen:
			b.enter(CircuitStateOpen)
		case CircuitStateOpen:
			b.openedAt = b.now()
		}
	})
}

func (b *CircuitBreaker) record(apply func()) {
	b.mu.Lock()
	from := b.state
	apply()
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// State reports half_open for an open breaker whose timeout has elapsed,
// even before the next Allow moves it there.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitStateOpen && b.cooledDown() {
		return CircuitStateHalfOpen
	}
	return b.state
}

func (b *CircuitBreaker) cooledDown() bool {
	return b.now().Sub(b.openedAt) >= b.openTimeout
}

func (b *CircuitBreaker) enter(state CircuitState) {
	b.state = state
	b.failures = 0
	b.probes = 0
	b.successes = 0
	if state == CircuitStateOpen {
		b.openedAt = b.now()
	} else if state == CircuitStateClosed {
		b.openedAt = time.Time{}
	}
}

func (b *CircuitBreaker) notify(from, to CircuitState) {
	if from != to && b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
