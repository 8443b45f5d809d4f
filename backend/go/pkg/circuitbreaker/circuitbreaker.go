package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed lets every call through.
	Closed State = iota
	// Open rejects calls until the cool-down has elapsed.
	Open
	// HalfOpen lets trial calls through to probe recovery.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings configures a Breaker.
type Settings struct {
	FailureThreshold uint32        // consecutive failures that open the circuit
	SuccessThreshold uint32        // consecutive half-open successes that close it again
	Timeout          time.Duration // how long the circuit stays open

	// Counts reports whether err should count as a failure. Nil counts every non-nil error.
	Counts func(err error) bool
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Breaker guards calls to an unreliable dependency.
type Breaker struct {
	settings Settings

	mu                   sync.Mutex
	state                State
	consecutiveFailures  uint32
	consecutiveSuccesses uint32
	openedAt             time.Time
}

// New creates a Breaker. Zero thresholds default to 5 failures and 1 success.
func New(s Settings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = 1
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Counts == nil {
		s.Counts = func(err error) bool { return err != nil }
	}
	return &Breaker{settings: s, state: Closed}
}

// State returns the current state, moving Open to HalfOpen once the timeout has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// Do runs fn unless the circuit is open.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	b.refresh()
	if b.state == Open {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil && b.settings.Counts(err) {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	return err
}

func (b *Breaker) refresh() {
	if b.state == Open && b.settings.Now().Sub(b.openedAt) >= b.settings.Timeout {
		b.state = HalfOpen
		b.consecutiveSuccesses = 0
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case HalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.settings.SuccessThreshold {
			b.state = Closed
			b.consecutiveFailures = 0
			b.consecutiveSuccesses = 0
		}
	case Closed:
		b.consecutiveFailures = 0
	}
}

func (b *Breaker) onFailure() {
	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.settings.FailureThreshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.settings.Now()
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
}
