package history

import (
	"errors"
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

var errCircuitOpen = errors.New("history: circuit breaker open")

// circuitBreaker guards the exchange REST adapter: once failures are
// frequent enough to suggest the adapter itself is down rather than one
// call having a bad day, it rejects calls outright. After resetTimeout the
// breaker turns half-open and lets calls through again; the first outcome
// recorded decides whether it closes or reopens. Calls made concurrently
// while half-open are not held back. A later Reboot retries the warmup
// naturally.
type circuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration

	state       breakerState
	failures    int
	lastFailure time.Time
}

func newCircuitBreaker(maxFailures int, resetTimeout time.Duration) *circuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 10 * time.Second
	}
	return &circuitBreaker{maxFailures: maxFailures, resetTimeout: resetTimeout}
}

// execute runs fn unless the breaker is open, and folds fn's outcome back
// into the breaker state: a failed probe (or hitting maxFailures) opens it,
// any success closes it.
func (cb *circuitBreaker) execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == breakerOpen {
		if time.Since(cb.lastFailure) <= cb.resetTimeout {
			cb.mu.Unlock()
			return errCircuitOpen
		}
		cb.state = breakerHalfOpen
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch {
	case err == nil:
		cb.state = breakerClosed
		cb.failures = 0
	default:
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == breakerHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = breakerOpen
		}
	}
	return err
}

func (cb *circuitBreaker) currentState() breakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
