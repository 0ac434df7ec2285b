// Package resilience guards an outbound transport against a sustained
// downstream outage. A Breaker wraps a send attempt; after enough
// consecutive failures it trips open and fails fast until a cooldown
// elapses, then lets a bounded number of probe calls through (half-open)
// before closing again. Grounded on the teacher's pkg/circuit.Breaker,
// including its State/Stats shape (formerly pkg/types.CircuitBreakerState/
// CircuitBreakerStats, moved here since this package was their only
// consumer), wired into pkg/sinks/remote so that while the circuit is open
// a flapping HTTP endpoint fails fast instead of being dialed for every
// batch.
package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is a Breaker's current position in the closed/open/half-open
// state machine.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Stats snapshots a Breaker's counters and timestamps.
type Stats struct {
	State         State     `json:"state"`
	Failures      int64     `json:"failures"`
	Successes     int64     `json:"successes"`
	Requests      int64     `json:"requests"`
	LastFailure   time.Time `json:"last_failure"`
	LastSuccess   time.Time `json:"last_success"`
	NextRetryTime time.Time `json:"next_retry_time"` // when next retry will be attempted
}

// Config configures a Breaker.
type Config struct {
	Name             string
	FailureThreshold int           // consecutive failures to trip open, defaults to 5
	SuccessThreshold int           // half-open successes to close, defaults to 3
	OpenTimeout      time.Duration // time spent open before probing, defaults to 60s
	HalfOpenMaxCalls int           // probe calls allowed while half-open, defaults to 10
	Log              *logrus.Logger
}

// Breaker implements the circuit-breaker pattern around Execute.
type Breaker struct {
	cfg Config
	log *logrus.Logger

	mu            sync.RWMutex
	state         State
	failures      int64
	successes     int64
	requests      int64
	lastFailure   time.Time
	lastSuccess   time.Time
	nextRetryTime time.Time

	halfOpenCalls     int
	halfOpenSuccesses int
}

// New builds a Breaker in the closed state.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 10
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	return &Breaker{cfg: cfg, log: cfg.Log, state: Closed}
}

// Execute runs fn under the breaker's protection. It returns the breaker's
// own "open" error without calling fn if the circuit is currently open.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	b.requests++

	if b.state == Open {
		if time.Now().Before(b.nextRetryTime) {
			b.mu.Unlock()
			return fmt.Errorf("circuit breaker %s is open", b.cfg.Name)
		}
		b.setState(HalfOpen)
		b.halfOpenCalls = 0
		b.halfOpenSuccesses = 0
	}

	if b.state == HalfOpen {
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			b.mu.Unlock()
			return fmt.Errorf("circuit breaker %s is half-open (probe limit reached)", b.cfg.Name)
		}
		b.halfOpenCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(err)
		return err
	}
	b.onSuccess()
	return nil
}

// onFailure must be called with mu held.
func (b *Breaker) onFailure(err error) {
	b.failures++
	b.lastFailure = time.Now()

	if b.state == HalfOpen {
		b.trip()
		return
	}
	if b.state == Closed && b.failures >= int64(b.cfg.FailureThreshold) {
		b.trip()
	}
}

// onSuccess must be called with mu held.
func (b *Breaker) onSuccess() {
	b.successes++
	b.lastSuccess = time.Now()

	switch b.state {
	case HalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.SuccessThreshold {
			b.setState(Closed)
			b.failures = 0
			b.halfOpenCalls = 0
			b.halfOpenSuccesses = 0
		}
	case Closed:
		b.failures = 0
	}
}

// trip must be called with mu held.
func (b *Breaker) trip() {
	if b.state == Open {
		return
	}
	b.setState(Open)
	b.nextRetryTime = time.Now().Add(b.cfg.OpenTimeout)
	b.log.WithFields(logrus.Fields{
		"breaker":         b.cfg.Name,
		"failures":        b.failures,
		"next_retry_time": b.nextRetryTime,
	}).Warn("circuit breaker opened")
}

// setState must be called with mu held.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	old := b.state
	b.state = s
	b.log.WithFields(logrus.Fields{"breaker": b.cfg.Name, "from": old, "to": s}).Info("circuit breaker state changed")
}

// State reports the breaker's current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Stats snapshots the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		State:         b.state,
		Failures:      b.failures,
		Successes:     b.successes,
		Requests:      b.requests,
		LastFailure:   b.lastFailure,
		LastSuccess:   b.lastSuccess,
		NextRetryTime: b.nextRetryTime,
	}
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(Closed)
	b.failures = 0
	b.halfOpenCalls = 0
	b.halfOpenSuccesses = 0
	b.nextRetryTime = time.Time{}
}
