package healthcheck

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the circuit rejects a call. Callers can
// distinguish it from a real provider failure with errors.Is.
var ErrOpen = errors.New("circuit open")

// BreakerConfig tunes when a Breaker opens and recovers.
type BreakerConfig struct {
	// FailureThreshold is the run of consecutive failures that opens
	// the circuit.
	FailureThreshold int

	// SuccessThreshold is the run of successes in half-open state
	// that closes it again.
	SuccessThreshold int

	// Cooldown is how long an open circuit rejects calls before
	// letting trial requests through.
	Cooldown time.Duration

	// OnStateChange is called on every transition.
	OnStateChange func(name string, from, to BreakerState)
}

// DefaultBreakerConfig suits slow external providers.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// BreakerStatus is a snapshot for health reporting.
type BreakerStatus struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalRequests       int64     `json:"total_requests"`
	TotalRejections     int64     `json:"total_rejections"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
	RetryAt             time.Time `json:"retry_at,omitempty"`
}

// Breaker guards calls to an external provider. A run of failures
// opens the circuit so the pipeline stops waiting on a dead provider;
// after the cooldown, trial requests decide whether it closes again.
type Breaker struct {
	name   string
	config BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	retryAt     time.Time
	lastFailure time.Time
	total       int64
	rejections  int64
}

// NewBreaker creates a closed Breaker. Zero config fields take the
// defaults.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	defaults := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = defaults.Cooldown
	}

	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
	}
}

// Execute runs fn unless the circuit is open. The lock covers only
// the state bookkeeping, never fn itself, so guarded calls still run
// concurrently.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++

	switch b.state {
	case StateOpen:
		if time.Now().After(b.retryAt) {
			b.setState(StateHalfOpen)
			return nil
		}
		b.rejections++
		return fmt.Errorf("%s: %w", b.name, ErrOpen)
	default:
		return nil
	}
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.setState(StateClosed)
			}
		}
		return
	}

	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	}
}

func (b *Breaker) setState(next BreakerState) {
	if b.state == next {
		return
	}

	prev := b.state
	b.state = next

	switch next {
	case StateOpen:
		b.retryAt = time.Now().Add(b.config.Cooldown)
	case StateHalfOpen:
		b.successes = 0
	case StateClosed:
		b.failures = 0
		b.successes = 0
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, prev, next)
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status snapshots the breaker for health reporting.
func (b *Breaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := BreakerStatus{
		Name:                b.name,
		State:               b.state.String(),
		ConsecutiveFailures: b.failures,
		TotalRequests:       b.total,
		TotalRejections:     b.rejections,
		LastFailure:         b.lastFailure,
	}
	if b.state == StateOpen {
		status.RetryAt = b.retryAt
	}

	return status
}

// Reset force-closes the breaker and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.state
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.retryAt = time.Time{}
	b.lastFailure = time.Time{}
	b.total = 0
	b.rejections = 0

	if b.config.OnStateChange != nil && prev != StateClosed {
		b.config.OnStateChange(b.name, prev, StateClosed)
	}
}
