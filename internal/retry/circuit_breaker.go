package retry

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Execute] while the circuit is open.
var ErrOpen = errors.New("circuit open")

// State is the breaker's position.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected
	StateHalfOpen              // probing whether the service recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker].  Zero values pick the defaults.
type BreakerConfig struct {
	MaxFailures   int           // consecutive failures that open the circuit (5)
	Cooldown      time.Duration // time spent open before probing (30s)
	ProbeSuccess  int           // half-open successes needed to close (1)
	OnStateChange func(from, to State)
}

// Breaker stops calling a failing dependency for a cooldown period
// once it has failed MaxFailures times in a row.
type Breaker struct {
	mu        sync.Mutex
	cfg       BreakerConfig
	state     State
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeSuccess <= 0 {
		cfg.ProbeSuccess = 1
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	elapsed := b.now().Sub(b.openedAt)
	if elapsed >= b.cfg.Cooldown {
		b.setState(StateHalfOpen)
		return nil
	}
	return fmt.Errorf("%w after %d failures, retry in %v",
		ErrOpen, b.failures, (b.cfg.Cooldown - elapsed).Truncate(time.Second))
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.successes = 0
		if b.state == StateHalfOpen || b.failures >= b.cfg.MaxFailures {
			b.openedAt = b.now()
			b.setState(StateOpen)
		}
		return
	}

	b.successes++
	if b.state == StateHalfOpen && b.successes < b.cfg.ProbeSuccess {
		return
	}
	b.failures = 0
	b.setState(StateClosed)
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
