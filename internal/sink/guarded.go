package sink

import (
	"context"

	"railrelay/internal/retry"
)

// Guarded wraps a sink with a circuit breaker so a dead backend is
// skipped for a cooldown instead of stalling every message.
type Guarded struct {
	Sink    Sink
	Breaker *retry.Breaker
}

// NewGuarded wraps s with a breaker built from cfg.
func NewGuarded(s Sink, cfg retry.BreakerConfig) *Guarded {
	return &Guarded{Sink: s, Breaker: retry.NewBreaker(cfg)}
}

// Deliver forwards msg unless the breaker is open, in which case it
// returns an error wrapping retry.ErrOpen.
func (g *Guarded) Deliver(ctx context.Context, msg Message) error {
	return g.Breaker.Execute(func() error {
		return g.Sink.Deliver(ctx, msg)
	})
}

// Close closes the wrapped sink.
func (g *Guarded) Close() error {
	return g.Sink.Close()
}
