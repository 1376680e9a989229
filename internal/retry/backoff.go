// Package retry provides exponential backoff for the client's initial
// dial and a circuit breaker that guards flaky message sinks.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	rrerr "railrelay/internal/errors"
)

// PermanentError stops a backoff loop on the first occurrence.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked with [Permanent].
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Backoff retries an operation with exponentially growing delays.
type Backoff struct {
	InitialDelay time.Duration // default 500ms
	MaxDelay     time.Duration // default 10s
	Multiplier   float64       // default 2
	// MaxAttempts counts the first try; 1 means no retry and 0 means
	// retry until ctx is done.
	MaxAttempts int
	// Jitter spreads each delay by up to 25% either way.
	Jitter bool
	// Retryable decides whether a failure is worth another attempt.
	// Nil retries every error that is not Permanent.
	Retryable func(error) bool
	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// ForDial returns the policy used for connecting to a relay server:
// up to attempts tries, retrying only errors that look transient.
func ForDial(attempts int) *Backoff {
	return &Backoff{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		MaxAttempts:  attempts,
		Jitter:       true,
		Retryable:    rrerr.IsRetryable,
	}
}

// Do calls fn until it succeeds, the error is permanent or not
// retryable, attempts run out, or ctx is done.  attempt is 1-based.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	mult := b.Multiplier
	if mult <= 0 {
		mult = 2
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.Retryable != nil && !b.Retryable(err) {
			return err
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			if b.MaxAttempts == 1 {
				return err
			}
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		wait := delay
		if b.Jitter {
			wait = jitter(delay)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, wait, err)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-t.C:
		}

		delay = time.Duration(float64(delay) * mult)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// jitter moves d by a random amount within ±25%, never below 1ms.
func jitter(d time.Duration) time.Duration {
	quarter := float64(d) / 4
	delta := rand.Float64()*2*quarter - quarter //nolint:gosec
	return time.Duration(math.Max(float64(d)+delta, float64(time.Millisecond)))
}
