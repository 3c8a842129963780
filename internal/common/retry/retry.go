// Package retry runs an operation again with exponential backoff until it
// succeeds, the attempts run out, or the context is cancelled.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy controls how often and how far apart attempts are made.
type Policy struct {
	// Attempts counts the first try. Values below 1 mean a single try.
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64
	// Jitter adds up to this fraction of the delay at random.
	Jitter float64
	// Retryable filters errors; nil retries everything.
	Retryable func(error) bool
}

// DefaultPolicy suits connecting to a backing service during startup.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Initial:  500 * time.Millisecond,
		Max:      10 * time.Second,
		Factor:   2,
		Jitter:   0.1,
	}
}

// Do calls fn until it returns nil. The returned error wraps the last
// failure, or the context error when ctx ends between attempts.
// Non-retryable errors are returned unchanged.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Initial

	var last error
	for attempt := 1; ; attempt++ {
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(last) {
			return last
		}
		if attempt >= attempts {
			break
		}

		timer := time.NewTimer(p.withJitter(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
		delay = p.next(delay)
	}

	return fmt.Errorf("gave up after %d attempts: %w", attempts, last)
}

func (p Policy) next(delay time.Duration) time.Duration {
	if p.Factor > 1 {
		delay = time.Duration(float64(delay) * p.Factor)
	}
	if p.Max > 0 && delay > p.Max {
		delay = p.Max
	}
	return delay
}

func (p Policy) withJitter(delay time.Duration) time.Duration {
	if p.Jitter <= 0 || delay <= 0 {
		return delay
	}
	spread := int64(float64(delay) * p.Jitter)
	if spread <= 0 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(spread))
}
