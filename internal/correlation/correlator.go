// Package correlation pairs asynchronous replies with the callers waiting for
// them. A caller registers an id, sends its request over a transport, then
// waits; the inbound path resolves the id when the reply arrives.
//
//	waiter, err := c.Register(id)
//	if err != nil {
//		return err
//	}
//	if err := send(id); err != nil {
//		c.Abandon(id)
//		return err
//	}
//	reply, err := waiter.Wait(ctx, 10*time.Second)
package correlation

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"overlay-router/internal/common/errors"
)

var (
	// ErrDuplicateCorrelation is returned when registering an id that is still pending
	ErrDuplicateCorrelation = stderrors.New("correlation id already pending")

	// ErrAbandoned is returned from Wait when the correlation was abandoned
	ErrAbandoned = stderrors.New("correlation abandoned")
)

type pending[T any] struct {
	ch chan T
}

// Correlator holds pending correlations keyed by id
type Correlator[T any] struct {
	mu      sync.Mutex
	pending map[string]*pending[T]
}

// New creates an empty correlator
func New[T any]() *Correlator[T] {
	return &Correlator[T]{pending: make(map[string]*pending[T])}
}

// NewID returns a fresh correlation id
func NewID() string {
	return uuid.NewString()
}

// Waiter is the caller's handle on one pending correlation
type Waiter[T any] struct {
	id    string
	owner *Correlator[T]
	entry *pending[T]
}

// ID returns the correlation id
func (w *Waiter[T]) ID() string {
	return w.id
}

// Register creates a pending correlation for id
func (c *Correlator[T]) Register(id string) (*Waiter[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCorrelation, id)
	}
	// buffered so Resolve never blocks, even if the waiter is gone
	entry := &pending[T]{ch: make(chan T, 1)}
	c.pending[id] = entry
	return &Waiter[T]{id: id, owner: c, entry: entry}, nil
}

// Resolve delivers result to the waiter for id and removes the correlation.
// It returns false for unknown, resolved, timed out or abandoned ids.
func (c *Correlator[T]) Resolve(id string, result T) bool {
	c.mu.Lock()
	entry, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	entry.ch <- result
	return true
}

// Abandon removes a pending correlation; a late Resolve is discarded
func (c *Correlator[T]) Abandon(id string) {
	c.mu.Lock()
	entry, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if ok {
		close(entry.ch)
	}
}

// Pending returns the number of unresolved correlations
func (c *Correlator[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// remove deletes id only if it still maps to entry
func (c *Correlator[T]) remove(id string, entry *pending[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[id] == entry {
		delete(c.pending, id)
	}
}

// Wait blocks until the correlation is resolved, the timeout elapses or ctx
// is done. A non-positive timeout waits on ctx alone. On timeout the
// correlation is removed and a timeout error returned.
func (w *Waiter[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case result, ok := <-w.entry.ch:
		if !ok {
			return zero, ErrAbandoned
		}
		return result, nil
	case <-expired:
		w.owner.remove(w.id, w.entry)
		return zero, errors.TimeoutError(fmt.Sprintf("wait for correlation %s", w.id)).
			WithContext("timeout", timeout.String())
	case <-ctx.Done():
		w.owner.remove(w.id, w.entry)
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errors.TimeoutError(fmt.Sprintf("wait for correlation %s", w.id))
		}
		return zero, ctx.Err()
	}
}
