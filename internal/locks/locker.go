// Package locks provides the distributed lock that serializes routing table
// rebuilds when several nodes share one store. It uses the Redlock
// implementation from go-redsync/redsync/v4 and keeps a held lock alive by
// extending it at a third of its expiry.
package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/redis"
)

// DefaultExpiry bounds how long a crashed holder blocks others
const DefaultExpiry = 30 * time.Second

// Locker hands out redsync mutexes by key
type Locker struct {
	redsync *redsync.Redsync
	expiry  time.Duration
	tries   int
	logger  logging.Logger

	mu   sync.Mutex
	held map[string]*heldLock
}

type heldLock struct {
	mutex  *redsync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Locker
type Option func(*Locker)

// WithExpiry sets the lock expiry
func WithExpiry(expiry time.Duration) Option {
	return func(l *Locker) { l.expiry = expiry }
}

// WithTries sets how many times Acquire retries a contended lock
func WithTries(tries int) Option {
	return func(l *Locker) { l.tries = tries }
}

// WithLogger sets the locker logger
func WithLogger(logger logging.Logger) Option {
	return func(l *Locker) { l.logger = logger }
}

// New creates a Locker on top of a connected redis client
func New(client *redis.Client, opts ...Option) (*Locker, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	l := &Locker{
		redsync: redsync.New(goredis.NewPool(client.GoRedis())),
		expiry:  DefaultExpiry,
		tries:   32,
		held:    make(map[string]*heldLock),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.Component(l.logger, "locks")
	return l, nil
}

// Acquire blocks until key is locked, ctx is done or the retries run out.
// The returned release function unlocks and stops renewal; calling it more
// than once is harmless.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	mutex := l.redsync.NewMutex(fmt.Sprintf("lock:%s", key),
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.InternalError("failed to acquire distributed lock", err).WithContext("key", key)
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	lock := &heldLock{mutex: mutex, cancel: cancel, done: make(chan struct{})}

	l.mu.Lock()
	l.held[key] = lock
	l.mu.Unlock()

	go l.renew(renewCtx, key, lock)

	var once sync.Once
	release := func(ctx context.Context) error {
		var err error
		once.Do(func() { err = l.release(ctx, key, lock) })
		return err
	}
	return release, nil
}

func (l *Locker) renew(ctx context.Context, key string, lock *heldLock) {
	defer close(lock.done)

	interval := l.expiry / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			ok, err := lock.mutex.ExtendContext(extendCtx)
			cancel()
			if err != nil || !ok {
				l.logger.Warn("Lost distributed lock", logging.String("key", key), logging.Err(err))
				l.forget(key, lock)
				return
			}
		}
	}
}

func (l *Locker) forget(key string, lock *heldLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == lock {
		delete(l.held, key)
	}
}

func (l *Locker) release(ctx context.Context, key string, lock *heldLock) error {
	l.forget(key, lock)
	lock.cancel()
	<-lock.done

	if ok, err := lock.mutex.UnlockContext(ctx); err != nil || !ok {
		return errors.InternalError("failed to release distributed lock", err).WithContext("key", key)
	}
	return nil
}

// Held reports whether this locker currently holds key
func (l *Locker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// Close stops renewing every held lock. The locks expire in redis on their own.
func (l *Locker) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, lock := range l.held {
		lock.cancel()
		delete(l.held, key)
	}
	return nil
}
