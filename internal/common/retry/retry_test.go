package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Do(ctx, fastPolicy(3), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := Do(ctx, fastPolicy(2), func(context.Context) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "gave up after 2 attempts")
		assert.Equal(t, 2, calls)
	})

	t.Run("zero attempts means one try", func(t *testing.T) {
		calls := 0
		err := Do(ctx, Policy{}, func(context.Context) error {
			calls++
			return errors.New("no")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("non retryable error stops immediately", func(t *testing.T) {
		fatal := errors.New("fatal")
		p := fastPolicy(5)
		p.Retryable = func(err error) bool { return !errors.Is(err, fatal) }

		calls := 0
		err := Do(ctx, p, func(context.Context) error {
			calls++
			return fatal
		})
		assert.Same(t, fatal, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := Policy{Attempts: 5, Initial: time.Hour}

		calls := 0
		err := Do(ctx, p, func(context.Context) error {
			calls++
			cancel()
			return errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestPolicy_Delays(t *testing.T) {
	p := Policy{Initial: time.Second, Max: 3 * time.Second, Factor: 2}

	assert.Equal(t, 2*time.Second, p.next(time.Second))
	assert.Equal(t, 3*time.Second, p.next(2*time.Second))
	assert.Equal(t, time.Second, p.withJitter(time.Second))

	p.Jitter = 0.5
	for i := 0; i < 20; i++ {
		d := p.withJitter(time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1500*time.Millisecond)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.Attempts)
	assert.Nil(t, p.Retryable)
}
