package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
)

func testConfig() Config {
	return Config{MaxFailures: 2, Timeout: 50 * time.Millisecond, MaxConcurrentRequests: 1}
}

func TestBreaker(t *testing.T) {
	logger := logging.NewNopLogger()
	ctx := context.Background()

	t.Run("stays closed on success", func(t *testing.T) {
		b := New("http|10.0.0.1", testConfig(), logger)
		require.NoError(t, b.Execute(ctx, func(context.Context) error { return nil }))
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("opens after consecutive failures", func(t *testing.T) {
		b := New("http|10.0.0.2", testConfig(), logger)
		for i := 0; i < 2; i++ {
			err := b.Execute(ctx, func(context.Context) error { return fmt.Errorf("refused %d", i) })
			assert.Error(t, err)
		}
		assert.Equal(t, StateOpen, b.State())

		err := b.Execute(ctx, func(context.Context) error {
			t.Fatal("send must not run while open")
			return nil
		})
		assert.True(t, errors.IsType(err, errors.ErrTypeCommunication))
	})

	t.Run("half-open after timeout and closes on success", func(t *testing.T) {
		b := New("http|10.0.0.3", testConfig(), logger)
		for i := 0; i < 2; i++ {
			_ = b.Execute(ctx, func(context.Context) error { return fmt.Errorf("refused") })
		}
		require.Equal(t, StateOpen, b.State())

		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, b.State())

		require.NoError(t, b.Execute(ctx, func(context.Context) error { return nil }))
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("format errors do not trip", func(t *testing.T) {
		b := New("http|10.0.0.4", testConfig(), logger)
		for i := 0; i < 5; i++ {
			_ = b.Execute(ctx, func(context.Context) error { return errors.FormatError("bad body", nil) })
		}
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		b := New("bad", Config{}, logger)
		assert.Equal(t, StateClosed, b.State())
		assert.Equal(t, "bad", b.Name())
	})
}

func TestManager(t *testing.T) {
	m := NewManager(testConfig(), logging.NewNopLogger())
	ctx := context.Background()

	assert.Same(t, m.Get("a"), m.Get("a"))

	for i := 0; i < 2; i++ {
		_ = m.Execute(ctx, "b", func(context.Context) error { return fmt.Errorf("down") })
	}
	require.NoError(t, m.Execute(ctx, "a", func(context.Context) error { return nil }))

	assert.Equal(t, []string{"b"}, m.Open())
	assert.Equal(t, map[string]string{"a": "closed", "b": "open"}, m.States())
}
