package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"overlay-router/internal/common/errors"
)

func TestNewClient(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	t.Run("successful connection", func(t *testing.T) {
		client, err := NewClient(ctx, &Config{Address: mr.Addr()})
		require.NoError(t, err)
		defer client.Close()

		assert.Equal(t, mr.Addr(), client.Address())
		assert.Equal(t, defaultPoolSize, client.config.PoolSize)
		assert.Equal(t, defaultPingTimeout, client.config.PingTimeout)
		assert.NoError(t, client.Health(ctx))
		assert.NotNil(t, client.GoRedis())
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := NewClient(ctx, nil)
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("negative db", func(t *testing.T) {
		_, err := NewClient(ctx, &Config{Address: mr.Addr(), DB: -1})
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := NewClient(ctx, &Config{Address: "127.0.0.1:1", PingTimeout: time.Second})
		assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
	})

	t.Run("health after server stops", func(t *testing.T) {
		other, err := miniredis.Run()
		require.NoError(t, err)

		client, err := NewClient(ctx, &Config{Address: other.Addr()})
		require.NoError(t, err)
		defer client.Close()

		other.Close()
		assert.Error(t, client.Health(ctx))
	})
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, defaultAddress, cfg.Address)
	assert.Equal(t, defaultPoolSize, cfg.PoolSize)

	cfg = Config{Address: "redis:6380", PoolSize: 3, PingTimeout: time.Second}.withDefaults()
	assert.Equal(t, "redis:6380", cfg.Address)
	assert.Equal(t, 3, cfg.PoolSize)
	assert.Equal(t, time.Second, cfg.PingTimeout)
}
