package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/redis"
	"overlay-router/internal/store"
	"overlay-router/internal/store/storetest"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(context.Background(), &redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		client, _ := newClient(t)
		s, err := New(client, "")
		require.NoError(t, err)
		return s
	})
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	client, mr := newClient(t)
	s, err := New(client, "test:entries")
	require.NoError(t, err)

	mr.HSet("test:entries", "bad", "{not json")
	_, err = s.Load(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrTypeFormat))
}

func TestRedisStore_ServerDown(t *testing.T) {
	client, mr := newClient(t)
	s, err := New(client, "")
	require.NoError(t, err)

	mr.Close()
	err = s.DeleteAll(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
	assert.Error(t, s.Health(context.Background()))
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, "")
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}
