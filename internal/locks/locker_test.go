package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/redis"
	"overlay-router/internal/routing"
)

func newTestLocker(t *testing.T, opts ...Option) (*Locker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(context.Background(), &redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	opts = append([]Option{WithLogger(logging.NewNopLogger())}, opts...)
	locker, err := New(client, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { locker.Close() })
	return locker, mr
}

func TestLocker_AcquireRelease(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, routing.RebuildLockKey)
	require.NoError(t, err)
	assert.True(t, locker.Held(routing.RebuildLockKey))
	assert.True(t, mr.Exists("lock:"+routing.RebuildLockKey))

	require.NoError(t, release(ctx))
	assert.False(t, locker.Held(routing.RebuildLockKey))
	assert.False(t, mr.Exists("lock:"+routing.RebuildLockKey))
	assert.NoError(t, release(ctx), "second release is a no-op")
}

func TestLocker_Contention(t *testing.T) {
	locker, _ := newTestLocker(t, WithTries(2))
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "contended")
	require.NoError(t, err)
	defer release(ctx)

	_, err = locker.Acquire(ctx, "contended")
	assert.Error(t, err)

	other, err := locker.Acquire(ctx, "other")
	require.NoError(t, err)
	require.NoError(t, other(ctx))
}

func TestLocker_ExpiryWithoutRenewal(t *testing.T) {
	locker, mr := newTestLocker(t, WithExpiry(2*time.Second))
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "crashed")
	require.NoError(t, err)
	require.NoError(t, locker.Close())

	mr.FastForward(3 * time.Second)
	assert.False(t, mr.Exists("lock:crashed"))

	release, err := locker.Acquire(ctx, "crashed")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestLocker_GuardsRebuild(t *testing.T) {
	locker, _ := newTestLocker(t)
	var _ routing.Locker = locker
}
