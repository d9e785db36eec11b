package locker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, "lock:"), mr
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t)

	ok, value, err := l.TryLock(ctx, "slot-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("lock:slot-1"))

	ok, _, err = l.TryLock(ctx, "slot-1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, l.Unlock(ctx, "slot-1", "someone-else"), ErrNotOwner)
	require.NoError(t, l.Unlock(ctx, "slot-1", value))
	assert.False(t, mr.Exists("lock:slot-1"))

	// released lock can be retaken
	ok, _, err = l.TryLock(ctx, "slot-1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t)

	ok, value, err := l.TryLock(ctx, "slot-2", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(200 * time.Millisecond)

	ok, _, err = l.TryLock(ctx, "slot-2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// the stale holder must not release the new lock
	assert.ErrorIs(t, l.Unlock(ctx, "slot-2", value), ErrNotOwner)
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	now := time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, value, err := l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, _ = l.TryLock(ctx, "k", time.Second)
	assert.False(t, ok)

	assert.ErrorIs(t, l.Unlock(ctx, "k", "other"), ErrNotOwner)
	require.NoError(t, l.Unlock(ctx, "k", value))

	ok, value, _ = l.TryLock(ctx, "k", time.Second)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	ok, _, _ = l.TryLock(ctx, "k", time.Second)
	assert.True(t, ok, "expired lock is retaken")
	assert.ErrorIs(t, l.Unlock(ctx, "k", value), ErrNotOwner)
}
