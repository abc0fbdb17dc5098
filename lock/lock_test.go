package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "job", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	// A different name is a different lock.
	other, err := l.Acquire(ctx, "other", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release() // idempotent

	release2, err := l.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestMemoryLockerExpiry(t *testing.T) {
	l := NewMemoryLocker()
	l.clock = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	_, err := l.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)

	// Past the TTL the lock is free again even without a release.
	l.clock = func() time.Time { return time.Date(2026, 3, 10, 12, 2, 0, 0, time.UTC) }
	release, err := l.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	release()
}

func newRedisLocker(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return srv, NewRedisLocker(rdb, "locks")
}

func TestRedisLockerMutualExclusion(t *testing.T) {
	_, l := newRedisLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "job", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()
	release2, err := l.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestRedisLockerExpiry(t *testing.T) {
	srv, l := newRedisLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "job", time.Second)
	require.NoError(t, err)

	srv.FastForward(2 * time.Second)
	release, err := l.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	release()
}

func TestRedisLockerReleaseOnlyOwnToken(t *testing.T) {
	srv, l := newRedisLocker(t)
	ctx := context.Background()

	staleRelease, err := l.Acquire(ctx, "job", time.Second)
	require.NoError(t, err)

	// The first holder's lock expires and someone else takes it.
	srv.FastForward(2 * time.Second)
	_, err = l.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)

	// The stale holder's release must not free the new holder's lock.
	staleRelease()
	_, err = l.Acquire(ctx, "job", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
}
