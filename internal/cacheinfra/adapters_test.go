package cacheinfra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-search-repository/cache"
)

func testConfig() cache.Config {
	return cache.Config{
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Minute,
		Namespace:       "test",
	}
}

func TestMemoryClientRoundTrip(t *testing.T) {
	c, err := NewMemoryClient(testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Remove(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryClientFlushAll(t *testing.T) {
	c, err := NewMemoryClient(testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.FlushAll(ctx))

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryClientRejectsInvalidConfig(t *testing.T) {
	_, err := NewMemoryClient(cache.Config{})
	assert.Error(t, err)
}

func newRedisPair(t *testing.T) (*miniredis.Miniredis, cache.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { rdb.Close() })

	c, err := NewRedisClient(rdb, testConfig())
	require.NoError(t, err)
	return srv, c
}

func TestRedisClientRoundTrip(t *testing.T) {
	srv, c := newRedisPair(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	// Keys live under the configured namespace.
	assert.True(t, srv.Exists("test:k"))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Remove(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisClientTTL(t *testing.T) {
	srv, c := newRedisPair(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
	srv.FastForward(2 * time.Second)

	_, ok, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisClientFlushAllScopedToNamespace(t *testing.T) {
	srv, c := newRedisPair(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	// A co-tenant key outside the namespace must survive the flush.
	require.NoError(t, srv.Set("other:key", "keep"))

	require.NoError(t, c.FlushAll(ctx))

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, srv.Exists("other:key"))
}
