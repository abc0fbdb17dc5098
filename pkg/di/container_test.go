package di

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-search-repository/config"
	"github.com/goliatone/go-search-repository/internal/storetest"
	"github.com/goliatone/go-search-repository/model"
	"github.com/goliatone/go-search-repository/pkg/testsupport"
	"github.com/goliatone/go-search-repository/stacks"
)

func TestContainerWithDefaults(t *testing.T) {
	store := storetest.NewMemoryIndex()
	c, err := NewContainerWithDefaults(store)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	assert.NotNil(t, c.Cache())
	assert.NotNil(t, c.Publisher())
	assert.NotNil(t, c.Locker())
	assert.NotNil(t, c.MetricsRegistry())
	assert.Same(t, store, c.Store())
}

func TestContainerRejectsInvalidSettings(t *testing.T) {
	settings := config.Default()
	settings.Cache.Backend = "bogus"
	_, err := NewContainer(storetest.NewMemoryIndex(), settings, nil)
	assert.Error(t, err)
}

func TestContainerRedisBackend(t *testing.T) {
	srv := miniredis.RunT(t)
	settings := config.Default()
	settings.Cache.Backend = "redis"
	settings.Redis.Addr = srv.Addr()

	c, err := NewContainer(storetest.NewMemoryIndex(), settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Cache().Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := c.Cache().Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	release, err := c.Locker().Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	release()
}

func TestContainerBuildsWiredRepositories(t *testing.T) {
	store := storetest.NewMemoryIndex()
	settings := config.Default()
	settings.Notifications.Delay = 0

	c, err := NewContainer(store, settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	eventRepo, err := c.NewEventRepository()
	require.NoError(t, err)
	stackRepo, err := c.NewStackRepository(eventRepo)
	require.NoError(t, err)

	ctx := context.Background()
	s := testsupport.NewStack("p1", 1)
	require.NoError(t, stackRepo.Add(ctx, []*model.Stack{s}))

	evt := testsupport.NewEvent("p1", s.ID, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, eventRepo.Add(ctx, []*model.Event{evt}))
	require.NoError(t, stackRepo.IncrementStats(ctx, s.ID, evt.Date))

	got, err := stackRepo.GetByID(ctx, s.ID, true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.TotalOccurrences)
}

func TestGenericFactories(t *testing.T) {
	store := storetest.NewMemoryIndex()
	c, err := NewContainerWithDefaults(store)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ro, err := NewReadOnly(c, stacks.Descriptor())
	require.NoError(t, err)
	assert.Equal(t, "stacks", ro.EntityType())

	mut, err := NewMutable(c, stacks.Descriptor())
	require.NoError(t, err)
	assert.NotNil(t, mut)
}
