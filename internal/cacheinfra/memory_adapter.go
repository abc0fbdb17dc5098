// Package cacheinfra provides the concrete cache backends behind the public
// cache.Client contract: an in-process adapter over patrickmn/go-cache and a
// redis adapter over go-redis.
package cacheinfra

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/goliatone/go-search-repository/cache"
)

// memoryClient adapts go-cache to cache.Client. go-cache tracks expiration
// per entry, which the Client contract requires.
type memoryClient struct {
	store      *gocache.Cache
	defaultTTL time.Duration
}

// NewMemoryClient creates an in-process cache client.
func NewMemoryClient(cfg cache.Config) (cache.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &memoryClient{
		store:      gocache.New(cfg.DefaultTTL, cfg.CleanupInterval),
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

func (m *memoryClient) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return raw, true, nil
}

func (m *memoryClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.store.Set(key, value, ttl)
	return nil
}

func (m *memoryClient) Remove(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

func (m *memoryClient) FlushAll(_ context.Context) error {
	m.store.Flush()
	return nil
}
