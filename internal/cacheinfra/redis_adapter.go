package cacheinfra

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-search-repository/cache"
)

// redisClient adapts go-redis to cache.Client. Keys are prefixed with the
// configured namespace so FlushAll never touches co-tenant data in a shared
// redis.
type redisClient struct {
	rdb        redis.UniversalClient
	namespace  string
	defaultTTL time.Duration
}

// NewRedisClient creates a redis-backed cache client on an existing
// connection. The caller owns the connection lifecycle.
func NewRedisClient(rdb redis.UniversalClient, cfg cache.Config) (cache.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &redisClient{
		rdb:        rdb,
		namespace:  cfg.Namespace,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

func (r *redisClient) key(key string) string {
	if r.namespace == "" {
		return key
	}
	return r.namespace + ":" + key
}

func (r *redisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (r *redisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	return r.rdb.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *redisClient) Remove(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}

// FlushAll removes every key in this client's namespace via SCAN, or the
// whole database when no namespace is configured.
func (r *redisClient) FlushAll(ctx context.Context) error {
	if r.namespace == "" {
		return r.rdb.FlushDB(ctx).Err()
	}
	iter := r.rdb.Scan(ctx, 0, r.namespace+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}
