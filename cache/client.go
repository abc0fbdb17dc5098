package cache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Client is the cache backend contract. Values are opaque byte slices; the
// typed helpers below handle serialization. A zero TTL means the backend's
// default expiration applies.
type Client interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	FlushAll(ctx context.Context) error
}

// GetValue reads and decodes a cached value. Values are msgpack-framed to
// keep cache payloads compact on shared backends.
func GetValue[T any](ctx context.Context, c Client, key string) (T, bool, error) {
	var zero T
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var value T
	if err := msgpack.Unmarshal(raw, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// SetValue encodes and stores a value.
func SetValue[T any](ctx context.Context, c Client, key string, value T, ttl time.Duration) error {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}
