package cache

import (
	"context"
	"time"
)

// Scoped namespaces every key with an entity type name so multiple
// repositories can safely share one backend. Key format: scope + "-" + key.
type Scoped struct {
	client Client
	scope  string
}

// NewScoped wraps a client with a type scope.
func NewScoped(client Client, scope string) *Scoped {
	return &Scoped{client: client, scope: scope}
}

// Scope returns the namespace prefix without the trailing separator.
func (s *Scoped) Scope() string { return s.scope }

func (s *Scoped) key(key string) string { return s.scope + "-" + key }

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.client.Get(ctx, s.key(key))
}

func (s *Scoped) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, ttl)
}

func (s *Scoped) Remove(ctx context.Context, key string) error {
	return s.client.Remove(ctx, s.key(key))
}

// FlushAll flushes the whole backend, not just this scope. Bulk removals use
// it as a deliberate blunt invalidation; a selective flush would cost as much
// as the scan it replaces.
func (s *Scoped) FlushAll(ctx context.Context) error {
	return s.client.FlushAll(ctx)
}
