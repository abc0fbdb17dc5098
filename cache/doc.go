// Package cache defines the key/value cache contract the repository layer
// consumes and the type-scoped wrapper that namespaces keys per entity type.
//
// The Client interface is intentionally small: get, set with TTL, remove and
// flush. Concrete backends live in internal/cacheinfra (an in-process
// go-cache adapter and a redis adapter); the repository layer treats the
// cache as best-effort and degrades to always-miss behaviour when a call
// fails or no client is configured.
package cache
