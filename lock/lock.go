// Package lock provides the scoped mutual-exclusion contract consumed by
// scheduled maintenance callers (retention cleanup), so overlapping runs do
// not scan-and-delete concurrently. The guarantee consumed here is narrow:
// scoped acquisition with a TTL, and release on every exit path including
// cancellation; callers defer the release func unconditionally.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired reports the lock is currently held elsewhere.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker acquires named locks. The returned release func is idempotent.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}

// MemoryLocker is an in-process Locker for tests and single-node use.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time), clock: time.Now}
}

// Acquire takes the lock unless it is held and unexpired.
func (l *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if expiry, ok := l.held[name]; ok && expiry.After(now) {
		return nil, ErrNotAcquired
	}
	l.held[name] = now.Add(ttl)
	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.held, name)
		})
	}
	return release, nil
}
