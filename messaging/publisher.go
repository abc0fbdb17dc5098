// Package messaging carries change notifications from the repository layer
// to other service components. Publishing is fire-and-forget with an
// optional delay used as a coalescing window: the index is near-real-time,
// so subscribers re-querying immediately after a change would often miss it.
package messaging

import (
	"context"
	"sync"
	"time"
)

// ChangeKind tags what happened to the entities an event covers.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeSaved   ChangeKind = "saved"
	ChangeRemoved ChangeKind = "removed"
)

// EntityChanged is the published payload. EntityID is only set when the
// event covers exactly one entity; multi-entity events leave it empty and
// subscribers re-query by owner.
type EntityChanged struct {
	Kind           ChangeKind     `json:"kind"`
	EntityType     string         `json:"entity_type"`
	OrganizationID string         `json:"organization_id,omitempty"`
	ProjectID      string         `json:"project_id,omitempty"`
	EntityID       string         `json:"entity_id,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

// Publisher is the outbound contract. Implementations must not block the
// caller for the delay duration.
type Publisher interface {
	Publish(ctx context.Context, msg EntityChanged, delay time.Duration) error
}

// MemoryPublisher collects published messages in-process. It backs tests and
// single-process deployments.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []EntityChanged
}

// NewMemoryPublisher creates an in-process publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records the message after the delay elapses; a zero delay records
// it synchronously.
func (p *MemoryPublisher) Publish(_ context.Context, msg EntityChanged, delay time.Duration) error {
	if delay <= 0 {
		p.append(msg)
		return nil
	}
	time.AfterFunc(delay, func() { p.append(msg) })
	return nil
}

func (p *MemoryPublisher) append(msg EntityChanged) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

// Messages returns a snapshot of everything published so far.
func (p *MemoryPublisher) Messages() []EntityChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]EntityChanged(nil), p.messages...)
}
