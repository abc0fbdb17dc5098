// Package events is the repository for occurrence records: the high-volume,
// time-series entity type stored in monthly shards. It exercises the
// wildcard-read, shard-grouped-write and scroll-bulk paths of the generic
// layer, and exposes the stack-scoped bulk rewrites the stacks repository
// cascades into when an aggregate's status flips.
package events

import (
	"context"
	"time"

	"github.com/goliatone/go-search-repository/lock"
	"github.com/goliatone/go-search-repository/model"
	"github.com/goliatone/go-search-repository/repository"
	"github.com/goliatone/go-search-repository/search"
)

// TypeName is the logical index name and cache scope for events.
const TypeName = "events"

// IndexVersion is the current mapping version.
const IndexVersion = 1

// retentionLockName scopes the cleanup mutual-exclusion lock.
const retentionLockName = "events-retention"

// Descriptor declares the event type's capabilities: monthly shards keyed by
// the occurrence date, project ownership, no soft deletes.
func Descriptor() repository.Descriptor[*model.Event] {
	return repository.Descriptor[*model.Event]{
		Name:           TypeName,
		Version:        IndexVersion,
		TimeSeries:     true,
		Ownership:      repository.OwnedByProject,
		OrganizationID: func(e *model.Event) string { return e.OrganizationID },
		ProjectID:      func(e *model.Event) string { return e.ProjectID },
		ShardDate:      func(e *model.Event) time.Time { return e.Date },
		Stamp: func(e *model.Event, now time.Time) {
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			e.UpdatedAt = now
		},
		Validate: func(e *model.Event) error { return e.Validate() },
	}
}

// Repository manages events.
type Repository struct {
	*repository.Mutable[*model.Event]
}

// New builds the event repository.
func New(store search.Client, opts ...repository.Option) (*Repository, error) {
	base, err := repository.NewMutable(Descriptor(), store, opts...)
	if err != nil {
		return nil, err
	}
	return &Repository{Mutable: base}, nil
}

// GetByStack returns up to limit events belonging to a stack, newest first.
func (r *Repository) GetByStack(ctx context.Context, stackID string, limit int) ([]*model.Event, error) {
	opts := repository.NewOptions().
		WithFilter(search.Term("stack_id", stackID)).
		WithSort("date", true).
		WithPaging(0, limit).
		Build()
	return r.Find(ctx, opts)
}

// CountByProject counts a project's events, cache-aside for a short window.
func (r *Repository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	opts := repository.NewOptions().
		WithSystemFilter(search.Term("project_id", projectID)).
		WithCache(2 * time.Minute).
		Build()
	return r.Count(ctx, opts)
}

// UpdateFixedByStack rewrites the denormalized fixed flag on every event of
// a stack. Called by the stacks repository when FixedAt transitions.
func (r *Repository) UpdateFixedByStack(ctx context.Context, organizationID, stackID string, fixed bool) (int64, error) {
	opts := repository.NewOptions().
		WithFilter(search.Term("stack_id", stackID)).
		Build()
	return r.UpdateAll(ctx, []string{organizationID}, opts, repository.Patch{
		Set: map[string]any{"is_fixed": fixed},
	})
}

// UpdateHiddenByStack rewrites the denormalized hidden flag on every event
// of a stack.
func (r *Repository) UpdateHiddenByStack(ctx context.Context, organizationID, stackID string, hidden bool) (int64, error) {
	opts := repository.NewOptions().
		WithFilter(search.Term("stack_id", stackID)).
		Build()
	return r.UpdateAll(ctx, []string{organizationID}, opts, repository.Patch{
		Set: map[string]any{"is_hidden": hidden},
	})
}

// RemoveAllByStack deletes every event of a stack.
func (r *Repository) RemoveAllByStack(ctx context.Context, stackID string) (int64, error) {
	opts := repository.NewOptions().
		WithFilter(search.Term("stack_id", stackID)).
		Build()
	return r.RemoveAllByOptions(ctx, opts)
}

// CleanupBefore removes every event older than the cutoff, guarded by the
// retention lock so overlapping scheduled runs do not scan concurrently.
// A held lock is not an error: the overlapping run simply reports zero work.
func (r *Repository) CleanupBefore(ctx context.Context, locker lock.Locker, cutoff time.Time) (int64, error) {
	release, err := locker.Acquire(ctx, retentionLockName, 15*time.Minute)
	if err != nil {
		if err == lock.ErrNotAcquired {
			return 0, nil
		}
		return 0, err
	}
	defer release()

	opts := repository.NewOptions().
		WithFilter(search.Range("date", nil, nil, cutoff.UTC().Format(time.RFC3339Nano), nil)).
		Build()
	return r.RemoveAllByOptions(ctx, opts)
}
