// Package stacks is the repository for the error-stack aggregate. On top of
// the generic mutable repository it maintains the per-stack occurrence
// counters through conditional store-side updates, and owns the cascading
// invalidation of the derived id-list caches (hidden / fixed / not-found)
// and the signature-hash lookup cache.
package stacks

import (
	"context"
	"time"

	"github.com/goliatone/go-search-repository/cache"
	"github.com/goliatone/go-search-repository/events"
	"github.com/goliatone/go-search-repository/model"
	"github.com/goliatone/go-search-repository/repository"
	"github.com/goliatone/go-search-repository/search"
)

// TypeName is the logical index name and cache scope for stacks.
const TypeName = "stacks"

// IndexVersion is the current mapping version.
const IndexVersion = 1

// idListTTL bounds staleness of the derived id-list caches as a fallback;
// explicit invalidation is the primary guarantee.
const idListTTL = 5 * time.Minute

// idListLimit caps how many ids a derived list carries.
const idListLimit = 10000

// Descriptor declares the stack type's capabilities: single index, soft
// deletes, project ownership.
func Descriptor() repository.Descriptor[*model.Stack] {
	return repository.Descriptor[*model.Stack]{
		Name:           TypeName,
		Version:        IndexVersion,
		SoftDeletes:    true,
		Ownership:      repository.OwnedByProject,
		OrganizationID: func(s *model.Stack) string { return s.OrganizationID },
		ProjectID:      func(s *model.Stack) string { return s.ProjectID },
		Stamp: func(s *model.Stack, now time.Time) {
			if s.CreatedAt.IsZero() {
				s.CreatedAt = now
			}
			s.UpdatedAt = now
		},
		Validate: func(s *model.Stack) error { return s.Validate() },
	}
}

// Repository manages stacks and their occurrence statistics.
type Repository struct {
	*repository.Mutable[*model.Stack]
	events *events.Repository
}

// New builds the stack repository. The event repository is the child store
// status changes cascade into; nil disables the cascade (tests exercising
// only counters do this).
func New(store search.Client, eventRepo *events.Repository, opts ...repository.Option) (*Repository, error) {
	base, err := repository.NewMutable(Descriptor(), store, opts...)
	if err != nil {
		return nil, err
	}
	r := &Repository{Mutable: base, events: eventRepo}
	base.SetAfterChangeHook(r.invalidateDerived)
	return r, nil
}

// IncrementStats rolls one occurrence into the stack's counters. Both
// writes are store-side conditional updates, not read-modify-write:
// concurrent ingestion workers in other processes must not clobber each
// other.
//
// Write 1 sets firstOccurrence only on the zero-to-nonzero transition of
// totalOccurrences, so exactly one racing writer can match the condition.
// Write 2 increments totalOccurrences and advances lastOccurrence in one
// atomic unit when the occurrence is newer; out-of-order occurrences fall
// back to an unconditional increment that leaves lastOccurrence untouched,
// and the entity's cache entry is invalidated because a field changed
// outside the normal cache-set path.
func (r *Repository) IncrementStats(ctx context.Context, stackID string, occurrence time.Time) error {
	loc, err := r.Resolver().ResolveID(stackID)
	if err != nil {
		return err
	}
	idx := loc.String()
	ts := occurrence.UTC().Format(time.RFC3339Nano)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	first := search.Update{
		ID:        stackID,
		Index:     idx,
		Condition: &search.Condition{Field: "total_occurrences", Op: search.CompareEq, Value: 0},
		Set:       map[string]any{"first_occurrence": ts},
	}
	if _, err := r.partialUpdate(ctx, first); err != nil {
		return err
	}

	newer := search.Update{
		ID:        stackID,
		Index:     idx,
		Condition: &search.Condition{Field: "last_occurrence", Op: search.CompareLt, Value: ts},
		Set:       map[string]any{"last_occurrence": ts, "updated_at": now},
		Increment: map[string]int64{"total_occurrences": 1},
	}
	applied, err := r.partialUpdate(ctx, newer)
	if err != nil {
		return err
	}
	if applied == 0 {
		// Out-of-order occurrence: count it without touching lastOccurrence.
		older := search.Update{
			ID:        stackID,
			Index:     idx,
			Set:       map[string]any{"updated_at": now},
			Increment: map[string]int64{"total_occurrences": 1},
		}
		if _, err := r.partialUpdate(ctx, older); err != nil {
			return err
		}
	}
	r.removeCacheKey(ctx, stackID)
	return nil
}

// GetBySignatureHash looks a stack up by its dedup signature within a
// project, cache-aside under the signature key.
func (r *Repository) GetBySignatureHash(ctx context.Context, projectID, hash string) (*model.Stack, error) {
	key := signatureKey(projectID, hash)
	if c := r.Cache(); c != nil {
		if s, ok, err := cache.GetValue[*model.Stack](ctx, c, key); err == nil && ok {
			return s, nil
		}
	}
	opts := repository.NewOptions().
		WithSystemFilter(search.Term("project_id", projectID)).
		WithFilter(search.Term("signature_hash", hash)).
		Build()
	s, err := r.FindOne(ctx, opts)
	if err != nil || s == nil {
		return s, err
	}
	if c := r.Cache(); c != nil {
		if err := cache.SetValue(ctx, c, key, s, idListTTL); err != nil {
			r.Logger().WithError(err).Warn("cache write failed")
		}
	}
	return s, nil
}

// GetHiddenIDs returns the ids of a project's hidden stacks.
func (r *Repository) GetHiddenIDs(ctx context.Context, projectID string) ([]string, error) {
	return r.idList(ctx, hiddenKey(projectID), projectID, search.Term("hidden", true))
}

// GetFixedIDs returns the ids of a project's fixed stacks.
func (r *Repository) GetFixedIDs(ctx context.Context, projectID string) ([]string, error) {
	return r.idList(ctx, fixedKey(projectID), projectID, search.Exists("fixed_at"))
}

// GetNotFoundIDs returns the ids of a project's 404 stacks.
func (r *Repository) GetNotFoundIDs(ctx context.Context, projectID string) ([]string, error) {
	return r.idList(ctx, notFoundKey(projectID), projectID, search.Term("type", model.StackTypeNotFound))
}

// idList serves one derived per-project id list, cache-aside with a short
// TTL plus explicit invalidation from the save cascade.
func (r *Repository) idList(ctx context.Context, key, projectID string, predicate search.Filter) ([]string, error) {
	if c := r.Cache(); c != nil {
		if ids, ok, err := cache.GetValue[[]string](ctx, c, key); err == nil && ok {
			return ids, nil
		}
	}
	opts := repository.NewOptions().
		WithSystemFilter(search.Term("project_id", projectID)).
		WithFilter(predicate).
		WithFields("id").
		WithPaging(0, idListLimit).
		Build()
	stacks, err := r.Find(ctx, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(stacks))
	for _, s := range stacks {
		ids = append(ids, s.ID)
	}
	if c := r.Cache(); c != nil {
		if err := cache.SetValue(ctx, c, key, ids, idListTTL); err != nil {
			r.Logger().WithError(err).Warn("cache write failed")
		}
	}
	return ids, nil
}

// invalidateDerived is the post-save stage: it diffs each saved stack
// against its pre-save version and drops every derived cache whose
// qualifying field changed. The store has no foreign-key cascade, so each
// denormalized cache names its invalidation triggers explicitly here.
func (r *Repository) invalidateDerived(ctx context.Context, saved []*model.Stack, originals map[string]*model.Stack) error {
	for _, s := range saved {
		original := originals[s.ID]

		fixedChanged := original == nil && s.IsFixed() ||
			original != nil && original.IsFixed() != s.IsFixed()
		if fixedChanged {
			r.removeCacheKey(ctx, fixedKey(s.ProjectID))
			if r.events != nil && original != nil {
				if _, err := r.events.UpdateFixedByStack(ctx, s.OrganizationID, s.ID, s.IsFixed()); err != nil {
					return err
				}
			}
		}

		hiddenChanged := original == nil && s.Hidden ||
			original != nil && original.Hidden != s.Hidden
		if hiddenChanged {
			r.removeCacheKey(ctx, hiddenKey(s.ProjectID))
			if r.events != nil && original != nil {
				if _, err := r.events.UpdateHiddenByStack(ctx, s.OrganizationID, s.ID, s.Hidden); err != nil {
					return err
				}
			}
		}

		if s.Type == model.StackTypeNotFound {
			r.removeCacheKey(ctx, notFoundKey(s.ProjectID))
		}
		r.removeCacheKey(ctx, signatureKey(s.ProjectID, s.SignatureHash))
	}
	return nil
}

func (r *Repository) partialUpdate(ctx context.Context, update search.Update) (int, error) {
	res, err := r.Store().BulkPartialUpdate(ctx, []search.Update{update})
	if err != nil {
		return 0, err
	}
	if !res.Valid || len(res.Errors) > 0 {
		return 0, &repository.StoreError{
			Op:         "bulk_update",
			EntityType: TypeName,
			Status:     res.Status,
			Items:      res.Errors,
		}
	}
	return res.Applied, nil
}

func (r *Repository) removeCacheKey(ctx context.Context, key string) {
	if c := r.Cache(); c != nil {
		if err := c.Remove(ctx, key); err != nil {
			r.Logger().WithError(err).WithField("key", key).Warn("cache invalidation failed")
		}
	}
}

func hiddenKey(projectID string) string   { return "hidden-" + projectID }
func fixedKey(projectID string) string    { return "fixed-" + projectID }
func notFoundKey(projectID string) string { return "notfound-" + projectID }
func signatureKey(projectID, hash string) string {
	return "signature-" + projectID + "-" + hash
}
