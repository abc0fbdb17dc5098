package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goliatone/go-search-repository/index"
	"github.com/goliatone/go-search-repository/messaging"
	"github.com/goliatone/go-search-repository/search"
)

// ModOptions are the per-call knobs for mutations. Defaults: results are not
// written to the cache, notifications are sent.
type ModOptions struct {
	addToCache bool
	cacheTTL   time.Duration
	notify     bool
}

// ModOption adjusts one mutation call.
type ModOption func(*ModOptions)

// CacheResult writes the mutated entities to the cache with the given TTL
// (zero uses the repository default).
func CacheResult(ttl time.Duration) ModOption {
	return func(o *ModOptions) {
		o.addToCache = true
		o.cacheTTL = ttl
	}
}

// SkipNotification suppresses the change event for this call.
func SkipNotification() ModOption {
	return func(o *ModOptions) { o.notify = false }
}

func newModOptions(opts []ModOption) ModOptions {
	o := ModOptions{notify: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Patch is the field-level mutation applied by UpdateAll: merged fields
// and/or atomic increments.
type Patch struct {
	Set       map[string]any
	Increment map[string]int64
}

// Mutable extends ReadOnly with writes. Every mutation runs the same fixed
// pipeline: hook, stamp, validate, write, cache, notify.
type Mutable[T Entity] struct {
	*ReadOnly[T]
	events notifier[T]

	beforeChange func(ctx context.Context, entities []T) error
	afterChange  func(ctx context.Context, saved []T, originals map[string]T) error
}

// NewMutable builds a mutable repository for the described entity type.
func NewMutable[T Entity](desc Descriptor[T], store search.Client, opts ...Option) (*Mutable[T], error) {
	ro, err := NewReadOnly(desc, store, opts...)
	if err != nil {
		return nil, err
	}
	return &Mutable[T]{
		ReadOnly: ro,
		events: notifier[T]{
			desc:      desc,
			publisher: ro.cfg.publisher,
			delay:     ro.cfg.notifyDelay,
			batch:     ro.cfg.batchNotify,
		},
	}, nil
}

// SetBeforeChangeHook installs a stage invoked after ids and dates are
// stamped but before validation and the write.
func (m *Mutable[T]) SetBeforeChangeHook(fn func(ctx context.Context, entities []T) error) {
	m.beforeChange = fn
}

// SetAfterChangeHook installs a stage invoked after a successful write, with
// the pre-write versions available for diffing. Originals is nil for Add.
func (m *Mutable[T]) SetAfterChangeHook(fn func(ctx context.Context, saved []T, originals map[string]T) error) {
	m.afterChange = fn
}

// Add indexes new entities. Missing ids are assigned (time-ordered, encoding
// the shard date for time-series types), dates are stamped, and every entity
// is validated before anything is written: one invalid entity aborts the
// whole batch. Time-series batches are grouped by shard and each group is
// bulk-indexed in one call.
func (m *Mutable[T]) Add(ctx context.Context, entities []T, opts ...ModOption) error {
	if len(entities) == 0 {
		return nil
	}
	mod := newModOptions(opts)
	now := time.Now().UTC()

	for _, e := range entities {
		if e.GetID() == "" {
			e.SetID(m.newEntityID(e))
		}
		if m.desc.Stamp != nil {
			m.desc.Stamp(e, now)
		}
	}
	if m.beforeChange != nil {
		if err := m.beforeChange(ctx, entities); err != nil {
			return err
		}
	}
	if err := m.validateAll(entities); err != nil {
		return err
	}
	if err := m.bulkIndex(ctx, entities, func(_ context.Context, e T) string {
		return m.addIndexFor(e).String()
	}); err != nil {
		return err
	}
	m.applyCachePolicy(ctx, entities, mod)
	if mod.notify {
		if err := m.events.notify(ctx, messaging.ChangeAdded, entities); err != nil {
			return err
		}
	}
	if m.afterChange != nil {
		return m.afterChange(ctx, entities, nil)
	}
	return nil
}

// Save upserts entities. Existing versions are fetched first so the
// post-change stage can diff old against new, then the same
// stamp/validate/write pipeline as Add runs. Updates always target the shard
// the entity was created in.
func (m *Mutable[T]) Save(ctx context.Context, entities []T, opts ...ModOption) error {
	if len(entities) == 0 {
		return nil
	}
	mod := newModOptions(opts)
	now := time.Now().UTC()

	var existingIDs []string
	for _, e := range entities {
		if e.GetID() == "" {
			e.SetID(m.newEntityID(e))
		} else {
			existingIDs = append(existingIDs, e.GetID())
		}
	}
	originals := make(map[string]T, len(existingIDs))
	if len(existingIDs) > 0 {
		fetched, err := m.GetByIDs(ctx, existingIDs, false)
		if err != nil {
			return err
		}
		for _, e := range fetched {
			originals[e.GetID()] = e
		}
	}

	for _, e := range entities {
		if m.desc.Stamp != nil {
			m.desc.Stamp(e, now)
		}
	}
	if m.beforeChange != nil {
		if err := m.beforeChange(ctx, entities); err != nil {
			return err
		}
	}
	if err := m.validateAll(entities); err != nil {
		return err
	}
	if err := m.bulkIndex(ctx, entities, m.saveIndexFor); err != nil {
		return err
	}
	m.applyCachePolicy(ctx, entities, mod)
	if mod.notify {
		if err := m.events.notify(ctx, messaging.ChangeSaved, entities); err != nil {
			return err
		}
	}
	if m.afterChange != nil {
		return m.afterChange(ctx, entities, originals)
	}
	return nil
}

// Remove deletes the given entities by id filter. Time-series deletes go
// against the full wildcard pattern since documents may live in any shard.
func (m *Mutable[T]) Remove(ctx context.Context, entities []T, opts ...ModOption) error {
	if len(entities) == 0 {
		return nil
	}
	mod := newModOptions(opts)
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.GetID())
	}
	m.cfg.metrics.StoreCall(m.desc.Name, "delete_by_query")
	if err := m.store.DeleteByQuery(ctx, m.resolver.SearchIndexes(), search.IDs(ids...)); err != nil {
		return storeError("delete_by_query", m.desc.Name, 0, err)
	}
	for _, id := range ids {
		m.cacheRemove(ctx, id)
	}
	if mod.notify {
		return m.events.notify(ctx, messaging.ChangeRemoved, entities)
	}
	return nil
}

// RemoveByIDs fetches the full entities first, then deletes them; the
// removal notification must describe what was removed.
func (m *Mutable[T]) RemoveByIDs(ctx context.Context, ids []string, opts ...ModOption) error {
	entities, err := m.GetByIDs(ctx, ids, false)
	if err != nil {
		return err
	}
	return m.Remove(ctx, entities, opts...)
}

// RemoveAll wipes the type. Time-series types drop all shard indices
// outright instead of scan-deleting; others scroll-delete everything. The
// cache namespace is flushed bluntly in both cases: a selective invalidation
// would cost as much as the scan itself.
func (m *Mutable[T]) RemoveAll(ctx context.Context) error {
	if m.desc.TimeSeries {
		m.cfg.metrics.StoreCall(m.desc.Name, "delete_index")
		if err := m.store.DeleteIndex(ctx, m.resolver.WildcardPattern()); err != nil {
			return storeError("delete_index", m.desc.Name, 0, err)
		}
	} else {
		if _, err := m.RemoveAllByOptions(ctx, NewOptions().Build(), SkipNotification()); err != nil {
			return err
		}
	}
	if m.cache != nil {
		if err := m.cache.FlushAll(ctx); err != nil {
			m.log.WithError(err).Warn("cache flush failed")
		}
	}
	return nil
}

// RemoveAllByOptions scroll-deletes every entity matching the options and
// returns the affected count. An empty-matching filter is the empty-domain
// case: zero affected, no delete issued, no error.
func (m *Mutable[T]) RemoveAllByOptions(ctx context.Context, opts *Options, modOpts ...ModOption) (int64, error) {
	mod := newModOptions(modOpts)
	affected, orgs, err := m.scrollEach(ctx, opts, func(ctx context.Context, batch []search.Document) error {
		ids := make([]string, 0, len(batch))
		for _, doc := range batch {
			ids = append(ids, doc.ID)
		}
		m.cfg.metrics.StoreCall(m.desc.Name, "delete_by_query")
		if err := m.store.DeleteByQuery(ctx, m.resolver.SearchIndexes(), search.IDs(ids...)); err != nil {
			return storeError("delete_by_query", m.desc.Name, 0, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if mod.notify {
		if err := m.events.notifyOrganizations(ctx, messaging.ChangeRemoved, orgs); err != nil {
			return affected, err
		}
	}
	return affected, nil
}

// UpdateAll applies a field-level patch to every entity matching the
// options via scroll traversal. Notification is coarsened to one saved event
// per organization: per-entity events for unbounded matches would flood
// subscribers.
func (m *Mutable[T]) UpdateAll(ctx context.Context, orgIDs []string, opts *Options, patch Patch, modOpts ...ModOption) (int64, error) {
	mod := newModOptions(modOpts)
	affected, orgs, err := m.scrollEach(ctx, opts, func(ctx context.Context, batch []search.Document) error {
		updates := make([]search.Update, 0, len(batch))
		for _, doc := range batch {
			updates = append(updates, search.Update{
				ID:        doc.ID,
				Index:     doc.Index,
				Set:       patch.Set,
				Increment: patch.Increment,
			})
		}
		m.cfg.metrics.StoreCall(m.desc.Name, "bulk_update")
		res, err := m.store.BulkPartialUpdate(ctx, updates)
		if err != nil {
			return storeError("bulk_update", m.desc.Name, 0, err)
		}
		if !res.Valid || len(res.Errors) > 0 {
			return storeError("bulk_update", m.desc.Name, res.Status, nil, res.Errors...)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if mod.notify {
		if len(orgIDs) > 0 {
			orgs = make(map[string]struct{}, len(orgIDs))
			for _, id := range orgIDs {
				orgs[id] = struct{}{}
			}
		}
		if err := m.events.notifyOrganizations(ctx, messaging.ChangeSaved, orgs); err != nil {
			return affected, err
		}
	}
	return affected, nil
}

func (m *Mutable[T]) validateAll(entities []T) error {
	if m.desc.Validate == nil {
		return nil
	}
	for _, e := range entities {
		if err := m.desc.Validate(e); err != nil {
			return &ValidationError{EntityType: m.desc.Name, EntityID: e.GetID(), Err: err}
		}
	}
	return nil
}

// bulkIndex groups entities by target index and issues one bulk call per
// group.
func (m *Mutable[T]) bulkIndex(ctx context.Context, entities []T, indexFor func(context.Context, T) string) error {
	groups := make(map[string][]search.Document)
	var order []string
	for _, e := range entities {
		source, err := json.Marshal(e)
		if err != nil {
			return storeError("encode", m.desc.Name, 0, err)
		}
		idx := indexFor(ctx, e)
		if _, ok := groups[idx]; !ok {
			order = append(order, idx)
		}
		groups[idx] = append(groups[idx], search.Document{ID: e.GetID(), Index: idx, Source: source})
	}
	for _, idx := range order {
		m.cfg.metrics.StoreCall(m.desc.Name, "bulk_index")
		res, err := m.store.BulkIndex(ctx, groups[idx])
		if err != nil {
			return storeError("bulk_index", m.desc.Name, 0, err)
		}
		if !res.Valid || len(res.Errors) > 0 {
			return storeError("bulk_index", m.desc.Name, res.Status, nil, res.Errors...)
		}
	}
	return nil
}

func (m *Mutable[T]) newEntityID(e T) string {
	if m.desc.TimeSeries && m.desc.ShardDate != nil {
		if d := m.desc.ShardDate(e); !d.IsZero() {
			return NewIDAt(d.UTC())
		}
	}
	return NewID()
}

// addIndexFor picks the shard for a new entity from its shard date.
func (m *Mutable[T]) addIndexFor(e T) index.Locator {
	if !m.desc.TimeSeries {
		return m.resolver.Index()
	}
	d := m.desc.ShardDate(e)
	if d.IsZero() {
		if t, err := index.CreationTime(e.GetID()); err == nil {
			d = t
		} else {
			d = time.Now().UTC()
		}
	}
	return m.resolver.ShardFor(d)
}

// saveIndexFor targets the shard the entity was created in: resolved from
// the id, or located in the store when the id does not decode, or derived
// from the shard date for entities not stored yet.
func (m *Mutable[T]) saveIndexFor(ctx context.Context, e T) string {
	loc, err := m.resolver.ResolveID(e.GetID())
	if err == nil {
		return loc.String()
	}
	if idx, ok := m.locateIndex(ctx, e.GetID()); ok {
		return idx
	}
	return m.addIndexFor(e).String()
}

// locateIndex finds the physical index currently holding a document.
func (m *Mutable[T]) locateIndex(ctx context.Context, id string) (string, bool) {
	req := search.Request{
		Indexes: m.resolver.SearchIndexes(),
		Filter:  search.IDs(id),
		Limit:   1,
		Fields:  []string{"id"},
	}
	res, err := m.store.Search(ctx, req)
	if err != nil || !res.Valid || len(res.Documents) == 0 {
		return "", false
	}
	return res.Documents[0].Index, true
}

func (m *Mutable[T]) applyCachePolicy(ctx context.Context, entities []T, mod ModOptions) {
	for _, e := range entities {
		if mod.addToCache {
			ttl := mod.cacheTTL
			if ttl <= 0 {
				ttl = m.cfg.defaultCacheTTL
			}
			m.cacheSet(ctx, e.GetID(), e, ttl)
		} else {
			// A stale cached copy must not outlive the write.
			m.cacheRemove(ctx, e.GetID())
		}
	}
}
