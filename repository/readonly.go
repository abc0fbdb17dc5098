package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-search-repository/cache"
	"github.com/goliatone/go-search-repository/index"
	"github.com/goliatone/go-search-repository/internal/metrics"
	"github.com/goliatone/go-search-repository/messaging"
	"github.com/goliatone/go-search-repository/search"
)

// config carries the cross-cutting collaborators shared by all repository
// flavours. Everything is optional except the store.
type config struct {
	cacheClient     cache.Client
	defaultCacheTTL time.Duration
	publisher       messaging.Publisher
	notifyDelay     time.Duration
	batchNotify     bool
	scrollBatchSize int
	scrollLease     time.Duration
	log             *logrus.Entry
	metrics         *metrics.Recorder
}

// Option configures a repository at construction.
type Option func(*config)

// WithCache attaches a cache client; absent means every read misses.
func WithCache(client cache.Client) Option {
	return func(c *config) { c.cacheClient = client }
}

// WithDefaultCacheTTL overrides the TTL used when callers do not specify one.
func WithDefaultCacheTTL(ttl time.Duration) Option {
	return func(c *config) { c.defaultCacheTTL = ttl }
}

// WithPublisher attaches a change-event publisher; absent means
// notifications are no-ops.
func WithPublisher(p messaging.Publisher) Option {
	return func(c *config) { c.publisher = p }
}

// WithNotificationDelay overrides the coalescing window before publish.
func WithNotificationDelay(d time.Duration) Option {
	return func(c *config) { c.notifyDelay = d }
}

// WithBatchNotifications multiplexes one event over a whole batch instead of
// one per owner group.
func WithBatchNotifications() Option {
	return func(c *config) { c.batchNotify = true }
}

// WithScrollBatchSize sets the page size for scroll-driven bulk operations.
func WithScrollBatchSize(n int) Option {
	return func(c *config) { c.scrollBatchSize = n }
}

// WithScrollLease sets the scroll cursor lease renewed on every batch.
func WithScrollLease(d time.Duration) Option {
	return func(c *config) { c.scrollLease = d }
}

// WithLogger attaches a logger; absent uses the standard logrus logger.
func WithLogger(log *logrus.Entry) Option {
	return func(c *config) { c.log = log }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *config) { c.metrics = rec }
}

func newConfig(opts []Option) config {
	cfg := config{
		defaultCacheTTL: 5 * time.Minute,
		notifyDelay:     DefaultNotificationDelay,
		scrollBatchSize: 500,
		scrollLease:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return cfg
}

// ReadOnly serves id lookups, search-backed finds, counts, existence checks
// and term aggregations for one entity type, with cache-aside caching.
type ReadOnly[T Entity] struct {
	desc     Descriptor[T]
	store    search.Client
	resolver *index.Resolver
	cache    *cache.Scoped
	cfg      config
	log      *logrus.Entry
}

// NewReadOnly builds a read-only repository for the described entity type.
func NewReadOnly[T Entity](desc Descriptor[T], store search.Client, opts ...Option) (*ReadOnly[T], error) {
	if err := desc.Check(); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	r := &ReadOnly[T]{
		desc:     desc,
		store:    store,
		resolver: index.NewResolver(desc.Name, desc.Version, desc.TimeSeries),
		cfg:      cfg,
		log:      cfg.log.WithField("entity", desc.Name),
	}
	if cfg.cacheClient != nil {
		r.cache = cache.NewScoped(cfg.cacheClient, desc.Name)
	}
	return r, nil
}

// Resolver exposes the index resolver for callers that address the store
// directly (counter maintenance does).
func (r *ReadOnly[T]) Resolver() *index.Resolver { return r.resolver }

// Cache exposes the type-scoped cache, nil when no client is configured.
// Derived repositories use it for their own key families (id lists,
// signature lookups) alongside the per-entity entries this type manages.
func (r *ReadOnly[T]) Cache() *cache.Scoped { return r.cache }

// Store exposes the index client for derived repositories that must issue
// field-level conditional updates outside the generic save path.
func (r *ReadOnly[T]) Store() search.Client { return r.store }

// Logger exposes the repository's logger entry.
func (r *ReadOnly[T]) Logger() *logrus.Entry { return r.log }

// EntityType returns the descriptor name.
func (r *ReadOnly[T]) EntityType() string { return r.desc.Name }

// GetByID looks an entity up by id. With useCache the cache is consulted
// first and populated on the way out. The direct shard read is attempted
// when the id resolves; a miss there (unresolved shard, or a freshly
// indexed document not yet visible to point reads) falls back to a filtered
// search. An absent entity returns the zero value, not an error.
func (r *ReadOnly[T]) GetByID(ctx context.Context, id string, useCache bool, ttl ...time.Duration) (T, error) {
	var zero T
	if id == "" {
		return zero, nil
	}
	if useCache {
		if v, ok := r.cacheGet(ctx, id); ok {
			return v, nil
		}
	}

	var found T
	var ok bool
	if loc, err := r.resolver.ResolveID(id); err == nil {
		r.cfg.metrics.StoreCall(r.desc.Name, "get")
		doc, err := r.store.Get(ctx, loc.String(), id)
		if err != nil {
			return zero, storeError("get", r.desc.Name, 0, err)
		}
		if doc != nil {
			found, err = r.decode(*doc)
			if err != nil {
				return zero, err
			}
			ok = true
		}
	}
	if !ok {
		var err error
		found, ok, err = r.searchByID(ctx, id)
		if err != nil {
			return zero, err
		}
	}
	if !ok {
		return zero, nil
	}
	if useCache {
		r.cacheSet(ctx, id, found, r.ttlOf(ttl))
	}
	return found, nil
}

// GetByIDs batch-fetches entities: cache hits first, then per-shard
// multi-gets for the misses, then one id search for anything still
// unaccounted for. Entities that do not exist are silently omitted and no
// result ordering is guaranteed.
func (r *ReadOnly[T]) GetByIDs(ctx context.Context, ids []string, useCache bool, ttl ...time.Duration) ([]T, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return nil, nil
	}

	var results []T
	var misses []string
	if useCache && r.cache != nil {
		for _, id := range unique {
			if v, ok := r.cacheGet(ctx, id); ok {
				results = append(results, v)
			} else {
				misses = append(misses, id)
			}
		}
	} else {
		misses = unique
	}
	if len(misses) == 0 {
		return results, nil
	}

	remaining := make(map[string]struct{}, len(misses))
	for _, id := range misses {
		remaining[id] = struct{}{}
	}

	// Direct shard reads for every id whose shard resolves, grouped so each
	// shard costs one multi-get.
	byIndex := make(map[string][]string)
	for _, id := range misses {
		if loc, err := r.resolver.ResolveID(id); err == nil {
			byIndex[loc.String()] = append(byIndex[loc.String()], id)
		}
	}
	fetched := make([]T, 0, len(misses))
	for idx, group := range byIndex {
		r.cfg.metrics.StoreCall(r.desc.Name, "multi_get")
		docs, err := r.store.MultiGet(ctx, idx, group)
		if err != nil {
			return nil, storeError("multi_get", r.desc.Name, 0, err)
		}
		for _, doc := range docs {
			e, err := r.decode(doc)
			if err != nil {
				return nil, err
			}
			fetched = append(fetched, e)
			delete(remaining, doc.ID)
		}
	}

	// Anything still missing gets one search across all shards. The request
	// is raw, like searchByID, so id reads never filter by deletion state;
	// an entity a direct shard read would return must not vanish here.
	if len(remaining) > 0 {
		rest := make([]string, 0, len(remaining))
		for id := range remaining {
			rest = append(rest, id)
		}
		req := search.Request{
			Indexes: r.resolver.SearchIndexes(),
			Filter:  search.IDs(rest...),
			Limit:   len(rest),
		}
		r.cfg.metrics.StoreCall(r.desc.Name, "search")
		res, err := r.store.Search(ctx, req)
		if err != nil {
			return nil, storeError("search", r.desc.Name, 0, err)
		}
		if !res.Valid {
			return nil, storeError("search", r.desc.Name, res.Status, nil)
		}
		for _, doc := range res.Documents {
			e, err := r.decode(doc)
			if err != nil {
				return nil, err
			}
			fetched = append(fetched, e)
		}
	}

	if useCache {
		cacheTTL := r.ttlOf(ttl)
		for _, e := range fetched {
			r.cacheSet(ctx, e.GetID(), e, cacheTTL)
		}
	}
	return append(results, fetched...), nil
}

// Find runs a search and returns the matching entities. The cache is only
// consulted and populated when the options request it.
func (r *ReadOnly[T]) Find(ctx context.Context, opts *Options) ([]T, error) {
	useCache := opts.UseCache() && r.cache != nil
	key := "find-" + opts.CacheKey()
	if useCache {
		if v, ok, err := cache.GetValue[[]T](ctx, r.cache, key); err == nil && ok {
			r.cfg.metrics.CacheHit(r.desc.Name)
			return v, nil
		} else if err != nil {
			r.log.WithError(err).Warn("cache read failed, treating as miss")
		}
		r.cfg.metrics.CacheMiss(r.desc.Name)
	}

	req := buildRequest(opts, r.desc.SoftDeletes, r.desc.deletedField(), r.resolver.SearchIndexes())
	r.cfg.metrics.StoreCall(r.desc.Name, "search")
	res, err := r.store.Search(ctx, req)
	if err != nil {
		return nil, storeError("search", r.desc.Name, 0, err)
	}
	if !res.Valid {
		return nil, storeError("search", r.desc.Name, res.Status, nil)
	}
	entities := make([]T, 0, len(res.Documents))
	for _, doc := range res.Documents {
		e, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if useCache {
		if err := cache.SetValue(ctx, r.cache, key, entities, r.cacheTTL(opts)); err != nil {
			r.log.WithError(err).Warn("cache write failed")
		}
	}
	return entities, nil
}

// FindOne returns the first match or the zero value.
func (r *ReadOnly[T]) FindOne(ctx context.Context, opts *Options) (T, error) {
	var zero T
	limited := *opts
	limited.limit = 1
	limited.cacheKey = deriveCacheKey(&limited)
	entities, err := r.Find(ctx, &limited)
	if err != nil || len(entities) == 0 {
		return zero, err
	}
	return entities[0], nil
}

// Count returns the number of matching documents, cache-aside when the
// options request caching.
func (r *ReadOnly[T]) Count(ctx context.Context, opts *Options) (int64, error) {
	useCache := opts.UseCache() && r.cache != nil
	key := "count-" + opts.CacheKey()
	if useCache {
		if v, ok, err := cache.GetValue[int64](ctx, r.cache, key); err == nil && ok {
			r.cfg.metrics.CacheHit(r.desc.Name)
			return v, nil
		} else if err != nil {
			r.log.WithError(err).Warn("cache read failed, treating as miss")
		}
		r.cfg.metrics.CacheMiss(r.desc.Name)
	}

	req := buildRequest(opts, r.desc.SoftDeletes, r.desc.deletedField(), r.resolver.SearchIndexes())
	r.cfg.metrics.StoreCall(r.desc.Name, "count")
	res, err := r.store.Count(ctx, req)
	if err != nil {
		return 0, storeError("count", r.desc.Name, 0, err)
	}
	if !res.Valid {
		return 0, storeError("count", r.desc.Name, res.Status, nil)
	}
	if useCache {
		if err := cache.SetValue(ctx, r.cache, key, res.Count, r.cacheTTL(opts)); err != nil {
			r.log.WithError(err).Warn("cache write failed")
		}
	}
	return res.Count, nil
}

// Exists reports whether an entity with the given id exists, via a size-1
// projected search rather than a full fetch.
func (r *ReadOnly[T]) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	req := search.Request{
		Indexes: r.resolver.SearchIndexes(),
		Filter:  search.IDs(id),
		Limit:   1,
		Fields:  []string{"id"},
	}
	r.cfg.metrics.StoreCall(r.desc.Name, "exists")
	res, err := r.store.Search(ctx, req)
	if err != nil {
		return false, storeError("exists", r.desc.Name, 0, err)
	}
	if !res.Valid {
		return false, storeError("exists", r.desc.Name, res.Status, nil)
	}
	return len(res.Documents) > 0, nil
}

// SimpleAggregation returns value -> document count for the top buckets of
// the given field (default 10), used for rollups.
func (r *ReadOnly[T]) SimpleAggregation(ctx context.Context, opts *Options, field string) (map[string]int64, error) {
	req := buildRequest(opts, r.desc.SoftDeletes, r.desc.deletedField(), r.resolver.SearchIndexes())
	r.cfg.metrics.StoreCall(r.desc.Name, "aggregate")
	buckets, err := r.store.TermAggregation(ctx, req, field, 10)
	if err != nil {
		return nil, storeError("aggregate", r.desc.Name, 0, err)
	}
	out := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		out[b.Key] = b.Count
	}
	return out, nil
}

// searchByID is the fallback read path when a direct shard read is not
// possible or came back empty.
func (r *ReadOnly[T]) searchByID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	req := search.Request{
		Indexes: r.resolver.SearchIndexes(),
		Filter:  search.IDs(id),
		Limit:   1,
	}
	r.cfg.metrics.StoreCall(r.desc.Name, "search")
	res, err := r.store.Search(ctx, req)
	if err != nil {
		return zero, false, storeError("search", r.desc.Name, 0, err)
	}
	if !res.Valid {
		return zero, false, storeError("search", r.desc.Name, res.Status, nil)
	}
	if len(res.Documents) == 0 {
		return zero, false, nil
	}
	e, err := r.decode(res.Documents[0])
	if err != nil {
		return zero, false, err
	}
	return e, true, nil
}

func (r *ReadOnly[T]) decode(doc search.Document) (T, error) {
	var e T
	if err := json.Unmarshal(doc.Source, &e); err != nil {
		var zero T
		return zero, storeError("decode", r.desc.Name, 0, err)
	}
	if e.GetID() == "" {
		e.SetID(doc.ID)
	}
	return e, nil
}

// cacheGet treats every cache failure as a miss; the cache is best-effort.
func (r *ReadOnly[T]) cacheGet(ctx context.Context, key string) (T, bool) {
	var zero T
	if r.cache == nil {
		return zero, false
	}
	v, ok, err := cache.GetValue[T](ctx, r.cache, key)
	if err != nil {
		r.log.WithError(err).WithField("key", key).Warn("cache read failed, treating as miss")
		return zero, false
	}
	if ok {
		r.cfg.metrics.CacheHit(r.desc.Name)
	} else {
		r.cfg.metrics.CacheMiss(r.desc.Name)
	}
	return v, ok
}

func (r *ReadOnly[T]) cacheSet(ctx context.Context, key string, value T, ttl time.Duration) {
	if r.cache == nil {
		return
	}
	if err := cache.SetValue(ctx, r.cache, key, value, ttl); err != nil {
		r.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func (r *ReadOnly[T]) cacheRemove(ctx context.Context, key string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Remove(ctx, key); err != nil {
		r.log.WithError(err).WithField("key", key).Warn("cache invalidation failed")
	}
}

func (r *ReadOnly[T]) ttlOf(ttl []time.Duration) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return ttl[0]
	}
	return r.cfg.defaultCacheTTL
}

func (r *ReadOnly[T]) cacheTTL(opts *Options) time.Duration {
	if opts.CacheTTL() > 0 {
		return opts.CacheTTL()
	}
	return r.cfg.defaultCacheTTL
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
