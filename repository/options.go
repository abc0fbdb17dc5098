package repository

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/goliatone/go-search-repository/search"
)

// Options is an immutable-once-built query configuration: system and user
// filters, free-text query, sort, paging, projection, soft-delete visibility
// and an optional cache directive. Build one per call through OptionsBuilder;
// the derived cache key is computed at build time and identical options
// always produce identical keys.
type Options struct {
	systemFilter   search.Filter
	userFilter     search.Filter
	query          string
	sortFields     []search.SortField
	skip           int
	limit          int
	fields         []string
	includeDeleted bool
	useCache       bool
	cacheTTL       time.Duration
	cacheKey       string
}

// OptionsBuilder accumulates query options.
type OptionsBuilder struct {
	opts Options
}

// NewOptions starts a builder.
func NewOptions() *OptionsBuilder {
	return &OptionsBuilder{}
}

// WithSystemFilter sets the system-enforced filter (tenant scoping).
func (b *OptionsBuilder) WithSystemFilter(f search.Filter) *OptionsBuilder {
	b.opts.systemFilter = f
	return b
}

// WithFilter sets the user filter.
func (b *OptionsBuilder) WithFilter(f search.Filter) *OptionsBuilder {
	b.opts.userFilter = f
	return b
}

// WithQuery sets a free-text relevance query.
func (b *OptionsBuilder) WithQuery(q string) *OptionsBuilder {
	b.opts.query = q
	return b
}

// WithSort appends a sort field.
func (b *OptionsBuilder) WithSort(field string, descending bool) *OptionsBuilder {
	b.opts.sortFields = append(b.opts.sortFields, search.SortField{Field: field, Descending: descending})
	return b
}

// WithPaging sets skip/limit paging.
func (b *OptionsBuilder) WithPaging(skip, limit int) *OptionsBuilder {
	b.opts.skip = skip
	b.opts.limit = limit
	return b
}

// WithFields restricts the returned source to a field projection.
func (b *OptionsBuilder) WithFields(fields ...string) *OptionsBuilder {
	b.opts.fields = append(b.opts.fields, fields...)
	return b
}

// IncludeDeleted makes soft-deleted documents visible to this query.
func (b *OptionsBuilder) IncludeDeleted() *OptionsBuilder {
	b.opts.includeDeleted = true
	return b
}

// WithCache enables cache-aside for this query with the given TTL. A zero
// TTL uses the repository default.
func (b *OptionsBuilder) WithCache(ttl time.Duration) *OptionsBuilder {
	b.opts.useCache = true
	b.opts.cacheTTL = ttl
	return b
}

// Build freezes the options and derives the cache key.
func (b *OptionsBuilder) Build() *Options {
	opts := b.opts
	opts.sortFields = append([]search.SortField(nil), b.opts.sortFields...)
	opts.fields = append([]string(nil), b.opts.fields...)
	opts.cacheKey = deriveCacheKey(&opts)
	return &opts
}

// UseCache reports whether this query participates in cache-aside.
func (o *Options) UseCache() bool { return o.useCache }

// CacheTTL returns the requested cache TTL; zero means repository default.
func (o *Options) CacheTTL() time.Duration { return o.cacheTTL }

// CacheKey returns the deterministic key derived from the option contents.
func (o *Options) CacheKey() string { return o.cacheKey }

// deriveCacheKey hashes a canonical rendering of the option contents.
// Concrete filter nodes render deterministically via %#v: they hold only
// value fields, never maps.
func deriveCacheKey(o *Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "sf=%#v|uf=%#v|q=%s|", o.systemFilter, o.userFilter, o.query)
	for _, s := range o.sortFields {
		fmt.Fprintf(&b, "s=%s:%t|", s.Field, s.Descending)
	}
	b.WriteString("p=" + strconv.Itoa(o.skip) + ":" + strconv.Itoa(o.limit) + "|")
	fields := append([]string(nil), o.fields...)
	sort.Strings(fields)
	b.WriteString("f=" + strings.Join(fields, ",") + "|")
	b.WriteString("d=" + strconv.FormatBool(o.includeDeleted))
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// buildRequest translates options into a store request for the given
// physical indexes. When a free-text query is present the system filter and
// soft-delete clause ride as a post-filter so relevance scoring still sees
// the unfiltered corpus; otherwise everything collapses into one pure
// filter, which is the cheaper and more deterministic path.
func buildRequest(o *Options, softDeletes bool, deletedField string, indexes []string) search.Request {
	var deletedClause search.Filter
	if softDeletes && !o.includeDeleted {
		deletedClause = search.Not(search.Term(deletedField, true))
	}

	req := search.Request{
		Indexes: indexes,
		Sort:    o.sortFields,
		Skip:    o.skip,
		Limit:   o.limit,
		Fields:  o.fields,
	}
	if o.query != "" {
		req.Query = o.query
		req.Filter = o.userFilter
		req.PostFilter = search.And(o.systemFilter, deletedClause)
		return req
	}
	req.Filter = search.And(o.systemFilter, o.userFilter, deletedClause)
	return req
}
