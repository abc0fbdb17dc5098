// Package index computes the physical index names entity types live in,
// including monthly shard resolution for time-series types. Entity ids are
// UUIDv7 tokens, so an id implies its creation time without a lookup; shard
// resolution decodes that time instead of querying the store.
package index

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnresolvableShard reports that an id's creation time cannot be decoded
// or predates the minimum plausible epoch. It is a soft signal: callers fall
// back to a cross-shard search rather than failing.
var ErrUnresolvableShard = errors.New("index: shard not resolvable from id")

// shardLayout is the yyyyMM layout used for monthly shard suffixes.
const shardLayout = "200601"

// minimumEpoch is the earliest creation time considered plausible for a
// stored entity. Ids decoding to earlier times are treated as unresolvable.
var minimumEpoch = time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)

// Locator names one physical index: logical name, mapping version and, for
// time-series types, the month shard.
type Locator struct {
	Name    string
	Version int
	Shard   string
}

// String renders the physical index name: name-v{version} or
// name-v{version}-{yyyyMM}.
func (l Locator) String() string {
	if l.Shard == "" {
		return fmt.Sprintf("%s-v%d", l.Name, l.Version)
	}
	return fmt.Sprintf("%s-v%d-%s", l.Name, l.Version, l.Shard)
}

// Resolver resolves index locators for a single entity type.
type Resolver struct {
	name       string
	version    int
	timeSeries bool
}

// NewResolver builds a resolver for the given logical index name and mapping
// version. Time-series types shard by month; all others live in one index.
func NewResolver(name string, version int, timeSeries bool) *Resolver {
	return &Resolver{name: name, version: version, timeSeries: timeSeries}
}

// TimeSeries reports whether this type shards by month.
func (r *Resolver) TimeSeries() bool { return r.timeSeries }

// Index returns the single versioned index for non-time-series types. For
// time-series types it returns the wildcard-free base locator and callers
// should prefer ShardFor or ResolveID.
func (r *Resolver) Index() Locator {
	return Locator{Name: r.name, Version: r.version}
}

// ShardFor returns the locator for the shard covering the given creation
// time. For non-time-series types the time is ignored.
func (r *Resolver) ShardFor(t time.Time) Locator {
	if !r.timeSeries {
		return r.Index()
	}
	return Locator{Name: r.name, Version: r.version, Shard: t.UTC().Format(shardLayout)}
}

// ResolveID resolves the single physical index holding the entity with the
// given id. Non-time-series types always resolve. Time-series ids resolve
// via their embedded creation time; ids that do not decode, or decode to a
// time before the minimum plausible epoch, return ErrUnresolvableShard.
func (r *Resolver) ResolveID(id string) (Locator, error) {
	if !r.timeSeries {
		return r.Index(), nil
	}
	created, err := CreationTime(id)
	if err != nil {
		return Locator{}, ErrUnresolvableShard
	}
	if created.Before(minimumEpoch) {
		return Locator{}, ErrUnresolvableShard
	}
	return r.ShardFor(created), nil
}

// WildcardPattern matches every shard of a time-series type, or the single
// index otherwise. Bulk and search operations that do not know ids in
// advance use it.
func (r *Resolver) WildcardPattern() string {
	if !r.timeSeries {
		return r.Index().String()
	}
	return fmt.Sprintf("%s-v%d-*", r.name, r.version)
}

// SearchIndexes returns the index expression list for search requests.
func (r *Resolver) SearchIndexes() []string {
	return []string{r.WildcardPattern()}
}

// CreationTime decodes the creation time embedded in a UUIDv7 id.
func CreationTime(id string) (time.Time, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	if u.Version() != 7 {
		return time.Time{}, fmt.Errorf("index: id %q is not time-ordered", id)
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), nil
}
