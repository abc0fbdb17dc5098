// Package repository implements the generic data-access core: read-only and
// mutable repositories mapping typed entities onto a sharded, search-indexed
// document store, with cache-aside caching, change notifications and
// scroll-driven bulk mutation.
//
// Collaborators are constructor-injected and optional where marked: no cache
// client means every read misses, no publisher means notifications are
// no-ops. The store itself offers no transactions; the only cross-writer
// safety in this layer is the conditional field-level update primitive used
// by counter maintenance (see the stacks package).
package repository
