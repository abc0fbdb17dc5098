// Package search defines the contract the repository layer consumes from the
// backing search-indexed document store: an engine-neutral filter tree, a
// request shape covering filtered and relevance queries, and the Client
// interface for query, point read, bulk index, conditional partial update,
// delete-by-query and scroll traversal.
//
// The package deliberately does not speak any engine's wire protocol. An
// adapter for a concrete engine translates the filter tree and request into
// that engine's query language; the in-memory implementation used by the test
// suite evaluates the tree directly.
package search
