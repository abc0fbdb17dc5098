package search

import (
	"context"
	"time"
)

// SortField orders results by a single document field.
type SortField struct {
	Field      string
	Descending bool
}

// Request describes one query against the store. When Query is set the
// engine runs a relevance query and applies PostFilter after scoring;
// otherwise Filter alone drives a pure filter query. The two paths have
// different cost and consistency characteristics in real engines, so the
// builder keeps them distinct instead of folding everything into Filter.
type Request struct {
	Indexes    []string
	Filter     Filter
	Query      string
	PostFilter Filter
	Sort       []SortField
	Skip       int
	Limit      int
	Fields     []string
	Scroll     time.Duration
}

// Document is one stored record: id plus JSON source, located in a physical
// index.
type Document struct {
	ID     string
	Index  string
	Source []byte
}

// Results is the outcome of a Search or Scroll call. Valid is false when the
// engine reported a non-success status; Status then carries the engine's
// status code.
type Results struct {
	Valid     bool
	Status    int
	Documents []Document
	Total     int64
	ScrollID  string
}

// CountResult is the outcome of a Count call.
type CountResult struct {
	Valid  bool
	Status int
	Count  int64
}

// BulkError describes a single failed item inside a bulk call.
type BulkError struct {
	ID     string
	Index  string
	Reason string
}

// BulkResult is the outcome of a bulk index or bulk partial-update call.
// Applied counts the updates whose condition matched; conditional updates
// whose condition did not match are noops, not errors.
type BulkResult struct {
	Valid   bool
	Status  int
	Applied int
	Errors  []BulkError
}

// CompareOp is the comparison used by a conditional Update.
type CompareOp int

const (
	CompareEq CompareOp = iota
	CompareGt
	CompareLt
)

// Condition gates an Update on the current value of one document field.
type Condition struct {
	Field string
	Op    CompareOp
	Value any
}

// Match evaluates the condition against a decoded document.
func (c Condition) Match(doc map[string]any) bool {
	v, ok := lookup(doc, c.Field)
	if !ok {
		return false
	}
	switch c.Op {
	case CompareEq:
		return equal(v, c.Value)
	case CompareGt:
		cmp, ok := compare(v, c.Value)
		return ok && cmp > 0
	case CompareLt:
		cmp, ok := compare(v, c.Value)
		return ok && cmp < 0
	default:
		return false
	}
}

// Update is one field-level partial update. Set and Increment are applied
// together as a single atomic unit on the store side, but only when
// Condition (if present) matches the live document. This is the primitive
// counter maintenance relies on: concurrent writers never read-modify-write
// whole documents.
type Update struct {
	ID        string
	Index     string
	Condition *Condition
	Set       map[string]any
	Increment map[string]int64
}

// AggregationBucket is one bucket of a term aggregation.
type AggregationBucket struct {
	Key   string
	Count int64
}

// Client is the store contract the repository layer consumes. Implementations
// wrap a concrete engine's API; absent documents are reported as nil/empty
// results, never as errors.
type Client interface {
	Search(ctx context.Context, req Request) (*Results, error)
	Count(ctx context.Context, req Request) (*CountResult, error)
	// Get returns nil when the document is absent or the index does not exist.
	Get(ctx context.Context, index, id string) (*Document, error)
	MultiGet(ctx context.Context, index string, ids []string) ([]Document, error)
	BulkIndex(ctx context.Context, docs []Document) (*BulkResult, error)
	BulkPartialUpdate(ctx context.Context, updates []Update) (*BulkResult, error)
	DeleteByQuery(ctx context.Context, indexes []string, filter Filter) error
	// Scroll continues a cursor opened by a Search with Scroll > 0 and renews
	// its lease. An empty document batch is the terminal state.
	Scroll(ctx context.Context, scrollID string, lease time.Duration) (*Results, error)
	// DeleteIndex drops every index matching the pattern. Unknown patterns
	// are a no-op.
	DeleteIndex(ctx context.Context, pattern string) error
	TermAggregation(ctx context.Context, req Request, field string, size int) ([]AggregationBucket, error)
}
