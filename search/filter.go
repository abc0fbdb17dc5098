package search

import (
	"strings"
	"time"
)

// Filter is a node in the engine-neutral filter tree. Match evaluates the
// node against a decoded JSON document; adapters for real engines translate
// the tree instead of calling Match.
type Filter interface {
	Match(doc map[string]any) bool
}

// MatchAll matches every document.
func MatchAll() Filter { return matchAllFilter{} }

type matchAllFilter struct{}

func (matchAllFilter) Match(map[string]any) bool { return true }

// Term matches documents whose field equals value.
func Term(field string, value any) Filter { return termFilter{field: field, value: value} }

type termFilter struct {
	field string
	value any
}

func (f termFilter) Match(doc map[string]any) bool {
	v, ok := lookup(doc, f.field)
	if !ok {
		return false
	}
	return equal(v, f.value)
}

// Terms matches documents whose field equals any of the given values.
func Terms(field string, values ...any) Filter { return termsFilter{field: field, values: values} }

type termsFilter struct {
	field  string
	values []any
}

func (f termsFilter) Match(doc map[string]any) bool {
	v, ok := lookup(doc, f.field)
	if !ok {
		return false
	}
	for _, want := range f.values {
		if equal(v, want) {
			return true
		}
	}
	return false
}

// IDs matches documents by identifier. The document id is projected into the
// source under the "id" field by the repository layer.
func IDs(ids ...string) Filter {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return termsFilter{field: "id", values: values}
}

// Range matches documents whose field falls inside the given bounds. Nil
// bounds are open.
func Range(field string, gt, gte, lt, lte any) Filter {
	return rangeFilter{field: field, gt: gt, gte: gte, lt: lt, lte: lte}
}

type rangeFilter struct {
	field            string
	gt, gte, lt, lte any
}

func (f rangeFilter) Match(doc map[string]any) bool {
	v, ok := lookup(doc, f.field)
	if !ok {
		return false
	}
	if f.gt != nil {
		if c, ok := compare(v, f.gt); !ok || c <= 0 {
			return false
		}
	}
	if f.gte != nil {
		if c, ok := compare(v, f.gte); !ok || c < 0 {
			return false
		}
	}
	if f.lt != nil {
		if c, ok := compare(v, f.lt); !ok || c >= 0 {
			return false
		}
	}
	if f.lte != nil {
		if c, ok := compare(v, f.lte); !ok || c > 0 {
			return false
		}
	}
	return true
}

// Exists matches documents where the field is present and non-null.
func Exists(field string) Filter { return existsFilter{field: field} }

type existsFilter struct{ field string }

func (f existsFilter) Match(doc map[string]any) bool {
	v, ok := lookup(doc, f.field)
	return ok && v != nil
}

// Missing matches documents where the field is absent or null.
func Missing(field string) Filter { return notFilter{inner: existsFilter{field: field}} }

// Not inverts a filter.
func Not(inner Filter) Filter { return notFilter{inner: inner} }

type notFilter struct{ inner Filter }

func (f notFilter) Match(doc map[string]any) bool { return !f.inner.Match(doc) }

// And matches documents matching every child filter. Nil children are
// skipped so callers can combine optional clauses without branching.
func And(filters ...Filter) Filter {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return andFilter{filters: kept}
}

type andFilter struct{ filters []Filter }

func (f andFilter) Match(doc map[string]any) bool {
	for _, child := range f.filters {
		if !child.Match(doc) {
			return false
		}
	}
	return true
}

// Or matches documents matching at least one child filter.
func Or(filters ...Filter) Filter {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return orFilter{filters: kept}
}

type orFilter struct{ filters []Filter }

func (f orFilter) Match(doc map[string]any) bool {
	for _, child := range f.filters {
		if child.Match(doc) {
			return true
		}
	}
	return false
}

// CompareValues exposes the package's value comparison for store adapters
// that need to order documents the way the filter tree does.
func CompareValues(a, b any) (int, bool) { return compare(a, b) }

// LookupField exposes dotted field resolution for store adapters.
func LookupField(doc map[string]any, field string) (any, bool) { return lookup(doc, field) }

// lookup resolves a possibly dotted field path against a decoded document.
func lookup(doc map[string]any, field string) (any, bool) {
	if v, ok := doc[field]; ok {
		return v, true
	}
	parts := strings.Split(field, ".")
	if len(parts) == 1 {
		return nil, false
	}
	cur := any(doc)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// equal normalizes JSON-decoded values before comparing. Numbers decoded
// from JSON arrive as float64 regardless of the Go type that produced them.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return a == b
}

// compare returns -1/0/1 when both values are orderable in a common domain:
// numbers, strings (RFC3339 timestamps order correctly as strings), times
// and booleans.
func compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	as, aok := toTimeOrString(a)
	bs, bok := toTimeOrString(b)
	if aok && bok {
		// Timestamps serialized with differing sub-second precision do not
		// order lexicographically, so parse before comparing when possible.
		at, aerr := time.Parse(time.RFC3339Nano, as)
		bt, berr := time.Parse(time.RFC3339Nano, bs)
		if aerr == nil && berr == nil {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			default:
				return 0, true
			}
		}
		return strings.Compare(as, bs), true
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0, true
			case !ab:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toTimeOrString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}
