// Package storetest provides an in-memory search.Client for the test suite.
// It honors the behavioral contract the repository layer depends on
// (wildcard index patterns, filter evaluation, scroll cursors, per-document
// atomic conditional updates) and counts calls per operation so tests can
// assert idempotence and call shapes.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-search-repository/search"
)

type memoryDoc struct {
	id     string
	source map[string]any
}

type scrollState struct {
	docs []search.Document
}

// MemoryIndex is an in-memory search.Client.
type MemoryIndex struct {
	mu        sync.Mutex
	indexes   map[string]map[string]map[string]any
	scrolls   map[string]*scrollState
	scrollSeq int
	calls     map[string]int
	failures  map[string]error
}

// NewMemoryIndex creates an empty store.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		indexes:  make(map[string]map[string]map[string]any),
		scrolls:  make(map[string]*scrollState),
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// Calls returns how many times an operation ran.
func (s *MemoryIndex) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// FailNext makes the next call of the given operation return err.
func (s *MemoryIndex) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// IndexNames returns the existing physical index names, sorted.
func (s *MemoryIndex) IndexNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DocCount returns how many documents an index holds.
func (s *MemoryIndex) DocCount(index string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.indexes[index])
}

func (s *MemoryIndex) begin(op string) error {
	s.calls[op]++
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return err
	}
	return nil
}

// Search implements search.Client.
func (s *MemoryIndex) Search(_ context.Context, req search.Request) (*search.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("search"); err != nil {
		return nil, err
	}

	matched := s.match(req)
	total := int64(len(matched))

	if req.Scroll > 0 {
		size := req.Limit
		if size <= 0 || size > len(matched) {
			size = len(matched)
		}
		batch := matched[:size]
		rest := matched[size:]
		res := &search.Results{
			Valid:     true,
			Documents: s.render(batch, req.Fields),
			Total:     total,
		}
		if len(rest) > 0 {
			s.scrollSeq++
			id := fmt.Sprintf("scroll-%d", s.scrollSeq)
			s.scrolls[id] = &scrollState{docs: s.render(rest, req.Fields)}
			res.ScrollID = id
		}
		return res, nil
	}

	if req.Skip > 0 {
		if req.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[req.Skip:]
		}
	}
	if req.Limit > 0 && req.Limit < len(matched) {
		matched = matched[:req.Limit]
	}
	return &search.Results{
		Valid:     true,
		Documents: s.render(matched, req.Fields),
		Total:     total,
	}, nil
}

// Count implements search.Client.
func (s *MemoryIndex) Count(_ context.Context, req search.Request) (*search.CountResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("count"); err != nil {
		return nil, err
	}
	return &search.CountResult{Valid: true, Count: int64(len(s.match(req)))}, nil
}

// Get implements search.Client.
func (s *MemoryIndex) Get(_ context.Context, index, id string) (*search.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("get"); err != nil {
		return nil, err
	}
	src, ok := s.indexes[index][id]
	if !ok {
		return nil, nil
	}
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	return &search.Document{ID: id, Index: index, Source: raw}, nil
}

// MultiGet implements search.Client.
func (s *MemoryIndex) MultiGet(_ context.Context, index string, ids []string) ([]search.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("multi_get"); err != nil {
		return nil, err
	}
	var docs []search.Document
	for _, id := range ids {
		src, ok := s.indexes[index][id]
		if !ok {
			continue
		}
		raw, err := json.Marshal(src)
		if err != nil {
			return nil, err
		}
		docs = append(docs, search.Document{ID: id, Index: index, Source: raw})
	}
	return docs, nil
}

// BulkIndex implements search.Client.
func (s *MemoryIndex) BulkIndex(_ context.Context, docs []search.Document) (*search.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("bulk_index"); err != nil {
		return nil, err
	}
	res := &search.BulkResult{Valid: true}
	for _, doc := range docs {
		var src map[string]any
		if err := json.Unmarshal(doc.Source, &src); err != nil {
			res.Errors = append(res.Errors, search.BulkError{ID: doc.ID, Index: doc.Index, Reason: err.Error()})
			continue
		}
		if s.indexes[doc.Index] == nil {
			s.indexes[doc.Index] = make(map[string]map[string]any)
		}
		s.indexes[doc.Index][doc.ID] = src
		res.Applied++
	}
	return res, nil
}

// BulkPartialUpdate implements search.Client. Each update is applied
// atomically under the store lock: the condition check and the field
// mutations are one unit, matching the contract counter maintenance needs.
func (s *MemoryIndex) BulkPartialUpdate(_ context.Context, updates []search.Update) (*search.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("bulk_update"); err != nil {
		return nil, err
	}
	res := &search.BulkResult{Valid: true}
	for _, u := range updates {
		doc, ok := s.indexes[u.Index][u.ID]
		if !ok {
			res.Errors = append(res.Errors, search.BulkError{ID: u.ID, Index: u.Index, Reason: "document missing"})
			continue
		}
		if u.Condition != nil && !u.Condition.Match(doc) {
			continue
		}
		for field, value := range u.Set {
			doc[field] = normalize(value)
		}
		for field, delta := range u.Increment {
			doc[field] = asNumber(doc[field]) + float64(delta)
		}
		res.Applied++
	}
	return res, nil
}

// DeleteByQuery implements search.Client.
func (s *MemoryIndex) DeleteByQuery(_ context.Context, indexes []string, filter search.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("delete_by_query"); err != nil {
		return err
	}
	for _, name := range s.expand(indexes) {
		for id, doc := range s.indexes[name] {
			if filter == nil || filter.Match(doc) {
				delete(s.indexes[name], id)
			}
		}
	}
	return nil
}

// Scroll implements search.Client.
func (s *MemoryIndex) Scroll(_ context.Context, scrollID string, _ time.Duration) (*search.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("scroll"); err != nil {
		return nil, err
	}
	state, ok := s.scrolls[scrollID]
	if !ok {
		return &search.Results{Valid: true}, nil
	}
	delete(s.scrolls, scrollID)
	return &search.Results{Valid: true, Documents: state.docs, Total: int64(len(state.docs))}, nil
}

// DeleteIndex implements search.Client.
func (s *MemoryIndex) DeleteIndex(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("delete_index"); err != nil {
		return err
	}
	for name := range s.indexes {
		if matched, _ := path.Match(pattern, name); matched {
			delete(s.indexes, name)
		}
	}
	return nil
}

// TermAggregation implements search.Client.
func (s *MemoryIndex) TermAggregation(_ context.Context, req search.Request, field string, size int) ([]search.AggregationBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("aggregation"); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, doc := range s.match(req) {
		if v, ok := search.LookupField(doc.source, field); ok && v != nil {
			counts[fmt.Sprintf("%v", v)]++
		}
	}
	buckets := make([]search.AggregationBucket, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, search.AggregationBucket{Key: key, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	if size > 0 && size < len(buckets) {
		buckets = buckets[:size]
	}
	return buckets, nil
}

// match collects, filters and sorts documents for a request. Must be called
// with the lock held.
func (s *MemoryIndex) match(req search.Request) []memoryDoc {
	var matched []memoryDoc
	query := strings.ToLower(req.Query)
	for _, name := range s.expand(req.Indexes) {
		for id, doc := range s.indexes[name] {
			if req.Filter != nil && !req.Filter.Match(doc) {
				continue
			}
			if query != "" && !matchQuery(doc, query) {
				continue
			}
			if req.PostFilter != nil && !req.PostFilter.Match(doc) {
				continue
			}
			matched = append(matched, memoryDoc{id: id, source: doc})
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		for _, sf := range req.Sort {
			a, _ := search.LookupField(matched[i].source, sf.Field)
			b, _ := search.LookupField(matched[j].source, sf.Field)
			cmp, ok := search.CompareValues(a, b)
			if !ok || cmp == 0 {
				continue
			}
			if sf.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return matched[i].id < matched[j].id
	})
	return matched
}

// render marshals matched documents, applying the field projection. Must be
// called with the lock held; indexOf recovers the physical index per doc.
func (s *MemoryIndex) render(docs []memoryDoc, fields []string) []search.Document {
	out := make([]search.Document, 0, len(docs))
	for _, doc := range docs {
		source := doc.source
		if len(fields) > 0 {
			projected := make(map[string]any, len(fields))
			for _, f := range fields {
				if v, ok := search.LookupField(doc.source, f); ok {
					projected[f] = v
				}
			}
			source = projected
		}
		raw, _ := json.Marshal(source)
		out = append(out, search.Document{ID: doc.id, Index: s.indexOf(doc.id), Source: raw})
	}
	return out
}

func (s *MemoryIndex) indexOf(id string) string {
	for name, docs := range s.indexes {
		if _, ok := docs[id]; ok {
			return name
		}
	}
	return ""
}

// expand resolves wildcard index patterns against existing indexes. Exact
// names pass through whether or not they exist.
func (s *MemoryIndex) expand(patterns []string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, p := range patterns {
		if !strings.ContainsAny(p, "*?[") {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				names = append(names, p)
			}
			continue
		}
		for name := range s.indexes {
			if matched, _ := path.Match(p, name); matched {
				if _, ok := seen[name]; !ok {
					seen[name] = struct{}{}
					names = append(names, name)
				}
			}
		}
	}
	sort.Strings(names)
	return names
}

func matchQuery(doc map[string]any, query string) bool {
	for _, v := range doc {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}

// normalize round-trips a Go value through JSON so stored documents always
// hold JSON-shaped values (float64 numbers, RFC3339 strings).
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func asNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
