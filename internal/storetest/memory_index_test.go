package storetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-search-repository/search"
)

func seedDocs(t *testing.T, s *MemoryIndex, index string, docs ...map[string]any) {
	t.Helper()
	batch := make([]search.Document, 0, len(docs))
	for _, d := range docs {
		raw, err := json.Marshal(d)
		require.NoError(t, err)
		batch = append(batch, search.Document{ID: d["id"].(string), Index: index, Source: raw})
	}
	res, err := s.BulkIndex(context.Background(), batch)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Empty(t, res.Errors)
}

func TestSearchWildcardIndexes(t *testing.T) {
	s := NewMemoryIndex()
	seedDocs(t, s, "events-v1-202602", map[string]any{"id": "a", "n": 1})
	seedDocs(t, s, "events-v1-202603", map[string]any{"id": "b", "n": 2})
	seedDocs(t, s, "stacks-v1", map[string]any{"id": "c", "n": 3})

	res, err := s.Search(context.Background(), search.Request{Indexes: []string{"events-v1-*"}})
	require.NoError(t, err)
	require.True(t, res.Valid)
	assert.Len(t, res.Documents, 2)
	assert.Equal(t, int64(2), res.Total)
}

func TestSearchSortSkipLimitAndProjection(t *testing.T) {
	s := NewMemoryIndex()
	seedDocs(t, s, "stacks-v1",
		map[string]any{"id": "a", "n": 3, "title": "three"},
		map[string]any{"id": "b", "n": 1, "title": "one"},
		map[string]any{"id": "c", "n": 2, "title": "two"},
	)

	res, err := s.Search(context.Background(), search.Request{
		Indexes: []string{"stacks-v1"},
		Sort:    []search.SortField{{Field: "n", Descending: true}},
		Skip:    1,
		Limit:   1,
		Fields:  []string{"id", "n"},
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, int64(3), res.Total)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(res.Documents[0].Source, &doc))
	assert.Equal(t, "c", doc["id"])
	assert.NotContains(t, doc, "title")
}

func TestScrollDrainsInBatches(t *testing.T) {
	s := NewMemoryIndex()
	seedDocs(t, s, "stacks-v1",
		map[string]any{"id": "a"},
		map[string]any{"id": "b"},
		map[string]any{"id": "c"},
	)

	res, err := s.Search(context.Background(), search.Request{
		Indexes: []string{"stacks-v1"},
		Limit:   2,
		Scroll:  time.Minute,
	})
	require.NoError(t, err)
	assert.Len(t, res.Documents, 2)
	require.NotEmpty(t, res.ScrollID)

	res, err = s.Scroll(context.Background(), res.ScrollID, time.Minute)
	require.NoError(t, err)
	assert.Len(t, res.Documents, 1)
	assert.Empty(t, res.ScrollID)

	// An exhausted or unknown cursor is terminal, not an error.
	res, err = s.Scroll(context.Background(), "scroll-999", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}

func TestConditionalPartialUpdate(t *testing.T) {
	s := NewMemoryIndex()
	seedDocs(t, s, "stacks-v1", map[string]any{"id": "a", "total": 0, "last": "2026-03-01T00:00:00Z"})
	ctx := context.Background()

	// Matching condition applies set and increment as one unit.
	res, err := s.BulkPartialUpdate(ctx, []search.Update{{
		ID:        "a",
		Index:     "stacks-v1",
		Condition: &search.Condition{Field: "last", Op: search.CompareLt, Value: "2026-03-02T00:00:00Z"},
		Set:       map[string]any{"last": "2026-03-02T00:00:00Z"},
		Increment: map[string]int64{"total": 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	// A failed condition is a noop, not an error.
	res, err = s.BulkPartialUpdate(ctx, []search.Update{{
		ID:        "a",
		Index:     "stacks-v1",
		Condition: &search.Condition{Field: "last", Op: search.CompareLt, Value: "2026-03-01T12:00:00Z"},
		Increment: map[string]int64{"total": 1},
	}})
	require.NoError(t, err)
	assert.Zero(t, res.Applied)
	assert.Empty(t, res.Errors)

	doc, err := s.Get(ctx, "stacks-v1", "a")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(doc.Source, &got))
	assert.Equal(t, float64(1), got["total"])
	assert.Equal(t, "2026-03-02T00:00:00Z", got["last"])

	// A missing document is a per-item error.
	res, err = s.BulkPartialUpdate(ctx, []search.Update{{ID: "nope", Index: "stacks-v1"}})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Zero(t, res.Applied)
}

func TestDeleteByQueryAndDeleteIndex(t *testing.T) {
	s := NewMemoryIndex()
	seedDocs(t, s, "events-v1-202602", map[string]any{"id": "a", "stack_id": "s1"})
	seedDocs(t, s, "events-v1-202603",
		map[string]any{"id": "b", "stack_id": "s1"},
		map[string]any{"id": "c", "stack_id": "s2"},
	)
	ctx := context.Background()

	require.NoError(t, s.DeleteByQuery(ctx, []string{"events-v1-*"}, search.Term("stack_id", "s1")))
	assert.Zero(t, s.DocCount("events-v1-202602"))
	assert.Equal(t, 1, s.DocCount("events-v1-202603"))

	require.NoError(t, s.DeleteIndex(ctx, "events-v1-*"))
	assert.Empty(t, s.IndexNames())
}

func TestFailureInjectionAndCallCounts(t *testing.T) {
	s := NewMemoryIndex()
	ctx := context.Background()

	s.FailNext("search", assert.AnError)
	_, err := s.Search(ctx, search.Request{Indexes: []string{"x"}})
	assert.ErrorIs(t, err, assert.AnError)

	// The failure is consumed; the next call succeeds.
	_, err = s.Search(ctx, search.Request{Indexes: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Calls("search"))
}

func TestTermAggregation(t *testing.T) {
	s := NewMemoryIndex()
	seedDocs(t, s, "stacks-v1",
		map[string]any{"id": "a", "type": "Error"},
		map[string]any{"id": "b", "type": "Error"},
		map[string]any{"id": "c", "type": "404"},
	)

	buckets, err := s.TermAggregation(context.Background(), search.Request{
		Indexes: []string{"stacks-v1"},
	}, "type", 10)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, search.AggregationBucket{Key: "Error", Count: 2}, buckets[0])
	assert.Equal(t, search.AggregationBucket{Key: "404", Count: 1}, buckets[1])
}
