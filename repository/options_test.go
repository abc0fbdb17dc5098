package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-search-repository/search"
)

func TestCacheKeyDeterministic(t *testing.T) {
	build := func() *Options {
		return NewOptions().
			WithSystemFilter(search.Term("project_id", "p1")).
			WithFilter(search.Term("type", "Error")).
			WithSort("date", true).
			WithPaging(10, 50).
			Build()
	}
	assert.Equal(t, build().CacheKey(), build().CacheKey())
}

func TestCacheKeyVariesWithContent(t *testing.T) {
	base := NewOptions().WithFilter(search.Term("type", "Error")).Build()

	differing := []*Options{
		NewOptions().WithFilter(search.Term("type", "Info")).Build(),
		NewOptions().WithFilter(search.Term("type", "Error")).WithPaging(0, 10).Build(),
		NewOptions().WithFilter(search.Term("type", "Error")).WithSort("date", false).Build(),
		NewOptions().WithFilter(search.Term("type", "Error")).IncludeDeleted().Build(),
		NewOptions().WithFilter(search.Term("type", "Error")).WithQuery("timeout").Build(),
	}
	for _, o := range differing {
		assert.NotEqual(t, base.CacheKey(), o.CacheKey())
	}
}

func TestCacheKeyIgnoresFieldOrder(t *testing.T) {
	a := NewOptions().WithFields("id", "date").Build()
	b := NewOptions().WithFields("date", "id").Build()
	assert.Equal(t, a.CacheKey(), b.CacheKey())
}

func TestWithCacheDirective(t *testing.T) {
	o := NewOptions().Build()
	assert.False(t, o.UseCache())

	o = NewOptions().WithCache(2 * time.Minute).Build()
	assert.True(t, o.UseCache())
	assert.Equal(t, 2*time.Minute, o.CacheTTL())
}

func TestBuildRequestFilterOnly(t *testing.T) {
	opts := NewOptions().
		WithSystemFilter(search.Term("project_id", "p1")).
		WithFilter(search.Term("type", "Error")).
		Build()
	req := buildRequest(opts, true, "is_deleted", []string{"stacks-v1"})

	assert.Equal(t, []string{"stacks-v1"}, req.Indexes)
	assert.Empty(t, req.Query)
	assert.Nil(t, req.PostFilter)
	require.NotNil(t, req.Filter)

	live := map[string]any{"project_id": "p1", "type": "Error", "is_deleted": false}
	deleted := map[string]any{"project_id": "p1", "type": "Error", "is_deleted": true}
	otherTenant := map[string]any{"project_id": "p2", "type": "Error", "is_deleted": false}
	assert.True(t, req.Filter.Match(live))
	assert.False(t, req.Filter.Match(deleted))
	assert.False(t, req.Filter.Match(otherTenant))
}

func TestBuildRequestFreeText(t *testing.T) {
	opts := NewOptions().
		WithSystemFilter(search.Term("project_id", "p1")).
		WithFilter(search.Term("type", "Error")).
		WithQuery("timeout").
		Build()
	req := buildRequest(opts, true, "is_deleted", []string{"stacks-v1"})

	// The user filter rides as the scored query filter; tenant scoping and
	// the soft-delete clause apply after scoring.
	assert.Equal(t, "timeout", req.Query)
	require.NotNil(t, req.Filter)
	require.NotNil(t, req.PostFilter)

	assert.True(t, req.Filter.Match(map[string]any{"type": "Error"}))
	assert.True(t, req.PostFilter.Match(map[string]any{"project_id": "p1", "is_deleted": false}))
	assert.False(t, req.PostFilter.Match(map[string]any{"project_id": "p1", "is_deleted": true}))
	assert.False(t, req.PostFilter.Match(map[string]any{"project_id": "p2", "is_deleted": false}))
}

func TestBuildRequestIncludeDeleted(t *testing.T) {
	opts := NewOptions().IncludeDeleted().Build()
	req := buildRequest(opts, true, "is_deleted", []string{"stacks-v1"})

	deleted := map[string]any{"is_deleted": true}
	if req.Filter != nil {
		assert.True(t, req.Filter.Match(deleted))
	}
}

func TestBuildRequestNoSoftDeletes(t *testing.T) {
	opts := NewOptions().Build()
	req := buildRequest(opts, false, "is_deleted", []string{"events-v1-*"})

	// No soft deletes means no deleted clause at all.
	assert.Nil(t, req.Filter)
}
