package index_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-search-repository/index"
	"github.com/goliatone/go-search-repository/repository"
)

func TestLocatorString(t *testing.T) {
	assert.Equal(t, "stacks-v2", index.Locator{Name: "stacks", Version: 2}.String())
	assert.Equal(t, "events-v1-202603", index.Locator{Name: "events", Version: 1, Shard: "202603"}.String())
}

func TestResolverSingleIndex(t *testing.T) {
	r := index.NewResolver("stacks", 1, false)

	assert.Equal(t, "stacks-v1", r.Index().String())
	assert.Equal(t, "stacks-v1", r.WildcardPattern())
	assert.Equal(t, []string{"stacks-v1"}, r.SearchIndexes())

	// Every id resolves to the single index.
	loc, err := r.ResolveID("anything")
	require.NoError(t, err)
	assert.Equal(t, "stacks-v1", loc.String())
}

func TestResolverMonthlyShards(t *testing.T) {
	r := index.NewResolver("events", 1, true)

	march := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "events-v1-202603", r.ShardFor(march).String())
	assert.Equal(t, "events-v1-*", r.WildcardPattern())

	id := repository.NewIDAt(march)
	loc, err := r.ResolveID(id)
	require.NoError(t, err)
	assert.Equal(t, "events-v1-202603", loc.String())
}

func TestResolveIDUnresolvable(t *testing.T) {
	r := index.NewResolver("events", 1, true)

	_, err := r.ResolveID("not-a-uuid")
	assert.ErrorIs(t, err, index.ErrUnresolvableShard)

	// Random uuids carry no creation time.
	_, err = r.ResolveID(uuid.NewString())
	assert.ErrorIs(t, err, index.ErrUnresolvableShard)

	// Ids decoding to a time before the plausible epoch are legacy tokens.
	ancient := repository.NewIDAt(time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = r.ResolveID(ancient)
	assert.ErrorIs(t, err, index.ErrUnresolvableShard)
}

func TestCreationTimeRoundTrip(t *testing.T) {
	at := time.Date(2026, 7, 4, 23, 59, 59, 0, time.UTC)
	id := repository.NewIDAt(at)

	got, err := index.CreationTime(id)
	require.NoError(t, err)
	// Millisecond resolution.
	assert.WithinDuration(t, at, got, time.Millisecond)
}
