package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache_HitAndExpiry(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	cache, err := NewResultCache(8, time.Minute, clock)
	require.NoError(t, err)

	resp := &RankedResponse{Query: "jeans"}
	key := cache.Key("jeans", Options{Page: 1, PageSize: 10, SortBy: SortRelevance})
	cache.Put(key, resp)

	assert.Same(t, resp, cache.Get(key))

	// Advance past the TTL; the entry is gone.
	now = now.Add(61 * time.Second)
	assert.Nil(t, cache.Get(key))
	assert.Zero(t, cache.Len())
}

func TestResultCache_KeyCoversOptions(t *testing.T) {
	cache, err := NewResultCache(8, time.Minute, nil)
	require.NoError(t, err)

	base := Options{Page: 1, PageSize: 10, SortBy: SortRelevance}

	page2 := base
	page2.Page = 2
	sorted := base
	sorted.SortBy = SortPriceLowHigh
	filtered := base
	max := 30000.0
	filtered.Filters.MaxPrice = &max

	keys := map[string]bool{}
	for _, opts := range []Options{base, page2, sorted, filtered} {
		keys[cache.Key("samsung phone", opts)] = true
	}
	assert.Len(t, keys, 4)

	// Query normalization folds case and whitespace.
	assert.Equal(t,
		cache.Key("  Samsung Phone ", base),
		cache.Key("samsung phone", base))
}

func TestResultCache_Miss(t *testing.T) {
	cache, err := NewResultCache(8, time.Minute, nil)
	require.NoError(t, err)
	assert.Nil(t, cache.Get("nope"))
}
