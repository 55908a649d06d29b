package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okData(title string) Data {
	return Data{Status: StatusOK, Results: []Result{{Title: title, URL: "https://example.com"}}}
}

func TestCacheHitWithinTTL(t *testing.T) {
	c := NewCache(180*time.Second, 4, nil, nil)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Set("トヨタ 株価", okData("toyota"))

	c.now = func() time.Time { return base.Add(179 * time.Second) }
	got, ok := c.Get("トヨタ 株価")
	require.True(t, ok)
	assert.Equal(t, "toyota", got.Results[0].Title)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := NewCache(180*time.Second, 4, nil, nil)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Set("k", okData("v"))

	c.now = func() time.Time { return base.Add(181 * time.Second) }
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is removed, not just hidden")
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(time.Hour, 3, nil, nil)

	c.Set("a", okData("a"))
	c.Set("b", okData("b"))
	c.Set("c", okData("c"))

	// Touch "a" so "b" becomes the least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", okData("d"))
	assert.Equal(t, 3, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "key %q survives eviction", key)
	}
}

func TestCacheSetUpdatesInPlace(t *testing.T) {
	c := NewCache(time.Hour, 2, nil, nil)

	c.Set("k", okData("old"))
	c.Set("k", okData("new"))
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got.Results[0].Title)
}

func TestCacheSetRefreshesTTL(t *testing.T) {
	c := NewCache(180*time.Second, 4, nil, nil)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Set("k", okData("v1"))

	c.now = func() time.Time { return base.Add(170 * time.Second) }
	c.Set("k", okData("v2"))

	c.now = func() time.Time { return base.Add(340 * time.Second) }
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Results[0].Title)
}

func TestCacheDefaultsApplied(t *testing.T) {
	c := NewCache(0, 0, nil, nil)
	assert.Equal(t, DefaultCacheTTL, c.ttl)
	assert.Equal(t, DefaultCacheMaxItems, c.maxItems)
}

func TestCacheCapacityHolds(t *testing.T) {
	c := NewCache(time.Hour, 8, nil, nil)
	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("q%d", i), okData("x"))
	}
	assert.Equal(t, 8, c.Len())
}
