// Web search cache - TTL plus strict LRU capacity eviction.
//
// Information Hiding:
// - Ordering structure for LRU recency hidden behind Get/Set
// - TTL eviction is lazy (checked on Get), no background sweep

package search

import (
	"container/list"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hikawa/chatrelay/metrics"
)

const (
	DefaultCacheTTL      = 180 * time.Second
	DefaultCacheMaxItems = 128
)

type cacheEntry struct {
	key      string
	storedAt time.Time
	value    Data
}

// Cache maps query strings to search results with TTL and LRU bounds.
// Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxItems int
	order    *list.List // front = most recently used
	items    map[string]*list.Element
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewCache creates a cache with the given TTL and capacity.
func NewCache(ttl time.Duration, maxItems int, logger *zap.Logger, m *metrics.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxItems <= 0 {
		maxItems = DefaultCacheMaxItems
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Cache{
		ttl:      ttl,
		maxItems: maxItems,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Get returns the cached value for key, promoting its recency.
// Expired entries are removed and reported as a miss.
func (c *Cache) Get(key string) (Data, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.metrics.CacheMisses.Inc()
		return Data{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.items, key)
		c.metrics.CacheMisses.Inc()
		return Data{}, false
	}
	c.order.MoveToFront(elem)
	c.metrics.CacheHits.Inc()
	c.logger.Info("search cache hit", zap.String("key", truncateRunes(key, 80)))
	return entry.value, true
}

// Set stores a value under key, evicting the least recently used entry
// when capacity is exceeded.
func (c *Cache) Set(key string, value Data) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.storedAt = c.now()
		entry.value = value
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cacheEntry{key: key, storedAt: c.now(), value: value})
	c.items[key] = elem

	if c.order.Len() > c.maxItems {
		oldest := c.order.Back()
		if oldest != nil {
			entry := oldest.Value.(*cacheEntry)
			c.order.Remove(oldest)
			delete(c.items, entry.key)
			c.logger.Info("search cache evict", zap.String("key", truncateRunes(entry.key, 80)))
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
