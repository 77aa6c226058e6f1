package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// MemoryCache is an in-process LRU+TTL cache. Capacity-based LRU eviction
// and time-based TTL expiry are independent policies; whichever triggers
// first wins. TTL is checked lazily on Get - expired entries count as a
// miss and are dropped at that point.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List // Front = most recently used
	items    map[string]*list.Element
	log      zerolog.Logger

	// now is swappable for TTL tests
	now func() time.Time
}

type memoryEntry struct {
	key        string
	value      *prediction.CombinedRecommendation
	insertedAt time.Time
	expiresAt  time.Time
	lastAccess time.Time
}

// NewMemoryCache creates an LRU+TTL cache bounded at capacity entries
func NewMemoryCache(capacity int, log zerolog.Logger) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		log:      log.With().Str("component", "memory_cache").Logger(),
		now:      time.Now,
	}
}

// Get returns the cached recommendation for key, touching its LRU position
func (c *MemoryCache) Get(_ context.Context, key string) (*prediction.CombinedRecommendation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		cacheMisses.WithLabelValues("memory").Inc()
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	if c.now().After(entry.expiresAt) {
		c.removeElement(elem)
		cacheEvictions.WithLabelValues("memory", "ttl").Inc()
		cacheMisses.WithLabelValues("memory").Inc()
		return nil, false
	}

	entry.lastAccess = c.now()
	c.ll.MoveToFront(elem)
	cacheHits.WithLabelValues("memory").Inc()
	return entry.value, true
}

// Put inserts or replaces an entry. A non-positive ttl bypasses the cache.
// At capacity the least-recently-accessed entry is evicted first.
func (c *MemoryCache) Put(_ context.Context, key string, value *prediction.CombinedRecommendation, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.insertedAt = now
		entry.expiresAt = now.Add(ttl)
		entry.lastAccess = now
		c.ll.MoveToFront(elem)
		return
	}

	if c.ll.Len() >= c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.removeElement(oldest)
			cacheEvictions.WithLabelValues("memory", "lru").Inc()
		}
	}

	elem := c.ll.PushFront(&memoryEntry{
		key:        key,
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	})
	c.items[key] = elem
}

// Invalidate drops an entry if present
func (c *MemoryCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Len returns the current number of entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// removeElement drops an entry; the caller holds the lock
func (c *MemoryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	c.ll.Remove(elem)
	delete(c.items, entry.key)
}
