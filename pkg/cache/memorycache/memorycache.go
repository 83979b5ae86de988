package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/eelco2k/tenancy/pkg/cache"
)

// entry is one cached value with its expiry
type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxEntries is the maximum number of cached items. When exceeded, the
	// least recently used item is evicted. Zero means a default of 1024.
	MaxEntries int

	// DefaultTTL is the time-to-live applied when Set is called with a zero
	// TTL. Items are treated as absent once expired.
	DefaultTTL time.Duration
}

// Cache implements an LRU cache with TTL support. It is safe for concurrent
// use and has no background goroutines: expired entries are dropped lazily
// on access or eviction.
type Cache struct {
	mu sync.Mutex

	items      map[string]*list.Element
	evictList  *list.List // front = most recently used
	maxEntries int
	defaultTTL time.Duration

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a memory cache with the given configuration.
func New(cfg Config) *Cache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		items:      make(map[string]*list.Element),
		evictList:  list.New(),
		maxEntries: maxEntries,
		defaultTTL: ttl,
	}
}

// Get retrieves a value from cache.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	ent := elem.Value.(*entry)
	if time.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}

	c.evictList.MoveToFront(elem)
	c.hits++
	return ent.value, true
}

// Set stores a value in cache. A zero ttl uses the configured default.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		ent.value = value
		ent.expiresAt = time.Now().Add(ttl)
		c.evictList.MoveToFront(elem)
		return nil
	}

	elem := c.evictList.PushFront(&entry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	c.items[key] = elem

	for len(c.items) > c.maxEntries {
		oldest := c.evictList.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.evictions++
	}

	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	return nil
}

// Close releases resources held by the cache.
func (c *Cache) Close() error {
	return c.Clear(context.Background())
}

// Stats returns cache statistics.
func (c *Cache) Stats() *cache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &cache.Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// removeElement drops an entry; caller must hold the lock.
func (c *Cache) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	delete(c.items, ent.key)
	c.evictList.Remove(elem)
}
