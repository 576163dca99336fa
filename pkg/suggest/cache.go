package suggest

import (
	"math"
	"sync"

	"github.com/charmbracelet/log"
)

// Cache is a fixed-capacity LRU of responses keyed by request URL.
// A capacity of zero or less disables it.
type Cache struct {
	entries     map[string][]Suggestion
	accessTime  map[string]int64
	accessCount int64
	hits        int
	misses      int
	maxEntries  int
	mu          sync.Mutex
}

func NewCache(maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string][]Suggestion, max(maxEntries, 0)),
		accessTime: make(map[string]int64, max(maxEntries, 0)),
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the cached response for key.
func (c *Cache) Get(key string) ([]Suggestion, bool) {
	if c == nil || c.maxEntries <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.accessTime[key] = c.nextAccessTime()
	return append([]Suggestion(nil), entry...), true
}

func (c *Cache) Set(key string, suggestions []Suggestion) {
	if c == nil || c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	c.entries[key] = append([]Suggestion(nil), suggestions...)
	c.accessTime[key] = c.nextAccessTime()
}

func (c *Cache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]Suggestion, max(c.maxEntries, 0))
	c.accessTime = make(map[string]int64, max(c.maxEntries, 0))
}

func (c *Cache) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]int{
		"cacheEntries": len(c.entries),
		"maxEntries":   c.maxEntries,
		"cacheHits":    c.hits,
		"cacheMisses":  c.misses,
	}
}

func (c *Cache) nextAccessTime() int64 {
	c.accessCount++
	return c.accessCount
}

func (c *Cache) evictLRU() {
	var oldestKey string
	var oldestTime int64 = math.MaxInt64

	for key, accessTime := range c.accessTime {
		if accessTime < oldestTime {
			oldestTime = accessTime
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		delete(c.accessTime, oldestKey)
		log.Debugf("Evicted '%s' from response cache", oldestKey)
	}
}
