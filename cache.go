package cloudvfs

import (
	"strings"
	"sync"
)

// CacheStatistics contains cache performance metrics.
type CacheStatistics struct {
	Hits    int64
	Misses  int64
	Size    int64
	HitRate float64
}

// PropertiesCache holds the metadata of every blob seen by the most recent
// listing of its directory. Keys are fully qualified virtual paths without
// a leading separator, e.g. "acct/container/dir/file.txt".
//
// It is thread-safe and lives for the session only.
type PropertiesCache struct {
	mu      sync.RWMutex
	entries map[string]*BlobProperties
	hits    int64
	misses  int64
}

// NewPropertiesCache creates an empty cache.
func NewPropertiesCache() *PropertiesCache {
	return &PropertiesCache{
		entries: make(map[string]*BlobProperties),
	}
}

// Get returns the cached properties for key. Backslashes and surrounding
// separators in key are ignored.
func (c *PropertiesCache) Get(key string) (*BlobProperties, bool) {
	key = normalizeCacheKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	props, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return props.Clone(), true
}

// Set stores props under key.
func (c *PropertiesCache) Set(key string, props *BlobProperties) {
	key = normalizeCacheKey(key)

	c.mu.Lock()
	c.entries[key] = props.Clone()
	c.mu.Unlock()
}

// Delete removes key.
func (c *PropertiesCache) Delete(key string) {
	key = normalizeCacheKey(key)

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *PropertiesCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*BlobProperties)
	c.mu.Unlock()
}

// Stats returns cache statistics.
func (c *PropertiesCache) Stats() CacheStatistics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStatistics{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    int64(len(c.entries)),
		HitRate: hitRate,
	}
}

func normalizeCacheKey(key string) string {
	key = strings.ReplaceAll(key, `\`, Separator)
	return strings.Trim(key, Separator)
}
