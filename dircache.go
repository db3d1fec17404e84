package cloudvfs

import (
	"sort"
	"strings"
	"sync"
)

// DirectoryCache remembers directories created in this session that do not
// exist in the store yet. Entries are provisional: anything the store lists
// is authoritative and evicts the matching entry.
type DirectoryCache struct {
	mu   sync.RWMutex
	dirs map[string]struct{}
}

// NewDirectoryCache creates an empty cache.
func NewDirectoryCache() *DirectoryCache {
	return &DirectoryCache{dirs: make(map[string]struct{})}
}

// Add records path. Only blob paths are stored; Add reports whether path
// was accepted.
func (c *DirectoryCache) Add(path VirtualPath) bool {
	if !path.IsBlobPath() {
		return false
	}
	c.mu.Lock()
	c.dirs[path.Key()] = struct{}{}
	c.mu.Unlock()
	return true
}

// Remove evicts path. Descendants are left untouched.
func (c *DirectoryCache) Remove(path VirtualPath) bool {
	key := path.Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.dirs[key]; !ok {
		return false
	}
	delete(c.dirs, key)
	return true
}

// Contains reports whether path is cached.
func (c *DirectoryCache) Contains(path VirtualPath) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.dirs[path.Key()]
	return ok
}

// Len returns the number of cached directories.
func (c *DirectoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dirs)
}

// Merge reconciles a store listing of path with the cache.
//
// A non-empty listing makes path authoritative and evicts it. Real
// directories evict the matching cached children, and the remaining cached
// direct children are appended as provisional entries. When nothing is
// left and path itself is cached, a single placeholder entry is returned.
func (c *DirectoryCache) Merge(path VirtualPath, real []FileInfo) []FileInfo {
	key := path.Key()
	childPrefix := key + Separator

	c.mu.Lock()
	defer c.mu.Unlock()

	_, selfCached := c.dirs[key]
	if len(real) > 0 {
		delete(c.dirs, key)
	}

	seen := make(map[string]bool, len(real))
	for _, item := range real {
		seen[item.Name] = true
		if item.IsDir {
			delete(c.dirs, childPrefix+item.Name)
		}
	}

	// Capped so appends never write into the caller's backing array.
	result := real[:len(real):len(real)]
	var provisional []string
	for dir := range c.dirs {
		if !strings.HasPrefix(dir, childPrefix) {
			continue
		}
		name := dir[len(childPrefix):]
		if name == "" || strings.Contains(name, Separator) || seen[name] {
			continue
		}
		provisional = append(provisional, name)
	}
	sort.Strings(provisional)
	for _, name := range provisional {
		result = append(result, FileInfo{
			Name:        name,
			Path:        path.Join(name).String(),
			IsDir:       true,
			Provisional: true,
		})
	}

	if len(result) == 0 && selfCached {
		return []FileInfo{{
			Name:        PlaceholderName,
			Path:        path.String(),
			IsDir:       true,
			Provisional: true,
			Placeholder: true,
		}}
	}
	return result
}
