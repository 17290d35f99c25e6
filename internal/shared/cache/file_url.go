package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/seedai/server/internal/model"
	"github.com/seedai/server/internal/port/outbound"
)

// FileURLCache memoises resolved provider files in process memory.
type FileURLCache struct {
	c *gocache.Cache
}

// NewFileURLCache creates a cache whose entries expire after ttl.
func NewFileURLCache(ttl, cleanupInterval time.Duration) *FileURLCache {
	return &FileURLCache{c: gocache.New(ttl, cleanupInterval)}
}

// Get returns a copy of the cached file.
func (f *FileURLCache) Get(fileID string) (*model.FileInfo, bool) {
	v, ok := f.c.Get(fileID)
	if !ok {
		return nil, false
	}
	info, ok := v.(model.FileInfo)
	if !ok {
		return nil, false
	}
	return &info, true
}

// Set stores a copy of info. A zero ttl uses the cache default.
func (f *FileURLCache) Set(fileID string, info *model.FileInfo, ttl time.Duration) {
	if info == nil {
		return
	}
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	f.c.Set(fileID, *info, ttl)
}

// Len returns the number of cached entries, including expired ones not yet cleaned up.
func (f *FileURLCache) Len() int {
	return f.c.ItemCount()
}

// Compile-time interface check
var _ outbound.FileURLCachePort = (*FileURLCache)(nil)
