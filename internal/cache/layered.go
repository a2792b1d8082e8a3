package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/legiswatch/internal/model"
)

// LayeredCache keeps recent entries in process memory in front of an
// optional disk layer shared across runs
type LayeredCache struct {
	memory    *gocache.Cache
	memoryTTL time.Duration
	disk      *DiskCache
}

// NewLayeredCache creates a memory cache backed by diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	c := NewInMemory(memoryTTL)
	if diskDir != "" {
		c.disk = NewDiskCache(diskDir, diskTTL)
	}
	return c
}

// NewInMemory creates a process-local cache with no disk layer
func NewInMemory(ttl time.Duration) *LayeredCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LayeredCache{
		memory:    gocache.New(ttl, 10*time.Minute),
		memoryTTL: ttl,
	}
}

// New builds the summary cache from configuration; nil when disabled
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL)
}

// Get checks memory first, then disk. A disk hit is promoted into memory
// for no longer than the disk entry has left to live.
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		if data, ok := val.([]byte); ok {
			return data, true
		}
	}
	if c.disk == nil {
		return nil, false
	}

	entry, found := c.disk.lookup(key)
	if !found {
		return nil, false
	}
	if ttl := min(c.memoryTTL, entry.ExpiresAt.Sub(c.disk.now())); ttl > 0 {
		c.memory.Set(key, entry.Data, ttl)
	}
	return entry.Data, true
}

// Set stores a value in both layers; a zero ttl uses each layer's default
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	memoryTTL := c.memoryTTL
	if ttl > 0 {
		memoryTTL = min(memoryTTL, ttl)
	}
	c.memory.Set(key, value, memoryTTL)

	if c.disk == nil {
		return nil
	}
	return c.disk.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	c.memory.Delete(key)
	if c.disk == nil {
		return nil
	}
	return c.disk.Delete(key)
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	c.memory.Flush()
	if c.disk == nil {
		return nil
	}
	return c.disk.Clear()
}

// Len returns the number of entries held in memory
func (c *LayeredCache) Len() int {
	return c.memory.ItemCount()
}
