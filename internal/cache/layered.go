package cache

import (
	"time"

	"go.uber.org/zap"
)

// LayeredCache checks memory first, then disk, promoting disk hits
type LayeredCache struct {
	memory    *MemoryCache
	disk      *DiskCache
	memoryTTL time.Duration
}

// NewLayeredCache creates a memory + disk cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory:    NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:      NewDiskCache(diskDir, diskTTL),
		memoryTTL: memoryTTL,
	}
}

// Get retrieves a value from the cache
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers. The memory layer never outlives its own TTL.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	memTTL := ttl
	if memTTL == 0 || (c.memoryTTL > 0 && memTTL > c.memoryTTL) {
		memTTL = c.memoryTTL
	}
	if err := c.memory.Set(key, value, memTTL); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}

// Prune removes expired disk entries
func (c *LayeredCache) Prune() int {
	n, err := c.disk.Prune()
	if err != nil {
		zap.L().Warn("cache prune failed", zap.Error(err))
	}
	return n
}

// Usage reports what the disk layer holds
func (c *LayeredCache) Usage() (entries int, bytes int64, err error) {
	return c.disk.Usage()
}

// Stats returns per-layer counters
func (c *LayeredCache) Stats() (memory, disk Stats) {
	return c.memory.Stats(), c.disk.Stats()
}
