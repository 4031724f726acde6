package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps completions in process memory with per-entry expiry
type MemoryCache struct {
	items *gocache.Cache
	stats counters
}

// NewMemoryCache returns an in-process layer; entries without an explicit
// TTL live for ttl and expired ones are swept every sweep
func NewMemoryCache(ttl, sweep time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(ttl, sweep)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.items.Get(key)
	if ok {
		var data []byte
		data, ok = v.([]byte)
		c.stats.record(ok)
		return data, ok
	}
	c.stats.record(false)
	return nil, false
}

// Set stores value under key. A zero ttl means the layer default.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	exp := ttl
	if exp == 0 {
		exp = gocache.DefaultExpiration
	}
	c.items.Set(key, value, exp)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.items.Flush()
	return nil
}

// Len counts stored entries, including expired ones not yet swept
func (c *MemoryCache) Len() int { return c.items.ItemCount() }

func (c *MemoryCache) Stats() Stats { return c.stats.snapshot() }
