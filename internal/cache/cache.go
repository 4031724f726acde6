// Package cache stores model completions so identical prompts are paid for once.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"
)

// Cache defines the interface for byte caches
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyPrefix versions the key space; bump it when the cached payload changes shape
const keyPrefix = "medbilldozer:v1:"

// CompletionKey derives a cache key from the parts that determine a completion
// (backend, model, system prompt, user prompt, flags). Parts are length-prefixed
// so ("ab","c") and ("a","bc") never collide.
func CompletionKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		var n [8]byte
		l := uint64(len(p))
		for i := 0; i < 8; i++ {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// fileName turns a key into a filesystem-safe name
func fileName(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}

// Stats counts lookups
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) record(found bool) {
	if found {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
