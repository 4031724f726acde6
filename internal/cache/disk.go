package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// entryMagic marks a cache file; the 8 bytes after it hold the expiry as
// unix nanoseconds (0 = never) and the payload follows
const entryMagic = "MBDC"

const headerLen = len(entryMagic) + 8

// DiskCache keeps one file per key under dir, sharded by the first two hex
// characters of the key hash
type DiskCache struct {
	dir   string
	ttl   time.Duration
	stats counters
	now   func() time.Time
}

func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

// Get returns the payload for key. Expired and unreadable files are removed.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	p := c.path(key)
	raw, err := os.ReadFile(p)
	if err != nil {
		c.stats.record(false)
		return nil, false
	}
	payload, ok := c.decode(raw)
	if !ok {
		_ = os.Remove(p)
	}
	c.stats.record(ok)
	return payload, ok
}

// Set writes key atomically. ttl 0 means the cache default; a negative
// default stores entries without expiry.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	var expires int64
	if ttl > 0 {
		expires = c.now().Add(ttl).UnixNano()
	}

	buf := make([]byte, headerLen, headerLen+len(value))
	copy(buf, entryMagic)
	binary.BigEndian.PutUint64(buf[len(entryMagic):], uint64(expires))
	buf = append(buf, value...)

	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	_, werr := tmp.Write(buf)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Prune walks the shards and deletes expired or unreadable entries. It
// returns the number of files removed.
func (c *DiskCache) Prune() (int, error) {
	removed := 0
	err := c.walk(func(p string, raw []byte) {
		if _, ok := c.decode(raw); !ok && os.Remove(p) == nil {
			removed++
		}
	})
	return removed, err
}

// Usage reports the entry count and total bytes on disk
func (c *DiskCache) Usage() (entries int, bytes int64, err error) {
	err = c.walk(func(_ string, raw []byte) {
		entries++
		bytes += int64(len(raw))
	})
	return entries, bytes, err
}

func (c *DiskCache) Stats() Stats { return c.stats.snapshot() }

// Dir is the cache root
func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) decode(raw []byte) ([]byte, bool) {
	if len(raw) < headerLen || string(raw[:len(entryMagic)]) != entryMagic {
		return nil, false
	}
	expires := int64(binary.BigEndian.Uint64(raw[len(entryMagic):headerLen]))
	if expires != 0 && c.now().UnixNano() > expires {
		return nil, false
	}
	return raw[headerLen:], true
}

func (c *DiskCache) walk(fn func(path string, raw []byte)) error {
	err := filepath.WalkDir(c.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".cache" {
			return nil
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		fn(p, raw)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan cache dir: %w", err)
	}
	return nil
}

func (c *DiskCache) path(key string) string {
	name := fileName(key)
	shard := "00"
	if h := name[strings.LastIndexByte(name, '_')+1:]; len(h) >= 2 {
		shard = h[:2]
	}
	return filepath.Join(c.dir, shard, name+".cache")
}
