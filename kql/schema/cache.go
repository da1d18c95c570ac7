package schema

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Cache bounds. The cache is an optimization, never a correctness
// dependency: entries can be dropped at any time.
const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 4096
)

// validationCache memoizes validation results keyed by schema identity and
// the structural hash of the data. Concurrent reads and writes interleave
// safely: sync.Map gives atomic per-key replacement with no global lock.
// When the entry count crosses the bound the whole map is swapped out,
// which is cheap and keeps the hot path lock-free.
type validationCache struct {
	entries atomic.Pointer[sync.Map]
	count   atomic.Int64
	ttl     time.Duration
	max     int64
}

type cacheEntry struct {
	result  Result
	expires time.Time
}

// NewCache creates a bounded TTL cache. A non-positive ttl disables expiry;
// a non-positive max disables the size bound.
func NewCache(ttl time.Duration, max int) *validationCache {
	c := &validationCache{ttl: ttl, max: int64(max)}
	c.entries.Store(&sync.Map{})
	return c
}

func (c *validationCache) get(key string) (Result, bool) {
	v, ok := c.entries.Load().Load(key)
	if !ok {
		return Result{}, false
	}
	entry := v.(cacheEntry)
	if c.ttl > 0 && time.Now().After(entry.expires) {
		return Result{}, false
	}
	return entry.result, true
}

func (c *validationCache) put(key string, result Result) {
	if c.max > 0 && c.count.Load() >= c.max {
		// Reset rather than evict piecemeal; correctness never depends on
		// a hit, and revalidation repopulates the working set quickly.
		c.entries.Store(&sync.Map{})
		c.count.Store(0)
	}
	entry := cacheEntry{result: result}
	if c.ttl > 0 {
		entry.expires = time.Now().Add(c.ttl)
	}
	if _, loaded := c.entries.Load().Swap(key, entry); !loaded {
		c.count.Add(1)
	}
}

// cacheKey combines schema identity with the structural hash of the data.
func cacheKey(name string, version int, hash uint64) string {
	return fmt.Sprintf("%s@%d:%016x", name, version, hash)
}

// structuralHash computes an FNV-1a hash over the canonical traversal of a
// data map: sorted keys, type tags, and scalar values. Two structurally
// identical maps always hash equal regardless of insertion order.
func structuralHash(data map[string]interface{}) uint64 {
	h := fnv.New64a()
	hashValue(h, data)
	return h.Sum64()
}

func hashValue(h interface{ Write([]byte) (int, error) }, v interface{}) {
	switch tv := v.(type) {
	case map[string]interface{}:
		h.Write([]byte{'m'})
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write([]byte{0})
			hashValue(h, tv[k])
		}
	case []interface{}:
		h.Write([]byte{'a'})
		for _, e := range tv {
			hashValue(h, e)
		}
	case string:
		h.Write([]byte{'s'})
		h.Write([]byte(tv))
	case bool:
		if tv {
			h.Write([]byte("b1"))
		} else {
			h.Write([]byte("b0"))
		}
	case nil:
		h.Write([]byte{'z'})
	default:
		h.Write([]byte(fmt.Sprintf("n%v", tv)))
	}
	h.Write([]byte{0xff})
}
