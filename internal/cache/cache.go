// Package cache implements the response cache (C9): an LRU, TTL-bounded
// cache keyed by a coarse fingerprint of the decision request.
package cache

import (
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atlas-desktop/risk-engine/pkg/types"
)

// projectionFeatures is the fixed small subset of features folded into the
// cache fingerprint, rounded to a configured precision.
var projectionFeatures = []string{"close_price", "volume", "rsi_14", "momentum_5", "body_ratio"}

// FingerprintPrecision is the number of decimal places feature values in the
// projection are rounded to before hashing.
const FingerprintPrecision = 100 // two decimal places

// Fingerprint computes a stable cache key for req under key.
func Fingerprint(req types.EvaluationRequest, key types.Key) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d|%d", key.InstrumentBase, key.Direction, req.TimeframeMinutes, req.Quantity)
	for _, name := range projectionFeatures {
		v, ok := req.Features[name]
		if !ok {
			fmt.Fprintf(h, "|%s=_", name)
			continue
		}
		rounded := math.Round(v*FingerprintPrecision) / FingerprintPrecision
		fmt.Fprintf(h, "|%s=%v", name, rounded)
	}
	return fmt.Sprintf("%x", h.Sum64())
}

type entry struct {
	decision      types.Decision
	expiresAt     time.Time
	key           types.Key
	memoryVersion int
}

// VersionLookup returns the current memory version for key, used to detect
// whether an entry was invalidated by an outcome-intake insert since it was
// cached.
type VersionLookup func(key types.Key) int

// Cache is a concurrency-safe LRU with TTL expiry and key-scoped
// invalidation driven by pattern-memory version.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, entry]
	ttl     time.Duration
	version VersionLookup

	hits   int64
	misses int64
}

// New returns a Cache with the given capacity and TTL. versionLookup
// supplies the live memory version for an entry's key so stale entries
// (invalidated by an outcome recorded after insertion) miss even before TTL
// expiry.
func New(size int, ttl time.Duration, versionLookup VersionLookup) (*Cache, error) {
	if size <= 0 {
		size = 1000
	}
	inner, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: inner, ttl: ttl, version: versionLookup}, nil
}

// Get returns the cached decision for fingerprint if present, unexpired, and
// not invalidated by a subsequent pattern-memory write.
func (c *Cache) Get(fingerprint string) (types.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(fingerprint)
	if !ok {
		c.misses++
		return types.Decision{}, false
	}
	if time.Now().After(e.expiresAt) {
		c.lru.Remove(fingerprint)
		c.misses++
		return types.Decision{}, false
	}
	if c.version != nil && c.version(e.key) != e.memoryVersion {
		c.lru.Remove(fingerprint)
		c.misses++
		return types.Decision{}, false
	}
	c.hits++
	return e.decision, true
}

// Put stores decision under fingerprint, tagged with key's current memory
// version so a later insert into that key invalidates the entry.
func (c *Cache) Put(fingerprint string, key types.Key, decision types.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	version := 0
	if c.version != nil {
		version = c.version(key)
	}
	c.lru.Add(fingerprint, entry{
		decision:      decision,
		expiresAt:     time.Now().Add(c.ttl),
		key:           key,
		memoryVersion: version,
	})
}

// HitRate returns the observed hit ratio since construction, 0 if no
// lookups have occurred yet.
func (c *Cache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
