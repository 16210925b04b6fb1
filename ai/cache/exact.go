package cache

import (
	"sync"
	"time"
)

// ExactCache is an in-memory exact-match cache with TTL support.
// Eviction removes the entry with the oldest stored timestamp, so an
// overwritten entry's eviction priority resets with its timestamp.
type ExactCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*exactEntry[V]
	ttl     time.Duration
	maxSize int
	hits    int64
	misses  int64

	now func() time.Time // test hook
}

type exactEntry[V any] struct {
	response  V
	timestamp time.Time
}

// ExactStats represents exact cache statistics.
type ExactStats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	Size       int     `json:"size"`
	MaxSize    int     `json:"max_size"`
	TTLSeconds int64   `json:"ttl_seconds"`
}

// NewExactCache creates a new exact-match cache.
func NewExactCache[V any](maxSize int, ttl time.Duration) *ExactCache[V] {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &ExactCache[V]{
		entries: make(map[string]*exactEntry[V]),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached response for (message, context) if present and not
// expired. A stale entry is removed on access. Every call counts as a hit
// or a miss.
func (c *ExactCache[V]) Get(message string, context map[string]string) (V, bool) {
	key := MakeKey(message, context)

	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return zero, false
	}

	c.hits++
	return entry.response, true
}

// Set stores a response under the deterministic key with the current
// timestamp. At capacity, the entry with the oldest timestamp is evicted
// to make room for a new key.
func (c *ExactCache[V]) Set(message string, context map[string]string, response V) {
	key := MakeKey(message, context)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &exactEntry[V]{
		response:  response,
		timestamp: c.now(),
	}
}

// evictOldest removes the entry with the smallest stored timestamp.
// Linear scan: acceptable at the configured scale (~1000 entries).
// Must be called with lock held.
func (c *ExactCache[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.timestamp.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.timestamp
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Clear removes all entries and resets counters.
func (c *ExactCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*exactEntry[V])
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *ExactCache[V]) Stats() ExactStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return ExactStats{
		Hits:       c.hits,
		Misses:     c.misses,
		HitRate:    hitRate,
		Size:       len(c.entries),
		MaxSize:    c.maxSize,
		TTLSeconds: int64(c.ttl.Seconds()),
	}
}
