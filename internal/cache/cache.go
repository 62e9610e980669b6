// Package cache holds recent results of read-only core requests in memory.
//
// A Cache is not safe for concurrent use; the dispatcher guards it together
// with its performance counters under one mutex.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/lydakis/corehost/internal/pkg/json"
)

type entry struct {
	value        any
	created      time.Time
	accessCount  uint64
	lastAccessed time.Time
	tick         uint64
}

// Stats is the cache section of the daemon stats report.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// Cache maps request fingerprints to results. Entries expire TTL after they
// were written and the least recently read entry is evicted at capacity.
type Cache struct {
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	entries map[string]*entry
	tick    uint64
	hits    uint64
	misses  uint64
}

// New creates a cache holding at most maxEntries values for ttl each.
// A ttl <= 0 makes every entry expired on read.
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		entries:    make(map[string]*entry),
	}
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return c.ttl <= 0 || now.Sub(e.created) >= c.ttl
}

func (c *Cache) nextTick() uint64 {
	c.tick++
	return c.tick
}

// Get returns a copy of the value stored under key. Expired entries are
// removed and counted as misses.
func (c *Cache) Get(key string) (any, bool) {
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	now := c.now()
	if c.expired(e, now) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.hits++
	e.accessCount++
	e.lastAccessed = now
	e.tick = c.nextTick()
	return clone(e.value), true
}

// Put stores value under key, evicting the least recently accessed entry
// when a new key would exceed capacity.
func (c *Cache) Put(key string, value any) {
	if c.maxEntries <= 0 {
		return
	}

	now := c.now()
	if e, ok := c.entries[key]; ok {
		e.value = clone(value)
		e.created = now
		e.lastAccessed = now
		e.tick = c.nextTick()
		return
	}

	for len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = &entry{
		value:        clone(value),
		created:      now,
		lastAccessed: now,
		tick:         c.nextTick(),
	}
}

func (c *Cache) evictOldest() {
	var (
		oldestKey string
		oldest    *entry
	)
	for k, e := range c.entries {
		if oldest == nil || e.tick < oldest.tick {
			oldestKey, oldest = k, e
		}
	}
	if oldest != nil {
		delete(c.entries, oldestKey)
	}
}

// CleanupExpired removes every expired entry and returns how many were removed.
func (c *Cache) CleanupExpired() int {
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Clear drops all entries and resets the hit and miss counters.
func (c *Cache) Clear() {
	c.entries = make(map[string]*entry)
	c.hits = 0
	c.misses = 0
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Stats reports the current counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Entries:    len(c.entries),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		TTLSeconds: c.ttl.Seconds(),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Fingerprint derives the cache key for a request. Payload maps are
// serialized with sorted keys so equal payloads hash equally.
func Fingerprint(service, method string, payload any) string {
	body, err := json.Marshal(payload)
	if err != nil {
		body = fmt.Appendf(nil, "%#v", payload)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", service, method)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// clone copies the JSON-shaped parts of v so callers cannot mutate stored
// values. Other types are returned as is.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = clone(val)
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
