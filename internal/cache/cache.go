// Package cache implements the TTL+LRU store sitting between producers
// (validator, scanner, trading engine) and the exchange client, so that
// tickers/candles/indicators are not re-fetched redundantly.
//
// GetOrFetch coalesces concurrent fetchers for the same key via
// golang.org/x/sync/singleflight — a genuine single-flight guarantee the
// Python original this is grounded on (smart_cache.py's get_or_fetch,
// which is a sequential check-then-fetch) does not actually provide.
package cache

import (
	"container/list"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Category names a TTL/priority policy bucket.
type Category string

const (
	CategoryTicker         Category = "ticker"
	CategoryMarketSummary  Category = "market_summary"
	CategoryVolumeAnalysis Category = "volume_analysis"
	CategoryCandles        Category = "candles"
	CategoryIndicators     Category = "indicators"
	CategoryValidation     Category = "validation"
	CategoryMarkets        Category = "markets"
)

// Policy is the TTL assigned to a category. Priority is informational
// (used for logging/ops visibility); it does not change eviction order —
// eviction is pure LRU across the whole store.
type Policy struct {
	TTL      time.Duration
	Priority string
}

// DefaultPolicies is the per-category TTL/size table. Where the source
// material gives a range, the midpoint is used.
func DefaultPolicies() map[Category]Policy {
	return map[Category]Policy{
		CategoryTicker:         {TTL: 10 * time.Second, Priority: "critical"},
		CategoryMarketSummary:  {TTL: 30 * time.Second, Priority: "high"},
		CategoryVolumeAnalysis: {TTL: 45 * time.Second, Priority: "high"},
		CategoryCandles:        {TTL: 90 * time.Second, Priority: "medium"},
		CategoryIndicators:     {TTL: 210 * time.Second, Priority: "medium"},
		CategoryValidation:     {TTL: 600 * time.Second, Priority: "low"},
		CategoryMarkets:        {TTL: 1800 * time.Second, Priority: "low"},
	}
}

type entry struct {
	key        string
	value      interface{}
	expires    time.Time
	hits       int64
	lastAccess time.Time
	elem       *list.Element // position in the LRU list
}

// Cache is a bounded, concurrent, TTL+LRU keyed store.
type Cache struct {
	mu       sync.Mutex
	data     map[string]*entry
	lru      *list.List // front = most recently used
	maxSize  int
	policies map[Category]Policy

	group singleflight.Group

	// stats
	hitCount, missCount, evictionCount int64
	categoryHits                       map[Category]int64
}

// New builds a Cache with the given max entry count and policy table.
func New(maxSize int, policies map[Category]Policy) *Cache {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Cache{
		data:         make(map[string]*entry),
		lru:          list.New(),
		maxSize:      maxSize,
		policies:     policies,
		categoryHits: make(map[Category]int64),
	}
}

// MakeKey builds the first-class cache key: category:identifier[:sorted
// kv params], per Design Note "Cache with ad-hoc keys" — callers never
// build free-form string keys themselves.
func MakeKey(category Category, id string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(string(category))
	b.WriteByte(':')
	b.WriteString(id)
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, ":%s=%s", k, params[k])
		}
	}
	return b.String()
}

// Get returns the cached value for key if present and not expired.
// Expired entries are removed lazily on read.
func (c *Cache) Get(category Category, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		c.missCount++
		return nil, false
	}
	if time.Now().After(e.expires) {
		c.removeLocked(e)
		c.missCount++
		return nil, false
	}

	e.hits++
	e.lastAccess = time.Now()
	c.lru.MoveToFront(e.elem)
	c.hitCount++
	c.categoryHits[category]++
	return e.value, true
}

// Set inserts value under key with category's configured TTL, evicting
// LRU entries if the store is at capacity.
func (c *Cache) Set(category Category, key string, value interface{}) {
	ttl := c.ttlFor(category)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.data[key]; ok {
		existing.value = value
		existing.expires = time.Now().Add(ttl)
		existing.lastAccess = time.Now()
		c.lru.MoveToFront(existing.elem)
		return
	}

	for len(c.data) >= c.maxSize && c.maxSize > 0 {
		c.evictOldestLocked()
	}

	e := &entry{
		key:        key,
		value:      value,
		expires:    time.Now().Add(ttl),
		lastAccess: time.Now(),
	}
	e.elem = c.lru.PushFront(e)
	c.data[key] = e
}

func (c *Cache) ttlFor(category Category) time.Duration {
	if p, ok := c.policies[category]; ok {
		return p.TTL
	}
	return 60 * time.Second
}

// removeLocked deletes e from both the map and the LRU list. Caller
// holds c.mu.
func (c *Cache) removeLocked(e *entry) {
	delete(c.data, e.key)
	c.lru.Remove(e.elem)
}

// evictOldestLocked removes the least-recently-used entry. Caller holds
// c.mu.
func (c *Cache) evictOldestLocked() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	c.removeLocked(e)
	c.evictionCount++
}

// Fetcher produces a value for a cache miss.
type Fetcher func() (interface{}, error)

// GetOrFetch returns the cached value for key, or invokes fetch exactly
// once across all concurrent callers for that key (singleflight), caches
// the result on success, and returns it to every waiter. Errors are not
// cached — a failed fetch should be retried by the next caller.
func (c *Cache) GetOrFetch(category Category, key string, fetch Fetcher) (interface{}, error) {
	if v, ok := c.Get(category, key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the singleflight guard: another caller may have
		// populated the entry between our Get above and entering Do.
		if v, ok := c.Get(category, key); ok {
			return v, nil
		}
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Set(category, key, v)
		return v, nil
	})
	return v, err
}

// Invalidate removes one key, or every key in a category when key == "".
func (c *Cache) Invalidate(category Category, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key != "" {
		if e, ok := c.data[key]; ok {
			c.removeLocked(e)
		}
		return
	}

	prefix := string(category) + ":"
	for k, e := range c.data {
		if strings.HasPrefix(k, prefix) {
			c.removeLocked(e)
		}
	}
}

// Sweep removes every expired entry in a single pass; cmd/server calls
// it every 5 minutes.
func (c *Cache) Sweep() (removed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, e := range c.data {
		if now.After(e.expires) {
			c.removeLocked(e)
			removed++
		}
	}
	return removed
}

// Stats is a point-in-time snapshot of cache utilization.
type Stats struct {
	Size          int
	HitCount      int64
	MissCount     int64
	HitRate       float64
	EvictionCount int64
	CategoryHits  map[Category]int64
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hitCount + c.missCount
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hitCount) / float64(total)
	}
	catHits := make(map[Category]int64, len(c.categoryHits))
	for k, v := range c.categoryHits {
		catHits[k] = v
	}
	return Stats{
		Size:          len(c.data),
		HitCount:      c.hitCount,
		MissCount:     c.missCount,
		HitRate:       hitRate,
		EvictionCount: c.evictionCount,
		CategoryHits:  catHits,
	}
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*entry)
	c.lru = list.New()
}
