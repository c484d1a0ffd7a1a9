package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := New(10, nil)
	key := MakeKey(CategoryTicker, "BTC/USDT", nil)
	c.Set(CategoryTicker, key, 42)

	v, ok := c.Get(CategoryTicker, key)
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestCache_NoStaleRead(t *testing.T) {
	c := New(10, map[Category]Policy{CategoryTicker: {TTL: 10 * time.Millisecond}})
	key := MakeKey(CategoryTicker, "BTC/USDT", nil)
	c.Set(CategoryTicker, key, "v1")

	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get(CategoryTicker, key)
	assert.False(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(2, map[Category]Policy{CategoryTicker: {TTL: time.Minute}})
	c.Set(CategoryTicker, "a", 1)
	c.Set(CategoryTicker, "b", 2)
	c.Set(CategoryTicker, "c", 3) // evicts "a" (least recently used)

	_, ok := c.Get(CategoryTicker, "a")
	assert.False(t, ok)
	_, ok = c.Get(CategoryTicker, "b")
	assert.True(t, ok)
	_, ok = c.Get(CategoryTicker, "c")
	assert.True(t, ok)
}

func TestCache_SingleFlight(t *testing.T) {
	c := New(10, nil)
	var calls int64

	var wg sync.WaitGroup
	results := make([]interface{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := c.GetOrFetch(CategoryIndicators, "shared-key", func() (interface{}, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(50 * time.Millisecond)
				return "computed", nil
			})
			require.NoError(t, err)
			results[idx] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	for _, r := range results {
		assert.Equal(t, "computed", r)
	}
}

func TestCache_InvalidateCategory(t *testing.T) {
	c := New(10, nil)
	c.Set(CategoryTicker, MakeKey(CategoryTicker, "BTC/USDT", nil), 1)
	c.Set(CategoryTicker, MakeKey(CategoryTicker, "ETH/USDT", nil), 2)
	c.Set(CategoryCandles, MakeKey(CategoryCandles, "BTC/USDT", nil), 3)

	c.Invalidate(CategoryTicker, "")

	_, ok := c.Get(CategoryTicker, MakeKey(CategoryTicker, "BTC/USDT", nil))
	assert.False(t, ok)
	_, ok = c.Get(CategoryCandles, MakeKey(CategoryCandles, "BTC/USDT", nil))
	assert.True(t, ok)
}

func TestCache_Sweep(t *testing.T) {
	c := New(10, map[Category]Policy{CategoryTicker: {TTL: time.Millisecond}})
	c.Set(CategoryTicker, "a", 1)
	time.Sleep(5 * time.Millisecond)

	removed := c.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, c.Stats().Size)
}
