package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_BoundedWithinWindow(t *testing.T) {
	lim := New(map[Category]Limit{
		CategoryMarketData: {MaxRequests: 100, Window: 200 * time.Millisecond, SafetyFactor: 0.85},
	})

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lim.Acquire(CategoryMarketData)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	stats := lim.Stats()[CategoryMarketData]
	assert.LessOrEqual(t, stats.WindowCount, 100)
	// effective limit is 85; 40 concurrent acquisitions should not need
	// to queue past the window at all.
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestLimiter_RecordRateLimitedGrowsDynamicDelay(t *testing.T) {
	lim := New(DefaultLimits())
	lim.RecordRateLimited(CategoryMarketData)
	lim.RecordRateLimited(CategoryMarketData)

	stats := lim.Stats()[CategoryMarketData]
	assert.Equal(t, 100*time.Millisecond, stats.DynamicDelay)
	assert.Equal(t, int64(2), stats.TotalRateLimitHit)
}

func TestLimiter_RecordSuccessDecaysAfterThree(t *testing.T) {
	lim := New(DefaultLimits())
	lim.RecordRateLimited(CategoryMarketData) // dynamicDelay = 50ms

	lim.RecordSuccess(CategoryMarketData)
	lim.RecordSuccess(CategoryMarketData)
	before := lim.Stats()[CategoryMarketData].DynamicDelay
	assert.Equal(t, 50*time.Millisecond, before)

	lim.RecordSuccess(CategoryMarketData) // third consecutive success decays
	after := lim.Stats()[CategoryMarketData].DynamicDelay
	assert.Equal(t, time.Duration(float64(50*time.Millisecond)*0.8), after)
}

func TestLimiter_UnknownCategoryDegradesGracefully(t *testing.T) {
	lim := New(DefaultLimits())
	assert.NotPanics(t, func() {
		lim.Acquire(Category("unknown_future_endpoint"))
	})
}

func TestLimiter_MinimumSpacing(t *testing.T) {
	lim := New(map[Category]Limit{
		CategoryAccount: {MaxRequests: 1, Window: time.Nanosecond, SafetyFactor: 0.9},
	})
	start := time.Now()
	lim.Acquire(CategoryAccount)
	lim.Acquire(CategoryAccount)
	assert.GreaterOrEqual(t, time.Since(start), minSpacing)
}
