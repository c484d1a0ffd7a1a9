package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"spotscan/pkg/ratelimit"
)

func TestCoordinator_RegisterAndStats(t *testing.T) {
	c := New(ratelimit.New(ratelimit.DefaultLimits()))
	c.Register("trading-1", ClassTrading)
	c.Register("scanner-1", ClassScanner)

	c.RequestPermission("trading-1", ratelimit.CategoryMarketData)
	c.RequestPermission("scanner-1", ratelimit.CategoryMarketData)

	workers, total := c.Stats()
	assert.Len(t, workers, 2)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, PriorityHigh, workers["trading-1"].Priority)
	assert.Equal(t, PriorityMedium, workers["scanner-1"].Priority)
}

func TestCoordinator_UnknownWorkerAllowedThrough(t *testing.T) {
	c := New(ratelimit.New(ratelimit.DefaultLimits()))
	assert.NotPanics(t, func() {
		c.RequestPermission("ghost", ratelimit.CategoryMarketData)
	})
}

func TestCoordinator_UnregisterClearsState(t *testing.T) {
	c := New(ratelimit.New(ratelimit.DefaultLimits()))
	c.Register("analysis-1", ClassAnalysis)
	c.Unregister("analysis-1")

	workers, _ := c.Stats()
	assert.NotContains(t, workers, "analysis-1")
}

func TestBackoffFor_ScalesWithPriority(t *testing.T) {
	high := backoffFor(PriorityHigh)
	low := backoffFor(PriorityLow)
	assert.Less(t, high, low+1*time.Second) // high is much smaller on average; sanity bound
	assert.GreaterOrEqual(t, high, time.Duration(float64(80*time.Millisecond)))
}
