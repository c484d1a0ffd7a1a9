package selector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotscan/internal/config"
	"spotscan/internal/exchange"
	"spotscan/internal/money"
	"spotscan/pkg/utils"
)

func testConfig() config.SelectorConfig {
	return config.SelectorConfig{
		MaxSpreadPercent:     2.0,
		MinVolatility24h:     0.1,
		MaxVolatility24h:     50.0,
		MinLiquidityScore:    0.1,
		VolatilityOptimalMin: 2.0,
		VolatilityOptimalMax: 8.0,
	}
}

func ticker(symbol string, last, bid, ask, high, low, volume float64) exchange.Ticker {
	return exchange.Ticker{
		Symbol:    symbol,
		LastPrice: money.FromFloat(last),
		BidPrice:  money.FromFloat(bid),
		AskPrice:  money.FromFloat(ask),
		High24h:   money.FromFloat(high),
		Low24h:    money.FromFloat(low),
		Volume24h: money.FromFloat(volume),
	}
}

func TestSelector_RejectsLowVolume(t *testing.T) {
	client := exchange.NewFakeClient()
	client.Markets = []exchange.Market{{Symbol: "DUST/USDT"}}
	client.Tickers["DUST/USDT"] = ticker("DUST/USDT", 1, 0.99, 1.01, 1.05, 0.95, 500)

	sel := New(client, testConfig(), money.FromFloat(10000), time.Hour, utils.NewNop())
	got, err := sel.Select(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelector_AdmitsQualitySymbol(t *testing.T) {
	client := exchange.NewFakeClient()
	client.Markets = []exchange.Market{{Symbol: "BTC/USDT"}}
	client.Tickers["BTC/USDT"] = ticker("BTC/USDT", 50000, 49995, 50005, 52500, 47500, 20_000_000)

	sel := New(client, testConfig(), money.FromFloat(10000), time.Hour, utils.NewNop())
	got, err := sel.Select(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BTC/USDT", got[0].Symbol)
	assert.Greater(t, got[0].Score, 0.0)
}

func TestSelector_RejectsWideSpread(t *testing.T) {
	client := exchange.NewFakeClient()
	client.Markets = []exchange.Market{{Symbol: "WIDE/USDT"}}
	client.Tickers["WIDE/USDT"] = ticker("WIDE/USDT", 100, 95, 105, 104, 96, 1_000_000)

	sel := New(client, testConfig(), money.FromFloat(10000), time.Hour, utils.NewNop())
	got, err := sel.Select(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelector_CachesWithinTTL(t *testing.T) {
	client := exchange.NewFakeClient()
	client.Markets = []exchange.Market{{Symbol: "BTC/USDT"}}
	client.Tickers["BTC/USDT"] = ticker("BTC/USDT", 50000, 49995, 50005, 52500, 47500, 20_000_000)

	sel := New(client, testConfig(), money.FromFloat(10000), time.Hour, utils.NewNop())
	first, err := sel.Select(context.Background(), false)
	require.NoError(t, err)

	// Mutate the exchange state; without a force refresh the cache holds.
	client.Markets = nil
	second, err := sel.Select(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	third, err := sel.Select(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestSelector_StartStopSchedulesRefresh(t *testing.T) {
	client := exchange.NewFakeClient()
	client.Markets = []exchange.Market{{Symbol: "BTC/USDT"}}
	client.Tickers["BTC/USDT"] = ticker("BTC/USDT", 50000, 49995, 50005, 52500, 47500, 20_000_000)

	sel := New(client, testConfig(), money.FromFloat(10000), 50*time.Millisecond, utils.NewNop())
	sel.Start(context.Background())
	defer sel.Stop()

	time.Sleep(150 * time.Millisecond)

	sel.mu.Lock()
	refreshed := !sel.cachedAt.IsZero()
	sel.mu.Unlock()
	assert.True(t, refreshed)
}

func TestSelector_OrdersByScoreDesc(t *testing.T) {
	client := exchange.NewFakeClient()
	client.Markets = []exchange.Market{{Symbol: "A/USDT"}, {Symbol: "B/USDT"}}
	client.Tickers["A/USDT"] = ticker("A/USDT", 100, 99.9, 100.1, 105, 95, 5_000_000)
	client.Tickers["B/USDT"] = ticker("B/USDT", 100, 99.95, 100.05, 104, 96, 20_000_000)

	sel := New(client, testConfig(), money.FromFloat(10000), time.Hour, utils.NewNop())
	got, err := sel.Select(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}
