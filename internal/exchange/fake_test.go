package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotscan/internal/money"
)

func TestFakeClient_CreateMarketOrderFillsAtLastPrice(t *testing.T) {
	f := NewFakeClient()
	last, _ := money.FromString("100")
	f.Tickers["BTC/USDT"] = Ticker{Symbol: "BTC/USDT", LastPrice: last}

	qty, _ := money.FromString("1.5")
	res, err := f.CreateMarketOrder(context.Background(), "BTC/USDT", OrderSideBuy, qty)
	require.NoError(t, err)
	assert.True(t, res.AveragePrice.Equal(last))
	assert.True(t, res.FilledQuantity.Equal(qty))
	assert.Len(t, f.Orders, 1)
}

func TestFakeClient_FetchCandlesRespectsLimit(t *testing.T) {
	f := NewFakeClient()
	for i := 0; i < 5; i++ {
		f.Candles["BTC/USDT"] = append(f.Candles["BTC/USDT"], Kline{OpenTime: int64(i)})
	}
	ks, err := f.FetchCandles(context.Background(), "BTC/USDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, ks, 2)
	assert.Equal(t, int64(3), ks[0].OpenTime)
	assert.Equal(t, int64(4), ks[1].OpenTime)
}
