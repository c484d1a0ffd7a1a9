package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotscan/internal/config"
	"spotscan/internal/exchange"
	"spotscan/internal/models"
	"spotscan/internal/money"
	"spotscan/pkg/utils"
)

type fakeStore struct {
	trades map[string]models.Trade
}

func newFakeStore(trades ...models.Trade) *fakeStore {
	s := &fakeStore{trades: map[string]models.Trade{}}
	for _, t := range trades {
		s.trades[t.ID] = t
	}
	return s
}

func (s *fakeStore) ListOpenTrades(ctx context.Context) ([]models.Trade, error) {
	var out []models.Trade
	for _, t := range s.trades {
		if t.Status == models.TradeStatusOpen {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateTrade(ctx context.Context, t models.Trade) error {
	s.trades[t.ID] = t
	return nil
}

type fakeTrader struct{ stopped bool }

func (f *fakeTrader) EmergencyStop() { f.stopped = true }

type identityResolver struct{ symbol string }

func (r identityResolver) ResolveSymbol(ctx context.Context, assetID string) (string, error) {
	return r.symbol, nil
}

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		TrailingStopLevels: []config.TrailingStopLevel{
			{TriggerPct: 0.01, StopPct: 0.005},
			{TriggerPct: 0.02, StopPct: 0.01},
		},
		TakeProfitLevels: []config.TakeProfitLevel{
			{LevelPct: 0.03, SizePct: 0.5},
		},
	}
}

func TestLoop_TrailingStopPromotesMonotonically(t *testing.T) {
	trade := models.Trade{
		ID:         "t1",
		AssetID:    "a1",
		Side:       models.SideBuy,
		EntryPrice: money.FromFloat(100),
		Quantity:   money.FromFloat(1),
		StopLoss:   money.FromFloat(99),
		Status:     models.TradeStatusOpen,
	}
	client := exchange.NewFakeClient()
	client.Tickers["BTCUSDT"] = exchange.Ticker{Symbol: "BTCUSDT", LastPrice: money.FromFloat(102)}

	store := newFakeStore(trade)
	l := New(client, store, &fakeTrader{}, identityResolver{"BTCUSDT"}, testTradingConfig(), utils.NewNop())

	l.RunOnce(context.Background())

	updated := store.trades["t1"]
	want := money.FromFloat(101) // 100 * 1.01
	assert.True(t, updated.StopLoss.Equal(want), "got %s want %s", updated.StopLoss, want)
}

func TestLoop_TrailingStopNeverRegresses(t *testing.T) {
	trade := models.Trade{
		ID:         "t1",
		AssetID:    "a1",
		Side:       models.SideBuy,
		EntryPrice: money.FromFloat(100),
		Quantity:   money.FromFloat(1),
		StopLoss:   money.FromFloat(101.5), // already ahead of what 2% profit would set
		Status:     models.TradeStatusOpen,
	}
	client := exchange.NewFakeClient()
	client.Tickers["BTCUSDT"] = exchange.Ticker{Symbol: "BTCUSDT", LastPrice: money.FromFloat(102)}

	store := newFakeStore(trade)
	l := New(client, store, &fakeTrader{}, identityResolver{"BTCUSDT"}, testTradingConfig(), utils.NewNop())

	l.RunOnce(context.Background())

	updated := store.trades["t1"]
	assert.True(t, updated.StopLoss.Equal(money.FromFloat(101.5)))
}

func TestLoop_StopTriggerClosesOnLocalCross(t *testing.T) {
	trade := models.Trade{
		ID:         "t1",
		AssetID:    "a1",
		Side:       models.SideBuy,
		EntryPrice: money.FromFloat(100),
		Quantity:   money.FromFloat(1),
		StopLoss:   money.FromFloat(99),
		Status:     models.TradeStatusOpen,
	}
	client := exchange.NewFakeClient()
	client.Tickers["BTCUSDT"] = exchange.Ticker{Symbol: "BTCUSDT", LastPrice: money.FromFloat(98)}

	store := newFakeStore(trade)
	l := New(client, store, &fakeTrader{}, identityResolver{"BTCUSDT"}, testTradingConfig(), utils.NewNop())

	l.RunOnce(context.Background())

	updated := store.trades["t1"]
	assert.Equal(t, models.TradeStatusClosed, updated.Status)
	assert.Equal(t, "STOP_LOSS", updated.ExitReason)
}

func TestLoop_TakeProfitPartialCloseMarksLevelConsumed(t *testing.T) {
	trade := models.Trade{
		ID:         "t1",
		AssetID:    "a1",
		Side:       models.SideBuy,
		EntryPrice: money.FromFloat(100),
		Quantity:   money.FromFloat(2),
		StopLoss:   money.FromFloat(95),
		Status:     models.TradeStatusOpen,
	}
	client := exchange.NewFakeClient()
	client.Tickers["BTCUSDT"] = exchange.Ticker{Symbol: "BTCUSDT", LastPrice: money.FromFloat(104)} // 4% > 3% level

	store := newFakeStore(trade)
	l := New(client, store, &fakeTrader{}, identityResolver{"BTCUSDT"}, testTradingConfig(), utils.NewNop())

	l.RunOnce(context.Background())

	updated := store.trades["t1"]
	assert.True(t, updated.TakeProfitConsumed(0))
	assert.True(t, updated.Quantity.LessThan(money.FromFloat(2)))
}

func TestLoop_EmergencyStopAllClosesEverythingAndHaltsEntries(t *testing.T) {
	tradeA := models.Trade{ID: "a", AssetID: "asset-a", Side: models.SideBuy, EntryPrice: money.FromFloat(100), Quantity: money.FromFloat(1), Status: models.TradeStatusOpen}
	tradeB := models.Trade{ID: "b", AssetID: "asset-b", Side: models.SideBuy, EntryPrice: money.FromFloat(50), Quantity: money.FromFloat(2), Status: models.TradeStatusOpen}

	client := exchange.NewFakeClient()
	client.Tickers["BTCUSDT"] = exchange.Ticker{Symbol: "BTCUSDT", LastPrice: money.FromFloat(101)}
	client.Tickers["ETHUSDT"] = exchange.Ticker{Symbol: "ETHUSDT", LastPrice: money.FromFloat(49)}

	store := newFakeStore(tradeA, tradeB)
	trader := &fakeTrader{}
	resolver := multiResolver{map[string]string{"asset-a": "BTCUSDT", "asset-b": "ETHUSDT"}}
	l := New(client, store, trader, resolver, testTradingConfig(), utils.NewNop())

	err := l.EmergencyStopAll(context.Background(), "test")

	require.NoError(t, err)
	assert.True(t, trader.stopped)
	for _, id := range []string{"a", "b"} {
		assert.Equal(t, models.TradeStatusClosed, store.trades[id].Status)
		assert.Equal(t, "EMERGENCY_STOP", store.trades[id].ExitReason)
	}
}

type multiResolver struct{ bySymbol map[string]string }

func (r multiResolver) ResolveSymbol(ctx context.Context, assetID string) (string, error) {
	return r.bySymbol[assetID], nil
}
