package trading

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
	assets     map[string]models.Asset
	openByAsset map[string]bool
	openCount   int
	trades      []models.Trade
	orders      []models.Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{assets: map[string]models.Asset{}, openByAsset: map[string]bool{}}
}

func (s *fakeStore) GetAssetByID(ctx context.Context, id string) (models.Asset, error) {
	a, ok := s.assets[id]
	if !ok {
		return models.Asset{}, assertNotFound(id)
	}
	return a, nil
}

func (s *fakeStore) HasOpenTrade(ctx context.Context, assetID string) (bool, error) {
	return s.openByAsset[assetID], nil
}

func (s *fakeStore) CountOpenTrades(ctx context.Context) (int, error) { return s.openCount, nil }

func (s *fakeStore) CreateTrade(ctx context.Context, t models.Trade) error {
	s.trades = append(s.trades, t)
	return nil
}

func (s *fakeStore) UpdateTrade(ctx context.Context, t models.Trade) error {
	for i, existing := range s.trades {
		if existing.ID == t.ID {
			s.trades[i] = t
			if t.Status == models.TradeStatusOpen {
				s.openByAsset[t.AssetID] = true
				s.openCount++
			}
			return nil
		}
	}
	return assertNotFound(t.ID)
}

func (s *fakeStore) CreateOrder(ctx context.Context, o models.Order) error {
	s.orders = append(s.orders, o)
	return nil
}

type notFoundErr string

func (e notFoundErr) Error() string { return "not found: " + string(e) }
func assertNotFound(id string) error { return notFoundErr(id) }

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		MaxConcurrentTrades:    3,
		MaxPositionSizePercent: 10,
		InitialStopLossPercent: 0.02,
		MinOrderSizeUSDT:       money.FromFloat(10),
		SignalThresholdBuy:     0.4,
		TradingEnabled:         true,
		PaperTrading:           true,
	}
}

func newTestEngine(client exchange.Client, store Store, cfg config.TradingConfig) *Engine {
	return New(client, store, cfg, utils.NewNop())
}

func buySignal(assetID string, strength float64) models.Signal {
	return models.Signal{ID: "sig-1", AssetID: assetID, Type: models.SignalBuy, Strength: strength, RulesTriggered: []string{"R1_MA_CROSSOVER"}}
}

func TestEngine_OpensTradeOnQualifyingSignal(t *testing.T) {
	client := exchange.NewFakeClient()
	client.Tickers["BTCUSDT"] = exchange.Ticker{Symbol: "BTCUSDT", LastPrice: money.FromFloat(50000)}
	client.Balances["USDT"] = money.FromFloat(10000)

	store := newFakeStore()
	store.assets["asset-1"] = models.Asset{ID: "asset-1", Symbol: "BTCUSDT", IsValid: true}

	e := newTestEngine(client, store, testTradingConfig())
	trade, err := e.ProcessSignal(context.Background(), buySignal("asset-1", 0.6))

	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, models.TradeStatusOpen, trade.Status)
	assert.Equal(t, models.SideBuy, trade.Side)
	require.Len(t, store.orders, 1)
	assert.True(t, store.openByAsset["asset-1"])
}

func TestEngine_SkipsBelowThreshold(t *testing.T) {
	client := exchange.NewFakeClient()
	store := newFakeStore()
	store.assets["asset-1"] = models.Asset{ID: "asset-1", Symbol: "BTCUSDT", IsValid: true}

	e := newTestEngine(client, store, testTradingConfig())
	trade, err := e.ProcessSignal(context.Background(), buySignal("asset-1", 0.1))

	assert.NoError(t, err)
	assert.Nil(t, trade)
	assert.Empty(t, store.trades)
}

func TestEngine_SkipsWhenAlreadyHoldingAsset(t *testing.T) {
	client := exchange.NewFakeClient()
	client.Tickers["BTCUSDT"] = exchange.Ticker{Symbol: "BTCUSDT", LastPrice: money.FromFloat(50000)}
	client.Balances["USDT"] = money.FromFloat(10000)

	store := newFakeStore()
	store.assets["asset-1"] = models.Asset{ID: "asset-1", Symbol: "BTCUSDT", IsValid: true}
	store.openByAsset["asset-1"] = true

	e := newTestEngine(client, store, testTradingConfig())
	trade, err := e.ProcessSignal(context.Background(), buySignal("asset-1", 0.6))

	assert.NoError(t, err)
	assert.Nil(t, trade)
}

func TestEngine_SkipsWhenEmergencyStopped(t *testing.T) {
	client := exchange.NewFakeClient()
	store := newFakeStore()
	store.assets["asset-1"] = models.Asset{ID: "asset-1", Symbol: "BTCUSDT", IsValid: true}

	e := newTestEngine(client, store, testTradingConfig())
	e.EmergencyStop()

	trade, err := e.ProcessSignal(context.Background(), buySignal("asset-1", 0.6))

	assert.NoError(t, err)
	assert.Nil(t, trade)
}

func TestEngine_SkipsWhenMaxConcurrentTradesReached(t *testing.T) {
	client := exchange.NewFakeClient()
	client.Tickers["BTCUSDT"] = exchange.Ticker{Symbol: "BTCUSDT", LastPrice: money.FromFloat(50000)}
	client.Balances["USDT"] = money.FromFloat(10000)

	store := newFakeStore()
	store.assets["asset-1"] = models.Asset{ID: "asset-1", Symbol: "BTCUSDT", IsValid: true}
	store.openCount = 3

	e := newTestEngine(client, store, testTradingConfig())
	trade, err := e.ProcessSignal(context.Background(), buySignal("asset-1", 0.6))

	assert.NoError(t, err)
	assert.Nil(t, trade)
}

func TestEngine_SkipsWhenPositionSizeBelowMinimum(t *testing.T) {
	client := exchange.NewFakeClient()
	client.Tickers["BTCUSDT"] = exchange.Ticker{Symbol: "BTCUSDT", LastPrice: money.FromFloat(50000)}
	client.Balances["USDT"] = money.FromFloat(1) // tiny balance -> tiny position

	store := newFakeStore()
	store.assets["asset-1"] = models.Asset{ID: "asset-1", Symbol: "BTCUSDT", IsValid: true}

	e := newTestEngine(client, store, testTradingConfig())
	trade, err := e.ProcessSignal(context.Background(), buySignal("asset-1", 0.6))

	assert.NoError(t, err)
	assert.Nil(t, trade)
	assert.Empty(t, store.trades)
}
