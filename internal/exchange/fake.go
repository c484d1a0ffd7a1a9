package exchange

import (
	"context"

	"spotscan/internal/money"
)

// FakeClient is a deterministic in-memory Client for tests: scanner,
// selector, and trading-engine unit tests depend only on the Client
// interface, never on BinanceClient.
type FakeClient struct {
	Markets  []Market
	Tickers  map[string]Ticker
	Candles  map[string][]Kline
	Balances map[string]money.Decimal

	Orders []OrderResult
}

var _ Client = (*FakeClient)(nil)

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Tickers:  make(map[string]Ticker),
		Candles:  make(map[string][]Kline),
		Balances: make(map[string]money.Decimal),
	}
}

func (f *FakeClient) FetchMarkets(ctx context.Context) ([]Market, error) { return f.Markets, nil }

func (f *FakeClient) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	return f.Tickers[symbol], nil
}

func (f *FakeClient) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	ks := f.Candles[symbol]
	if limit > 0 && len(ks) > limit {
		ks = ks[len(ks)-limit:]
	}
	return ks, nil
}

func (f *FakeClient) FetchOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error) {
	return OrderBook{}, nil
}

func (f *FakeClient) FetchBalance(ctx context.Context, asset string) (money.Decimal, error) {
	return f.Balances[asset], nil
}

func (f *FakeClient) CreateMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity money.Decimal) (OrderResult, error) {
	res := OrderResult{ExchangeOrderID: "fake-order", Status: "FILLED", FilledQuantity: quantity, AveragePrice: f.Tickers[symbol].LastPrice}
	f.Orders = append(f.Orders, res)
	return res, nil
}

func (f *FakeClient) CreateStopLossOrder(ctx context.Context, symbol string, side OrderSide, quantity, stopPrice money.Decimal) (OrderResult, error) {
	res := OrderResult{ExchangeOrderID: "fake-stop", Status: "NEW", FilledQuantity: money.Zero, AveragePrice: stopPrice}
	f.Orders = append(f.Orders, res)
	return res, nil
}

func (f *FakeClient) CancelOrder(ctx context.Context, symbol string, exchangeOrderID string) error {
	return nil
}
