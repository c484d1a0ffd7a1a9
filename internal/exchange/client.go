// Package exchange wraps the spot exchange SDK behind a narrow,
// taxonomy-aware interface. Every call is categorized for the shared
// rate limiter/coordinator and translated into errs.Kind so upstream
// code never string-matches an exchange error message.
package exchange

import (
	"context"

	"spotscan/internal/money"
)

// Client is the read/write surface the scanner, selector, and trading
// engine depend on. A real implementation backs onto go-binance/v2; a
// fake implementation in tests satisfies the same interface.
type Client interface {
	FetchMarkets(ctx context.Context) ([]Market, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)
	FetchBalance(ctx context.Context, asset string) (money.Decimal, error)

	CreateMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity money.Decimal) (OrderResult, error)
	CreateStopLossOrder(ctx context.Context, symbol string, side OrderSide, quantity, stopPrice money.Decimal) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol string, exchangeOrderID string) error
}

// OrderSide mirrors models.Side at the exchange boundary so this
// package doesn't import internal/models (keeps it leaf-level).
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Market is one listed trading pair and its lot-size/price filters.
type Market struct {
	Symbol      string
	BaseAsset   string
	QuoteAsset  string
	TickSize    money.Decimal
	StepSize    money.Decimal
	MinNotional money.Decimal
}

// Ticker is the current best bid/ask plus last price and 24h stats.
type Ticker struct {
	Symbol    string
	BidPrice  money.Decimal
	AskPrice  money.Decimal
	LastPrice money.Decimal
	Volume24h money.Decimal
	High24h   money.Decimal
	Low24h    money.Decimal
}

// Kline is a single OHLCV candle as returned by the exchange.
type Kline struct {
	OpenTime int64
	Open     money.Decimal
	High     money.Decimal
	Low      money.Decimal
	Close    money.Decimal
	Volume   money.Decimal
}

// OrderBookLevel is one (price, quantity) rung.
type OrderBookLevel struct {
	Price    money.Decimal
	Quantity money.Decimal
}

// OrderBook is a depth snapshot.
type OrderBook struct {
	Bids []OrderBookLevel
	Asks []OrderBookLevel
}

// OrderResult is the exchange's response to order placement.
type OrderResult struct {
	ExchangeOrderID string
	Status          string
	FilledQuantity  money.Decimal
	AveragePrice    money.Decimal
	Fees            money.Decimal // summed raw fill commission, not converted between commission assets
}
