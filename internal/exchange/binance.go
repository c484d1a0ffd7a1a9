package exchange

// binance.go - клиент биржи на базе go-binance/v2 (Spot API)
//
// Назначение:
// Конкретная реализация Client поверх github.com/adshao/go-binance/v2.
// Каждый вызов проходит через coordinator.RequestPermission (категория
// market_data или account), затем через retry.DoWithResult с
// RetryIfTaxonomy, и возвращает errs-размеченные ошибки.

import (
	"context"
	"fmt"
	"strconv"

	binance "github.com/adshao/go-binance/v2"

	"spotscan/internal/coordinator"
	"spotscan/internal/errs"
	"spotscan/internal/money"
	"spotscan/pkg/ratelimit"
	"spotscan/pkg/retry"
)

var _ Client = (*BinanceClient)(nil)

// BinanceClient implements Client against Binance's spot REST API.
type BinanceClient struct {
	raw         *binance.Client
	coordinator *coordinator.Coordinator
	workerID    string
	retryConfig retry.Config
}

// NewBinanceClient builds a Client. workerID identifies the calling
// worker class ("trading", "scanner", "analysis") to the coordinator
// for budget arbitration.
func NewBinanceClient(apiKey, apiSecret string, coord *coordinator.Coordinator, workerID string) *BinanceClient {
	return &BinanceClient{
		raw:         binance.NewClient(apiKey, apiSecret),
		coordinator: coord,
		workerID:    workerID,
		retryConfig: retryConfigForExchange(),
	}
}

func retryConfigForExchange() retry.Config {
	cfg := retry.DefaultConfig()
	// The SDK returns raw errors; classify them so the taxonomy check
	// sees their Kind.
	cfg.RetryIf = func(err error) bool {
		return retry.RetryIfTaxonomy(classify("", err))
	}
	return cfg
}

func (c *BinanceClient) admit(ctx context.Context, category ratelimit.Category) {
	c.coordinator.RequestPermission(c.workerID, category)
}

// classify maps a raw go-binance error into the closed taxonomy. The
// SDK surfaces HTTP-layer errors as *binance.APIError with a numeric
// Code mirroring Binance's documented error codes; anything else
// (network I/O, context deadline) is treated as Transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*binance.APIError); ok {
		switch {
		case apiErr.Code == -1003: // TOO_MANY_REQUESTS
			return errs.RateLimited(op, err)
		case apiErr.Code == -2010 || apiErr.Code == -2011: // insufficient balance / unknown order
			return errs.Permanent(op, err)
		case apiErr.Code == -1021 || apiErr.Code == -1022: // timestamp/signature
			return errs.Fatal(op, err)
		case apiErr.Code <= -1100 && apiErr.Code >= -1199: // malformed request
			return errs.Validation(op, err)
		default:
			return errs.Transient(op, err)
		}
	}
	return errs.Transient(op, err)
}

func (c *BinanceClient) FetchMarkets(ctx context.Context) ([]Market, error) {
	c.admit(ctx, ratelimit.CategoryMarketData)
	info, err := retry.DoWithResult(ctx, func() (*binance.ExchangeInfo, error) {
		return c.raw.NewExchangeInfoService().Do(ctx)
	}, c.retryConfig)
	if err != nil {
		return nil, classify("exchange.FetchMarkets", err)
	}

	markets := make([]Market, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || s.QuoteAsset != "USDT" {
			continue
		}
		m := Market{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
		}
		if f := s.PriceFilter(); f != nil {
			m.TickSize, _ = money.FromString(f.TickSize)
		}
		if f := s.LotSizeFilter(); f != nil {
			m.StepSize, _ = money.FromString(f.StepSize)
		}
		if f := s.MinNotionalFilter(); f != nil {
			m.MinNotional, _ = money.FromString(f.MinNotional)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func (c *BinanceClient) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	c.admit(ctx, ratelimit.CategoryMarketData)
	book, err := retry.DoWithResult(ctx, func() ([]*binance.BookTicker, error) {
		return c.raw.NewListBookTickersService().Symbol(symbol).Do(ctx)
	}, c.retryConfig)
	if err != nil {
		return Ticker{}, classify("exchange.FetchTicker", err)
	}
	if len(book) == 0 {
		return Ticker{}, errs.InsufficientData("exchange.FetchTicker", fmt.Errorf("no book ticker for %s", symbol))
	}

	priceRes, err := retry.DoWithResult(ctx, func() ([]*binance.SymbolPrice, error) {
		return c.raw.NewListPricesService().Symbol(symbol).Do(ctx)
	}, c.retryConfig)
	if err != nil {
		return Ticker{}, classify("exchange.FetchTicker", err)
	}

	t := Ticker{Symbol: symbol}
	t.BidPrice, _ = money.FromString(book[0].BidPrice)
	t.AskPrice, _ = money.FromString(book[0].AskPrice)
	if len(priceRes) > 0 {
		t.LastPrice, _ = money.FromString(priceRes[0].Price)
	}

	stats, err := retry.DoWithResult(ctx, func() ([]*binance.PriceChangeStats, error) {
		return c.raw.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	}, c.retryConfig)
	if err == nil && len(stats) > 0 {
		t.Volume24h, _ = money.FromString(stats[0].QuoteVolume)
		t.High24h, _ = money.FromString(stats[0].HighPrice)
		t.Low24h, _ = money.FromString(stats[0].LowPrice)
	}
	return t, nil
}

func (c *BinanceClient) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	c.admit(ctx, ratelimit.CategoryMarketData)
	raw, err := retry.DoWithResult(ctx, func() ([]*binance.Kline, error) {
		return c.raw.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	}, c.retryConfig)
	if err != nil {
		return nil, classify("exchange.FetchCandles", err)
	}

	out := make([]Kline, 0, len(raw))
	for _, k := range raw {
		kl := Kline{OpenTime: k.OpenTime}
		kl.Open, _ = money.FromString(k.Open)
		kl.High, _ = money.FromString(k.High)
		kl.Low, _ = money.FromString(k.Low)
		kl.Close, _ = money.FromString(k.Close)
		kl.Volume, _ = money.FromString(k.Volume)
		out = append(out, kl)
	}
	return out, nil
}

func (c *BinanceClient) FetchOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error) {
	c.admit(ctx, ratelimit.CategoryMarketData)
	raw, err := retry.DoWithResult(ctx, func() (*binance.DepthResponse, error) {
		return c.raw.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
	}, c.retryConfig)
	if err != nil {
		return OrderBook{}, classify("exchange.FetchOrderBook", err)
	}

	ob := OrderBook{
		Bids: make([]OrderBookLevel, 0, len(raw.Bids)),
		Asks: make([]OrderBookLevel, 0, len(raw.Asks)),
	}
	for _, b := range raw.Bids {
		price, _ := money.FromString(b.Price)
		qty, _ := money.FromString(b.Quantity)
		ob.Bids = append(ob.Bids, OrderBookLevel{Price: price, Quantity: qty})
	}
	for _, a := range raw.Asks {
		price, _ := money.FromString(a.Price)
		qty, _ := money.FromString(a.Quantity)
		ob.Asks = append(ob.Asks, OrderBookLevel{Price: price, Quantity: qty})
	}
	return ob, nil
}

func (c *BinanceClient) FetchBalance(ctx context.Context, asset string) (money.Decimal, error) {
	c.admit(ctx, ratelimit.CategoryAccount)
	acct, err := retry.DoWithResult(ctx, func() (*binance.Account, error) {
		return c.raw.NewGetAccountService().Do(ctx)
	}, c.retryConfig)
	if err != nil {
		return money.Zero, classify("exchange.FetchBalance", err)
	}
	for _, b := range acct.Balances {
		if b.Asset == asset {
			return money.FromString(b.Free)
		}
	}
	return money.Zero, nil
}

func (c *BinanceClient) CreateMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity money.Decimal) (OrderResult, error) {
	c.admit(ctx, ratelimit.CategoryAccount)
	res, err := retry.DoWithResult(ctx, func() (*binance.CreateOrderResponse, error) {
		return c.raw.NewCreateOrderService().
			Symbol(symbol).
			Side(binance.SideType(side)).
			Type(binance.OrderTypeMarket).
			Quantity(quantity.String()).
			Do(ctx)
	}, c.retryConfig)
	if err != nil {
		return OrderResult{}, classify("exchange.CreateMarketOrder", err)
	}
	return toOrderResult(res), nil
}

func (c *BinanceClient) CreateStopLossOrder(ctx context.Context, symbol string, side OrderSide, quantity, stopPrice money.Decimal) (OrderResult, error) {
	c.admit(ctx, ratelimit.CategoryAccount)
	res, err := retry.DoWithResult(ctx, func() (*binance.CreateOrderResponse, error) {
		return c.raw.NewCreateOrderService().
			Symbol(symbol).
			Side(binance.SideType(side)).
			Type(binance.OrderTypeStopLossLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Quantity(quantity.String()).
			Price(stopPrice.String()).
			StopPrice(stopPrice.String()).
			Do(ctx)
	}, c.retryConfig)
	if err != nil {
		return OrderResult{}, classify("exchange.CreateStopLossOrder", err)
	}
	return toOrderResult(res), nil
}

func (c *BinanceClient) CancelOrder(ctx context.Context, symbol string, exchangeOrderID string) error {
	c.admit(ctx, ratelimit.CategoryAccount)
	orderID, err := strconv.ParseInt(exchangeOrderID, 10, 64)
	if err != nil {
		return errs.Validation("exchange.CancelOrder", err)
	}
	_, err = retry.DoWithResult(ctx, func() (*binance.CancelOrderResponse, error) {
		return c.raw.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	}, c.retryConfig)
	if err != nil {
		return classify("exchange.CancelOrder", err)
	}
	return nil
}

func toOrderResult(res *binance.CreateOrderResponse) OrderResult {
	avgPrice := money.Zero
	filledQty, _ := money.FromString(res.ExecutedQuantity)
	if !filledQty.IsZero() {
		cumQuote, err := money.FromString(res.CummulativeQuoteQuantity)
		if err == nil {
			avgPrice = cumQuote.Div(filledQty)
		}
	}
	return OrderResult{
		ExchangeOrderID: strconv.FormatInt(res.OrderID, 10),
		Status:          string(res.Status),
		FilledQuantity:  filledQty,
		AveragePrice:    avgPrice,
		Fees:            sumFillCommission(res.Fills),
	}
}

// sumFillCommission adds up each fill's commission. Commission can be
// charged in a different asset than the quote currency (e.g. BNB fee
// discount); this sums the raw figures without cross-asset conversion,
// matching the precision the rest of this fee accounting operates at.
func sumFillCommission(fills []*binance.Fill) money.Decimal {
	total := money.Zero
	for _, f := range fills {
		commission, err := money.FromString(f.Commission)
		if err != nil {
			continue
		}
		total = total.Add(commission)
	}
	return total
}
