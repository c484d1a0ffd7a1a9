// Package trading is the signal-intake-to-order pipeline: it consumes
// signals off the signal bus, enforces position limits and sizing, and
// drives each trade through its PENDING -> OPEN (-> CLOSED/CANCELLED)
// lifecycle on models.Trade's finite-state machine: validate -> check
// limits -> size -> persist-then-act -> place order -> transition, with
// every trade tracked as a models.Trade/models.Order persisted through
// a Store.
package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spotscan/internal/config"
	"spotscan/internal/exchange"
	"spotscan/internal/models"
	"spotscan/internal/money"
)

// Store is the persistence contract the engine drives trades through.
type Store interface {
	GetAssetByID(ctx context.Context, id string) (models.Asset, error)
	HasOpenTrade(ctx context.Context, assetID string) (bool, error)
	CountOpenTrades(ctx context.Context) (int, error)
	CreateTrade(ctx context.Context, t models.Trade) error
	UpdateTrade(ctx context.Context, t models.Trade) error
	CreateOrder(ctx context.Context, o models.Order) error
}

// Broadcaster pushes trade lifecycle events to an interested observer,
// typically the dashboard's websocket hub. Optional: a nil Broadcaster
// on Engine means no one is listening, not an error.
type Broadcaster interface {
	TradeOpened(trade models.Trade)
	TradeCancelled(trade models.Trade)
}

// Engine processes signals into trades.
type Engine struct {
	client exchange.Client
	store  Store
	cfg    config.TradingConfig
	log    *zap.SugaredLogger
	bcast  Broadcaster

	// mu serializes signal processing so the open-trades-count and
	// one-position-per-symbol checks observe a consistent snapshot; the
	// engine places at most a handful of trades per cycle, so a single
	// lock costs nothing in practice.
	mu sync.Mutex

	emergencyStopped bool
}

// New builds an Engine. cfg.EmergencyStop seeds the initial stopped state.
func New(client exchange.Client, store Store, cfg config.TradingConfig, log *zap.SugaredLogger) *Engine {
	return &Engine{
		client:           client,
		store:            store,
		cfg:              cfg,
		log:              log,
		emergencyStopped: cfg.EmergencyStop,
	}
}

// SetBroadcaster wires an optional dashboard push target. Call before
// Run; unset, trade events simply aren't pushed anywhere.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.bcast = b
}

// Run drains sigCh until it closes or ctx is cancelled, processing one
// signal at a time.
func (e *Engine) Run(ctx context.Context, sigCh <-chan models.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			if _, err := e.ProcessSignal(ctx, sig); err != nil {
				e.log.Errorw("signal processing failed", "signal_id", sig.ID, "error", err)
			}
		}
	}
}

// EmergencyStop halts all new trade entries immediately. Open trades are
// left to internal/risk's loop to manage.
func (e *Engine) EmergencyStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emergencyStopped = true
	e.log.Warnw("emergency stop engaged, no new trades will be entered")
}

// Resume clears a prior EmergencyStop.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emergencyStopped = false
}

// ProcessSignal runs one signal through validate -> limits -> size ->
// persist -> execute. A nil trade with a nil error means the signal was
// legitimately skipped (below threshold, limits reached, size too
// small) rather than failed.
func (e *Engine) ProcessSignal(ctx context.Context, sig models.Signal) (*models.Trade, error) {
	if sig.Type != models.SignalBuy && sig.Type != models.SignalSell {
		return nil, fmt.Errorf("invalid signal type %q", sig.Type)
	}
	if sig.Strength < e.cfg.SignalThresholdBuy {
		e.log.Debugw("signal below trading threshold, skipped", "signal_id", sig.ID, "strength", sig.Strength)
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.emergencyStopped {
		e.log.Warnw("emergency stop active, signal skipped", "signal_id", sig.ID)
		return nil, nil
	}
	if !e.cfg.TradingEnabled {
		return nil, nil
	}

	asset, err := e.store.GetAssetByID(ctx, sig.AssetID)
	if err != nil {
		return nil, fmt.Errorf("resolve asset: %w", err)
	}
	if !asset.IsValid {
		e.log.Warnw("asset not valid for trading, signal skipped", "symbol", asset.Symbol)
		return nil, nil
	}

	openCount, err := e.store.CountOpenTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("count open trades: %w", err)
	}
	if openCount >= e.cfg.MaxConcurrentTrades {
		e.log.Debugw("max concurrent trades reached, signal skipped", "open", openCount, "max", e.cfg.MaxConcurrentTrades)
		return nil, nil
	}
	hasOpen, err := e.store.HasOpenTrade(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing position: %w", err)
	}
	if hasOpen {
		e.log.Debugw("already have open trade for asset, signal skipped", "symbol", asset.Symbol)
		return nil, nil
	}

	ticker, err := e.client.FetchTicker(ctx, asset.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch ticker: %w", err)
	}
	currentPrice := ticker.LastPrice

	quantity, err := e.positionSize(ctx, currentPrice)
	if err != nil {
		return nil, err
	}
	if quantity.IsZero() {
		e.log.Debugw("position size below minimum order size, signal skipped", "symbol", asset.Symbol)
		return nil, nil
	}

	side := models.Side(sig.Type)
	stopLoss := e.initialStopLoss(currentPrice, side)

	trade := models.Trade{
		ID:          uuid.NewString(),
		AssetID:     asset.ID,
		Side:        side,
		EntryPrice:  currentPrice,
		Quantity:    quantity,
		StopLoss:    stopLoss,
		Status:      models.TradeStatusPending,
		EntryReason: joinRules(sig.RulesTriggered),
		EntryTime:   time.Now(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// Persist the PENDING intent before touching the exchange: a crash
	// between here and order placement leaves an auditable PENDING trade
	// instead of a silently-lost signal.
	if err := e.store.CreateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("persist pending trade: %w", err)
	}

	if err := e.executeOrder(ctx, asset.Symbol, &trade); err != nil {
		trade.Status = models.TradeStatusCancelled
		trade.UpdatedAt = time.Now()
		if uerr := e.store.UpdateTrade(ctx, trade); uerr != nil {
			e.log.Errorw("failed to mark trade cancelled after order failure", "trade_id", trade.ID, "error", uerr)
		}
		if e.bcast != nil {
			e.bcast.TradeCancelled(trade)
		}
		return nil, fmt.Errorf("execute order: %w", err)
	}

	e.log.Infow("trade opened", "trade_id", trade.ID, "symbol", asset.Symbol, "side", trade.Side, "quantity", trade.Quantity, "entry_price", trade.EntryPrice)
	if e.bcast != nil {
		e.bcast.TradeOpened(trade)
	}
	return &trade, nil
}

// executeOrder places the market order (or, in paper-trading mode,
// simulates an immediate fill at the ticker price) and transitions the
// trade to OPEN on success.
func (e *Engine) executeOrder(ctx context.Context, symbol string, trade *models.Trade) error {
	exchangeSide := exchange.OrderSideBuy
	if trade.Side == models.SideSell {
		exchangeSide = exchange.OrderSideSell
	}

	var result exchange.OrderResult
	if e.cfg.PaperTrading {
		result = exchange.OrderResult{
			ExchangeOrderID: "paper-" + trade.ID,
			Status:          "FILLED",
			FilledQuantity:  trade.Quantity,
			AveragePrice:    trade.EntryPrice,
		}
	} else {
		res, err := e.client.CreateMarketOrder(ctx, symbol, exchangeSide, trade.Quantity)
		if err != nil {
			return err
		}
		result = res
	}

	trade.EntryPrice = result.AveragePrice
	trade.Quantity = result.FilledQuantity
	trade.HighWaterMark = result.AveragePrice
	trade.Status = models.TradeStatusOpen
	trade.Fees = trade.Fees.Add(result.Fees)
	trade.UpdatedAt = time.Now()

	order := models.Order{
		ID:              uuid.NewString(),
		TradeID:         trade.ID,
		ExchangeOrderID: result.ExchangeOrderID,
		Type:            models.OrderTypeMarket,
		Side:            trade.Side,
		Quantity:        trade.Quantity,
		Status:          models.OrderStatusFilled,
		FilledQuantity:  result.FilledQuantity,
		AveragePrice:    result.AveragePrice,
		Timestamp:       time.Now(),
	}
	if err := e.store.CreateOrder(ctx, order); err != nil {
		e.log.Errorw("failed to persist fill order", "trade_id", trade.ID, "error", err)
	}

	// Rest a real STOP_LOSS order on the exchange, opposite side of entry,
	// so the position isn't protected only by the risk loop's periodic
	// local check. A placement failure is logged and does not unwind the
	// entry, which has already filled.
	stopSide := exchange.OrderSideSell
	if trade.Side == models.SideSell {
		stopSide = exchange.OrderSideBuy
	}
	stopResult, err := e.client.CreateStopLossOrder(ctx, symbol, stopSide, trade.Quantity, trade.StopLoss)
	if err != nil {
		e.log.Errorw("failed to place exchange stop-loss order", "trade_id", trade.ID, "error", err)
	} else {
		trade.StopOrderID = stopResult.ExchangeOrderID
	}

	return e.store.UpdateTrade(ctx, *trade)
}

// positionSize sizes a trade off current USDT balance and the
// configured max-position percentage, rejecting sizes under the
// configured minimum order value.
func (e *Engine) positionSize(ctx context.Context, price money.Decimal) (money.Decimal, error) {
	balance, err := e.client.FetchBalance(ctx, "USDT")
	if err != nil {
		return money.Zero, fmt.Errorf("fetch balance: %w", err)
	}

	maxPositionValue := balance.Mul(money.FromFloat(e.cfg.MaxPositionSizePercent / 100))
	if price.IsZero() {
		return money.Zero, fmt.Errorf("current price is zero")
	}
	quantity := maxPositionValue.Div(price)

	minQuantity := e.cfg.MinOrderSizeUSDT.Div(price)
	if quantity.LessThan(minQuantity) {
		return money.Zero, nil
	}
	return quantity, nil
}

// initialStopLoss places the stop below entry for a long, above entry
// for a short.
func (e *Engine) initialStopLoss(entryPrice money.Decimal, side models.Side) money.Decimal {
	pct := money.FromFloat(e.cfg.InitialStopLossPercent)
	if side == models.SideBuy {
		return entryPrice.Mul(money.FromFloat(1).Sub(pct))
	}
	return entryPrice.Mul(money.FromFloat(1).Add(pct))
}

func joinRules(rules []string) string {
	out := ""
	for i, r := range rules {
		if i > 0 {
			out += ", "
		}
		out += r
	}
	return out
}
