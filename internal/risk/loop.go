// Package risk runs the periodic per-position re-evaluation: trailing-
// stop promotion, staged take-profits, and a last-resort local stop-loss
// trigger for when the exchange-side stop order itself failed. Also
// owns the global emergency-stop-all path.
//
// The shape follows a callback-based close function plus a small
// config struct driving a scheduled loop, generalized from
// cross-exchange arbitrage pairs to single-exchange spot trades, and
// from liquidation-event handling to trailing-stop/take-profit/
// stop-trigger evaluation.
package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spotscan/internal/config"
	"spotscan/internal/exchange"
	"spotscan/internal/models"
	"spotscan/internal/money"
)

// Store is the persistence contract the loop reads/writes OPEN trades
// through.
type Store interface {
	ListOpenTrades(ctx context.Context) ([]models.Trade, error)
	UpdateTrade(ctx context.Context, t models.Trade) error
}

// Trader is the subset of the trading engine the loop can halt new
// entries through during a global emergency stop.
type Trader interface {
	EmergencyStop()
}

// Broadcaster pushes risk-loop events to an interested observer,
// typically the dashboard's websocket hub. Optional: a nil Broadcaster
// means no one is listening.
type Broadcaster interface {
	StopAdjusted(trade models.Trade)
	TakeProfitExecuted(trade models.Trade, level int)
	TradeClosed(trade models.Trade)
	Emergency(reason string)
}

// Loop is the periodic risk re-evaluator.
type Loop struct {
	client   exchange.Client
	store    Store
	trader   Trader
	resolver SymbolResolver
	bcast    Broadcaster

	trailingLevels   []config.TrailingStopLevel
	takeProfitLevels []config.TakeProfitLevel
	interval         time.Duration

	log *zap.SugaredLogger

	// tradeLocks serializes re-evaluation of a single trade across
	// overlapping loop iterations: a per-key sync.Map cache pattern
	// generalized to a per-trade mutex.
	tradeLocks sync.Map // map[string]*sync.Mutex

	cronSched *cron.Cron
}

// New builds a Loop. resolver may be nil only in tests whose trades'
// AssetID already doubles as the exchange symbol.
func New(client exchange.Client, store Store, trader Trader, resolver SymbolResolver, cfg config.TradingConfig, log *zap.SugaredLogger) *Loop {
	interval := cfg.RiskLoopInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Loop{
		client:           client,
		store:            store,
		trader:           trader,
		resolver:         resolver,
		trailingLevels:   cfg.TrailingStopLevels,
		takeProfitLevels: cfg.TakeProfitLevels,
		interval:         interval,
		log:              log,
	}
}

// Start schedules RunOnce on the configured interval via cron's @every
// syntax, mirroring the selector's scheduled-refresh idiom.
func (l *Loop) Start(ctx context.Context) {
	l.cronSched = cron.New()
	schedule := fmt.Sprintf("@every %s", l.interval)
	_, err := l.cronSched.AddFunc(schedule, func() { l.RunOnce(ctx) })
	if err != nil {
		l.log.Errorw("failed to schedule risk loop", "schedule", schedule, "error", err)
		return
	}
	l.cronSched.Start()
}

// SetBroadcaster wires an optional dashboard push target. Call before
// Start; unset, risk events simply aren't pushed anywhere.
func (l *Loop) SetBroadcaster(b Broadcaster) {
	l.bcast = b
}

// Stop halts the scheduled loop and waits for any in-flight run to finish.
func (l *Loop) Stop() {
	if l.cronSched != nil {
		<-l.cronSched.Stop().Done()
	}
}

func (l *Loop) lockFor(tradeID string) *sync.Mutex {
	m, _ := l.tradeLocks.LoadOrStore(tradeID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// RunOnce fetches a read-consistent snapshot of OPEN trades and
// evaluates each concurrently, per-trade locked.
func (l *Loop) RunOnce(ctx context.Context) {
	trades, err := l.store.ListOpenTrades(ctx)
	if err != nil {
		l.log.Errorw("risk loop: failed to list open trades", "error", err)
		return
	}

	var eg errgroup.Group
	for _, t := range trades {
		t := t
		eg.Go(func() error {
			lock := l.lockFor(t.ID)
			lock.Lock()
			defer lock.Unlock()
			if err := l.evaluate(ctx, t); err != nil {
				l.log.Errorw("risk loop: evaluation failed", "trade_id", t.ID, "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// evaluate runs the trailing-stop/take-profit/stop-trigger sequence for one trade.
func (l *Loop) evaluate(ctx context.Context, trade models.Trade) error {
	symbol, err := l.symbolFor(ctx, trade)
	if err != nil {
		return err
	}

	ticker, err := l.client.FetchTicker(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetch ticker: %w", err)
	}
	currentPrice := ticker.LastPrice
	profitPct := profitPercent(trade, currentPrice)

	if err := l.applyTrailingStop(ctx, &trade, symbol, profitPct); err != nil {
		return fmt.Errorf("trailing stop: %w", err)
	}
	if err := l.applyTakeProfits(ctx, &trade, symbol, profitPct); err != nil {
		return fmt.Errorf("take profit: %w", err)
	}
	if trade.Status == models.TradeStatusOpen {
		if err := l.checkStopTrigger(ctx, &trade, symbol, currentPrice); err != nil {
			return fmt.Errorf("stop trigger: %w", err)
		}
	}
	return nil
}

// profitPercent computes signed profit percent: positive for BUY when
// price rose, positive for SELL when price fell.
func profitPercent(trade models.Trade, currentPrice money.Decimal) float64 {
	entry, _ := trade.EntryPrice.Float64()
	current, _ := currentPrice.Float64()
	if entry == 0 {
		return 0
	}
	pct := (current - entry) / entry
	if trade.Side == models.SideSell {
		pct = -pct
	}
	return pct
}

// applyTrailingStop finds the highest configured trigger the current
// profit has cleared and raises the stored stop if that is strictly
// better than the current one (monotonic-in-favor-of-position). Pushes
// the change to the exchange by cancelling the resting stop order and
// recreating it at the new price.
func (l *Loop) applyTrailingStop(ctx context.Context, trade *models.Trade, symbol string, profitPct float64) error {
	var best *config.TrailingStopLevel
	for i := range l.trailingLevels {
		lvl := l.trailingLevels[i]
		if lvl.TriggerPct > profitPct {
			continue
		}
		if best == nil || lvl.TriggerPct > best.TriggerPct {
			best = &l.trailingLevels[i]
		}
	}
	if best == nil {
		return nil
	}

	newStop := stopFromLevel(trade.EntryPrice, best.StopPct, trade.Side)
	if !isStrictlyBetter(trade.StopLoss, newStop, trade.Side) {
		return nil
	}

	if trade.StopOrderID != "" {
		if err := l.client.CancelOrder(ctx, symbol, trade.StopOrderID); err != nil {
			l.log.Errorw("failed to cancel existing stop order before raising stop", "trade_id", trade.ID, "stop_order_id", trade.StopOrderID, "error", err)
		}
		trade.StopOrderID = ""
	}

	stopSide := exchange.OrderSideSell
	if trade.Side == models.SideSell {
		stopSide = exchange.OrderSideBuy
	}
	stopResult, err := l.client.CreateStopLossOrder(ctx, symbol, stopSide, trade.Quantity, newStop)
	if err != nil {
		l.log.Errorw("failed to recreate stop order at new level", "trade_id", trade.ID, "new_stop", newStop, "error", err)
	} else {
		trade.StopOrderID = stopResult.ExchangeOrderID
	}

	trade.StopLoss = newStop
	trade.UpdatedAt = time.Now()
	if err := l.store.UpdateTrade(ctx, *trade); err != nil {
		return err
	}
	l.log.Infow("trailing stop raised", "trade_id", trade.ID, "new_stop", newStop, "profit_pct", profitPct)
	if l.bcast != nil {
		l.bcast.StopAdjusted(*trade)
	}
	return nil
}

func stopFromLevel(entry money.Decimal, stopPct float64, side models.Side) money.Decimal {
	factor := money.FromFloat(1 + stopPct)
	if side == models.SideSell {
		factor = money.FromFloat(1 - stopPct)
	}
	return entry.Mul(factor)
}

// isStrictlyBetter reports whether candidate is a tighter (more
// favorable) stop than current for the trade's side: higher for BUY,
// lower for SELL. A zero current stop is always improved upon.
func isStrictlyBetter(current, candidate money.Decimal, side models.Side) bool {
	if current.IsZero() {
		return true
	}
	if side == models.SideBuy {
		return candidate.GreaterThan(current)
	}
	return candidate.LessThan(current)
}

// applyTakeProfits places a market partial close for every configured
// level the trade has cleared and not yet consumed.
func (l *Loop) applyTakeProfits(ctx context.Context, trade *models.Trade, symbol string, profitPct float64) error {
	for idx, lvl := range l.takeProfitLevels {
		if profitPct < lvl.LevelPct || trade.TakeProfitConsumed(idx) {
			continue
		}
		if err := l.executeTakeProfit(ctx, trade, symbol, idx, lvl); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) executeTakeProfit(ctx context.Context, trade *models.Trade, symbol string, idx int, lvl config.TakeProfitLevel) error {
	closeQty := trade.Quantity.Mul(money.FromFloat(lvl.SizePct))
	if closeQty.IsZero() {
		trade.MarkTakeProfitConsumed(idx)
		return nil
	}

	exitSide := exchange.OrderSideSell
	if trade.Side == models.SideSell {
		exitSide = exchange.OrderSideBuy
	}
	result, err := l.client.CreateMarketOrder(ctx, symbol, exitSide, closeQty)
	if err != nil {
		return fmt.Errorf("take profit order: %w", err)
	}

	trade.Fees = trade.Fees.Add(result.Fees)
	realized := trade.CalculatePnL(result.AveragePrice).Mul(closeQty).Div(trade.Quantity)
	trade.PnL = trade.PnL.Add(realized)
	trade.PnLPercent = trade.CalculatePnLPercent(result.AveragePrice)
	trade.Quantity = trade.Quantity.Sub(result.FilledQuantity)
	trade.MarkTakeProfitConsumed(idx)
	trade.UpdatedAt = time.Now()

	if trade.Quantity.IsZero() || trade.Quantity.IsNegative() {
		now := time.Now()
		trade.Status = models.TradeStatusClosed
		trade.ExitTime = &now
		trade.ExitPrice = result.AveragePrice
		trade.ExitReason = "TAKE_PROFIT"
		trade.PnLPercent = trade.CalculatePnLPercent(result.AveragePrice)
		if trade.StopOrderID != "" {
			if err := l.client.CancelOrder(ctx, symbol, trade.StopOrderID); err != nil {
				l.log.Errorw("failed to cancel resting stop order after full take-profit close", "trade_id", trade.ID, "error", err)
			}
			trade.StopOrderID = ""
		}
	}

	l.log.Infow("take profit executed", "trade_id", trade.ID, "level", idx, "closed_qty", closeQty)
	if err := l.store.UpdateTrade(ctx, *trade); err != nil {
		return err
	}
	if l.bcast != nil {
		l.bcast.TakeProfitExecuted(*trade, idx)
		if trade.Status == models.TradeStatusClosed {
			l.bcast.TradeClosed(*trade)
		}
	}
	return nil
}

// checkStopTrigger is the last-resort local check: if price has
// crossed the stored stop (the exchange-side stop order may have
// failed to fire), force a market close.
func (l *Loop) checkStopTrigger(ctx context.Context, trade *models.Trade, symbol string, currentPrice money.Decimal) error {
	if trade.StopLoss.IsZero() {
		return nil
	}
	crossed := false
	if trade.Side == models.SideBuy && currentPrice.LessThanOrEqual(trade.StopLoss) {
		crossed = true
	}
	if trade.Side == models.SideSell && currentPrice.GreaterThanOrEqual(trade.StopLoss) {
		crossed = true
	}
	if !crossed {
		return nil
	}

	exitSide := exchange.OrderSideSell
	if trade.Side == models.SideSell {
		exitSide = exchange.OrderSideBuy
	}
	result, err := l.client.CreateMarketOrder(ctx, symbol, exitSide, trade.Quantity)
	if err != nil {
		return fmt.Errorf("stop-loss close order: %w", err)
	}

	now := time.Now()
	trade.Fees = trade.Fees.Add(result.Fees)
	trade.Status = models.TradeStatusClosed
	trade.ExitTime = &now
	trade.ExitPrice = result.AveragePrice
	trade.ExitReason = "STOP_LOSS"
	trade.PnL = trade.CalculatePnL(result.AveragePrice)
	trade.PnLPercent = trade.CalculatePnLPercent(result.AveragePrice)
	trade.UpdatedAt = now

	if trade.StopOrderID != "" {
		if err := l.client.CancelOrder(ctx, symbol, trade.StopOrderID); err != nil {
			l.log.Errorw("failed to cancel resting stop order after local stop trigger", "trade_id", trade.ID, "error", err)
		}
		trade.StopOrderID = ""
	}

	l.log.Warnw("local stop-loss trigger fired", "trade_id", trade.ID, "stop", trade.StopLoss, "price", currentPrice)
	if err := l.store.UpdateTrade(ctx, *trade); err != nil {
		return err
	}
	if l.bcast != nil {
		l.bcast.TradeClosed(*trade)
	}
	return nil
}

// symbolFor maps a trade's asset id to its exchange symbol via the
// configured resolver.
func (l *Loop) symbolFor(ctx context.Context, trade models.Trade) (string, error) {
	if l.resolver == nil {
		return trade.AssetID, nil
	}
	return l.resolver.ResolveSymbol(ctx, trade.AssetID)
}

// SymbolResolver maps an asset id back to its exchange symbol.
type SymbolResolver interface {
	ResolveSymbol(ctx context.Context, assetID string) (string, error)
}

// EmergencyStopAll closes every OPEN trade at market, halts new entries
// through the trader, and reports a combined error for any symbols that
// failed to close — a partial failure must not abort the rest.
func (l *Loop) EmergencyStopAll(ctx context.Context, reason string) error {
	l.trader.EmergencyStop()
	if l.bcast != nil {
		l.bcast.Emergency(reason)
	}

	trades, err := l.store.ListOpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("list open trades: %w", err)
	}

	var combined error
	for _, trade := range trades {
		symbol, err := l.symbolFor(ctx, trade)
		if err != nil {
			combined = multierr.Append(combined, fmt.Errorf("trade %s: resolve symbol: %w", trade.ID, err))
			continue
		}
		if err := l.closeAtMarket(ctx, trade, symbol); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("trade %s (%s): %w", trade.ID, symbol, err))
		}
	}
	return combined
}

func (l *Loop) closeAtMarket(ctx context.Context, trade models.Trade, symbol string) error {
	exitSide := exchange.OrderSideSell
	if trade.Side == models.SideSell {
		exitSide = exchange.OrderSideBuy
	}
	result, err := l.client.CreateMarketOrder(ctx, symbol, exitSide, trade.Quantity)
	if err != nil {
		return err
	}

	now := time.Now()
	trade.Fees = trade.Fees.Add(result.Fees)
	trade.Status = models.TradeStatusClosed
	trade.ExitTime = &now
	trade.ExitPrice = result.AveragePrice
	trade.ExitReason = "EMERGENCY_STOP"
	trade.PnL = trade.CalculatePnL(result.AveragePrice)
	trade.PnLPercent = trade.CalculatePnLPercent(result.AveragePrice)
	trade.UpdatedAt = now

	if trade.StopOrderID != "" {
		if err := l.client.CancelOrder(ctx, symbol, trade.StopOrderID); err != nil {
			l.log.Errorw("failed to cancel resting stop order during emergency close", "trade_id", trade.ID, "error", err)
		}
		trade.StopOrderID = ""
	}

	if err := l.store.UpdateTrade(ctx, trade); err != nil {
		return err
	}
	if l.bcast != nil {
		l.bcast.TradeClosed(trade)
	}
	return nil
}
