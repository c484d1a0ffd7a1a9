package models

import (
	"fmt"
	"time"

	"spotscan/internal/money"
)

// TradeStatus is the trade finite-state machine's current state.
// Transitions: PENDING -> OPEN -> CLOSED, or PENDING/OPEN -> CANCELLED.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "PENDING"
	TradeStatusOpen      TradeStatus = "OPEN"
	TradeStatusClosed    TradeStatus = "CLOSED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
)

// Side is the trade's direction: BUY (long) or SELL (short).
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// allowedTransitions enumerates the legal TradeStatus edges; anything
// not listed here is rejected by Trade.TransitionTo.
var allowedTransitions = map[TradeStatus][]TradeStatus{
	TradeStatusPending: {TradeStatusOpen, TradeStatusCancelled},
	TradeStatusOpen:    {TradeStatusClosed, TradeStatusCancelled},
}

// Trade is a position opened against one asset, tracked through its
// full lifecycle including trailing-stop/take-profit state.
type Trade struct {
	ID         string      `json:"id" db:"id"`
	AssetID    string      `json:"asset_id" db:"asset_id"`
	Side       Side        `json:"side" db:"side"`
	EntryPrice money.Decimal `json:"entry_price" db:"entry_price"`
	Quantity   money.Decimal `json:"quantity" db:"quantity"`
	StopLoss   money.Decimal `json:"stop_loss" db:"stop_loss"`
	StopOrderID string       `json:"stop_order_id,omitempty" db:"stop_order_id"` // resting exchange stop order; empty if none placed or it was cancelled
	TakeProfitLevelsConsumed uint8 `json:"take_profit_levels_consumed" db:"take_profit_levels_consumed"` // bitmap, one bit per configured TP level
	Status       TradeStatus `json:"status" db:"status"`
	EntryReason  string      `json:"entry_reason" db:"entry_reason"`
	EntryTime    time.Time   `json:"entry_time" db:"entry_time"`
	ExitTime     *time.Time  `json:"exit_time,omitempty" db:"exit_time"`
	ExitPrice    money.Decimal `json:"exit_price,omitempty" db:"exit_price"`
	ExitReason   string        `json:"exit_reason,omitempty" db:"exit_reason"`
	PnL          money.Decimal `json:"pnl,omitempty" db:"pnl"`
	PnLPercent   float64       `json:"pnl_percentage,omitempty" db:"pnl_percentage"`
	Fees         money.Decimal `json:"fees,omitempty" db:"fees"`
	HighWaterMark money.Decimal `json:"high_water_mark" db:"high_water_mark"` // set to the fill price at entry; not updated afterwards
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// CanTransitionTo reports whether moving to next is a legal FSM edge.
func (t Trade) CanTransitionTo(next TradeStatus) bool {
	for _, s := range allowedTransitions[t.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the trade to next, rejecting illegal edges so a
// CLOSED or CANCELLED trade can never be reopened.
func (t *Trade) TransitionTo(next TradeStatus) error {
	if !t.CanTransitionTo(next) {
		return fmt.Errorf("illegal trade transition %s -> %s", t.Status, next)
	}
	t.Status = next
	return nil
}

// CalculatePnL computes unrealized P&L against currentPrice for an
// OPEN trade, or realized P&L from ExitPrice for a CLOSED one, net of
// the trade's accumulated Fees: (exit-entry)*qty - fees for BUY,
// mirrored for SELL.
func (t Trade) CalculatePnL(currentPrice money.Decimal) money.Decimal {
	var diff money.Decimal
	switch {
	case t.Status == TradeStatusClosed && !t.ExitPrice.IsZero():
		diff = t.ExitPrice.Sub(t.EntryPrice)
	default:
		diff = currentPrice.Sub(t.EntryPrice)
	}
	if t.Side == SideSell {
		diff = diff.Neg()
	}
	return diff.Mul(t.Quantity).Sub(t.Fees)
}

// CalculatePnLPercent expresses CalculatePnL(currentPrice) as a percent
// of the position's entry value (entry price * quantity).
func (t Trade) CalculatePnLPercent(currentPrice money.Decimal) float64 {
	entryValue := t.EntryPrice.Mul(t.Quantity)
	if entryValue.IsZero() {
		return 0
	}
	pct, _ := t.CalculatePnL(currentPrice).Div(entryValue).Mul(money.FromFloat(100)).Float64()
	return pct
}

// TakeProfitConsumed reports whether TP level index idx (0-based) has
// already fired for this trade.
func (t Trade) TakeProfitConsumed(idx int) bool {
	if idx < 0 || idx > 7 {
		return false
	}
	return t.TakeProfitLevelsConsumed&(1<<uint(idx)) != 0
}

// MarkTakeProfitConsumed sets the bit for TP level idx.
func (t *Trade) MarkTakeProfitConsumed(idx int) {
	if idx < 0 || idx > 7 {
		return
	}
	t.TakeProfitLevelsConsumed |= 1 << uint(idx)
}
