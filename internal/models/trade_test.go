package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotscan/internal/money"
)

func TestTrade_TransitionHappyPath(t *testing.T) {
	tr := Trade{Status: TradeStatusPending}
	require.NoError(t, tr.TransitionTo(TradeStatusOpen))
	assert.Equal(t, TradeStatusOpen, tr.Status)
	require.NoError(t, tr.TransitionTo(TradeStatusClosed))
	assert.Equal(t, TradeStatusClosed, tr.Status)
}

func TestTrade_CannotReopenClosed(t *testing.T) {
	tr := Trade{Status: TradeStatusClosed}
	err := tr.TransitionTo(TradeStatusOpen)
	assert.Error(t, err)
}

func TestTrade_CannotCancelClosed(t *testing.T) {
	tr := Trade{Status: TradeStatusClosed}
	err := tr.TransitionTo(TradeStatusCancelled)
	assert.Error(t, err)
}

func TestTrade_CalculatePnL_Buy(t *testing.T) {
	entry, _ := money.FromString("100")
	qty, _ := money.FromString("2")
	cur, _ := money.FromString("110")
	tr := Trade{Side: SideBuy, Status: TradeStatusOpen, EntryPrice: entry, Quantity: qty}

	pnl := tr.CalculatePnL(cur)
	want, _ := money.FromString("20")
	assert.True(t, pnl.Equal(want), "got %s want %s", pnl, want)
}

func TestTrade_CalculatePnL_Sell(t *testing.T) {
	entry, _ := money.FromString("100")
	qty, _ := money.FromString("2")
	cur, _ := money.FromString("110")
	tr := Trade{Side: SideSell, Status: TradeStatusOpen, EntryPrice: entry, Quantity: qty}

	pnl := tr.CalculatePnL(cur)
	want, _ := money.FromString("-20")
	assert.True(t, pnl.Equal(want), "got %s want %s", pnl, want)
}

func TestTrade_CalculatePnL_SubtractsFees(t *testing.T) {
	entry, _ := money.FromString("100")
	qty, _ := money.FromString("2")
	cur, _ := money.FromString("110")
	fees, _ := money.FromString("1.5")
	tr := Trade{Side: SideBuy, Status: TradeStatusOpen, EntryPrice: entry, Quantity: qty, Fees: fees}

	pnl := tr.CalculatePnL(cur)
	want, _ := money.FromString("18.5") // (110-100)*2 - 1.5
	assert.True(t, pnl.Equal(want), "got %s want %s", pnl, want)
}

func TestTrade_CalculatePnLPercent(t *testing.T) {
	entry, _ := money.FromString("100")
	qty, _ := money.FromString("2")
	cur, _ := money.FromString("110")
	tr := Trade{Side: SideBuy, Status: TradeStatusOpen, EntryPrice: entry, Quantity: qty}

	pct := tr.CalculatePnLPercent(cur)
	assert.InDelta(t, 10.0, pct, 0.0001) // 20 pnl / 200 entry value * 100
}

func TestTrade_TakeProfitBitmapIndependentPerLevel(t *testing.T) {
	tr := Trade{}
	tr.MarkTakeProfitConsumed(0)
	assert.True(t, tr.TakeProfitConsumed(0))
	assert.False(t, tr.TakeProfitConsumed(1))
	tr.MarkTakeProfitConsumed(1)
	assert.True(t, tr.TakeProfitConsumed(1))
}
