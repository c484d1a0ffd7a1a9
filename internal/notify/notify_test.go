package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotscan/internal/models"
	"spotscan/internal/money"
	"spotscan/pkg/utils"
)

func TestNew_EmptyTokenDisablesWithoutError(t *testing.T) {
	n, err := New("", 12345, utils.NewNop())
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Nil(t, n.bot)
}

func TestNotifier_DisabledMethodsAreNoOps(t *testing.T) {
	n, err := New("", 0, utils.NewNop())
	require.NoError(t, err)

	price := money.FromFloat(100)
	trade := models.Trade{
		ID:         "t1",
		AssetID:    "BTC/USDT",
		EntryPrice: price,
		Quantity:   price,
		StopLoss:   price,
		ExitPrice:  price,
		PnL:        price,
		PnLPercent: 4.2,
	}

	assert.NotPanics(t, func() {
		n.TradeOpened(trade)
		n.TradeCancelled(trade)
		n.TradeClosed(trade)
		n.StopAdjusted(trade)
		n.TakeProfitExecuted(trade, 0)
		n.ScannerStatus("full", 120)
		n.Emergency("manual test")
	})
}

func TestNotifier_NilReceiverIsSafe(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() {
		n.send("unreachable")
	})
}
