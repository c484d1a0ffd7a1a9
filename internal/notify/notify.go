// Package notify posts trade lifecycle and emergency events to an
// operator's Telegram chat. It is a second, independent subscriber of
// the same events internal/wsbus pushes to the dashboard — disabled
// entirely (every call becomes a no-op) when no bot token is configured.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"spotscan/internal/models"
)

// Notifier sends formatted trade/emergency alerts to one Telegram chat.
// A nil bot (no token configured) makes every method a silent no-op.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.SugaredLogger
}

// New builds a Notifier. An empty token disables notifications without
// being a startup error, since Telegram is an optional operator
// convenience, not a core dependency.
func New(token string, chatID int64, log *zap.SugaredLogger) (*Notifier, error) {
	if token == "" {
		log.Infow("telegram notifications disabled: no bot token configured")
		return &Notifier{log: log}, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	log.Infow("telegram notifications enabled", "bot_username", bot.Self.UserName)

	return &Notifier{bot: bot, chatID: chatID, log: log}, nil
}

func (n *Notifier) send(msg string) {
	if n == nil || n.bot == nil || n.chatID == 0 {
		return
	}
	go func() {
		cfg := tgbotapi.NewMessage(n.chatID, msg)
		cfg.ParseMode = "Markdown"
		if _, err := n.bot.Send(cfg); err != nil {
			n.log.Warnw("telegram send failed", "error", err)
		}
	}()
}

// TradeOpened notifies that a new position was entered.
func (n *Notifier) TradeOpened(trade models.Trade) {
	n.send(fmt.Sprintf("🟢 *Trade opened*\nAsset: `%s`\nSide: %s\nEntry: %s\nQty: %s",
		trade.AssetID, trade.Side, trade.EntryPrice.String(), trade.Quantity.String()))
}

// TradeCancelled notifies that an attempted entry failed to execute.
func (n *Notifier) TradeCancelled(trade models.Trade) {
	n.send(fmt.Sprintf("⚪ *Trade cancelled*\nAsset: `%s`\nSide: %s", trade.AssetID, trade.Side))
}

// TradeClosed notifies that a position was fully closed.
func (n *Notifier) TradeClosed(trade models.Trade) {
	n.send(fmt.Sprintf("🔴 *Trade closed*\nAsset: `%s`\nSide: %s\nExit: %s\nPnL: %s (%.2f%%)",
		trade.AssetID, trade.Side, trade.ExitPrice.String(), trade.PnL.String(), trade.PnLPercent))
}

// StopAdjusted notifies that a trailing stop was raised.
func (n *Notifier) StopAdjusted(trade models.Trade) {
	n.send(fmt.Sprintf("🔧 *Stop adjusted*\nAsset: `%s`\nNew stop: %s", trade.AssetID, trade.StopLoss.String()))
}

// TakeProfitExecuted notifies that a partial take-profit fired.
func (n *Notifier) TakeProfitExecuted(trade models.Trade, level int) {
	n.send(fmt.Sprintf("💰 *Take-profit %d hit*\nAsset: `%s`\nRemaining qty: %s", level+1, trade.AssetID, trade.Quantity.String()))
}

// ScannerStatus is a no-op: cycle summaries are too frequent for a chat
// notification and stay on the dashboard feed only.
func (n *Notifier) ScannerStatus(mode string, symbolsScanned int) {}

// Emergency notifies that an emergency stop was engaged.
func (n *Notifier) Emergency(reason string) {
	n.send(fmt.Sprintf("🛑 *EMERGENCY STOP*\nReason: %s", reason))
}
