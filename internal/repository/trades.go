package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"spotscan/internal/models"
)

// HasOpenTrade satisfies internal/trading's one-position-per-asset check.
func (r *Repository) HasOpenTrade(ctx context.Context, assetID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM trades WHERE asset_id = $1 AND status = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, assetID, models.TradeStatusOpen).Scan(&exists); err != nil {
		return false, fmt.Errorf("check open trade for asset %s: %w", assetID, err)
	}
	return exists, nil
}

// CountOpenTrades satisfies internal/trading's concurrent-trades limit.
func (r *Repository) CountOpenTrades(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM trades WHERE status = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, models.TradeStatusOpen).Scan(&count); err != nil {
		return 0, fmt.Errorf("count open trades: %w", err)
	}
	return count, nil
}

// CreateTrade inserts the PENDING trade row the engine persists before
// it touches the exchange.
func (r *Repository) CreateTrade(ctx context.Context, t models.Trade) error {
	query := `
		INSERT INTO trades (id, asset_id, side, entry_price, quantity, stop_loss, stop_order_id, take_profit_levels_consumed,
			status, entry_reason, entry_time, exit_time, exit_price, exit_reason, pnl, pnl_percentage, fees,
			high_water_mark, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.AssetID, t.Side, t.EntryPrice, t.Quantity, t.StopLoss, t.StopOrderID, t.TakeProfitLevelsConsumed,
		t.Status, t.EntryReason, t.EntryTime, t.ExitTime, t.ExitPrice, t.ExitReason, t.PnL, t.PnLPercent, t.Fees,
		t.HighWaterMark, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create trade %s: %w", t.ID, err)
	}
	return nil
}

// UpdateTrade rewrites the full row — used for every state transition
// (PENDING->OPEN, trailing-stop adjustment, take-profit partial close,
// full close) since internal/risk and internal/trading both hold the
// whole struct in memory by the time they call this.
func (r *Repository) UpdateTrade(ctx context.Context, t models.Trade) error {
	query := `
		UPDATE trades SET
			side = $2, entry_price = $3, quantity = $4, stop_loss = $5, stop_order_id = $6, take_profit_levels_consumed = $7,
			status = $8, entry_reason = $9, entry_time = $10, exit_time = $11, exit_price = $12,
			exit_reason = $13, pnl = $14, pnl_percentage = $15, fees = $16, high_water_mark = $17, updated_at = $18
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		t.ID, t.Side, t.EntryPrice, t.Quantity, t.StopLoss, t.StopOrderID, t.TakeProfitLevelsConsumed,
		t.Status, t.EntryReason, t.EntryTime, t.ExitTime, t.ExitPrice, t.ExitReason,
		t.PnL, t.PnLPercent, t.Fees, t.HighWaterMark, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update trade %s: %w", t.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update trade %s: rows affected: %w", t.ID, err)
	}
	if rows == 0 {
		return ErrTradeNotFound
	}
	return nil
}

// ListOpenTrades satisfies internal/risk's read-consistent snapshot at
// the start of each evaluation cycle.
func (r *Repository) ListOpenTrades(ctx context.Context) ([]models.Trade, error) {
	query := `
		SELECT id, asset_id, side, entry_price, quantity, stop_loss, stop_order_id, take_profit_levels_consumed,
			status, entry_reason, entry_time, exit_time, exit_price, exit_reason, pnl, pnl_percentage, fees,
			high_water_mark, created_at, updated_at
		FROM trades
		WHERE status = $1
		ORDER BY entry_time ASC`

	rows, err := r.db.QueryContext(ctx, query, models.TradeStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("list open trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetTradeByID is used by the dashboard's trade-detail handler to show a
// single trade's full history.
func (r *Repository) GetTradeByID(ctx context.Context, id string) (models.Trade, error) {
	query := `
		SELECT id, asset_id, side, entry_price, quantity, stop_loss, stop_order_id, take_profit_levels_consumed,
			status, entry_reason, entry_time, exit_time, exit_price, exit_reason, pnl, pnl_percentage, fees,
			high_water_mark, created_at, updated_at
		FROM trades
		WHERE id = $1`

	t, err := scanTrade(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Trade{}, ErrTradeNotFound
	}
	if err != nil {
		return models.Trade{}, fmt.Errorf("get trade %s: %w", id, err)
	}
	return t, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting
// scanTrade back both GetTradeByID and ListOpenTrades.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (models.Trade, error) {
	var t models.Trade
	var exitPrice decimal.NullDecimal // NULL until the trade closes
	err := row.Scan(
		&t.ID, &t.AssetID, &t.Side, &t.EntryPrice, &t.Quantity, &t.StopLoss, &t.StopOrderID, &t.TakeProfitLevelsConsumed,
		&t.Status, &t.EntryReason, &t.EntryTime, &t.ExitTime, &exitPrice, &t.ExitReason, &t.PnL, &t.PnLPercent, &t.Fees,
		&t.HighWaterMark, &t.CreatedAt, &t.UpdatedAt,
	)
	if exitPrice.Valid {
		t.ExitPrice = exitPrice.Decimal
	}
	return t, err
}
