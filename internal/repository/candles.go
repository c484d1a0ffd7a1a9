package repository

import (
	"context"
	"fmt"

	"spotscan/internal/models"
)

// BulkUpsertCandles writes a batch of OHLCV bars inside one transaction,
// deduplicating on (asset_id, timeframe, timestamp) so a re-fetched
// overlapping window just refreshes the open/high/low/close/volume fields
// instead of erroring. One statement is prepared for the batch and
// executed once per row.
func (r *Repository) BulkUpsertCandles(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin candle batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (asset_id, timeframe, timestamp, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (asset_id, timeframe, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`)
	if err != nil {
		return fmt.Errorf("prepare candle upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.AssetID, c.Timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("upsert candle %s/%s@%s: %w", c.AssetID, c.Timeframe, c.Timestamp, err)
		}
	}

	return tx.Commit()
}

// GetCandles returns the most recent limit bars for an asset/timeframe,
// oldest first, matching the window shape internal/indicators expects.
func (r *Repository) GetCandles(ctx context.Context, assetID string, timeframe models.Timeframe, limit int) ([]models.Candle, error) {
	query := `
		SELECT asset_id, timeframe, timestamp, open, high, low, close, volume
		FROM (
			SELECT asset_id, timeframe, timestamp, open, high, low, close, volume
			FROM candles
			WHERE asset_id = $1 AND timeframe = $2
			ORDER BY timestamp DESC
			LIMIT $3
		) recent
		ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, assetID, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("get candles %s/%s: %w", assetID, timeframe, err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.AssetID, &c.Timeframe, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}
