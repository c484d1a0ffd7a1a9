package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"spotscan/internal/models"
)

// RecordSignal persists a scored signal. It implements internal/scanner's
// Recorder interface; the scanner only calls this once a signal clears
// the configured persistence threshold, so every row here was judged
// worth keeping.
func (r *Repository) RecordSignal(ctx context.Context, sig models.Signal) error {
	query := `
		INSERT INTO signals (id, asset_id, trade_id, timestamp, signal_type, strength, rules_triggered, indicators_snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		sig.ID, sig.AssetID, sig.TradeID, sig.Timestamp, sig.Type, sig.Strength,
		pq.Array(sig.RulesTriggered), sig.IndicatorsSnapshot, sig.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record signal %s: %w", sig.ID, err)
	}
	return nil
}

// AttachTradeToSignal backfills trade_id once a signal goes on to open a
// trade, closing the signal -> trade audit trail.
func (r *Repository) AttachTradeToSignal(ctx context.Context, signalID, tradeID string) error {
	query := `UPDATE signals SET trade_id = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, tradeID, signalID)
	if err != nil {
		return fmt.Errorf("attach trade %s to signal %s: %w", tradeID, signalID, err)
	}
	return nil
}

// ListRecentSignals returns the newest limit signals, for the dashboard.
func (r *Repository) ListRecentSignals(ctx context.Context, limit int) ([]models.Signal, error) {
	query := `
		SELECT id, asset_id, trade_id, timestamp, signal_type, strength, rules_triggered, indicators_snapshot, created_at
		FROM signals
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		var sig models.Signal
		if err := rows.Scan(&sig.ID, &sig.AssetID, &sig.TradeID, &sig.Timestamp, &sig.Type, &sig.Strength, pq.Array(&sig.RulesTriggered), &sig.IndicatorsSnapshot, &sig.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}
