package repository

import (
	"context"
	"fmt"

	"spotscan/internal/models"
)

// UpsertIndicators persists one computed indicator snapshot, keyed on
// (asset_id, timeframe, timestamp) so a re-scan of the same bar
// overwrites rather than duplicates.
func (r *Repository) UpsertIndicators(ctx context.Context, ind models.Indicators) error {
	query := `
		INSERT INTO indicators (asset_id, timeframe, timestamp, mm1, center, rsi, volume_sma, ma_distance_pct, volume_spike_ratio)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (asset_id, timeframe, timestamp) DO UPDATE SET
			mm1 = EXCLUDED.mm1,
			center = EXCLUDED.center,
			rsi = EXCLUDED.rsi,
			volume_sma = EXCLUDED.volume_sma,
			ma_distance_pct = EXCLUDED.ma_distance_pct,
			volume_spike_ratio = EXCLUDED.volume_spike_ratio`

	_, err := r.db.ExecContext(ctx, query,
		ind.AssetID, ind.Timeframe, ind.Timestamp, ind.MM1, ind.Center, ind.RSI, ind.VolumeSMA, ind.MADistancePct, ind.VolumeSpikeRatio,
	)
	if err != nil {
		return fmt.Errorf("upsert indicators %s/%s: %w", ind.AssetID, ind.Timeframe, err)
	}
	return nil
}

// GetLatestIndicators returns the most recently computed snapshot for
// an asset/timeframe pair.
func (r *Repository) GetLatestIndicators(ctx context.Context, assetID string, timeframe models.Timeframe) (models.Indicators, error) {
	query := `
		SELECT asset_id, timeframe, timestamp, mm1, center, rsi, volume_sma, ma_distance_pct, volume_spike_ratio
		FROM indicators
		WHERE asset_id = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT 1`

	var ind models.Indicators
	err := r.db.QueryRowContext(ctx, query, assetID, timeframe).Scan(
		&ind.AssetID, &ind.Timeframe, &ind.Timestamp, &ind.MM1, &ind.Center, &ind.RSI, &ind.VolumeSMA, &ind.MADistancePct, &ind.VolumeSpikeRatio,
	)
	if err != nil {
		return models.Indicators{}, fmt.Errorf("get latest indicators %s/%s: %w", assetID, timeframe, err)
	}
	return ind, nil
}
