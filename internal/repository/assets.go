package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spotscan/internal/models"
)

// UpsertAsset inserts a new tradable asset or refreshes an existing
// one's validation fields, keyed on the unique symbol.
func (r *Repository) UpsertAsset(ctx context.Context, a models.Asset) (models.Asset, error) {
	query := `
		INSERT INTO assets (symbol, base_currency, quote_currency, is_valid, min_order_size, last_validation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			is_valid = EXCLUDED.is_valid,
			min_order_size = EXCLUDED.min_order_size,
			last_validation = EXCLUDED.last_validation,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		a.Symbol, a.BaseCurrency, a.QuoteCurrency, a.IsValid, a.MinOrderSize, a.LastValidation, now,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return models.Asset{}, fmt.Errorf("upsert asset %s: %w", a.Symbol, err)
	}
	return a, nil
}

// GetAssetByID satisfies trading.Store and risk's asset lookups.
func (r *Repository) GetAssetByID(ctx context.Context, id string) (models.Asset, error) {
	query := `
		SELECT id, symbol, base_currency, quote_currency, is_valid, min_order_size, last_validation, created_at, updated_at
		FROM assets
		WHERE id = $1`

	var a models.Asset
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Symbol, &a.BaseCurrency, &a.QuoteCurrency, &a.IsValid, &a.MinOrderSize, &a.LastValidation, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Asset{}, ErrAssetNotFound
	}
	if err != nil {
		return models.Asset{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	return a, nil
}

// GetAssetBySymbol is the inverse lookup used to seed ResolveAssetID.
func (r *Repository) GetAssetBySymbol(ctx context.Context, symbol string) (models.Asset, error) {
	query := `
		SELECT id, symbol, base_currency, quote_currency, is_valid, min_order_size, last_validation, created_at, updated_at
		FROM assets
		WHERE symbol = $1`

	var a models.Asset
	err := r.db.QueryRowContext(ctx, query, symbol).Scan(
		&a.ID, &a.Symbol, &a.BaseCurrency, &a.QuoteCurrency, &a.IsValid, &a.MinOrderSize, &a.LastValidation, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Asset{}, ErrAssetNotFound
	}
	if err != nil {
		return models.Asset{}, fmt.Errorf("get asset %s: %w", symbol, err)
	}
	return a, nil
}

// ResolveAssetID implements internal/scanner's AssetResolver: it maps an
// exchange symbol to the asset row's ID so a freshly-computed signal can
// be persisted against it.
func (r *Repository) ResolveAssetID(ctx context.Context, symbol string) (string, error) {
	a, err := r.GetAssetBySymbol(ctx, symbol)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

// ResolveSymbol implements internal/risk's SymbolResolver: the inverse
// of ResolveAssetID, needed because the risk loop only carries a
// trade's asset ID and must hit the exchange by symbol.
func (r *Repository) ResolveSymbol(ctx context.Context, assetID string) (string, error) {
	a, err := r.GetAssetByID(ctx, assetID)
	if err != nil {
		return "", err
	}
	return a.Symbol, nil
}

// ListValidAssets returns every asset currently flagged tradable.
func (r *Repository) ListValidAssets(ctx context.Context) ([]models.Asset, error) {
	query := `
		SELECT id, symbol, base_currency, quote_currency, is_valid, min_order_size, last_validation, created_at, updated_at
		FROM assets
		WHERE is_valid = true
		ORDER BY symbol`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list valid assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.BaseCurrency, &a.QuoteCurrency, &a.IsValid, &a.MinOrderSize, &a.LastValidation, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
