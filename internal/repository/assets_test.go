package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotscan/internal/models"
	"spotscan/internal/money"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestRepository_UpsertAsset(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO assets`).
		WithArgs("BTC/USDT", "BTC", "USDT", true, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("asset-1", now, now))

	_, err := repo.UpsertAsset(context.Background(), models.Asset{
		Symbol: "BTC/USDT", BaseCurrency: "BTC", QuoteCurrency: "USDT", IsValid: true,
		MinOrderSize: money.FromFloat(10),
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetAssetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT id, symbol`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "symbol", "base_currency", "quote_currency", "is_valid", "min_order_size", "last_validation", "created_at", "updated_at"}))

	_, err := repo.GetAssetByID(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrAssetNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ResolveAssetID(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "symbol", "base_currency", "quote_currency", "is_valid", "min_order_size", "last_validation", "created_at", "updated_at"}).
		AddRow("asset-1", "BTC/USDT", "BTC", "USDT", true, "10", nil, now, now)
	mock.ExpectQuery(`SELECT id, symbol`).WithArgs("BTC/USDT").WillReturnRows(rows)

	id, err := repo.ResolveAssetID(context.Background(), "BTC/USDT")

	require.NoError(t, err)
	assert.Equal(t, "asset-1", id)
}
