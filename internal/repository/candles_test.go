package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"spotscan/internal/models"
	"spotscan/internal/money"
)

func TestRepository_BulkUpsertCandles_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)

	err := repo.BulkUpsertCandles(context.Background(), nil)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_BulkUpsertCandles(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO candles`)
	mock.ExpectExec(`INSERT INTO candles`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO candles`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now()
	candles := []models.Candle{
		{AssetID: "asset-1", Timeframe: models.Timeframe2h, Timestamp: now, Open: money.FromFloat(1), High: money.FromFloat(2), Low: money.FromFloat(1), Close: money.FromFloat(1.5), Volume: money.FromFloat(10)},
		{AssetID: "asset-1", Timeframe: models.Timeframe2h, Timestamp: now.Add(2 * time.Hour), Open: money.FromFloat(1.5), High: money.FromFloat(2.5), Low: money.FromFloat(1.4), Close: money.FromFloat(2), Volume: money.FromFloat(12)},
	}

	err := repo.BulkUpsertCandles(context.Background(), candles)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
