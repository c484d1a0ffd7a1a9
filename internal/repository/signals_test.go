package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"spotscan/internal/models"
)

func TestRepository_RecordSignal(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO signals`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordSignal(context.Background(), models.Signal{
		ID: "sig-1", AssetID: "asset-1", Timestamp: time.Now(), Type: models.SignalBuy,
		Strength: 0.6, RulesTriggered: []string{"R1_MA_CROSSOVER"}, CreatedAt: time.Now(),
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_AttachTradeToSignal(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE signals SET trade_id`).
		WithArgs("t1", "sig-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AttachTradeToSignal(context.Background(), "sig-1", "t1")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
