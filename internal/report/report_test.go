package report

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotscan/internal/exchange"
	"spotscan/internal/money"
)

func seedCandles(client *exchange.FakeClient, symbol string, closes []float64, volumes []float64) {
	for i, c := range closes {
		close, _ := money.FromString(fmt.Sprintf("%f", c))
		vol, _ := money.FromString(fmt.Sprintf("%f", volumes[i]))
		client.Candles[symbol] = append(client.Candles[symbol], exchange.Kline{
			OpenTime: int64(i),
			Open:     close,
			High:     close,
			Low:      close,
			Close:    close,
			Volume:   vol,
		})
	}
}

func TestAnalyze_InsufficientCandlesReturnsError(t *testing.T) {
	client := exchange.NewFakeClient()
	seedCandles(client, "BTC/USDT", make([]float64, 10), make([]float64, 10))

	_, err := Analyze(context.Background(), client, "BTC/USDT", 50)
	require.Error(t, err)
}

func TestAnalyze_ComputesVolumeAndCrossCheck(t *testing.T) {
	client := exchange.NewFakeClient()

	closes := make([]float64, 40)
	volumes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
		volumes[i] = 1000
	}
	volumes[39] = 5000 // spike on the most recent candle
	seedCandles(client, "BTC/USDT", closes, volumes)

	rep, err := Analyze(context.Background(), client, "BTC/USDT", 50)
	require.NoError(t, err)

	assert.Equal(t, "BTC/USDT", rep.Symbol)
	assert.Equal(t, 40, rep.Candles)
	assert.Equal(t, 5000.0, rep.Volume.CurrentVolume)
	assert.Greater(t, rep.Volume.SpikeRatio, 1.0)
	assert.Greater(t, rep.Cross.RSI, 0.0)
	assert.Greater(t, rep.Cross.BollingerUpper, rep.Cross.BollingerLower)
}

func TestVolumeStats_UsesTwentyCandleLookback(t *testing.T) {
	volumes := make([]float64, 30)
	for i := range volumes {
		volumes[i] = 100
	}
	// only the most recent 20 should count toward the average
	for i := 0; i < 10; i++ {
		volumes[i] = 1_000_000
	}

	stats := volumeStats(volumes)
	assert.Equal(t, 100.0, stats.AverageVolume)
	assert.Equal(t, 100.0, stats.CurrentVolume)
}
