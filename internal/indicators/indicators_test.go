package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotscan/internal/money"
)

func decimals(vals ...float64) []money.Decimal {
	out := make([]money.Decimal, len(vals))
	for i, v := range vals {
		out[i] = money.FromFloat(v)
	}
	return out
}

func TestEMA_InsufficientData(t *testing.T) {
	_, err := EMA(decimals(1, 2), 5)
	assert.Error(t, err)
}

func TestEMA_MatchesHandRolledRecursion(t *testing.T) {
	closes := decimals(10, 11, 12, 13, 14, 15, 16, 17, 18, 19)
	got, err := EMA(closes, 3)
	require.NoError(t, err)

	alpha := 2.0 / 4.0
	ema := 10.0
	for _, c := range []float64{11, 12, 13, 14, 15, 16, 17, 18, 19} {
		ema = c*alpha + ema*(1-alpha)
	}
	want := money.Round8(money.FromFloat(ema))
	assert.True(t, got.Sub(want).Abs().LessThan(money.FromFloat(0.0001)), "got %s want %s", got, want)
}

func TestSMA_Basic(t *testing.T) {
	got, err := SMA(decimals(1, 2, 3, 4, 5), 5)
	require.NoError(t, err)
	assert.True(t, got.Equal(money.FromFloat(3)))
}

func TestRSI_AllGains(t *testing.T) {
	closes := decimals(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)
	rsi, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)
}

func TestRSI_FlatSeriesIsZero(t *testing.T) {
	closes := decimals(5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5)
	rsi, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rsi)
}

func TestRSI_BoundedZeroToHundred(t *testing.T) {
	closes := decimals(15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1)
	rsi, err := RSI(closes, 14)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rsi, 0.0)
	assert.LessOrEqual(t, rsi, 100.0)
}

func TestDetectCrossover_Bullish(t *testing.T) {
	c := DetectCrossover(money.FromFloat(9), money.FromFloat(10), money.FromFloat(11), money.FromFloat(10))
	assert.Equal(t, CrossoverBullish, c)
}

func TestDetectCrossover_Bearish(t *testing.T) {
	c := DetectCrossover(money.FromFloat(11), money.FromFloat(10), money.FromFloat(9), money.FromFloat(10))
	assert.Equal(t, CrossoverBearish, c)
}

func TestMADistance_ZeroCenterIsZero(t *testing.T) {
	assert.Equal(t, 0.0, MADistance(money.FromFloat(5), money.Zero))
}

func TestVolumeSpikeRatio(t *testing.T) {
	ratio := VolumeSpikeRatio(money.FromFloat(200), money.FromFloat(100))
	assert.Equal(t, 2.0, ratio)
}
