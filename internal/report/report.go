// Package report builds the read-only "analyze <symbol>" diagnostic
// panel: a go-talib cross-check (RSI, Bollinger Bands, MACD) computed
// on the side of the decimal indicator pipeline in internal/indicators,
// alongside a volume-statistics summary. Nothing here feeds a trading
// decision; it exists purely for an operator to sanity-check a symbol
// by hand.
package report

import (
	"context"
	"fmt"
	"sort"

	talib "github.com/markcheno/go-talib"

	"spotscan/internal/exchange"
)

// VolumeStats summarizes recent volume behavior for one symbol.
type VolumeStats struct {
	CurrentVolume float64
	AverageVolume float64
	MaxVolume     float64
	MinVolume     float64
	SpikeRatio    float64
}

// CrossCheck carries the go-talib-derived values, computed independently
// of the core decimal indicator path for a second opinion.
type CrossCheck struct {
	RSI            float64
	BollingerUpper float64
	BollingerMid   float64
	BollingerLower float64
	MACD           float64
	MACDSignal     float64
	MACDHist       float64
}

// Report is the full analyze <symbol> output.
type Report struct {
	Symbol  string
	Candles int
	Volume  VolumeStats
	Cross   CrossCheck
}

// Analyze fetches recent 1h candles for symbol and computes the
// volume/cross-check report.
func Analyze(ctx context.Context, client exchange.Client, symbol string, lookback int) (*Report, error) {
	klines, err := client.FetchCandles(ctx, symbol, "1h", lookback)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	if len(klines) < 20 {
		return nil, fmt.Errorf("insufficient candles for %s: got %d, need >= 20", symbol, len(klines))
	}

	closes := make([]float64, len(klines))
	volumes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close.InexactFloat64()
		volumes[i] = k.Volume.InexactFloat64()
	}

	return &Report{
		Symbol:  symbol,
		Candles: len(klines),
		Volume:  volumeStats(volumes),
		Cross:   crossCheck(closes),
	}, nil
}

func volumeStats(volumes []float64) VolumeStats {
	lookback := 20
	if len(volumes) < lookback {
		lookback = len(volumes)
	}
	recent := append([]float64(nil), volumes[len(volumes)-lookback:]...)

	sorted := append([]float64(nil), recent...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range recent {
		sum += v
	}
	avg := sum / float64(len(recent))
	current := volumes[len(volumes)-1]

	ratio := 0.0
	if avg > 0 {
		ratio = current / avg
	}

	return VolumeStats{
		CurrentVolume: current,
		AverageVolume: avg,
		MaxVolume:     sorted[len(sorted)-1],
		MinVolume:     sorted[0],
		SpikeRatio:    ratio,
	}
}

func crossCheck(closes []float64) CrossCheck {
	var cc CrossCheck

	rsi := talib.Rsi(closes, 14)
	if n := len(rsi); n > 0 && !isNaN(rsi[n-1]) {
		cc.RSI = rsi[n-1]
	}

	upper, mid, lower := talib.BBands(closes, 20, 2, 2, 0)
	if n := len(upper); n > 0 {
		cc.BollingerUpper = upper[n-1]
		cc.BollingerMid = mid[n-1]
		cc.BollingerLower = lower[n-1]
	}

	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	if n := len(macd); n > 0 {
		cc.MACD = macd[n-1]
		cc.MACDSignal = signal[n-1]
		cc.MACDHist = hist[n-1]
	}

	return cc
}

func isNaN(f float64) bool {
	return f != f
}
