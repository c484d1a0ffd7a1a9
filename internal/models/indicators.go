package models

import (
	"time"

	"spotscan/internal/money"
)

// Indicators holds the technical indicator snapshot computed for one
// asset/timeframe/timestamp (MM1/Center crossover family, RSI, volume
// SMA).
type Indicators struct {
	AssetID        string        `json:"asset_id" db:"asset_id"`
	Timestamp      time.Time     `json:"timestamp" db:"timestamp"`
	Timeframe      Timeframe     `json:"timeframe" db:"timeframe"`
	MM1            money.Decimal `json:"mm1" db:"mm1"`                 // fast EMA, default period 9
	Center         money.Decimal `json:"center" db:"center"`           // slow EMA, default period 21
	RSI            float64       `json:"rsi" db:"rsi"`                 // 0-100, a score not a money value
	VolumeSMA      money.Decimal `json:"volume_sma" db:"volume_sma"`
	MADistancePct  float64       `json:"ma_distance_pct" db:"ma_distance_pct"`
	VolumeSpikeRatio float64     `json:"volume_spike_ratio" db:"volume_spike_ratio"`
}

// BullishCrossover reports whether MM1 is above Center — the fast EMA
// leading the slow EMA, the bullish leg of the MM1/Center rule.
func (i Indicators) BullishCrossover() bool {
	return i.MM1.GreaterThan(i.Center)
}
