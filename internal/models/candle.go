package models

import (
	"time"

	"spotscan/internal/money"
)

// Timeframe is one of the supported candle granularities.
type Timeframe string

const (
	Timeframe1h Timeframe = "1h"
	Timeframe2h Timeframe = "2h"
	Timeframe4h Timeframe = "4h"
	Timeframe1d Timeframe = "1d"
)

// Candle is a single OHLCV bar, stored and compared with decimal
// precision end-to-end.
type Candle struct {
	AssetID   string        `json:"asset_id" db:"asset_id"`
	Timestamp time.Time     `json:"timestamp" db:"timestamp"`
	Timeframe Timeframe     `json:"timeframe" db:"timeframe"`
	Open      money.Decimal `json:"open" db:"open"`
	High      money.Decimal `json:"high" db:"high"`
	Low       money.Decimal `json:"low" db:"low"`
	Close     money.Decimal `json:"close" db:"close"`
	Volume    money.Decimal `json:"volume" db:"volume"`
}
