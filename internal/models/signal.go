package models

import "time"

// SignalType направление сигнала.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// Signal is a scored, rule-tagged trading signal produced by the
// scanner's rule aggregation.
type Signal struct {
	ID                 string     `json:"id" db:"id"`
	AssetID            string     `json:"asset_id" db:"asset_id"`
	TradeID            *string    `json:"trade_id,omitempty" db:"trade_id"`
	Timestamp          time.Time  `json:"timestamp" db:"timestamp"`
	Type               SignalType `json:"signal_type" db:"signal_type"`
	Strength           float64    `json:"strength" db:"strength"` // 0..1 composite score
	RulesTriggered     []string   `json:"rules_triggered" db:"rules_triggered"`
	IndicatorsSnapshot []byte     `json:"indicators_snapshot,omitempty" db:"indicators_snapshot"` // JSONB at rest
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}
