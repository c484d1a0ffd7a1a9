package models

import (
	"time"

	"spotscan/internal/money"
)

// Asset представляет торговую пару (BASE/QUOTE) и её статус валидации.
type Asset struct {
	ID              string     `json:"id" db:"id"`
	Symbol          string     `json:"symbol" db:"symbol"` // e.g. "BTC/USDT"
	BaseCurrency    string     `json:"base_currency" db:"base_currency"`
	QuoteCurrency   string     `json:"quote_currency" db:"quote_currency"`
	IsValid         bool       `json:"is_valid" db:"is_valid"`
	MinOrderSize    money.Decimal `json:"min_order_size" db:"min_order_size"`
	LastValidation  *time.Time `json:"last_validation,omitempty" db:"last_validation"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}
