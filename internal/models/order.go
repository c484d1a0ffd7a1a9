package models

import (
	"time"

	"spotscan/internal/money"
)

// OrderType тип ордера на бирже.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeStopLoss  OrderType = "STOP_LOSS"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

// OrderStatus статус исполнения ордера.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// Order представляет отдельный ордер на бирже, связанный со сделкой.
type Order struct {
	ID              string        `json:"id" db:"id"`
	TradeID         string        `json:"trade_id" db:"trade_id"`
	ExchangeOrderID string        `json:"exchange_order_id,omitempty" db:"exchange_order_id"`
	Type            OrderType     `json:"type" db:"type"`
	Side            Side          `json:"side" db:"side"`
	Price           money.Decimal `json:"price,omitempty" db:"price"`
	Quantity        money.Decimal `json:"quantity" db:"quantity"`
	Status          OrderStatus   `json:"status" db:"status"`
	FilledQuantity  money.Decimal `json:"filled_quantity,omitempty" db:"filled_quantity"`
	AveragePrice    money.Decimal `json:"average_price,omitempty" db:"average_price"`
	Fees            money.Decimal `json:"fees,omitempty" db:"fees"`
	Timestamp       time.Time     `json:"timestamp" db:"timestamp"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}
