package utils

// math.go - математические утилиты
//
// Назначение:
// Вспомогательные математические функции для торговли: округление до
// lot size, расчёт спредов, средневзвешенных цен по стакану.

import (
	"spotscan/internal/money"
)

// RoundToLotSize rounds qty down to the nearest multiple of lotSize.
// Example: 0.123456 with lotSize 0.001 -> 0.123. Flooring (not rounding
// to nearest) is deliberate — an exchange order quantity that rounds up
// can exceed the caller's available balance.
func RoundToLotSize(qty, lotSize money.Decimal) money.Decimal {
	if lotSize.IsZero() {
		return qty
	}
	steps := qty.Div(lotSize).Floor()
	return steps.Mul(lotSize)
}

// CalculateSpread returns (priceHigh-priceLow)/priceLow * 100 as a plain
// float64 ratio — this is a score/percentage, not a money value, so it
// deliberately leaves Decimal.
func CalculateSpread(priceHigh, priceLow money.Decimal) float64 {
	if priceLow.IsZero() {
		return 0
	}
	spread := priceHigh.Sub(priceLow).Div(priceLow).Mul(money.FromFloat(100))
	f, _ := spread.Float64()
	return f
}

// CalculateNetSpread subtracts round-trip fees (both legs) from a gross
// spread percentage.
func CalculateNetSpread(grossSpreadPct, feeAPct, feeBPct float64) float64 {
	return grossSpreadPct - 2*(feeAPct+feeBPct)
}

// OrderBookLevel is one (price, quantity) rung of an order book, as
// consumed by CalculateWeightedAverage.
type OrderBookLevel struct {
	Price    money.Decimal
	Quantity money.Decimal
}

// CalculateWeightedAverage returns the quantity-weighted average price
// across levels. Returns zero if the levels carry no quantity.
func CalculateWeightedAverage(levels []OrderBookLevel) money.Decimal {
	totalValue := money.Zero
	totalQty := money.Zero
	for _, l := range levels {
		totalValue = totalValue.Add(l.Price.Mul(l.Quantity))
		totalQty = totalQty.Add(l.Quantity)
	}
	if totalQty.IsZero() {
		return money.Zero
	}
	return totalValue.Div(totalQty)
}
