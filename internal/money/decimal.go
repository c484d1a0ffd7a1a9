// Package money centralizes the decimal arithmetic used for every price,
// quantity, and currency amount in the system. Ratios, scores, and
// confidences stay as plain float64 — only money and prices are Decimal.
package money

import (
	"github.com/shopspring/decimal"
)

// Decimal is the one numeric type for prices, sizes, and currency amounts.
type Decimal = decimal.Decimal

// Zero is the additive identity, exported so callers never construct it
// via decimal.NewFromInt(0) ad-hoc.
var Zero = decimal.Zero

// FromFloat builds a Decimal from a float64. Reserved for values that
// genuinely originate as binary floats at a system boundary (exchange
// JSON payloads) — never use this to "convert" a ratio into a price.
func FromFloat(f float64) Decimal {
	return decimal.NewFromFloat(f)
}

// FromString parses a Decimal from its canonical wire representation.
// Exchange payloads carry prices/quantities as strings precisely to avoid
// the binary-float round-trip; this is the expected construction path.
func FromString(s string) (Decimal, error) {
	return decimal.NewFromString(s)
}

// Round8 quantizes to 8 decimal places, the precision quantities need
// for indicator scalars other than RSI.
func Round8(d Decimal) Decimal {
	return d.Round(8)
}

// Round2 quantizes to 2 decimal places.
func Round2(d Decimal) Decimal {
	return d.Round(2)
}

// Round6 quantizes to 6 decimal places, used by MADistance.
func Round6(d Decimal) Decimal {
	return d.Round(6)
}

// Max returns the larger of two Decimals.
func Max(a, b Decimal) Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of two Decimals.
func Min(a, b Decimal) Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
