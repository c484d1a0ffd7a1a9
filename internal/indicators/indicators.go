// Package indicators computes the MM1/Center/RSI/Volume-SMA family of
// technical indicators that drive trading signals. Every formula here
// runs in Decimal end-to-end — this is the core, reproducible signal
// path; a float64/go-talib cross-check lives only in internal/report,
// outside this path.
package indicators

import (
	"spotscan/internal/errs"
	"spotscan/internal/money"
)

// EMA computes the exponential moving average of closes over period,
// returning only the latest value — callers recompute per candle close,
// they don't need the whole series. Matches pandas' ewm(adjust=False):
// seeded with the first observation, then recursively
// y_t = alpha*x_t + (1-alpha)*y_{t-1}, alpha = 2/(period+1).
func EMA(closes []money.Decimal, period int) (money.Decimal, error) {
	if len(closes) < period {
		return money.Zero, errs.InsufficientData("indicators.EMA", errInsufficientSeries(len(closes), period))
	}
	alpha := money.FromFloat(2.0 / float64(period+1))
	oneMinusAlpha := money.FromFloat(1).Sub(alpha)

	ema := closes[0]
	for _, c := range closes[1:] {
		ema = c.Mul(alpha).Add(ema.Mul(oneMinusAlpha))
	}
	return money.Round8(ema), nil
}

// SMA computes the simple moving average of the last period values.
func SMA(values []money.Decimal, period int) (money.Decimal, error) {
	if len(values) < period {
		return money.Zero, errs.InsufficientData("indicators.SMA", errInsufficientSeries(len(values), period))
	}
	window := values[len(values)-period:]
	sum := money.Zero
	for _, v := range window {
		sum = sum.Add(v)
	}
	return money.Round8(sum.Div(money.FromFloat(float64(period)))), nil
}

// RSI computes the Relative Strength Index over period, as a float64
// ratio (0-100) — it is a score, not a money value, so the
// decimal-for-money rule doesn't apply. A zero average loss matches the
// original's epsilon-guarded division (rs = gain/eps) rather than
// returning +Inf, so a series with gains and no losses gives 100 and a
// flat series with no gain and no loss gives 0; there is no NaN-fill
// path, so the neutral value 50 is never returned.
func RSI(closes []money.Decimal, period int) (float64, error) {
	if len(closes) < period+1 {
		return 0, errs.InsufficientData("indicators.RSI", errInsufficientSeries(len(closes), period+1))
	}

	gains := make([]money.Decimal, 0, len(closes)-1)
	losses := make([]money.Decimal, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		delta := closes[i].Sub(closes[i-1])
		if delta.IsPositive() {
			gains = append(gains, delta)
			losses = append(losses, money.Zero)
		} else {
			gains = append(gains, money.Zero)
			losses = append(losses, delta.Abs())
		}
	}

	avgGain, err := SMA(gains, period)
	if err != nil {
		return 0, err
	}
	avgLoss, err := SMA(losses, period)
	if err != nil {
		return 0, err
	}

	if avgLoss.IsZero() {
		if avgGain.IsZero() {
			// Flat series: rs = 0/eps = 0, rsi = 100 - 100/(1+0) = 0.
			return 0, nil
		}
		return 100, nil
	}

	rs, _ := avgGain.Div(avgLoss).Float64()
	rsi := 100 - (100 / (1 + rs))
	if rsi < 0 {
		rsi = 0
	}
	if rsi > 100 {
		rsi = 100
	}
	return rsi, nil
}

// VolumeSMA is SMA applied to a volume series; separated only for
// call-site clarity at signal-rule sites.
func VolumeSMA(volumes []money.Decimal, period int) (money.Decimal, error) {
	return SMA(volumes, period)
}

// Crossover is the MM1/Center moving-average relationship direction.
type Crossover int

const (
	CrossoverNone Crossover = iota
	CrossoverBullish
	CrossoverBearish
)

// DetectCrossover compares the fast/slow MA pair across two consecutive
// points and reports whether a crossover occurred between them.
func DetectCrossover(mm1Prev, centerPrev, mm1Curr, centerCurr money.Decimal) Crossover {
	switch {
	case mm1Prev.LessThanOrEqual(centerPrev) && mm1Curr.GreaterThan(centerCurr):
		return CrossoverBullish
	case mm1Prev.GreaterThanOrEqual(centerPrev) && mm1Curr.LessThan(centerCurr):
		return CrossoverBearish
	default:
		return CrossoverNone
	}
}

// MADistance returns |mm1-center|/center, quantized to 6 decimal places,
// as a float64 ratio — again a score, not a money value.
func MADistance(mm1, center money.Decimal) float64 {
	if center.IsZero() {
		return 0
	}
	dist := money.Round6(mm1.Sub(center).Abs().Div(center))
	f, _ := dist.Float64()
	return f
}

// VolumeSpikeRatio returns currentVolume/volumeSMA, the multiple used
// against the configured volume-spike threshold (default 2.0x).
func VolumeSpikeRatio(currentVolume, volumeSMA money.Decimal) float64 {
	if volumeSMA.IsZero() {
		return 0
	}
	ratio := currentVolume.Div(volumeSMA)
	f, _ := ratio.Float64()
	return f
}
