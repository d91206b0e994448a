// Package indicator provides the technical indicators driving the signal
// gate: Supertrend and ADX. Indicators consume sealed candles and keep O(1)
// incremental state with Wilder smoothing; values are float64 rupees
// (display/decision math only, never balance arithmetic).
package indicator

import "github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"

// Indicator is the interface shared by all indicators.
type Indicator interface {
	// Name returns the indicator name, e.g. "SUPERTREND_10".
	Name() string

	// Update feeds a sealed candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current value. 0 until Ready.
	Value() float64

	// Ready reports whether enough candles have been accumulated.
	Ready() bool
}

// paiseToRupees converts wire prices for indicator math.
func paiseToRupees(p int64) float64 {
	return float64(p) / 100.0
}
