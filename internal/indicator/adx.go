package indicator

import (
	"strconv"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

// ADX is the Average Directional Index with Wilder smoothing (the Holy-Grail
// strength filter). It measures trend strength, not direction.
type ADX struct {
	period int

	count    int
	prevHigh float64
	prevLow  float64
	prevC    float64

	smTR      float64 // Wilder-smoothed true range
	smPlusDM  float64
	smMinusDM float64

	dxSum   float64
	dxCount int
	adx     float64

	plusDI  float64
	minusDI float64
}

// NewADX creates an ADX with the given period (typically 14).
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string {
	return "ADX_" + strconv.Itoa(a.period)
}

func (a *ADX) Update(candle model.Candle) {
	high := paiseToRupees(candle.High)
	low := paiseToRupees(candle.Low)
	close_ := paiseToRupees(candle.Close)
	a.count++

	if a.count == 1 {
		a.prevHigh, a.prevLow, a.prevC = high, low, close_
		return
	}

	upMove := high - a.prevHigh
	downMove := a.prevLow - low
	plusDM, minusDM := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}

	tr := high - low
	if d := abs(high - a.prevC); d > tr {
		tr = d
	}
	if d := abs(low - a.prevC); d > tr {
		tr = d
	}
	a.prevHigh, a.prevLow, a.prevC = high, low, close_

	p := float64(a.period)
	if a.count <= a.period+1 {
		// Accumulation phase: plain sums seed the smoothed series.
		a.smTR += tr
		a.smPlusDM += plusDM
		a.smMinusDM += minusDM
		if a.count < a.period+1 {
			return
		}
	} else {
		// Wilder smoothing: drop 1/period of the running value, add the new.
		a.smTR = a.smTR - a.smTR/p + tr
		a.smPlusDM = a.smPlusDM - a.smPlusDM/p + plusDM
		a.smMinusDM = a.smMinusDM - a.smMinusDM/p + minusDM
	}

	if a.smTR == 0 {
		return
	}
	a.plusDI = 100 * a.smPlusDM / a.smTR
	a.minusDI = 100 * a.smMinusDM / a.smTR

	diSum := a.plusDI + a.minusDI
	if diSum == 0 {
		return
	}
	dx := 100 * abs(a.plusDI-a.minusDI) / diSum

	if a.dxCount < a.period {
		a.dxSum += dx
		a.dxCount++
		if a.dxCount == a.period {
			a.adx = a.dxSum / p
		}
		return
	}
	a.adx = (a.adx*(p-1) + dx) / p
}

// Value returns the current ADX (0–100).
func (a *ADX) Value() float64 { return a.adx }

// Ready reports whether the first full ADX average is formed.
func (a *ADX) Ready() bool { return a.dxCount >= a.period }

// PlusDI returns the current +DI.
func (a *ADX) PlusDI() float64 { return a.plusDI }

// MinusDI returns the current -DI.
func (a *ADX) MinusDI() float64 { return a.minusDI }
