package indicator

import (
	"strconv"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

// Supertrend is the ATR-band trend overlay. Direction is +1 while close
// holds above the lower band, -1 while it holds below the upper band; the
// line flips when close crosses the opposite band.
type Supertrend struct {
	period     int
	multiplier float64

	count     int
	prevClose float64
	atr       float64
	trSum     float64

	finalUpper float64
	finalLower float64
	direction  int // +1 up, -1 down
	line       float64
	flipped    bool
}

// NewSupertrend creates a Supertrend with the given ATR period and band
// multiplier (canonical: 10, 3.0).
func NewSupertrend(period int, multiplier float64) *Supertrend {
	return &Supertrend{period: period, multiplier: multiplier}
}

func (st *Supertrend) Name() string {
	return "SUPERTREND_" + strconv.Itoa(st.period)
}

func (st *Supertrend) Update(candle model.Candle) {
	high := paiseToRupees(candle.High)
	low := paiseToRupees(candle.Low)
	close_ := paiseToRupees(candle.Close)
	st.count++
	st.flipped = false

	// True range needs a previous close from the second candle on.
	tr := high - low
	if st.count > 1 {
		if d := abs(high - st.prevClose); d > tr {
			tr = d
		}
		if d := abs(low - st.prevClose); d > tr {
			tr = d
		}
	}

	if st.count <= st.period {
		// Accumulation: simple average seeds the ATR.
		st.trSum += tr
		if st.count == st.period {
			st.atr = st.trSum / float64(st.period)
			st.seedBands(high, low, close_)
		}
		st.prevClose = close_
		return
	}

	// Wilder smoothing.
	p := float64(st.period)
	st.atr = (st.atr*(p-1) + tr) / p

	hl2 := (high + low) / 2
	basicUpper := hl2 + st.multiplier*st.atr
	basicLower := hl2 - st.multiplier*st.atr

	// Bands only tighten while price stays inside them.
	if basicUpper < st.finalUpper || st.prevClose > st.finalUpper {
		st.finalUpper = basicUpper
	}
	if basicLower > st.finalLower || st.prevClose < st.finalLower {
		st.finalLower = basicLower
	}

	prevDir := st.direction
	if close_ > st.finalUpper {
		st.direction = 1
	} else if close_ < st.finalLower {
		st.direction = -1
	}
	st.flipped = st.direction != prevDir

	if st.direction == 1 {
		st.line = st.finalLower
	} else {
		st.line = st.finalUpper
	}
	st.prevClose = close_
}

func (st *Supertrend) seedBands(high, low, close_ float64) {
	hl2 := (high + low) / 2
	st.finalUpper = hl2 + st.multiplier*st.atr
	st.finalLower = hl2 - st.multiplier*st.atr
	if close_ >= hl2 {
		st.direction = 1
		st.line = st.finalLower
	} else {
		st.direction = -1
		st.line = st.finalUpper
	}
}

// Value returns the Supertrend line in rupees.
func (st *Supertrend) Value() float64 { return st.line }

// Ready reports whether the ATR seed is complete.
func (st *Supertrend) Ready() bool { return st.count >= st.period }

// Direction returns +1 (uptrend) or -1 (downtrend). 0 before Ready.
func (st *Supertrend) Direction() int {
	if !st.Ready() {
		return 0
	}
	return st.direction
}

// Flipped reports whether the last Update changed direction.
func (st *Supertrend) Flipped() bool { return st.flipped }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
