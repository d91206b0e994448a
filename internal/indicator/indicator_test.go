package indicator

import (
	"testing"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

// bar builds a candle from rupee prices.
func bar(high, low, close float64) model.Candle {
	return model.Candle{
		Open:   int64(close * 100),
		High:   int64(high * 100),
		Low:    int64(low * 100),
		Close:  int64(close * 100),
		Volume: 1,
	}
}

// upBars returns n ascending candles starting at the given close, rising by
// step rupees per bar with a 4-rupee range.
func upBars(n int, start, step float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		c := start + float64(i)*step
		out[i] = bar(c+1, c-3, c)
	}
	return out
}

func TestSupertrendWarmup(t *testing.T) {
	st := NewSupertrend(2, 1.0)
	if st.Ready() || st.Direction() != 0 {
		t.Fatal("fresh indicator should not be ready")
	}
	st.Update(bar(102, 98, 101))
	if st.Ready() {
		t.Fatal("ready after one bar of a two-bar seed")
	}
	st.Update(bar(104, 100, 103))
	if !st.Ready() {
		t.Fatal("not ready after the seed completes")
	}
	if st.Direction() != 1 {
		t.Errorf("direction = %d, want +1 (close above midpoint)", st.Direction())
	}
}

func TestSupertrendFlipsOnReversal(t *testing.T) {
	st := NewSupertrend(2, 1.0)
	for _, c := range []model.Candle{
		bar(102, 98, 101),
		bar(104, 100, 103),
		bar(106, 102, 105),
		bar(108, 104, 107),
		bar(110, 106, 109),
		bar(112, 108, 111),
	} {
		st.Update(c)
		if st.Flipped() {
			t.Fatal("flip during a one-way trend")
		}
	}
	if st.Direction() != 1 {
		t.Fatalf("direction = %d, want +1 before the crash", st.Direction())
	}

	st.Update(bar(100, 90, 91))
	if !st.Flipped() || st.Direction() != -1 {
		t.Fatalf("crash bar: flipped=%v direction=%d, want true/-1", st.Flipped(), st.Direction())
	}

	// Flipped is per-update, not sticky.
	st.Update(bar(92, 88, 89))
	if st.Flipped() || st.Direction() != -1 {
		t.Fatalf("follow-through bar: flipped=%v direction=%d, want false/-1", st.Flipped(), st.Direction())
	}
}

func TestSupertrendLineTracksTrend(t *testing.T) {
	st := NewSupertrend(2, 1.0)
	bars := upBars(8, 100, 2)
	for _, c := range bars {
		st.Update(c)
	}
	last := float64(bars[len(bars)-1].Close) / 100
	if st.Direction() != 1 {
		t.Fatalf("direction = %d, want +1", st.Direction())
	}
	if st.Value() >= last {
		t.Errorf("uptrend line %.2f should sit below price %.2f", st.Value(), last)
	}
}

func TestADXWarmupAndTrend(t *testing.T) {
	a := NewADX(3)
	bars := upBars(6, 100, 2)
	for i, c := range bars {
		if a.Ready() {
			t.Fatalf("ready before bar %d consumed", i)
		}
		a.Update(c)
	}
	if !a.Ready() {
		t.Fatal("not ready after seed + period bars")
	}
	v := a.Value()
	if v < 0 || v > 100 {
		t.Fatalf("ADX = %.2f out of range", v)
	}
	// One-way trend with zero opposing movement saturates the index.
	if v < 90 {
		t.Errorf("ADX = %.2f, want near 100 for a one-way trend", v)
	}
	if a.PlusDI() <= a.MinusDI() {
		t.Errorf("+DI %.2f should dominate -DI %.2f in an uptrend", a.PlusDI(), a.MinusDI())
	}
}

func TestADXLowerInChop(t *testing.T) {
	trend := NewADX(3)
	for _, c := range upBars(12, 100, 2) {
		trend.Update(c)
	}

	chop := NewADX(3)
	for i := 0; i < 12; i++ {
		if i%2 == 0 {
			chop.Update(bar(103, 99, 102))
		} else {
			chop.Update(bar(101, 97, 98))
		}
	}

	if !chop.Ready() {
		t.Fatal("chop series not ready")
	}
	if chop.Value() >= trend.Value() {
		t.Errorf("chop ADX %.2f should be below trend ADX %.2f", chop.Value(), trend.Value())
	}
}
