package series

import (
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

func at(min, sec int) time.Time {
	// 09:15 IST == 03:45 UTC; the base is 3-minute aligned.
	return time.Date(2026, 8, 24, 3, 45, 0, 0, time.UTC).
		Add(time.Duration(min)*time.Minute + time.Duration(sec)*time.Second)
}

func TestObserveSealsOnNewMinute(t *testing.T) {
	s := New("IDX_I:13", 0)

	s.Observe(model.Tick{LTP: 10000, Volume: 5, TS: at(0, 10)})
	s.Observe(model.Tick{LTP: 10500, Volume: 5, TS: at(0, 30)})
	s.Observe(model.Tick{LTP: 9900, Volume: 5, TS: at(0, 50)})
	if s.Len() != 0 {
		t.Fatalf("bar sealed too early, len=%d", s.Len())
	}

	s.Observe(model.Tick{LTP: 10400, Volume: 5, TS: at(1, 0)})
	sealed := s.Sealed()
	if len(sealed) != 1 {
		t.Fatalf("expected 1 sealed bar, got %d", len(sealed))
	}
	c := sealed[0]
	if c.Open != 10000 || c.High != 10500 || c.Low != 9900 || c.Close != 9900 || c.Volume != 15 {
		t.Errorf("sealed bar = %+v", c)
	}
}

func TestObserveDropsLateTick(t *testing.T) {
	s := New("k", 0)
	s.Observe(model.Tick{LTP: 100, TS: at(1, 0)})
	s.Observe(model.Tick{LTP: 999, TS: at(0, 30)}) // previous minute
	s.Observe(model.Tick{LTP: 110, TS: at(2, 0)})

	sealed := s.Sealed()
	if len(sealed) != 1 || sealed[0].Close != 100 {
		t.Fatalf("late tick leaked into bar: %+v", sealed)
	}
}

func TestCapBoundsHistory(t *testing.T) {
	s := New("k", 10)
	for i := 0; i < 30; i++ {
		s.Append(model.Candle{OpenTime: at(i, 0), Close: int64(i)})
	}
	if s.Len() != 10 {
		t.Fatalf("len = %d, want 10", s.Len())
	}
	if got := s.Sealed()[0].Close; got != 20 {
		t.Errorf("oldest retained close = %d, want 20", got)
	}
}

func TestThreeMinuteAggregation(t *testing.T) {
	s := New("k", 0)
	bars := []model.Candle{
		{OpenTime: at(0, 0), Open: 10000, High: 10500, Low: 9900, Close: 10400, Volume: 10},
		{OpenTime: at(1, 0), Open: 10400, High: 10800, Low: 10300, Close: 10700, Volume: 20},
		{OpenTime: at(2, 0), Open: 10700, High: 10900, Low: 10600, Close: 10800, Volume: 30},
	}
	for _, c := range bars {
		s.Append(c)
	}

	got := s.ThreeMinute()
	if len(got) != 1 {
		t.Fatalf("expected 1 three-minute bar, got %d", len(got))
	}
	c := got[0]
	if c.Open != 10000 || c.High != 10900 || c.Low != 9900 || c.Close != 10800 || c.Volume != 60 {
		t.Errorf("3m bar = %+v, want o=10000 h=10900 l=9900 c=10800 v=60", c)
	}
}

func TestThreeMinuteExcludesFormingGroup(t *testing.T) {
	s := New("k", 0)
	// Full first window, then only two minutes of the second.
	for i := 0; i < 5; i++ {
		s.Append(model.Candle{OpenTime: at(i, 0), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1})
	}

	got := s.ThreeMinute()
	if len(got) != 1 {
		t.Fatalf("expected only the completed window, got %d bars", len(got))
	}

	// The third minute completes the second window.
	s.Append(model.Candle{OpenTime: at(5, 0), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1})
	if got := s.ThreeMinute(); len(got) != 2 {
		t.Fatalf("expected 2 complete windows, got %d", len(got))
	}
}

func TestThreeMinuteVolumeConservation(t *testing.T) {
	s := New("k", 0)
	var total int64
	for i := 0; i < 9; i++ {
		v := int64(i * 7)
		total += v
		s.Append(model.Candle{OpenTime: at(i, 0), Open: 1, High: 1, Low: 1, Close: 1, Volume: v})
	}

	var sum int64
	for _, c := range s.ThreeMinute() {
		sum += c.Volume
	}
	if sum != total {
		t.Errorf("aggregated volume = %d, want %d", sum, total)
	}
}

func TestBookCreatesOnFirstUse(t *testing.T) {
	b := NewBook(0)
	s1 := b.Get("a")
	s2 := b.Get("a")
	if s1 != s2 {
		t.Error("Get should return the same series for the same key")
	}
	if b.Get("b") == s1 {
		t.Error("distinct keys should get distinct series")
	}
}
