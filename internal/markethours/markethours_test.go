package markethours

import (
	"testing"
	"time"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, IST)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"mid session", ist(2026, 8, 24, 11, 0), true}, // Monday
		{"at open", ist(2026, 8, 24, 9, 15), true},
		{"before open", ist(2026, 8, 24, 9, 14), false},
		{"at close", ist(2026, 8, 24, 15, 30), false},
		{"last minute", ist(2026, 8, 24, 15, 29), true},
		{"saturday", ist(2026, 8, 22, 11, 0), false},
		{"sunday", ist(2026, 8, 23, 11, 0), false},
		{"independence day", ist(2026, 8, 15, 11, 0), false},
		{"christmas", ist(2026, 12, 25, 11, 0), false},
	}
	for _, c := range cases {
		if got := IsMarketOpen(c.t); got != c.want {
			t.Errorf("%s: IsMarketOpen = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsMarketOpenConvertsZones(t *testing.T) {
	// 05:30 UTC == 11:00 IST on a Monday.
	utc := time.Date(2026, 8, 24, 5, 30, 0, 0, time.UTC)
	if !IsMarketOpen(utc) {
		t.Error("UTC instant inside IST session should be open")
	}
}

func TestEntryCutoffAndSquareOff(t *testing.T) {
	if !CanEnter(ist(2026, 8, 24, 14, 59)) {
		t.Error("14:59 should allow entries")
	}
	if CanEnter(ist(2026, 8, 24, 15, 0)) {
		t.Error("15:00 should block new entries")
	}
	if PastSquareOff(ist(2026, 8, 24, 15, 24)) {
		t.Error("15:24 is before square-off")
	}
	if !PastSquareOff(ist(2026, 8, 24, 15, 25)) {
		t.Error("15:25 should be in the square-off window")
	}
	if PastSquareOff(ist(2026, 8, 24, 16, 0)) {
		t.Error("square-off window ends with the session")
	}
}

func TestNextOpen(t *testing.T) {
	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"before open same day", ist(2026, 8, 24, 8, 0), ist(2026, 8, 24, 9, 15)},
		{"after close rolls to next day", ist(2026, 8, 24, 16, 0), ist(2026, 8, 25, 9, 15)},
		{"friday evening rolls to monday", ist(2026, 8, 21, 18, 0), ist(2026, 8, 24, 9, 15)},
		{"holiday skipped", ist(2026, 12, 24, 18, 0), ist(2026, 12, 28, 9, 15)}, // 25th holiday, 26-27 weekend
	}
	for _, c := range cases {
		if got := NextOpen(c.from); !got.Equal(c.want) {
			t.Errorf("%s: NextOpen = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestTimeUntilClose(t *testing.T) {
	if d := TimeUntilClose(ist(2026, 8, 24, 15, 0)); d != 30*time.Minute {
		t.Errorf("TimeUntilClose = %v, want 30m", d)
	}
	if d := TimeUntilClose(ist(2026, 8, 24, 16, 0)); d != 0 {
		t.Errorf("TimeUntilClose after close = %v, want 0", d)
	}
}

func TestHolidayName(t *testing.T) {
	if name := HolidayName(ist(2026, 1, 26, 10, 0)); name != "Republic Day" {
		t.Errorf("HolidayName = %q, want Republic Day", name)
	}
	if name := HolidayName(ist(2026, 8, 24, 10, 0)); name != "" {
		t.Errorf("HolidayName on trading day = %q, want empty", name)
	}
}
