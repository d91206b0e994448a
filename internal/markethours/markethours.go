// Package markethours answers "can the scalper act right now" questions for
// the Indian cash-market session: NSE/BSE hours, weekends and exchange
// holidays, plus the intraday cutoffs the engine enforces on itself.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Session boundaries in IST minutes-of-day.
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30

	// EntryCutoff: no fresh entries in the final stretch; there is not
	// enough runway left for the trailing ladder to do its job.
	EntryCutoffHour   = 15
	EntryCutoffMinute = 0

	// SquareOff: flatten everything before the broker's auto square-off.
	SquareOffHour   = 15
	SquareOffMinute = 25
)

func minuteOfDay(h, m int) int { return h*60 + m }

// IsMarketOpen reports whether t falls within NSE trading hours
// (9:15–15:30 IST, Mon–Fri, excluding exchange holidays).
func IsMarketOpen(t time.Time) bool {
	ist := t.In(IST)
	if !IsTradingDay(ist) {
		return false
	}
	hm := minuteOfDay(ist.Hour(), ist.Minute())
	return hm >= minuteOfDay(OpenHour, OpenMinute) && hm < minuteOfDay(CloseHour, CloseMinute)
}

// CanEnter reports whether new entries are still allowed: market open and
// before the entry cutoff.
func CanEnter(t time.Time) bool {
	if !IsMarketOpen(t) {
		return false
	}
	ist := t.In(IST)
	return minuteOfDay(ist.Hour(), ist.Minute()) < minuteOfDay(EntryCutoffHour, EntryCutoffMinute)
}

// PastSquareOff reports whether the forced-flat window has begun.
func PastSquareOff(t time.Time) bool {
	if !IsMarketOpen(t) {
		return false
	}
	ist := t.In(IST)
	return minuteOfDay(ist.Hour(), ist.Minute()) >= minuteOfDay(SquareOffHour, SquareOffMinute)
}

// IsTradingDay reports whether t is a weekday that is not an exchange holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	wd := ist.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !IsHoliday(ist)
}

// NextOpen returns the next market open (9:15 IST on the next trading day,
// or today's open when t is still before it).
func NextOpen(t time.Time) time.Time {
	ist := t.In(IST)

	todayOpen := time.Date(ist.Year(), ist.Month(), ist.Day(), OpenHour, OpenMinute, 0, 0, IST)
	if ist.Before(todayOpen) && IsTradingDay(ist) {
		return todayOpen
	}

	d := ist.AddDate(0, 0, 1)
	for i := 0; i < 14; i++ {
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, IST)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(ist.Year(), ist.Month(), ist.Day()+1, OpenHour, OpenMinute, 0, 0, IST)
}

// TodayClose returns today's 15:30 IST close.
func TodayClose(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), CloseHour, CloseMinute, 0, 0, IST)
}

// TimeUntilClose returns the time left in today's session, zero if closed.
func TimeUntilClose(t time.Time) time.Duration {
	d := TodayClose(t).Sub(t.In(IST))
	if d < 0 {
		return 0
	}
	return d
}

// StatusString renders a human-readable market status for the status report.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("open, closes in %s", fmtDur(TimeUntilClose(t)))
	}
	next := NextOpen(t)
	ist := next.In(IST)
	return fmt.Sprintf("closed, opens %s %s (%s)",
		ist.Weekday().String()[:3], ist.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
