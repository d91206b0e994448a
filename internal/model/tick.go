package model

import "time"

// Exchange segment tags used with a security id to key an instrument.
const (
	SegmentFNO   = "NSE_FNO"
	SegmentIndex = "IDX_I"
	SegmentBSE   = "BSE_FNO"
)

// Tick represents a single market data tick from the Dhan WebSocket feed.
// Prices are stored as int64 in paise (1 INR = 100 paise) to avoid float drift.
type Tick struct {
	Segment    string    `json:"segment"`
	SecurityID string    `json:"security_id"`
	LTP        int64     `json:"ltp"`  // paise
	Open       int64     `json:"open"` // paise, day open
	High       int64     `json:"high"`
	Low        int64     `json:"low"`
	Close      int64     `json:"close"` // previous close in paise
	Volume     int64     `json:"volume"`
	TS         time.Time `json:"ts"`
}

// Key returns the instrument key: "segment:security_id".
func (t *Tick) Key() string {
	return t.Segment + ":" + t.SecurityID
}

// LTPRupees returns the last traded price in rupees for indicator math.
func (t *Tick) LTPRupees() float64 {
	return float64(t.LTP) / 100.0
}
