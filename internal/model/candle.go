package model

import (
	"encoding/json"
	"time"
)

// Candle represents a 1-minute OHLC bar for a single instrument.
// All prices are in paise (int64) to avoid floating-point drift.
type Candle struct {
	OpenTime time.Time `json:"open_time"` // bucket start, minute-aligned IST
	Open     int64     `json:"open"`      // paise
	High     int64     `json:"high"`
	Low      int64     `json:"low"`
	Close    int64     `json:"close"`
	Volume   int64     `json:"volume"`
}

// Merge folds another candle from the same bucket into c.
func (c *Candle) Merge(o Candle) {
	if o.High > c.High {
		c.High = o.High
	}
	if o.Low < c.Low {
		c.Low = o.Low
	}
	c.Close = o.Close
	c.Volume += o.Volume
}

// JSON returns the JSON-encoded candle (errors ignored for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
