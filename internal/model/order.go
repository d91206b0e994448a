package model

import (
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
)

// Side is a transaction side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order represents a recorded (filled) order. Immutable once recorded.
type Order struct {
	ID         string      `json:"id"`
	Segment    string      `json:"segment"`
	SecurityID string      `json:"security_id"`
	Symbol     string      `json:"symbol"`
	Side       Side        `json:"side"`
	Qty        int64       `json:"quantity"`
	AvgPrice   money.Money `json:"average_price"`
	TS         time.Time   `json:"timestamp"`
}
