package model

import (
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
)

// PositionSide is the net direction of a position.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// Position is a net-position ledger entry keyed by (segment, security_id, side).
// Entry average is recomputed by weighted average on each incremental buy.
type Position struct {
	Segment       string       `json:"exchange_segment"`
	SecurityID    string       `json:"security_id"`
	Side          PositionSide `json:"side"`
	NetQty        int64        `json:"net_qty"`
	BuyQty        int64        `json:"buy_qty"`
	BuyAvg        money.Money  `json:"buy_avg"`
	SellQty       int64        `json:"sell_qty"`
	SellAvg       money.Money  `json:"sell_avg"`
	RealizedPnL   money.Money  `json:"realized_pnl"`
	UnrealizedPnL money.Money  `json:"unrealized_pnl"`
	CurrentPrice  money.Money  `json:"current_price"`
	OptionType    string       `json:"option_type"` // CE or PE
	Strike        int64        `json:"strike"`
	Expiry        string       `json:"expiry"` // ISO date
	Underlying    string       `json:"underlying_symbol"`
	CreatedAt     time.Time    `json:"created_at"`
	LastUpdated   time.Time    `json:"last_updated"`
}

// ID returns the position identifier: "segment:security_id:side".
func (p *Position) ID() string {
	return p.Segment + ":" + p.SecurityID + ":" + string(p.Side)
}

// EntryValue returns buy_avg × net_qty, the principal still deployed.
func (p *Position) EntryValue() money.Money {
	return p.BuyAvg.MulInt(p.NetQty)
}
