package model

import "time"

// SignalKind is the trading-decision output per underlying symbol.
type SignalKind string

const (
	SignalBuyCE SignalKind = "buy_ce"
	SignalBuyPE SignalKind = "buy_pe"
	SignalNone  SignalKind = "none"
)

// Signal is the per-decision-tick output of the signal gate.
type Signal struct {
	Symbol        string     `json:"symbol"`
	Kind          SignalKind `json:"kind"`
	ADX           float64    `json:"adx"`
	SupertrendDir int        `json:"supertrend_direction"` // +1 or -1
	TS            time.Time  `json:"timestamp"`
}

// Actionable reports whether the signal asks for an entry.
func (s Signal) Actionable() bool {
	return s.Kind == SignalBuyCE || s.Kind == SignalBuyPE
}
