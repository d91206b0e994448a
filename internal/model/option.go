package model

import "github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"

// OptionPick is the strike selection for one entry decision.
type OptionPick struct {
	Strike       int64       `json:"strike"`
	Expiry       string      `json:"expiry"` // ISO date
	CESecurityID string      `json:"ce_security_id"`
	PESecurityID string      `json:"pe_security_id"`
	Premium      money.Money `json:"premium"` // estimated option premium
}

// SecurityID returns the leg matching the signal kind, or "" for none.
func (p OptionPick) SecurityID(kind SignalKind) string {
	switch kind {
	case SignalBuyCE:
		return p.CESecurityID
	case SignalBuyPE:
		return p.PESecurityID
	}
	return ""
}

// OptionType returns "CE" or "PE" for the signal kind.
func (p OptionPick) OptionType(kind SignalKind) string {
	switch kind {
	case SignalBuyCE:
		return "CE"
	case SignalBuyPE:
		return "PE"
	}
	return ""
}
