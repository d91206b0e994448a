// Package sizer converts available balance into an order quantity:
// lots = floor(min(max_lots, available · allocation_pct / (premium · lot_size))).
package sizer

import "github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"

// Sizer holds the allocation policy.
type Sizer struct {
	// AllocationPct is the fraction of available balance deployable per
	// entry, e.g. 0.30.
	AllocationPct float64

	// MaxLots caps the lot count per entry. 0 means uncapped.
	MaxLots int64
}

// Quantity returns the order quantity (lots × lot size). Zero means the
// entry is skipped.
func (s Sizer) Quantity(available, premium money.Money, lotSize int64) int64 {
	if lotSize <= 0 || premium.LessOrEqual(money.Zero) || s.AllocationPct <= 0 {
		return 0
	}

	budget := available.Mul(money.FromRupees(s.AllocationPct))
	perLot := premium.MulInt(lotSize)
	if perLot.LessOrEqual(money.Zero) {
		return 0
	}

	// Integer paise division floors the lot count.
	lots := budget.Paise() / perLot.Paise()
	if s.MaxLots > 0 && lots > s.MaxLots {
		lots = s.MaxLots
	}
	if lots <= 0 {
		return 0
	}
	return lots * lotSize
}
