package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/positions"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/wallet"
)

// ledger applies fills to the wallet and position tracker. Entry fees are
// parked in the used balance alongside the principal, so the ledger keeps a
// per-position fee tally and releases it when the position fully closes.
// Shared by the paper and live brokers so both modes account identically.
type ledger struct {
	wallet  *wallet.Wallet
	tracker *positions.Tracker
	charge  money.Money

	mu       sync.Mutex
	feesHeld map[string]money.Money // position id → entry fees parked in used
}

func newLedger(w *wallet.Wallet, tr *positions.Tracker, charge money.Money) *ledger {
	if charge.LessOrEqual(money.Zero) {
		charge = DefaultChargePerOrder
	}
	return &ledger{
		wallet:   w,
		tracker:  tr,
		charge:   charge,
		feesHeld: make(map[string]money.Money),
	}
}

// applyBuy debits principal+fee and opens (or extends) the long position.
// The debit is compensated if the position update fails.
func (l *ledger) applyBuy(ctx context.Context, req Request, fill money.Money) error {
	principal := fill.MulInt(req.Qty)
	if err := l.wallet.DebitForBuy(ctx, principal, l.charge); err != nil {
		return err
	}

	pos, err := l.tracker.Add(ctx, positions.Entry{
		Segment:    req.Segment,
		SecurityID: req.SecurityID,
		Side:       model.PositionLong,
		Qty:        req.Qty,
		Price:      fill,
		OptionType: req.OptionType,
		Strike:     req.Strike,
		Expiry:     req.Expiry,
		Underlying: req.Symbol,
	})
	if err != nil {
		cost := principal.Add(l.charge)
		if rbErr := l.wallet.CreditForSell(ctx, cost, cost); rbErr != nil {
			slog.Error("debit rollback failed", "security_id", req.SecurityID, "err", rbErr)
		}
		return fmt.Errorf("broker: open position: %w", err)
	}

	l.mu.Lock()
	l.feesHeld[pos.ID()] = l.feesHeld[pos.ID()].Add(l.charge)
	l.mu.Unlock()
	return nil
}

// applySell reduces the long position and credits net proceeds. Oversells
// are rejected; short entries are modelled but deliberately not reachable.
func (l *ledger) applySell(ctx context.Context, req Request, fill money.Money) error {
	open := l.tracker.OpenQty(req.Segment, req.SecurityID)
	if req.Qty > open {
		return fmt.Errorf("broker: %w: sell %d exceeds open %d",
			model.ErrOrderRejected, req.Qty, open)
	}

	posID := req.Segment + ":" + req.SecurityID + ":" + string(model.PositionLong)
	pos := l.tracker.Get(posID)
	if pos == nil {
		return fmt.Errorf("broker: %w: no position %s", model.ErrOrderRejected, posID)
	}

	if _, err := l.tracker.PartialExit(ctx, posID, req.Qty, fill); err != nil {
		return fmt.Errorf("broker: exit position: %w", err)
	}

	netProceeds := fill.MulInt(req.Qty).Sub(l.charge)
	released := pos.BuyAvg.MulInt(req.Qty)
	if req.Qty == pos.NetQty {
		// Full close also releases the entry fees parked in used.
		l.mu.Lock()
		released = released.Add(l.feesHeld[posID])
		delete(l.feesHeld, posID)
		l.mu.Unlock()
	}

	if err := l.wallet.CreditForSell(ctx, netProceeds, released); err != nil {
		return fmt.Errorf("broker: credit: %w", err)
	}
	if err := l.wallet.AddRealizedPnL(ctx, netProceeds.Sub(released)); err != nil {
		return fmt.Errorf("broker: realized pnl: %w", err)
	}
	return nil
}

func (l *ledger) apply(ctx context.Context, req Request, fill money.Money) error {
	switch req.Side {
	case model.SideBuy:
		return l.applyBuy(ctx, req, fill)
	case model.SideSell:
		return l.applySell(ctx, req, fill)
	default:
		return fmt.Errorf("broker: %w: side %q", model.ErrOrderRejected, req.Side)
	}
}
