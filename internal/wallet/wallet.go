// Package wallet implements the atomic paper wallet. A single mutex spans
// the invariant check, the in-memory mutation and the Redis write, so either
// all three take effect or none do: a failed Redis write rolls the in-memory
// state back and the mutation is reported as failed.
package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	redisstore "github.com/shubhamtaywade82/dhan-scalper-sub004/internal/store/redis"
)

// Storage is the slice of the Redis store the wallet needs.
type Storage interface {
	HSetAll(ctx context.Context, key string, fields map[string]interface{}, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// BalanceState is a snapshot of the wallet ledger.
type BalanceState struct {
	Available       money.Money `json:"available"`
	Used            money.Money `json:"used"`
	Total           money.Money `json:"total"`
	RealizedPnL     money.Money `json:"realized_pnl"`
	StartingBalance money.Money `json:"starting_balance"`
	LastUpdated     time.Time   `json:"last_updated"`
}

// Wallet tracks available/used/realized for one session.
type Wallet struct {
	mu        sync.Mutex
	storage   Storage
	sessionID string

	available money.Money
	used      money.Money
	realized  money.Money
	starting  money.Money
	updatedAt time.Time

	now func() time.Time
}

// New loads the balance hash for the session if present, otherwise
// initialises it with startingBalance and persists the fresh state.
func New(ctx context.Context, storage Storage, sessionID string, startingBalance money.Money) (*Wallet, error) {
	w := &Wallet{
		storage:   storage,
		sessionID: sessionID,
		now:       time.Now,
	}

	h, err := storage.HGetAll(ctx, w.key())
	if err != nil {
		return nil, fmt.Errorf("wallet: load: %w", err)
	}
	if len(h) > 0 {
		if err := w.restore(h); err != nil {
			return nil, err
		}
		return w, nil
	}

	w.available = startingBalance
	w.used = money.Zero
	w.realized = money.Zero
	w.starting = startingBalance
	w.updatedAt = w.now()
	if err := w.persistLocked(ctx); err != nil {
		return nil, fmt.Errorf("wallet: init: %w", err)
	}
	return w, nil
}

func (w *Wallet) key() string {
	return redisstore.Key("balance", w.sessionID)
}

func (w *Wallet) restore(h map[string]string) error {
	var err error
	parse := func(field string) money.Money {
		if err != nil {
			return money.Zero
		}
		var m money.Money
		m, err = money.Parse(h[field])
		return m
	}
	w.available = parse("available")
	w.used = parse("used")
	w.realized = parse("realized_pnl")
	w.starting = parse("starting_balance")
	if err != nil {
		return fmt.Errorf("wallet: corrupt balance hash for %s: %w", w.sessionID, err)
	}
	if ts, terr := time.Parse(time.RFC3339, h["last_updated"]); terr == nil {
		w.updatedAt = ts
	}
	return nil
}

// DebitForBuy moves principal+fee from available to used. Fails with
// insufficient_balance when available cannot cover the debit.
func (w *Wallet) DebitForBuy(ctx context.Context, principal, fee money.Money) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cost := principal.Add(fee)
	if w.available.LessThan(cost) {
		return fmt.Errorf("wallet: need %s, have %s: %w",
			cost.Format(), w.available.Format(), model.ErrInsufficientBalance)
	}

	prev := w.snapshotLocked()
	w.available = w.available.Sub(cost)
	w.used = w.used.Add(cost)
	w.updatedAt = w.now()

	if err := w.persistLocked(ctx); err != nil {
		w.restoreLocked(prev)
		return fmt.Errorf("wallet: debit persist: %w", err)
	}
	return nil
}

// CreditForSell adds net proceeds to available and releases the debited
// principal from used (clamped at zero).
func (w *Wallet) CreditForSell(ctx context.Context, netProceeds, releasedPrincipal money.Money) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.snapshotLocked()
	w.available = w.available.Add(netProceeds)
	w.used = money.Max(w.used.Sub(releasedPrincipal), money.Zero)
	w.updatedAt = w.now()

	if err := w.persistLocked(ctx); err != nil {
		w.restoreLocked(prev)
		return fmt.Errorf("wallet: credit persist: %w", err)
	}
	return nil
}

// AddRealizedPnL records realized P&L. Pure ledger update: the cash flow is
// already reflected by the sell credit.
func (w *Wallet) AddRealizedPnL(ctx context.Context, delta money.Money) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.snapshotLocked()
	w.realized = w.realized.Add(delta)
	w.updatedAt = w.now()

	if err := w.persistLocked(ctx); err != nil {
		w.restoreLocked(prev)
		return fmt.Errorf("wallet: pnl persist: %w", err)
	}
	return nil
}

// Reset reinitialises the wallet to {available = amount, used = 0,
// realized = 0}. Admin-level operation.
func (w *Wallet) Reset(ctx context.Context, amount money.Money) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.snapshotLocked()
	w.available = amount
	w.used = money.Zero
	w.realized = money.Zero
	w.starting = amount
	w.updatedAt = w.now()

	if err := w.persistLocked(ctx); err != nil {
		w.restoreLocked(prev)
		return fmt.Errorf("wallet: reset persist: %w", err)
	}
	return nil
}

// TotalWithUnrealized returns the reporting view
// starting_balance + realized + unrealized. Read-only.
func (w *Wallet) TotalWithUnrealized(unrealized money.Money) money.Money {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.starting.Add(w.realized).Add(unrealized)
}

// Snapshot returns a consistent copy of the ledger.
func (w *Wallet) Snapshot() BalanceState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Wallet) snapshotLocked() BalanceState {
	return BalanceState{
		Available:       w.available,
		Used:            w.used,
		Total:           w.available.Add(w.used),
		RealizedPnL:     w.realized,
		StartingBalance: w.starting,
		LastUpdated:     w.updatedAt,
	}
}

func (w *Wallet) restoreLocked(s BalanceState) {
	w.available = s.Available
	w.used = s.Used
	w.realized = s.RealizedPnL
	w.starting = s.StartingBalance
	w.updatedAt = s.LastUpdated
}

func (w *Wallet) persistLocked(ctx context.Context) error {
	s := w.snapshotLocked()
	fields := map[string]interface{}{
		"available":        s.Available.String(),
		"used":             s.Used.String(),
		"total":            s.Total.String(),
		"realized_pnl":     s.RealizedPnL.String(),
		"starting_balance": s.StartingBalance.String(),
		"last_updated":     s.LastUpdated.Format(time.RFC3339),
	}
	return w.storage.HSetAll(ctx, w.key(), fields, redisstore.BalanceTTL)
}

// Available returns the spendable balance.
func (w *Wallet) Available() money.Money {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.available
}
