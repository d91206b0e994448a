package wallet

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
)

type fakeStorage struct {
	hashes  map[string]map[string]string
	failSet bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{hashes: make(map[string]map[string]string)}
}

func (f *fakeStorage) HSetAll(_ context.Context, key string, fields map[string]interface{}, _ time.Duration) error {
	if f.failSet {
		return errors.New("write refused")
	}
	h := make(map[string]string, len(fields))
	for k, v := range fields {
		h[k] = fmt.Sprint(v)
	}
	f.hashes[key] = h
	return nil
}

func (f *fakeStorage) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func newWallet(t *testing.T, st Storage, start string) *Wallet {
	t.Helper()
	w, err := New(context.Background(), st, "PAPER_20260824", money.MustParse(start))
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestRoundTripCycle(t *testing.T) {
	// Buy 75 @ 100 with a 20 fee, sell all 75 @ 120 with a 20 fee.
	w := newWallet(t, newFakeStorage(), "100000.00")
	ctx := context.Background()

	principal := money.MustParse("100.00").MulInt(75)
	fee := money.MustParse("20.00")
	if err := w.DebitForBuy(ctx, principal, fee); err != nil {
		t.Fatal(err)
	}

	s := w.Snapshot()
	if s.Available.String() != "92480.00" || s.Used.String() != "7520.00" {
		t.Fatalf("after buy: available=%s used=%s", s.Available, s.Used)
	}

	proceeds := money.MustParse("120.00").MulInt(75).Sub(fee) // 8980
	released := principal.Add(fee)                            // 7520
	if err := w.CreditForSell(ctx, proceeds, released); err != nil {
		t.Fatal(err)
	}
	if err := w.AddRealizedPnL(ctx, proceeds.Sub(released)); err != nil {
		t.Fatal(err)
	}

	s = w.Snapshot()
	if s.Available.String() != "101460.00" {
		t.Errorf("available = %s, want 101460.00", s.Available)
	}
	if !s.Used.IsZero() {
		t.Errorf("used = %s, want 0", s.Used)
	}
	if s.RealizedPnL.String() != "1460.00" {
		t.Errorf("realized = %s, want 1460.00", s.RealizedPnL)
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	w := newWallet(t, newFakeStorage(), "5000.00")
	ctx := context.Background()

	before := w.Snapshot()
	err := w.DebitForBuy(ctx, money.MustParse("100.00").MulInt(75), money.MustParse("20.00"))
	if !errors.Is(err, model.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	after := w.Snapshot()
	if !after.Available.Equal(before.Available) || !after.Used.Equal(before.Used) {
		t.Errorf("failed debit mutated wallet: %+v", after)
	}
}

func TestFlatRoundTripCostsTwoFees(t *testing.T) {
	// Same buy and sell price: the wallet ends down exactly two fees.
	w := newWallet(t, newFakeStorage(), "100000.00")
	ctx := context.Background()

	principal := money.MustParse("100.00").MulInt(75)
	fee := money.MustParse("20.00")
	if err := w.DebitForBuy(ctx, principal, fee); err != nil {
		t.Fatal(err)
	}
	proceeds := principal.Sub(fee)
	released := principal.Add(fee)
	if err := w.CreditForSell(ctx, proceeds, released); err != nil {
		t.Fatal(err)
	}
	if err := w.AddRealizedPnL(ctx, proceeds.Sub(released)); err != nil {
		t.Fatal(err)
	}

	s := w.Snapshot()
	if s.Available.String() != "99960.00" || !s.Used.IsZero() {
		t.Errorf("available=%s used=%s, want 99960.00 / 0", s.Available, s.Used)
	}
	if s.RealizedPnL.String() != "-40.00" {
		t.Errorf("realized = %s, want -40.00", s.RealizedPnL)
	}
	if !s.Total.Equal(s.StartingBalance.Add(s.RealizedPnL)) {
		t.Errorf("total %s != starting %s + realized %s", s.Total, s.StartingBalance, s.RealizedPnL)
	}
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	st := newFakeStorage()
	w := newWallet(t, st, "100000.00")
	ctx := context.Background()

	if err := w.DebitForBuy(ctx, money.MustParse("7500.00"), money.MustParse("20.00")); err != nil {
		t.Fatal(err)
	}
	if err := w.AddRealizedPnL(ctx, money.MustParse("-40.00")); err != nil {
		t.Fatal(err)
	}
	want := w.Snapshot()

	// Second wallet for the same session restores, not reinitialises.
	w2 := newWallet(t, st, "999999.00")
	got := w2.Snapshot()
	if !got.Available.Equal(want.Available) || !got.Used.Equal(want.Used) ||
		!got.RealizedPnL.Equal(want.RealizedPnL) || !got.StartingBalance.Equal(want.StartingBalance) {
		t.Errorf("restored = %+v, want %+v", got, want)
	}
}

func TestFailedPersistRollsBack(t *testing.T) {
	st := newFakeStorage()
	w := newWallet(t, st, "100000.00")
	ctx := context.Background()

	st.failSet = true
	err := w.DebitForBuy(ctx, money.MustParse("7500.00"), money.MustParse("20.00"))
	if err == nil {
		t.Fatal("expected persist failure")
	}

	s := w.Snapshot()
	if s.Available.String() != "100000.00" || !s.Used.IsZero() {
		t.Errorf("rollback failed: available=%s used=%s", s.Available, s.Used)
	}
}

func TestReset(t *testing.T) {
	w := newWallet(t, newFakeStorage(), "100000.00")
	ctx := context.Background()

	if err := w.DebitForBuy(ctx, money.MustParse("7500.00"), money.MustParse("20.00")); err != nil {
		t.Fatal(err)
	}
	if err := w.Reset(ctx, money.MustParse("50000.00")); err != nil {
		t.Fatal(err)
	}

	s := w.Snapshot()
	if s.Available.String() != "50000.00" || !s.Used.IsZero() || !s.RealizedPnL.IsZero() {
		t.Errorf("after reset: %+v", s)
	}
}

func TestTotalWithUnrealized(t *testing.T) {
	w := newWallet(t, newFakeStorage(), "100000.00")
	if err := w.AddRealizedPnL(context.Background(), money.MustParse("1460.00")); err != nil {
		t.Fatal(err)
	}
	got := w.TotalWithUnrealized(money.MustParse("-200.00"))
	if got.String() != "101260.00" {
		t.Errorf("TotalWithUnrealized = %s, want 101260.00", got)
	}
}
