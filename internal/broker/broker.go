// Package broker defines the order-placement surface shared by the paper
// and live execution modes. Both implementations observe the same contract:
// market orders only, failed placements surface as results (never panics),
// and at most one action per (security_id, side, qty, intent) within the
// 10-second idempotency window.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	redisstore "github.com/shubhamtaywade82/dhan-scalper-sub004/internal/store/redis"
)

// placeTimeout bounds a single order placement.
const placeTimeout = 5 * time.Second

// Request describes one market order.
type Request struct {
	Symbol     string // underlying symbol, for reporting
	Segment    string
	SecurityID string
	Side       model.Side
	Qty        int64
	Price      money.Money // advisory; fills happen at market
	Intent     string      // entry, trailing_stop, breakeven_lock, emergency, ...

	// Option metadata carried on entries for the position record.
	OptionType string
	Strike     int64
	Expiry     string
}

// Result is the outcome of a placement. Err carries a domain error kind
// (insufficient_balance, order_rejected, duplicate, ...) on failure.
type Result struct {
	Success   bool
	OrderID   string
	FillPrice money.Money
	Err       error
}

// Broker places market orders.
type Broker interface {
	Name() string
	PlaceOrder(ctx context.Context, req Request) Result
}

// Deduper is the idempotency slice of the Redis store.
type Deduper interface {
	Dedupe(ctx context.Context, actionKey string, now time.Time) (bool, error)
}

// guard acquires the idempotency key for the request. A repeat within the
// window yields a duplicate result; a Redis outage fails open (placing twice
// in an outage is worse than a duplicate marker miss, but exits must not be
// blocked by a cache failure).
func guard(ctx context.Context, d Deduper, req Request, now time.Time) *Result {
	key := fmt.Sprintf("%s:%s:%d:%s", req.SecurityID, req.Side, req.Qty, req.Intent)
	won, err := d.Dedupe(ctx, key, now)
	if err != nil {
		slog.Warn("dedupe check failed, allowing action", "key", key, "err", err)
		return nil
	}
	if !won {
		return &Result{Err: fmt.Errorf("broker: %s: %w", key, model.ErrDuplicateAction)}
	}
	return nil
}

var _ Deduper = (*redisstore.Store)(nil)
