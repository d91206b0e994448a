package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/positions"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/tickcache"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/wallet"
)

// DefaultChargePerOrder is the simulated brokerage per order.
var DefaultChargePerOrder = money.FromInt(20)

// OrderSink records filled orders (Redis mirror, SQLite journal).
type OrderSink interface {
	Record(ctx context.Context, o model.Order) error
}

// Paper simulates execution against the tick cache. Fills happen at the
// cached LTP, not at the requested price — the request price is advisory
// only, matching how the live path fills market orders.
type Paper struct {
	ticks  *tickcache.Cache
	ledger *ledger
	dedupe Deduper
	sinks  []OrderSink
	now    func() time.Time
}

// NewPaper creates the paper broker.
func NewPaper(ticks *tickcache.Cache, w *wallet.Wallet, tr *positions.Tracker, dedupe Deduper, charge money.Money, sinks ...OrderSink) *Paper {
	return &Paper{
		ticks:  ticks,
		ledger: newLedger(w, tr, charge),
		dedupe: dedupe,
		sinks:  sinks,
		now:    time.Now,
	}
}

func (p *Paper) Name() string { return "paper" }

// PlaceOrder fills a market order against the latest cached tick.
func (p *Paper) PlaceOrder(ctx context.Context, req Request) Result {
	now := p.now()
	if dup := guard(ctx, p.dedupe, req, now); dup != nil {
		return *dup
	}

	ctx, cancel := context.WithTimeout(ctx, placeTimeout)
	defer cancel()

	ltp, ok := p.ticks.LTP(req.Segment, req.SecurityID)
	if !ok || ltp <= 0 {
		return Result{Err: fmt.Errorf("broker: no price for %s:%s: %w",
			req.Segment, req.SecurityID, model.ErrMarketDataStale)}
	}
	fill := money.FromPaise(ltp)

	if err := p.ledger.apply(ctx, req, fill); err != nil {
		return Result{Err: err}
	}

	order := model.Order{
		ID:         fmt.Sprintf("P-%d", now.UnixMilli()),
		Segment:    req.Segment,
		SecurityID: req.SecurityID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Qty:        req.Qty,
		AvgPrice:   fill,
		TS:         now,
	}
	for _, sink := range p.sinks {
		if err := sink.Record(ctx, order); err != nil {
			slog.Error("order record failed", "order_id", order.ID, "err", err)
		}
	}
	slog.Info("paper fill",
		"order_id", order.ID, "side", order.Side, "security_id", order.SecurityID,
		"qty", order.Qty, "price", fill.String(), "intent", req.Intent)
	return Result{Success: true, OrderID: order.ID, FillPrice: fill}
}
