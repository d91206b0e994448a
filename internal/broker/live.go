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
	"github.com/shubhamtaywade82/dhan-scalper-sub004/pkg/dhanhq"
)

// fillPollAttempts bounds the trade-book polls after a placement. Market
// orders on liquid index options fill within a second or two.
const (
	fillPollAttempts = 3
	fillPollInterval = 700 * time.Millisecond
)

// segmentForOrder maps the internal segment tag to the broker's order
// segment. Index segments never appear on orders; options trade on F&O.
func segmentForOrder(segment string) string {
	if segment == model.SegmentBSE {
		return "BSE_FNO"
	}
	return "NSE_FNO"
}

// Live places real orders through the DhanHQ API and mirrors the fills into
// the same internal wallet and position ledger the paper mode uses, so risk
// management and reporting behave identically in both modes.
type Live struct {
	api    *dhanhq.Client
	ticks  *tickcache.Cache
	ledger *ledger
	dedupe Deduper
	sinks  []OrderSink
	now    func() time.Time
	log    *slog.Logger
}

// NewLive creates the live broker.
func NewLive(api *dhanhq.Client, ticks *tickcache.Cache, w *wallet.Wallet, tr *positions.Tracker, dedupe Deduper, charge money.Money, sinks ...OrderSink) *Live {
	return &Live{
		api:    api,
		ticks:  ticks,
		ledger: newLedger(w, tr, charge),
		dedupe: dedupe,
		sinks:  sinks,
		now:    time.Now,
		log:    slog.With("component", "live_broker"),
	}
}

func (l *Live) Name() string { return "live" }

// PlaceOrder submits an intraday market order and waits briefly for the
// fill price from the trade book. When the broker has not reported a trade
// yet, the cached LTP stands in so the ledger is never blocked on the
// trade book; the request price is the last resort.
func (l *Live) PlaceOrder(ctx context.Context, req Request) Result {
	now := l.now()
	if dup := guard(ctx, l.dedupe, req, now); dup != nil {
		return *dup
	}

	ctx, cancel := context.WithTimeout(ctx, placeTimeout)
	defer cancel()

	resp, err := l.api.PlaceOrder(ctx, dhanhq.OrderRequest{
		TransactionType: string(req.Side),
		ExchangeSegment: segmentForOrder(req.Segment),
		ProductType:     "MARGIN",
		OrderType:       "MARKET",
		Validity:        "DAY",
		SecurityID:      req.SecurityID,
		Quantity:        req.Qty,
	})
	if err != nil {
		return Result{Err: fmt.Errorf("broker: %w: %v", model.ErrOrderRejected, err)}
	}
	if resp.OrderStatus == "REJECTED" {
		return Result{Err: fmt.Errorf("broker: %w: order %s rejected", model.ErrOrderRejected, resp.OrderID)}
	}

	fill := l.fillPrice(ctx, resp.OrderID, req)

	if err := l.ledger.apply(ctx, req, fill); err != nil {
		// The real order already went through; the internal ledger is now
		// behind the broker until the next reconciliation.
		l.log.Error("ledger update failed after live fill",
			"order_id", resp.OrderID, "security_id", req.SecurityID, "err", err)
		return Result{Err: err}
	}

	order := model.Order{
		ID:         resp.OrderID,
		Segment:    req.Segment,
		SecurityID: req.SecurityID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Qty:        req.Qty,
		AvgPrice:   fill,
		TS:         now,
	}
	for _, sink := range l.sinks {
		if err := sink.Record(ctx, order); err != nil {
			l.log.Error("order record failed", "order_id", order.ID, "err", err)
		}
	}
	l.log.Info("live fill",
		"order_id", order.ID, "side", order.Side, "security_id", order.SecurityID,
		"qty", order.Qty, "price", fill.String(), "intent", req.Intent)
	return Result{Success: true, OrderID: order.ID, FillPrice: fill}
}

// fillPrice polls the trade book for the average fill, falling back to the
// cached LTP and then the advisory request price.
func (l *Live) fillPrice(ctx context.Context, orderID string, req Request) money.Money {
	for attempt := 0; attempt < fillPollAttempts; attempt++ {
		avg, ok, err := l.api.AvgFillPrice(ctx, orderID)
		if err != nil {
			l.log.Warn("trade book lookup failed", "order_id", orderID, "err", err)
			break
		}
		if ok {
			return money.FromRupees(avg)
		}
		select {
		case <-ctx.Done():
			attempt = fillPollAttempts
		case <-time.After(fillPollInterval):
		}
	}

	if ltp, ok := l.ticks.LTP(req.Segment, req.SecurityID); ok && ltp > 0 {
		l.log.Warn("no trade reported yet, using cached ltp", "order_id", orderID)
		return money.FromPaise(ltp)
	}
	l.log.Warn("no trade or tick available, using request price", "order_id", orderID)
	return req.Price
}

var (
	_ Broker = (*Paper)(nil)
	_ Broker = (*Live)(nil)
)
