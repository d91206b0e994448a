package redis

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
)

// OrderRecorder persists order records to Redis. Order writes are
// best-effort (the SQLite journal is the durable copy): while the circuit
// breaker is open, records are buffered locally and replayed once the
// breaker closes again.
type OrderRecorder struct {
	store     *Store
	sessionID string

	mu      sync.Mutex
	pending []model.Order
	maxBuf  int
}

// NewOrderRecorder wires an OrderRecorder to the store's breaker so the
// buffer flushes on recovery. One recorder serves one session.
func NewOrderRecorder(store *Store, sessionID string, maxBuffer int) *OrderRecorder {
	if maxBuffer <= 0 {
		maxBuffer = 1000
	}
	r := &OrderRecorder{store: store, sessionID: sessionID, maxBuf: maxBuffer}

	prev := store.cb.OnStateChange
	store.cb.OnStateChange = func(from, to BreakerState) {
		if prev != nil {
			prev(from, to)
		}
		if to == BreakerClosed {
			go r.flush()
		}
	}
	return r
}

// Record writes order:{id} and adds the id to orders:{session}. While Redis
// is unavailable the record is buffered, never lost.
func (r *OrderRecorder) Record(ctx context.Context, o model.Order) error {
	err := r.write(ctx, o)
	if errors.Is(err, ErrBreakerOpen) {
		r.buffer(o)
		return nil
	}
	return err
}

func (r *OrderRecorder) write(ctx context.Context, o model.Order) error {
	fields := map[string]interface{}{
		"id":            o.ID,
		"segment":       o.Segment,
		"security_id":   o.SecurityID,
		"symbol":        o.Symbol,
		"side":          string(o.Side),
		"quantity":      o.Qty,
		"average_price": o.AvgPrice.String(),
		"timestamp":     o.TS.Format(time.RFC3339),
	}
	if err := r.store.HSetAll(ctx, Key("order", o.ID), fields, BalanceTTL); err != nil {
		return err
	}
	return r.store.SAdd(ctx, Key("orders", r.sessionID), o.ID)
}

// Orders loads all orders recorded under the session, oldest first.
func (r *OrderRecorder) Orders(ctx context.Context) ([]model.Order, error) {
	ids, err := r.store.SMembers(ctx, Key("orders", r.sessionID))
	if err != nil {
		return nil, err
	}
	out := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		h, err := r.store.HGetAll(ctx, Key("order", id))
		if err != nil {
			return nil, err
		}
		if len(h) == 0 {
			continue
		}
		o, err := orderFromHash(h)
		if err != nil {
			slog.Warn("skipping corrupt order record", "order_id", id, "err", err)
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out, nil
}

func orderFromHash(h map[string]string) (model.Order, error) {
	qty, err := strconv.ParseInt(h["quantity"], 10, 64)
	if err != nil {
		return model.Order{}, err
	}
	avg, err := money.Parse(h["average_price"])
	if err != nil {
		return model.Order{}, err
	}
	ts, err := time.Parse(time.RFC3339, h["timestamp"])
	if err != nil {
		return model.Order{}, err
	}
	return model.Order{
		ID:         h["id"],
		Segment:    h["segment"],
		SecurityID: h["security_id"],
		Symbol:     h["symbol"],
		Side:       model.Side(h["side"]),
		Qty:        qty,
		AvgPrice:   avg,
		TS:         ts,
	}, nil
}

func (r *OrderRecorder) buffer(o model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) >= r.maxBuf {
		r.pending = r.pending[1:]
	}
	r.pending = append(r.pending, o)
	slog.Warn("redis unavailable, order record buffered", "order_id", o.ID, "pending", len(r.pending))
}

func (r *OrderRecorder) flush() {
	r.mu.Lock()
	toFlush := r.pending
	r.pending = nil
	r.mu.Unlock()
	if len(toFlush) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, o := range toFlush {
		if err := r.write(ctx, o); err != nil {
			slog.Error("order record flush failed", "order_id", o.ID, "err", err)
		}
	}
	slog.Info("flushed buffered order records", "count", len(toFlush))
}

// PendingCount returns the number of buffered order records.
func (r *OrderRecorder) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
