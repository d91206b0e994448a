// Package positions maintains the net-position ledger keyed by
// (segment, security_id, side). Mutations for a given key are serialised by
// lock striping; every mutation persists the full record to Redis and the
// record is deleted when net quantity reaches zero.
package positions

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/markethours"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	redisstore "github.com/shubhamtaywade82/dhan-scalper-sub004/internal/store/redis"
)

const stripeCount = 16

// Storage is the slice of the Redis store the tracker needs.
type Storage interface {
	HSetAll(ctx context.Context, key string, fields map[string]interface{}, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	SAdd(ctx context.Context, key string, members ...interface{}) error
	SRem(ctx context.Context, key string, members ...interface{}) error
	SMembers(ctx context.Context, key string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
}

// Entry describes a buy that opens or augments a position.
type Entry struct {
	Segment    string
	SecurityID string
	Side       model.PositionSide
	Qty        int64
	Price      money.Money
	OptionType string
	Strike     int64
	Expiry     string
	Underlying string
}

// Tracker owns all open positions for a session.
type Tracker struct {
	storage   Storage
	sessionID string

	stripes [stripeCount]sync.Mutex

	mu        sync.RWMutex
	positions map[string]*model.Position

	now func() time.Time
}

// NewTracker creates an empty tracker for the session.
func NewTracker(storage Storage, sessionID string) *Tracker {
	return &Tracker{
		storage:   storage,
		sessionID: sessionID,
		positions: make(map[string]*model.Position),
		now:       time.Now,
	}
}

func (t *Tracker) stripe(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &t.stripes[h.Sum32()%stripeCount]
}

func (t *Tracker) setKey() string {
	return redisstore.Key("positions", t.sessionID)
}

// Load restores open positions from Redis (same-day restart recovery).
func (t *Tracker) Load(ctx context.Context) error {
	ids, err := t.storage.SMembers(ctx, t.setKey())
	if err != nil {
		return fmt.Errorf("positions: load set: %w", err)
	}
	for _, id := range ids {
		h, err := t.storage.HGetAll(ctx, redisstore.Key("position", id))
		if err != nil {
			return fmt.Errorf("positions: load %s: %w", id, err)
		}
		if len(h) == 0 {
			// Hash expired but set membership survived; drop the orphan.
			_ = t.storage.SRem(ctx, t.setKey(), id)
			continue
		}
		p, err := fromHash(h)
		if err != nil {
			return fmt.Errorf("positions: restore %s: %w", id, err)
		}
		t.mu.Lock()
		t.positions[p.ID()] = p
		t.mu.Unlock()
	}
	return nil
}

// Add opens a new position or augments an existing one with a weighted
// average entry price.
func (t *Tracker) Add(ctx context.Context, e Entry) (*model.Position, error) {
	if e.Qty <= 0 {
		return nil, fmt.Errorf("positions: add qty must be positive, got %d", e.Qty)
	}
	id := e.Segment + ":" + e.SecurityID + ":" + string(e.Side)
	mu := t.stripe(id)
	mu.Lock()
	defer mu.Unlock()

	t.mu.RLock()
	p, ok := t.positions[id]
	t.mu.RUnlock()

	now := t.now()
	if !ok {
		p = &model.Position{
			Segment:      e.Segment,
			SecurityID:   e.SecurityID,
			Side:         e.Side,
			NetQty:       e.Qty,
			BuyQty:       e.Qty,
			BuyAvg:       e.Price,
			CurrentPrice: e.Price,
			OptionType:   e.OptionType,
			Strike:       e.Strike,
			Expiry:       e.Expiry,
			Underlying:   e.Underlying,
			CreatedAt:    now,
			LastUpdated:  now,
		}
	} else {
		// buy_avg = (buy_avg·buy_qty + price·qty) / (buy_qty + qty)
		weighted := p.BuyAvg.MulInt(p.BuyQty).Add(e.Price.MulInt(e.Qty))
		p.BuyAvg = weighted.DivInt(p.BuyQty + e.Qty)
		p.BuyQty += e.Qty
		p.NetQty += e.Qty
		p.CurrentPrice = e.Price
		p.LastUpdated = now
	}

	if err := t.persist(ctx, p); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.positions[id] = p
	t.mu.Unlock()
	return p, nil
}

// PartialExit records a sell against the position and returns the realized
// P&L delta ((price − buy_avg) · qty for LONG). When net quantity reaches
// zero the record is removed from Redis and from the session set.
func (t *Tracker) PartialExit(ctx context.Context, id string, qty int64, price money.Money) (money.Money, error) {
	mu := t.stripe(id)
	mu.Lock()
	defer mu.Unlock()

	t.mu.RLock()
	p, ok := t.positions[id]
	t.mu.RUnlock()
	if !ok {
		return money.Zero, fmt.Errorf("positions: no open position %s", id)
	}
	if qty <= 0 || qty > p.NetQty {
		return money.Zero, fmt.Errorf("positions: exit qty %d out of range (net %d)", qty, p.NetQty)
	}

	var delta money.Money
	if p.Side == model.PositionLong {
		delta = price.Sub(p.BuyAvg).MulInt(qty)
	} else {
		delta = p.BuyAvg.Sub(price).MulInt(qty)
	}

	weighted := p.SellAvg.MulInt(p.SellQty).Add(price.MulInt(qty))
	p.SellAvg = weighted.DivInt(p.SellQty + qty)
	p.SellQty += qty
	p.NetQty -= qty
	p.RealizedPnL = p.RealizedPnL.Add(delta)
	p.CurrentPrice = price
	p.LastUpdated = t.now()

	if p.NetQty == 0 {
		if err := t.storage.Del(ctx, redisstore.Key("position", id)); err != nil {
			return money.Zero, fmt.Errorf("positions: delete %s: %w", id, err)
		}
		if err := t.storage.SRem(ctx, t.setKey(), id); err != nil {
			return money.Zero, fmt.Errorf("positions: unset %s: %w", id, err)
		}
		t.mu.Lock()
		delete(t.positions, id)
		t.mu.Unlock()
		return delta, nil
	}

	if err := t.persist(ctx, p); err != nil {
		return money.Zero, err
	}
	return delta, nil
}

// UpdateUnrealized refreshes the mark-to-market P&L from the current price.
// In-memory only; the risk loop calls this every second.
func (t *Tracker) UpdateUnrealized(id string, current money.Money) {
	mu := t.stripe(id)
	mu.Lock()
	defer mu.Unlock()

	t.mu.RLock()
	p, ok := t.positions[id]
	t.mu.RUnlock()
	if !ok {
		return
	}
	p.CurrentPrice = current
	if p.Side == model.PositionLong {
		p.UnrealizedPnL = current.Sub(p.BuyAvg).MulInt(p.NetQty)
	} else {
		p.UnrealizedPnL = p.BuyAvg.Sub(current).MulInt(p.NetQty)
	}
	p.LastUpdated = t.now()
}

// Get returns a copy of the position, or nil.
func (t *Tracker) Get(id string) *model.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.positions[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// All returns copies of every open position.
func (t *Tracker) All() []model.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, *p)
	}
	return out
}

// OpenQty returns the open long quantity for (segment, security_id).
func (t *Tracker) OpenQty(segment, securityID string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id := segment + ":" + securityID + ":" + string(model.PositionLong)
	if p, ok := t.positions[id]; ok {
		return p.NetQty
	}
	return 0
}

// TotalUnrealized sums unrealized P&L across open positions.
func (t *Tracker) TotalUnrealized() money.Money {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := money.Zero
	for _, p := range t.positions {
		total = total.Add(p.UnrealizedPnL)
	}
	return total
}

func (t *Tracker) persist(ctx context.Context, p *model.Position) error {
	id := p.ID()
	fields := map[string]interface{}{
		"exchange_segment":  p.Segment,
		"security_id":       p.SecurityID,
		"side":              string(p.Side),
		"net_qty":           p.NetQty,
		"buy_qty":           p.BuyQty,
		"buy_avg":           p.BuyAvg.String(),
		"sell_qty":          p.SellQty,
		"sell_avg":          p.SellAvg.String(),
		"realized_pnl":      p.RealizedPnL.String(),
		"unrealized_pnl":    p.UnrealizedPnL.String(),
		"current_price":     p.CurrentPrice.String(),
		"option_type":       p.OptionType,
		"strike":            p.Strike,
		"expiry":            p.Expiry,
		"underlying_symbol": p.Underlying,
		"created_at":        p.CreatedAt.In(markethours.IST).Format(time.RFC3339),
		"last_updated":      p.LastUpdated.In(markethours.IST).Format(time.RFC3339),
	}
	if err := t.storage.HSetAll(ctx, redisstore.Key("position", id), fields, redisstore.BalanceTTL); err != nil {
		return fmt.Errorf("positions: persist %s: %w", id, err)
	}
	if err := t.storage.SAdd(ctx, t.setKey(), id); err != nil {
		return fmt.Errorf("positions: index %s: %w", id, err)
	}
	return nil
}
