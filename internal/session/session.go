// Package session scopes all persisted state to one trading day. A restart
// within the same day resumes the same session id and therefore the same
// wallet, positions and order history.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/markethours"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	redisstore "github.com/shubhamtaywade82/dhan-scalper-sub004/internal/store/redis"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/wallet"
)

// Mode selects the execution backend.
type Mode string

const (
	ModePaper  Mode = "PAPER"
	ModeLive   Mode = "LIVE"
	ModeDryRun Mode = "DRYRUN"
)

// ID returns the date-scoped session id, e.g. PAPER_20260824. Dates are
// taken in IST so a UTC-hosted process still buckets by trading day.
func ID(mode Mode, now time.Time) string {
	return string(mode) + "_" + now.In(markethours.IST).Format("20060102")
}

// Report is the persisted session snapshot.
type Report struct {
	SessionID   string              `json:"session_id"`
	Mode        Mode                `json:"mode"`
	StartTime   time.Time           `json:"start_time"`
	EndTime     *time.Time          `json:"end_time,omitempty"`
	Balance     wallet.BalanceState `json:"balance"`
	Positions   []model.Position    `json:"positions"`
	Orders      []model.Order       `json:"orders"`
	TotalPnL    money.Money         `json:"total_pnl"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Storage is the slice of the Redis store the reporter needs.
type Storage interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	HSetAll(ctx context.Context, key string, fields map[string]interface{}, ttl time.Duration) error
}

// PositionSource enumerates open positions.
type PositionSource interface {
	All() []model.Position
	TotalUnrealized() money.Money
}

// OrderSource enumerates the session's recorded orders.
type OrderSource interface {
	Orders(ctx context.Context) ([]model.Order, error)
}

// Reporter writes session reports at checkpoints and on shutdown.
type Reporter struct {
	store     Storage
	wallet    *wallet.Wallet
	positions PositionSource
	orders    OrderSource
	sessionID string
	mode      Mode
	started   time.Time
}

// NewReporter creates a reporter for the session.
func NewReporter(store Storage, w *wallet.Wallet, pos PositionSource, ord OrderSource, sessionID string, mode Mode, started time.Time) *Reporter {
	return &Reporter{
		store:     store,
		wallet:    w,
		positions: pos,
		orders:    ord,
		sessionID: sessionID,
		mode:      mode,
		started:   started,
	}
}

// Checkpoint writes the current session snapshot.
func (r *Reporter) Checkpoint(ctx context.Context) error {
	return r.write(ctx, nil)
}

// Close writes the final snapshot with an end time.
func (r *Reporter) Close(ctx context.Context, at time.Time) error {
	return r.write(ctx, &at)
}

func (r *Reporter) write(ctx context.Context, end *time.Time) error {
	now := time.Now().In(markethours.IST)
	bal := r.wallet.Snapshot()
	unrealized := r.positions.TotalUnrealized()

	orders, err := r.orders.Orders(ctx)
	if err != nil {
		// A report with an empty order list is still worth writing.
		orders = nil
	}

	rep := Report{
		SessionID:   r.sessionID,
		Mode:        r.mode,
		StartTime:   r.started,
		EndTime:     end,
		Balance:     bal,
		Positions:   r.positions.All(),
		Orders:      orders,
		TotalPnL:    bal.RealizedPnL.Add(unrealized),
		GeneratedAt: now,
	}

	blob, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("session: marshal report: %w", err)
	}
	if err := r.store.Set(ctx, redisstore.Key("session", r.sessionID), string(blob), redisstore.BalanceTTL); err != nil {
		return fmt.Errorf("session: persist report: %w", err)
	}

	meta := map[string]interface{}{
		"session_id":   r.sessionID,
		"mode":         string(r.mode),
		"start_time":   r.started.In(markethours.IST).Format(time.RFC3339),
		"realized_pnl": bal.RealizedPnL.String(),
		"total_pnl":    rep.TotalPnL.String(),
		"open_count":   len(rep.Positions),
		"order_count":  len(rep.Orders),
		"updated_at":   now.Format(time.RFC3339),
	}
	if end != nil {
		meta["end_time"] = end.In(markethours.IST).Format(time.RFC3339)
	}
	if err := r.store.HSetAll(ctx, redisstore.Key("session_meta", r.sessionID), meta, redisstore.BalanceTTL); err != nil {
		return fmt.Errorf("session: persist meta: %w", err)
	}
	return nil
}

// LoadReport reads a previously written session report.
func LoadReport(ctx context.Context, store Storage, sessionID string) (*Report, error) {
	blob, ok, err := store.Get(ctx, redisstore.Key("session", sessionID))
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", sessionID, err)
	}
	if !ok || strings.TrimSpace(blob) == "" {
		return nil, nil
	}
	var rep Report
	if err := json.Unmarshal([]byte(blob), &rep); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", sessionID, err)
	}
	return &rep, nil
}
