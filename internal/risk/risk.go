// Package risk implements the no-loss trend rider: a per-position state
// machine that arms a breakeven lock once the position has run far enough,
// then trails a monotone stop underneath the peak while the trend holds.
package risk

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/broker"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/positions"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/tickcache"
)

// Exit reasons carried as the order intent.
const (
	ReasonEmergency    = "emergency"
	ReasonInitialSL    = "initial_sl"
	ReasonBreakeven    = "breakeven_lock"
	ReasonTrailingStop = "trailing_stop"
)

// Config holds the rider thresholds.
type Config struct {
	EmergencyFloor        money.Money // absolute loss that forces an exit
	InitialSLPct          float64     // pre-arm stop loss, fraction of entry
	BreakevenThresholdPct float64     // peak gain that arms the lock
	TrailPct              float64     // trigger distance below peak
	RupeeStep             money.Money // minimum trigger advance
}

// Defaults returns the canonical rider configuration.
func Defaults() Config {
	return Config{
		EmergencyFloor:        money.FromInt(1000),
		InitialSLPct:          0.02,
		BreakevenThresholdPct: 0.15,
		TrailPct:              0.05,
		RupeeStep:             money.FromInt(3),
	}
}

// Levels is the slice of the Redis store holding peak/trigger/trend state.
type Levels interface {
	UpdatePeak(ctx context.Context, securityID, candidate string) (string, bool, error)
	UpdateTrigger(ctx context.Context, securityID, candidate string) (string, bool, error)
	Trigger(ctx context.Context, securityID string) (string, bool, error)
	ClearLevels(ctx context.Context, securityID string) error
	TrendOn(ctx context.Context, securityID string) (bool, error)
}

// Manager runs the rider over every open position once per risk tick.
type Manager struct {
	cfg     Config
	ticks   *tickcache.Cache
	tracker *positions.Tracker
	broker  broker.Broker
	levels  Levels
	onExit  func(ctx context.Context, pos model.Position, fill money.Money, reason string)
	log     *slog.Logger
}

// NewManager wires the rider.
func NewManager(cfg Config, ticks *tickcache.Cache, tr *positions.Tracker, b broker.Broker, levels Levels) *Manager {
	return &Manager{
		cfg:     cfg,
		ticks:   ticks,
		tracker: tr,
		broker:  b,
		levels:  levels,
		log:     slog.With("component", "risk"),
	}
}

// OnExit installs a callback fired after each successful exit, for metrics
// and alerting. Set once during wiring, before the first Tick.
func (m *Manager) OnExit(fn func(ctx context.Context, pos model.Position, fill money.Money, reason string)) {
	m.onExit = fn
}

// Tick evaluates every open position once. Exits are always evaluated, even
// when the feed is stale — a frozen price is still a price the stop can act
// on; only new entries pause on staleness, and those are not this loop's job.
func (m *Manager) Tick(ctx context.Context) {
	for _, pos := range m.tracker.All() {
		if err := m.evaluate(ctx, pos); err != nil {
			m.log.Error("risk evaluation failed",
				"position", pos.ID(), "err", err)
		}
	}
}

// evaluate applies the fixed precedence and acts on the first match:
// emergency floor, initial stop (pre-arm only), breakeven lock, trailing
// stop, then trigger adjustment.
func (m *Manager) evaluate(ctx context.Context, pos model.Position) error {
	if pos.NetQty <= 0 || pos.Side != model.PositionLong {
		return nil
	}

	current := pos.CurrentPrice
	if ltp, ok := m.ticks.LTP(pos.Segment, pos.SecurityID); ok && ltp > 0 {
		current = money.FromPaise(ltp)
	}
	if current.LessOrEqual(money.Zero) {
		return nil
	}
	m.tracker.UpdateUnrealized(pos.ID(), current)

	entry := pos.BuyAvg
	pnl := current.Sub(entry).MulInt(pos.NetQty)
	pnlPct := current.Sub(entry).Float64() / entry.Float64()

	// Advance the peak first so arming reflects this tick's high.
	peakStr, _, err := m.levels.UpdatePeak(ctx, pos.SecurityID, current.String())
	if err != nil {
		return err
	}
	peak, err := money.Parse(peakStr)
	if err != nil {
		return err
	}
	peakPct := peak.Sub(entry).Float64() / entry.Float64()
	armed := peakPct >= m.cfg.BreakevenThresholdPct

	switch {
	case pnl.LessOrEqual(m.cfg.EmergencyFloor.Neg()):
		return m.exit(ctx, pos, current, ReasonEmergency)
	case !armed && pnlPct <= -m.cfg.InitialSLPct:
		return m.exit(ctx, pos, current, ReasonInitialSL)
	case armed && current.LessThan(entry):
		return m.exit(ctx, pos, current, ReasonBreakeven)
	}

	if armed {
		trigStr, hasTrig, err := m.levels.Trigger(ctx, pos.SecurityID)
		if err != nil {
			return err
		}
		trigger := money.Zero
		if hasTrig {
			if trigger, err = money.Parse(trigStr); err != nil {
				return err
			}
			if current.LessOrEqual(trigger) {
				return m.exit(ctx, pos, current, ReasonTrailingStop)
			}
		}

		trendOn, err := m.levels.TrendOn(ctx, pos.SecurityID)
		if err != nil {
			return err
		}
		if trendOn {
			return m.adjustTrigger(ctx, pos, peak, trigger, hasTrig)
		}
	}
	return nil
}

// adjustTrigger commits peak·(1−trail_pct) when it advances the trigger by
// at least the rupee step. The step clamp suppresses churn from small peak
// moves; the Redis CAS keeps the level monotone across processes.
func (m *Manager) adjustTrigger(ctx context.Context, pos model.Position, peak, trigger money.Money, hasTrig bool) error {
	candidate := peak.Mul(money.FromRupees(1 - m.cfg.TrailPct))
	if hasTrig {
		if !candidate.GreaterThan(trigger) || candidate.Sub(trigger).LessThan(m.cfg.RupeeStep) {
			return nil
		}
	}
	applied, _, err := m.levels.UpdateTrigger(ctx, pos.SecurityID, candidate.String())
	if err != nil {
		return err
	}
	m.log.Info("trailing trigger advanced",
		"security_id", pos.SecurityID, "trigger", applied, "peak", peak.String())
	return nil
}

// exit market-sells the whole position. A duplicate within the idempotency
// window is not an error; some other invocation already owns the action.
func (m *Manager) exit(ctx context.Context, pos model.Position, current money.Money, reason string) error {
	res := m.broker.PlaceOrder(ctx, broker.Request{
		Symbol:     pos.Underlying,
		Segment:    pos.Segment,
		SecurityID: pos.SecurityID,
		Side:       model.SideSell,
		Qty:        pos.NetQty,
		Price:      current,
		Intent:     reason,
	})
	if res.Err != nil {
		if errors.Is(res.Err, model.ErrDuplicateAction) {
			m.log.Debug("exit already in flight", "security_id", pos.SecurityID, "reason", reason)
			return nil
		}
		return res.Err
	}

	m.log.Warn("position exited",
		"security_id", pos.SecurityID, "reason", reason,
		"qty", pos.NetQty, "fill", res.FillPrice.String(),
		"entry", pos.BuyAvg.String())
	if m.onExit != nil {
		m.onExit(ctx, pos, res.FillPrice, reason)
	}

	// Levels are per security; clear only once nothing remains open.
	if m.tracker.OpenQty(pos.Segment, pos.SecurityID) == 0 {
		if err := m.levels.ClearLevels(ctx, pos.SecurityID); err != nil {
			m.log.Error("level cleanup failed", "security_id", pos.SecurityID, "err", err)
		}
	}
	return nil
}
