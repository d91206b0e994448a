package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/config"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/broker"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/logger"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/markethours"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/notification"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/sizer"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/pkg/dhanhq"
)

// Task cadences.
const (
	decisionInterval   = 60 * time.Second
	riskInterval       = time.Second
	statusInterval     = 60 * time.Second
	marketDataInterval = 5 * time.Second
	marketDataStagger  = 10 * time.Second
)

func (a *App) registerTasks() {
	must := func(err error) {
		if err != nil {
			panic(err) // duplicate registration is a programming error
		}
	}

	must(a.sched.ScheduleRecurring("trading-decision", decisionInterval, a.tradingDecision))
	must(a.sched.ScheduleRecurring("risk-loop", riskInterval, a.riskLoop))
	must(a.sched.ScheduleRecurring("status-report", statusInterval, a.statusReport))

	for i, sym := range a.cfg.Symbols {
		sym := sym
		delay := time.Duration(i) * marketDataStagger
		name := "market-data:" + sym.Name
		must(a.sched.ScheduleOnce(name+":start", delay, func(ctx context.Context) error {
			return a.sched.ScheduleRecurring(name, marketDataInterval, func(ctx context.Context) error {
				return a.refreshMarketData(ctx, sym)
			})
		}))
	}
}

// tradingDecision evaluates every symbol once: refresh trend flags, gate the
// signal, pick the contract, size it and enter.
func (a *App) tradingDecision(ctx context.Context) error {
	now := time.Now()
	for _, sym := range a.cfg.Symbols {
		cctx := logger.WithCycleID(ctx, logger.NewCycleID(sym.Name, now))
		if err := a.evaluateSymbol(cctx, sym, now); err != nil {
			a.log.Error("decision failed", append([]any{"symbol", sym.Name, "err", err},
				logger.CycleAttrs(cctx)...)...)
		}
	}
	return nil
}

func (a *App) evaluateSymbol(ctx context.Context, sym config.Symbol, now time.Time) error {
	spotKey := sym.SpotSegment + ":" + sym.SpotSecurityID
	bars := a.book.Get(spotKey).ThreeMinute()
	sig := a.gate.Evaluate(sym.Name, bars, now)
	a.publishTrend(ctx, sym)

	if !sig.Actionable() {
		return nil
	}
	a.metrics.SignalsTotal.WithLabelValues(string(sig.Kind)).Inc()
	a.log.Info("signal", "symbol", sym.Name, "kind", string(sig.Kind),
		"adx", sig.ADX, "supertrend_dir", sig.SupertrendDir)

	if a.cfg.EnforceMarketHours && !markethours.CanEnter(now) {
		a.log.Info("entry suppressed outside entry window", "symbol", sym.Name)
		return nil
	}
	if age, ok := a.ticks.Age(sym.SpotSegment, sym.SpotSecurityID, now); !ok || age > a.cfg.Heartbeat() {
		a.metrics.StaleTicks.Inc()
		return fmt.Errorf("spot feed stale for %s: %w", sym.Name, model.ErrMarketDataStale)
	}

	spotLTP, ok := a.ticks.LTP(sym.SpotSegment, sym.SpotSecurityID)
	if !ok || spotLTP <= 0 {
		return fmt.Errorf("no spot price for %s: %w", sym.Name, model.ErrMarketDataStale)
	}
	spot := money.FromPaise(spotLTP)

	pick, err := a.picker.Pick(sym.Name, spot, sig.Kind)
	if err != nil {
		return err
	}
	lotSize := a.resolver.LotSize(sym.Name)
	qty := sizer.Sizer{AllocationPct: sym.AllocationPct, MaxLots: sym.MaxLots}.
		Quantity(a.wallet.Available(), pick.Premium, lotSize)
	if qty == 0 {
		a.log.Info("entry skipped, sizing yielded zero",
			"symbol", sym.Name, "premium", pick.Premium.String())
		return nil
	}

	securityID := pick.SecurityID(sig.Kind)
	segment := a.resolver.Segment(sym.Name)

	if a.dryRun {
		a.log.Info("dryrun entry",
			"symbol", sym.Name, "kind", string(sig.Kind), "security_id", securityID,
			"strike", pick.Strike, "expiry", pick.Expiry,
			"premium", pick.Premium.String(), "qty", qty)
		return nil
	}

	if a.feed != nil {
		// Track both legs so exits and the risk loop see fresh premiums.
		_ = a.feed.Subscribe(
			dhanhq.Instrument{Segment: segment, SecurityID: pick.CESecurityID},
			dhanhq.Instrument{Segment: segment, SecurityID: pick.PESecurityID},
		)
	}

	start := time.Now()
	res := a.broker.PlaceOrder(ctx, broker.Request{
		Symbol:     sym.Name,
		Segment:    segment,
		SecurityID: securityID,
		Side:       model.SideBuy,
		Qty:        qty,
		Price:      pick.Premium,
		Intent:     "entry",
		OptionType: pick.OptionType(sig.Kind),
		Strike:     pick.Strike,
		Expiry:     pick.Expiry,
	})
	a.metrics.OrderPlaceDur.Observe(time.Since(start).Seconds())
	if res.Err != nil {
		a.metrics.OrderErrors.WithLabelValues(errorKind(res.Err)).Inc()
		return res.Err
	}
	a.metrics.OrdersTotal.WithLabelValues(string(model.SideBuy), "entry").Inc()

	_ = a.notify.Send(ctx, notification.OrderFilled(model.Order{
		ID: res.OrderID, Symbol: sym.Name, SecurityID: securityID,
		Side: model.SideBuy, Qty: qty, AvgPrice: res.FillPrice, TS: time.Now(),
	}, "entry"))
	return nil
}

// publishTrend refreshes trend:{security_id} for every open position on the
// symbol. ON means the Supertrend still points the way the position needs.
func (a *App) publishTrend(ctx context.Context, sym config.Symbol) {
	dir := a.gate.Direction(sym.Name)
	for _, p := range a.tracker.All() {
		if p.Underlying != sym.Name {
			continue
		}
		on := (dir > 0 && p.OptionType == "CE") || (dir < 0 && p.OptionType == "PE")
		if err := a.store.SetTrend(ctx, p.SecurityID, on); err != nil {
			a.log.Warn("trend flag write failed", "security_id", p.SecurityID, "err", err)
		}
	}
}

// riskLoop runs the rider and the session-level kill switches.
func (a *App) riskLoop(ctx context.Context) error {
	if a.dryRun {
		return nil
	}
	a.riskMgr.Tick(ctx)

	bal := a.wallet.Snapshot()
	unrealized := a.tracker.TotalUnrealized()
	dayPnL := bal.RealizedPnL.Add(unrealized)

	if a.cfg.DayLossLimit > 0 {
		limit := money.FromRupees(a.cfg.DayLossLimit)
		if dayPnL.LessOrEqual(limit.Neg()) {
			_ = a.notify.Send(ctx, notification.DayLossLimit(dayPnL, limit))
			a.flattenAll(ctx, "day_loss_limit")
			a.fatal("day_loss_limit")
			return nil
		}
	}
	if a.cfg.SessionTarget > 0 &&
		bal.RealizedPnL.GreaterThan(money.FromRupees(a.cfg.SessionTarget)) &&
		len(a.tracker.All()) == 0 {
		a.fatal("session_target")
		return nil
	}
	if a.cfg.EnforceMarketHours && markethours.PastSquareOff(time.Now()) {
		a.flattenAll(ctx, "square_off")
	}
	return nil
}

// flattenAll market-exits every open position.
func (a *App) flattenAll(ctx context.Context, intent string) {
	for _, p := range a.tracker.All() {
		res := a.broker.PlaceOrder(ctx, broker.Request{
			Symbol:     p.Underlying,
			Segment:    p.Segment,
			SecurityID: p.SecurityID,
			Side:       model.SideSell,
			Qty:        p.NetQty,
			Price:      p.CurrentPrice,
			Intent:     intent,
		})
		if res.Err != nil {
			a.metrics.OrderErrors.WithLabelValues(errorKind(res.Err)).Inc()
			a.log.Error("flatten failed", "security_id", p.SecurityID, "err", res.Err)
			continue
		}
		a.metrics.OrdersTotal.WithLabelValues(string(model.SideSell), intent).Inc()
		a.metrics.RiskExits.WithLabelValues(intent).Inc()
	}
}

// statusReport refreshes gauges, logs the session state and checkpoints the
// session report.
func (a *App) statusReport(ctx context.Context) error {
	bal := a.wallet.Snapshot()
	open := a.tracker.All()
	unrealized := a.tracker.TotalUnrealized()

	a.metrics.WalletAvailable.Set(bal.Available.Float64())
	a.metrics.WalletUsed.Set(bal.Used.Float64())
	a.metrics.RealizedPnL.Set(bal.RealizedPnL.Float64())
	a.metrics.UnrealizedPnL.Set(unrealized.Float64())
	a.metrics.OpenPositions.Set(float64(len(open)))

	a.log.Info("status",
		"market", markethours.StatusString(time.Now()),
		"available", bal.Available.String(),
		"used", bal.Used.String(),
		"realized_pnl", bal.RealizedPnL.String(),
		"unrealized_pnl", unrealized.String(),
		"open_positions", len(open))

	return a.reporter.Checkpoint(ctx)
}

// refreshMarketData backfills the tick cache over REST when the streaming
// feed has gone quiet for an instrument.
func (a *App) refreshMarketData(ctx context.Context, sym config.Symbol) error {
	if a.client == nil {
		return nil
	}
	now := time.Now()
	age, ok := a.ticks.Age(sym.SpotSegment, sym.SpotSecurityID, now)
	if ok && age < a.cfg.Heartbeat()/2 {
		return nil
	}

	ltp, err := a.client.LTP(ctx, sym.SpotSegment, sym.SpotSecurityID)
	if err != nil {
		return fmt.Errorf("market-data refresh %s: %w", sym.Name, err)
	}
	a.onTick(model.Tick{
		Segment:    sym.SpotSegment,
		SecurityID: sym.SpotSecurityID,
		LTP:        money.FromRupees(ltp).Paise(),
		TS:         now,
	})
	return nil
}

// errorKind maps a placement error to its metric label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, model.ErrOrderRejected):
		return "order_rejected"
	case errors.Is(err, model.ErrDuplicateAction):
		return "duplicate"
	case errors.Is(err, model.ErrMarketDataStale):
		return "market_data_stale"
	case errors.Is(err, model.ErrRedisUnavailable):
		return "redis_unavailable"
	default:
		return "other"
	}
}
