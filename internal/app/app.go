// Package app wires the engine together for one session: market data in,
// decisions and risk on the scheduler, orders out, reports at checkpoints.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/config"
	apisrv "github.com/shubhamtaywade82/dhan-scalper-sub004/internal/api"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/broker"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/instruments"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/journal"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/metrics"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/notification"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/picker"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/positions"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/risk"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/sched"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/series"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/session"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/signalgate"
	redisstore "github.com/shubhamtaywade82/dhan-scalper-sub004/internal/store/redis"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/tickcache"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/wallet"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/pkg/dhanhq"
)

const stopGrace = 10 * time.Second

// App owns every component for one trading session.
type App struct {
	cfg       *config.Config
	mode      session.Mode
	sessionID string
	started   time.Time
	log       *slog.Logger

	store    *redisstore.Store
	ticks    *tickcache.Cache
	book     *series.Book
	resolver *instruments.Resolver
	gate     *signalgate.Gate
	picker   *picker.Picker
	wallet   *wallet.Wallet
	tracker  *positions.Tracker
	broker   broker.Broker
	riskMgr  *risk.Manager
	sched    *sched.Scheduler
	recorder *redisstore.OrderRecorder
	journal  *journal.Journal
	reporter *session.Reporter
	api      *apisrv.Server
	metrics  *metrics.Metrics
	notify   notification.Notifier

	client *dhanhq.Client // nil when no credentials configured
	feed   *dhanhq.Feed

	dryRun bool

	stopOnce sync.Once
	fatalCh  chan string
}

// New builds an App for the mode. A same-day restart resumes the previous
// session's wallet and positions.
func New(ctx context.Context, cfg *config.Config, mode session.Mode) (*App, error) {
	now := time.Now()
	a := &App{
		cfg:       cfg,
		mode:      mode,
		sessionID: session.ID(mode, now),
		started:   now,
		dryRun:    mode == session.ModeDryRun,
		fatalCh:   make(chan string, 1),
	}
	a.log = slog.With("component", "app", "session_id", a.sessionID)

	store, err := redisstore.New(redisstore.Config{URL: cfg.RedisURL})
	if err != nil {
		return nil, err
	}
	a.store = store

	a.resolver, err = instruments.LoadCSV(cfg.InstrumentsCSV)
	if err != nil {
		return nil, fmt.Errorf("app: instrument catalogue: %w", err)
	}

	a.ticks = tickcache.New()
	a.book = series.NewBook(series.DefaultCap)
	a.gate = signalgate.New(signalgate.DefaultConfig())
	a.metrics = metrics.New(nil)

	if mode == session.ModeLive {
		if err := cfg.RequireLiveCredentials(); err != nil {
			return nil, err
		}
	}
	if cfg.ClientID != "" && cfg.AccessToken != "" {
		a.client = dhanhq.NewClient(dhanhq.Config{
			ClientID:    cfg.ClientID,
			AccessToken: cfg.AccessToken,
		})
		a.feed = dhanhq.NewFeed(cfg.ClientID, cfg.AccessToken, a.onTick)
	} else {
		a.log.Warn("no broker credentials; running without the live feed")
	}

	a.wallet, err = wallet.New(ctx, store, a.sessionID, money.FromRupees(cfg.StartingBalance))
	if err != nil {
		return nil, err
	}
	a.tracker = positions.NewTracker(store, a.sessionID)
	if err := a.tracker.Load(ctx); err != nil {
		return nil, err
	}
	if open := len(a.tracker.All()); open > 0 {
		a.log.Info("recovered open positions from previous run", "count", open)
	}

	a.journal, err = journal.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("app: journal: %w", err)
	}
	a.recorder = redisstore.NewOrderRecorder(store, a.sessionID, 0)
	sinks := []broker.OrderSink{a.recorder, a.journal.ForSession(a.sessionID)}

	charge := money.FromRupees(cfg.ChargePerOrder)
	if mode == session.ModeLive {
		a.broker = broker.NewLive(a.client, a.ticks, a.wallet, a.tracker, store, charge, sinks...)
	} else {
		a.broker = broker.NewPaper(a.ticks, a.wallet, a.tracker, store, charge, sinks...)
	}

	a.riskMgr = risk.NewManager(risk.Config{
		EmergencyFloor:        money.FromRupees(cfg.EmergencyFloor),
		InitialSLPct:          cfg.InitialSLPct,
		BreakevenThresholdPct: cfg.BreakevenThresholdPct,
		TrailPct:              cfg.TrailPct,
		RupeeStep:             money.FromRupees(cfg.RupeeStep),
	}, a.ticks, a.tracker, a.broker, store)

	a.picker = picker.New(a.resolver, a.ticks, a.quoteFunc())
	a.reporter = session.NewReporter(store, a.wallet, a.tracker, a.recorder, a.sessionID, mode, now)
	a.api = apisrv.New(cfg.APIAddr, a.sessionID, a.wallet, a.tracker, a.recorder)
	a.notify = a.buildNotifier()
	a.sched = sched.New(sched.DefaultWorkers)

	a.instrument()
	return a, nil
}

// instrument hooks the observability callbacks into the components built in
// New. Runs before anything is concurrent.
func (a *App) instrument() {
	store, m := a.store, a.metrics
	store.OnWriteLatency(func(d time.Duration) {
		m.RedisWriteDur.Observe(d.Seconds())
	})
	a.sched.OnDrop = func(task string) {
		m.TaskDrops.WithLabelValues(task).Inc()
	}
	if a.feed != nil {
		a.feed.OnReconnect = m.FeedReconnects.Inc
	}
	a.riskMgr.OnExit(func(ctx context.Context, pos model.Position, fill money.Money, reason string) {
		m.OrdersTotal.WithLabelValues(string(model.SideSell), reason).Inc()
		m.RiskExits.WithLabelValues(reason).Inc()
		_ = a.notify.Send(ctx, notification.RiskExit(pos.SecurityID, reason, pos.NetQty, pos.BuyAvg, fill))
	})
}

func (a *App) buildNotifier() notification.Notifier {
	channels := []notification.Notifier{notification.LogNotifier{}}
	if a.cfg.TelegramBotToken != "" && a.cfg.TelegramChatID != "" {
		channels = append(channels, notification.NewTelegram(a.cfg.TelegramBotToken, a.cfg.TelegramChatID))
	}
	if a.cfg.WebhookURL != "" {
		channels = append(channels, notification.NewWebhook(a.cfg.WebhookURL))
	}
	return notification.NewMulti(channels...)
}

// quoteFunc bridges the broker LTP endpoint into the picker's premium
// fallback. Nil without credentials; the picker then needs a cached tick.
func (a *App) quoteFunc() picker.QuoteFunc {
	if a.client == nil {
		return nil
	}
	return func(segment, securityID string) (money.Money, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ltp, err := a.client.LTP(ctx, segment, securityID)
		if err != nil {
			return money.Zero, err
		}
		return money.FromRupees(ltp), nil
	}
}

// onTick is the feed callback: cache it, fold spot ticks into bars.
func (a *App) onTick(t model.Tick) {
	if !a.ticks.Put(t) {
		a.metrics.StaleTicks.Inc()
		return
	}
	a.metrics.TicksTotal.Inc()
	for _, sym := range a.cfg.Symbols {
		if t.Segment == sym.SpotSegment && t.SecurityID == sym.SpotSecurityID {
			a.book.Get(t.Key()).Observe(t)
			return
		}
	}
}

// fatal requests engine shutdown for the given reason. Idempotent.
func (a *App) fatal(reason string) {
	a.stopOnce.Do(func() {
		a.fatalCh <- reason
	})
}

// Run starts everything and blocks until ctx is cancelled or a fatal
// condition fires, then shuts down in order.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("engine starting", "mode", string(a.mode), "symbols", len(a.cfg.Symbols))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.feed != nil {
		subs := make([]dhanhq.Instrument, 0, len(a.cfg.Symbols))
		for _, s := range a.cfg.Symbols {
			subs = append(subs, dhanhq.Instrument{Segment: s.SpotSegment, SecurityID: s.SpotSecurityID})
		}
		// Re-track option legs held over a restart.
		for _, p := range a.tracker.All() {
			subs = append(subs, dhanhq.Instrument{Segment: p.Segment, SecurityID: p.SecurityID})
		}
		if err := a.feed.Subscribe(subs...); err != nil {
			return fmt.Errorf("app: subscribe: %w", err)
		}
		go func() {
			if err := a.feed.Run(runCtx); err != nil && runCtx.Err() == nil {
				a.log.Error("feed terminated", "err", err)
			}
		}()
	}

	a.api.Start()
	a.registerTasks()
	a.sched.Start(runCtx)

	var reason string
	select {
	case <-ctx.Done():
		reason = "signal"
	case reason = <-a.fatalCh:
	}
	a.log.Info("engine stopping", "reason", reason)

	a.sched.Stop(stopGrace)
	cancel()

	shutdownCtx, sdCancel := context.WithTimeout(context.Background(), stopGrace)
	defer sdCancel()

	if err := a.reporter.Close(shutdownCtx, time.Now()); err != nil {
		a.log.Error("final session report failed", "err", err)
	}
	bal := a.wallet.Snapshot()
	orders, _ := a.recorder.Orders(shutdownCtx)
	_ = a.notify.Send(shutdownCtx, notification.SessionSummary(
		a.sessionID, bal.RealizedPnL,
		bal.RealizedPnL.Add(a.tracker.TotalUnrealized()), len(orders)))

	if err := a.api.Shutdown(shutdownCtx); err != nil {
		a.log.Error("api shutdown failed", "err", err)
	}
	if err := a.journal.Close(); err != nil {
		a.log.Error("journal close failed", "err", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Error("redis close failed", "err", err)
	}

	if reason != "signal" && reason != "session_target" {
		return fmt.Errorf("app: stopped on %s", reason)
	}
	return nil
}
