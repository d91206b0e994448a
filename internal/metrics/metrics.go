// Package metrics exposes Prometheus instrumentation for the scalping
// engine: feed health, signal and order flow, risk actions and balances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the engine reports.
type Metrics struct {
	TicksTotal     prometheus.Counter
	FeedReconnects prometheus.Counter
	StaleTicks     prometheus.Counter

	SignalsTotal *prometheus.CounterVec // kind: buy_ce | buy_pe
	OrdersTotal  *prometheus.CounterVec // side, intent
	OrderErrors  *prometheus.CounterVec // kind: insufficient_balance | order_rejected | ...
	RiskExits    *prometheus.CounterVec // reason

	TaskDrops *prometheus.CounterVec // task name

	WalletAvailable prometheus.Gauge
	WalletUsed      prometheus.Gauge
	RealizedPnL     prometheus.Gauge
	UnrealizedPnL   prometheus.Gauge
	OpenPositions   prometheus.Gauge

	RedisWriteDur prometheus.Histogram
	OrderPlaceDur prometheus.Histogram
}

// New creates and registers all collectors on the given registry; pass nil
// to use the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto(reg)

	return &Metrics{
		TicksTotal: f.counter("scalper_ticks_total",
			"Market-data ticks accepted into the tick cache."),
		FeedReconnects: f.counter("scalper_feed_reconnects_total",
			"WebSocket feed reconnect attempts."),
		StaleTicks: f.counter("scalper_stale_ticks_total",
			"Ticks discarded by last-writer-wins ordering."),

		SignalsTotal: f.counterVec("scalper_signals_total",
			"Actionable signals emitted by the gate.", "kind"),
		OrdersTotal: f.counterVec("scalper_orders_total",
			"Orders successfully placed.", "side", "intent"),
		OrderErrors: f.counterVec("scalper_order_errors_total",
			"Order placements that failed.", "kind"),
		RiskExits: f.counterVec("scalper_risk_exits_total",
			"Exits forced by the risk manager.", "reason"),

		TaskDrops: f.counterVec("scalper_task_drops_total",
			"Scheduler ticks dropped because the previous run was active.", "task"),

		WalletAvailable: f.gauge("scalper_wallet_available_rupees",
			"Spendable balance."),
		WalletUsed: f.gauge("scalper_wallet_used_rupees",
			"Balance locked in open positions."),
		RealizedPnL: f.gauge("scalper_realized_pnl_rupees",
			"Realized P&L for the session."),
		UnrealizedPnL: f.gauge("scalper_unrealized_pnl_rupees",
			"Mark-to-market P&L across open positions."),
		OpenPositions: f.gauge("scalper_open_positions",
			"Open position count."),

		RedisWriteDur: f.histogram("scalper_redis_write_seconds",
			"Redis write latency.",
			[]float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25}),
		OrderPlaceDur: f.histogram("scalper_order_place_seconds",
			"Order placement latency end to end.",
			[]float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}),
	}
}

// factory registers as it constructs, mirroring promauto without the
// package-global registry.
type factory struct{ reg prometheus.Registerer }

func promauto(reg prometheus.Registerer) factory { return factory{reg} }

func (f factory) counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	f.reg.MustRegister(c)
	return c
}

func (f factory) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	f.reg.MustRegister(c)
	return c
}

func (f factory) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	f.reg.MustRegister(g)
	return g
}

func (f factory) histogram(name, help string, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets})
	f.reg.MustRegister(h)
	return h
}
