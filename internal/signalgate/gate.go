// Package signalgate combines the Supertrend flip with the ADX strength
// filter into a per-symbol entry decision. A flip is consumed exactly once:
// later evaluations without a fresh flip yield none even when ADX stays
// strong.
package signalgate

import (
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/indicator"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

// Defaults for the gate's indicator parameters.
const (
	DefaultSupertrendPeriod = 10
	DefaultSupertrendMult   = 3.0
	DefaultADXPeriod        = 14
	DefaultADXThreshold     = 25.0
)

// Config tunes the gate.
type Config struct {
	SupertrendPeriod int
	SupertrendMult   float64
	ADXPeriod        int
	ADXThreshold     float64
}

// DefaultConfig returns the canonical 10/3.0/14/25 setup.
func DefaultConfig() Config {
	return Config{
		SupertrendPeriod: DefaultSupertrendPeriod,
		SupertrendMult:   DefaultSupertrendMult,
		ADXPeriod:        DefaultADXPeriod,
		ADXThreshold:     DefaultADXThreshold,
	}
}

type symbolState struct {
	st        *indicator.Supertrend
	adx       *indicator.ADX
	processed int // sealed 3-minute bars already consumed
}

// Gate evaluates one underlying symbol per decision tick.
type Gate struct {
	cfg Config

	mu     sync.Mutex
	states map[string]*symbolState
}

// New creates a signal gate.
func New(cfg Config) *Gate {
	if cfg.SupertrendPeriod <= 0 {
		cfg.SupertrendPeriod = DefaultSupertrendPeriod
	}
	if cfg.SupertrendMult <= 0 {
		cfg.SupertrendMult = DefaultSupertrendMult
	}
	if cfg.ADXPeriod <= 0 {
		cfg.ADXPeriod = DefaultADXPeriod
	}
	if cfg.ADXThreshold <= 0 {
		cfg.ADXThreshold = DefaultADXThreshold
	}
	return &Gate{cfg: cfg, states: make(map[string]*symbolState)}
}

// Evaluate feeds any newly sealed 3-minute bars for the symbol and returns
// the decision. Insufficient history yields none.
func (g *Gate) Evaluate(symbol string, bars []model.Candle, now time.Time) model.Signal {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.states[symbol]
	if !ok {
		st = &symbolState{
			st:  indicator.NewSupertrend(g.cfg.SupertrendPeriod, g.cfg.SupertrendMult),
			adx: indicator.NewADX(g.cfg.ADXPeriod),
		}
		g.states[symbol] = st
	}

	flipDir := 0
	for _, c := range bars[min(st.processed, len(bars)):] {
		st.st.Update(c)
		st.adx.Update(c)
		if st.st.Ready() && st.st.Flipped() {
			flipDir = st.st.Direction()
		}
	}
	if len(bars) > st.processed {
		st.processed = len(bars)
	}

	sig := model.Signal{
		Symbol:        symbol,
		Kind:          model.SignalNone,
		ADX:           st.adx.Value(),
		SupertrendDir: st.st.Direction(),
		TS:            now,
	}

	// Both indicators must be formed; the flip is consumed either way.
	if flipDir == 0 || !st.st.Ready() || !st.adx.Ready() {
		return sig
	}
	if st.adx.Value() < g.cfg.ADXThreshold {
		return sig
	}
	if flipDir > 0 {
		sig.Kind = model.SignalBuyCE
	} else {
		sig.Kind = model.SignalBuyPE
	}
	return sig
}

// Direction returns the current Supertrend direction for the symbol
// (+1, -1, or 0 when unknown). Used to maintain trend:{security_id} flags.
func (g *Gate) Direction(symbol string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.states[symbol]; ok {
		return st.st.Direction()
	}
	return 0
}
