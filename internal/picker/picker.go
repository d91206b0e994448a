// Package picker chooses the option contract for an entry: nearest expiry,
// ATM or the neighbouring strike by proximity, and a premium estimate from
// the latest option tick.
package picker

import (
	"fmt"
	"math"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/instruments"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/tickcache"
)

// QuoteFunc fetches a premium for an option leg when the tick cache has no
// price yet (e.g. broker trade-price lookup). May be nil.
type QuoteFunc func(segment, securityID string) (money.Money, error)

// Picker resolves signals into concrete option picks.
type Picker struct {
	resolver *instruments.Resolver
	ticks    *tickcache.Cache
	quote    QuoteFunc
	now      func() time.Time
}

// New creates a Picker. quote may be nil; now defaults to time.Now.
func New(resolver *instruments.Resolver, ticks *tickcache.Cache, quote QuoteFunc) *Picker {
	return &Picker{resolver: resolver, ticks: ticks, quote: quote, now: time.Now}
}

// Pick selects strike and expiry for the signal and estimates the premium of
// the leg that would be bought.
func (p *Picker) Pick(symbol string, spot money.Money, kind model.SignalKind) (model.OptionPick, error) {
	if kind != model.SignalBuyCE && kind != model.SignalBuyPE {
		return model.OptionPick{}, fmt.Errorf("picker: no actionable signal for %s", symbol)
	}

	expiry, err := p.resolver.NearestExpiry(symbol, p.now())
	if err != nil {
		return model.OptionPick{}, err
	}
	step := p.resolver.StrikeStep(symbol, expiry)
	if step <= 0 {
		return model.OptionPick{}, fmt.Errorf("picker: %w: no strike step for %s %s",
			model.ErrInvalidInstrument, symbol, expiry)
	}

	strike := chooseStrike(spot.Float64(), step, kind)

	ce, err := p.resolver.Resolve(symbol, expiry, strike, "CE")
	if err != nil {
		return model.OptionPick{}, err
	}
	pe, err := p.resolver.Resolve(symbol, expiry, strike, "PE")
	if err != nil {
		return model.OptionPick{}, err
	}

	pick := model.OptionPick{
		Strike:       strike,
		Expiry:       expiry,
		CESecurityID: ce.SecurityID,
		PESecurityID: pe.SecurityID,
	}

	leg := ce
	if kind == model.SignalBuyPE {
		leg = pe
	}
	premium, err := p.premium(leg)
	if err != nil {
		return model.OptionPick{}, err
	}
	pick.Premium = premium
	return pick, nil
}

// chooseStrike rounds spot to the nearest strike, then shifts one step
// toward the money when the neighbour is closer than ATM.
func chooseStrike(spot float64, step int64, kind model.SignalKind) int64 {
	fstep := float64(step)
	atm := int64(math.Round(spot/fstep)) * step

	var neighbour int64
	if kind == model.SignalBuyCE {
		neighbour = atm + step
	} else {
		neighbour = atm - step
	}
	if math.Abs(spot-float64(neighbour)) < math.Abs(spot-float64(atm)) {
		return neighbour
	}
	return atm
}

func (p *Picker) premium(leg instruments.Contract) (money.Money, error) {
	if ltp, ok := p.ticks.LTP(leg.Segment, leg.SecurityID); ok && ltp > 0 {
		return money.FromPaise(ltp), nil
	}
	if p.quote != nil {
		return p.quote(leg.Segment, leg.SecurityID)
	}
	return money.Zero, fmt.Errorf("picker: %w: no premium for %s", model.ErrMarketDataStale, leg.SecurityID)
}
