// Package instruments resolves option contracts from the CSV instrument
// master: (underlying, expiry, strike, CE|PE) → security id, plus expiry
// ordering, lot sizes and strike steps per underlying.
package instruments

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

// Contract is one row of the option chain.
type Contract struct {
	Underlying string
	Expiry     string // ISO date
	Strike     int64
	OptionType string // CE or PE
	SecurityID string
	Segment    string
	LotSize    int64
}

type chain struct {
	expiries []string // ascending ISO dates
	// (expiry, strike, optType) → contract
	contracts map[string]Contract
	strikes   map[string][]int64 // expiry → sorted distinct strikes
	lotSize   int64
	segment   string
}

// Resolver is a read-mostly index over the instrument master.
type Resolver struct {
	mu     sync.RWMutex
	chains map[string]*chain
}

// Expected CSV columns, by header name (case-insensitive).
var requiredColumns = []string{"underlying_symbol", "expiry_date", "strike_price", "option_type", "security_id"}

// LoadCSV reads the instrument master from a file.
func LoadCSV(path string) (*Resolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("instruments: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads the instrument master from r.
func Load(r io.Reader) (*Resolver, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("instruments: read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("instruments: %w: missing column %q", model.ErrConfigInvalid, col)
		}
	}

	res := &Resolver{chains: make(map[string]*chain)}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("instruments: line %d: %w", line, err)
		}
		c, err := parseRow(rec, idx)
		if err != nil {
			// Master files carry futures and equity rows too; skip quietly.
			continue
		}
		res.add(c)
	}
	res.finalize()
	return res, nil
}

func parseRow(rec []string, idx map[string]int) (Contract, error) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	opt := strings.ToUpper(get("option_type"))
	if opt != "CE" && opt != "PE" {
		return Contract{}, fmt.Errorf("not an option row")
	}
	strikeStr := get("strike_price")
	strike, err := strconv.ParseFloat(strikeStr, 64)
	if err != nil || strike <= 0 {
		return Contract{}, fmt.Errorf("bad strike %q", strikeStr)
	}
	lot := int64(0)
	if ls := get("lot_size"); ls != "" {
		lot, _ = strconv.ParseInt(ls, 10, 64)
	}
	seg := get("segment")
	if seg == "" {
		seg = model.SegmentFNO
	}
	c := Contract{
		Underlying: strings.ToUpper(get("underlying_symbol")),
		Expiry:     get("expiry_date"),
		Strike:     int64(strike),
		OptionType: opt,
		SecurityID: get("security_id"),
		Segment:    seg,
		LotSize:    lot,
	}
	if c.Underlying == "" || c.Expiry == "" || c.SecurityID == "" {
		return Contract{}, fmt.Errorf("incomplete row")
	}
	return c, nil
}

func (r *Resolver) add(c Contract) {
	ch, ok := r.chains[c.Underlying]
	if !ok {
		ch = &chain{
			contracts: make(map[string]Contract),
			strikes:   make(map[string][]int64),
		}
		r.chains[c.Underlying] = ch
	}
	ch.contracts[contractKey(c.Expiry, c.Strike, c.OptionType)] = c
	if c.LotSize > 0 {
		ch.lotSize = c.LotSize
	}
	ch.segment = c.Segment
}

func (r *Resolver) finalize() {
	for _, ch := range r.chains {
		seenExp := make(map[string]bool)
		seenStrike := make(map[string]map[int64]bool)
		for _, c := range ch.contracts {
			if !seenExp[c.Expiry] {
				seenExp[c.Expiry] = true
				ch.expiries = append(ch.expiries, c.Expiry)
			}
			if seenStrike[c.Expiry] == nil {
				seenStrike[c.Expiry] = make(map[int64]bool)
			}
			if !seenStrike[c.Expiry][c.Strike] {
				seenStrike[c.Expiry][c.Strike] = true
				ch.strikes[c.Expiry] = append(ch.strikes[c.Expiry], c.Strike)
			}
		}
		sort.Strings(ch.expiries)
		for _, ss := range ch.strikes {
			sort.Slice(ss, func(i, j int) bool { return ss[i] < ss[j] })
		}
	}
}

func contractKey(expiry string, strike int64, opt string) string {
	return expiry + "|" + strconv.FormatInt(strike, 10) + "|" + opt
}

// Underlyings lists the known underlying symbols.
func (r *Resolver) Underlyings() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.chains))
	for u := range r.chains {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Expiries returns the ascending expiry dates for an underlying.
func (r *Resolver) Expiries(underlying string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.chains[strings.ToUpper(underlying)]
	if !ok {
		return nil
	}
	out := make([]string, len(ch.expiries))
	copy(out, ch.expiries)
	return out
}

// NearestExpiry returns the first expiry on or after the given IST date.
func (r *Resolver) NearestExpiry(underlying string, after time.Time) (string, error) {
	today := after.Format("2006-01-02")
	for _, e := range r.Expiries(underlying) {
		if e >= today {
			return e, nil
		}
	}
	return "", fmt.Errorf("instruments: %w: no expiry for %s", model.ErrInvalidInstrument, underlying)
}

// Resolve maps (underlying, expiry, strike, CE|PE) to a contract.
func (r *Resolver) Resolve(underlying, expiry string, strike int64, optionType string) (Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.chains[strings.ToUpper(underlying)]
	if !ok {
		return Contract{}, fmt.Errorf("instruments: %w: unknown underlying %s", model.ErrInvalidInstrument, underlying)
	}
	c, ok := ch.contracts[contractKey(expiry, strike, strings.ToUpper(optionType))]
	if !ok {
		return Contract{}, fmt.Errorf("instruments: %w: %s %s %d %s", model.ErrInvalidInstrument,
			underlying, expiry, strike, optionType)
	}
	return c, nil
}

// LotSize returns the contract lot size for an underlying (0 if unknown).
func (r *Resolver) LotSize(underlying string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ch, ok := r.chains[strings.ToUpper(underlying)]; ok {
		return ch.lotSize
	}
	return 0
}

// Segment returns the option segment for an underlying.
func (r *Resolver) Segment(underlying string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ch, ok := r.chains[strings.ToUpper(underlying)]; ok && ch.segment != "" {
		return ch.segment
	}
	return model.SegmentFNO
}

// StrikeStep derives the strike spacing for an expiry as the smallest gap
// between adjacent listed strikes.
func (r *Resolver) StrikeStep(underlying, expiry string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.chains[strings.ToUpper(underlying)]
	if !ok {
		return 0
	}
	ss := ch.strikes[expiry]
	if len(ss) < 2 {
		return 0
	}
	step := ss[1] - ss[0]
	for i := 2; i < len(ss); i++ {
		if gap := ss[i] - ss[i-1]; gap > 0 && gap < step {
			step = gap
		}
	}
	return step
}
