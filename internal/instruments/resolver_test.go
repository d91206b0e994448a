package instruments

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

const masterCSV = `underlying_symbol,expiry_date,strike_price,option_type,security_id,lot_size,segment
NIFTY,2026-08-27,24500,CE,49081,75,NSE_FNO
NIFTY,2026-08-27,24500,PE,49082,75,NSE_FNO
NIFTY,2026-08-27,24550,CE,49083,75,NSE_FNO
NIFTY,2026-08-27,24550,PE,49084,75,NSE_FNO
NIFTY,2026-08-27,24600,CE,49085,75,NSE_FNO
NIFTY,2026-08-27,24600,PE,49086,75,NSE_FNO
NIFTY,2026-09-03,24500,CE,50081,75,NSE_FNO
NIFTY,2026-09-03,24500,PE,50082,75,NSE_FNO
NIFTY,2026-08-27,24500.00,FUT,49999,75,NSE_FNO
SENSEX,2026-08-28,81000,CE,88001,20,BSE_FNO
SENSEX,2026-08-28,81100,PE,88002,20,BSE_FNO
`

func load(t *testing.T) *Resolver {
	t.Helper()
	r, err := Load(strings.NewReader(masterCSV))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestLoadAndResolve(t *testing.T) {
	r := load(t)

	c, err := r.Resolve("NIFTY", "2026-08-27", 24500, "CE")
	if err != nil {
		t.Fatal(err)
	}
	if c.SecurityID != "49081" || c.Segment != "NSE_FNO" || c.LotSize != 75 {
		t.Errorf("contract = %+v", c)
	}

	// Case-insensitive lookups.
	if _, err := r.Resolve("nifty", "2026-08-27", 24500, "pe"); err != nil {
		t.Errorf("case-insensitive resolve failed: %v", err)
	}

	if _, err := r.Resolve("NIFTY", "2026-08-27", 99999, "CE"); !errors.Is(err, model.ErrInvalidInstrument) {
		t.Errorf("unknown strike err = %v, want ErrInvalidInstrument", err)
	}
	if _, err := r.Resolve("FINNIFTY", "2026-08-27", 24500, "CE"); !errors.Is(err, model.ErrInvalidInstrument) {
		t.Errorf("unknown underlying err = %v, want ErrInvalidInstrument", err)
	}
}

func TestNonOptionRowsSkipped(t *testing.T) {
	r := load(t)
	if _, err := r.Resolve("NIFTY", "2026-08-27", 24500, "FUT"); err == nil {
		t.Error("futures row should not be indexed")
	}
}

func TestNearestExpiry(t *testing.T) {
	r := load(t)
	day := func(d string) time.Time {
		ts, _ := time.Parse("2006-01-02", d)
		return ts
	}

	if e, _ := r.NearestExpiry("NIFTY", day("2026-08-24")); e != "2026-08-27" {
		t.Errorf("NearestExpiry = %s, want 2026-08-27", e)
	}
	// Expiry day itself still counts.
	if e, _ := r.NearestExpiry("NIFTY", day("2026-08-27")); e != "2026-08-27" {
		t.Errorf("on expiry day = %s, want 2026-08-27", e)
	}
	if e, _ := r.NearestExpiry("NIFTY", day("2026-08-28")); e != "2026-09-03" {
		t.Errorf("after weekly = %s, want 2026-09-03", e)
	}
	if _, err := r.NearestExpiry("NIFTY", day("2026-09-04")); !errors.Is(err, model.ErrInvalidInstrument) {
		t.Errorf("past last expiry err = %v, want ErrInvalidInstrument", err)
	}
}

func TestStrikeStepAndLotSize(t *testing.T) {
	r := load(t)
	if step := r.StrikeStep("NIFTY", "2026-08-27"); step != 50 {
		t.Errorf("StrikeStep = %d, want 50", step)
	}
	// Single strike per type: no derivable step.
	if step := r.StrikeStep("NIFTY", "2026-09-03"); step != 0 {
		t.Errorf("single-strike step = %d, want 0", step)
	}
	if lot := r.LotSize("NIFTY"); lot != 75 {
		t.Errorf("LotSize NIFTY = %d, want 75", lot)
	}
	if lot := r.LotSize("SENSEX"); lot != 20 {
		t.Errorf("LotSize SENSEX = %d, want 20", lot)
	}
	if seg := r.Segment("SENSEX"); seg != "BSE_FNO" {
		t.Errorf("Segment SENSEX = %s, want BSE_FNO", seg)
	}
}

func TestUnderlyings(t *testing.T) {
	r := load(t)
	got := r.Underlyings()
	if len(got) != 2 || got[0] != "NIFTY" || got[1] != "SENSEX" {
		t.Errorf("Underlyings = %v", got)
	}
}

func TestMissingColumn(t *testing.T) {
	_, err := Load(strings.NewReader("underlying_symbol,expiry_date,strike_price,option_type\nNIFTY,2026-08-27,24500,CE\n"))
	if !errors.Is(err, model.ErrConfigInvalid) {
		t.Fatalf("err = %v, want ErrConfigInvalid", err)
	}
}
