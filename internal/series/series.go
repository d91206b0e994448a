// Package series accumulates 1-minute OHLC bars per instrument and derives
// the 3-minute view the signal engine consumes. Bars are built incrementally
// from sampled ticks; a bar is sealed when a tick lands in a newer bucket.
package series

import (
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

const (
	minuteSeconds = 60
	threeMinutes  = 180

	// DefaultCap bounds the number of retained 1-minute bars.
	DefaultCap = 500
)

// Series holds the capped 1-minute bar history for one instrument.
type Series struct {
	mu            sync.Mutex
	key           string
	sealed        []model.Candle
	forming       *model.Candle
	formingBucket int64
	cap           int
}

// New creates a Series for the instrument key with the given bar cap.
func New(key string, capN int) *Series {
	if capN <= 0 {
		capN = DefaultCap
	}
	return &Series{key: key, cap: capN}
}

// Key returns the instrument key this series tracks.
func (s *Series) Key() string { return s.key }

// Observe folds a tick into the current 1-minute bar. A tick in a newer
// bucket seals the forming bar first. Ticks older than the forming bucket
// are dropped.
func (s *Series) Observe(t model.Tick) {
	ts := t.TS.Unix()
	bucket := ts - ts%minuteSeconds

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forming != nil {
		if bucket < s.formingBucket {
			return // late tick
		}
		if bucket > s.formingBucket {
			s.appendSealed(*s.forming)
			s.forming = nil
		}
	}

	if s.forming == nil {
		s.forming = &model.Candle{
			OpenTime: time.Unix(bucket, 0).UTC(),
			Open:     t.LTP,
			High:     t.LTP,
			Low:      t.LTP,
			Close:    t.LTP,
			Volume:   t.Volume,
		}
		s.formingBucket = bucket
		return
	}

	c := s.forming
	if t.LTP > c.High {
		c.High = t.LTP
	}
	if t.LTP < c.Low {
		c.Low = t.LTP
	}
	c.Close = t.LTP
	c.Volume += t.Volume
}

// Append adds an already-sealed 1-minute bar (historical seed). Bars must
// arrive in ascending open-time order.
func (s *Series) Append(c model.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendSealed(c)
}

func (s *Series) appendSealed(c model.Candle) {
	s.sealed = append(s.sealed, c)
	if len(s.sealed) > s.cap {
		s.sealed = s.sealed[len(s.sealed)-s.cap:]
	}
}

// Sealed returns a snapshot of the sealed 1-minute bars.
func (s *Series) Sealed() []model.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Candle, len(s.sealed))
	copy(out, s.sealed)
	return out
}

// Len returns the number of sealed 1-minute bars.
func (s *Series) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sealed)
}

// ThreeMinute groups the sealed 1-minute bars into 3-minute bars: open of
// first, max of highs, min of lows, close of last, sum of volumes. Bucket
// boundaries align to 3-minute marks; the IST offset (+5:30) is itself
// 3-minute aligned, so Unix bucketing lands on :00/:03/:06 wall-clock.
// Only complete groups are returned; a trailing group still missing its
// final minute is withheld until it closes.
func (s *Series) ThreeMinute() []model.Candle {
	sealed := s.Sealed()
	if len(sealed) == 0 {
		return nil
	}

	var out []model.Candle
	var cur *model.Candle
	var curBucket int64
	for _, c := range sealed {
		ts := c.OpenTime.Unix()
		bucket := ts - ts%threeMinutes
		if cur != nil && bucket != curBucket {
			out = append(out, *cur)
			cur = nil
		}
		if cur == nil {
			cc := c
			cc.OpenTime = time.Unix(bucket, 0).UTC()
			cur = &cc
			curBucket = bucket
			continue
		}
		cur.Merge(c)
	}
	// The final group is still forming unless its last constituent minute
	// closes the 3-minute window.
	if cur != nil {
		last := sealed[len(sealed)-1].OpenTime.Unix()
		if last-curBucket == threeMinutes-minuteSeconds {
			out = append(out, *cur)
		}
	}
	return out
}

// Book maps instrument keys to their series.
type Book struct {
	mu     sync.RWMutex
	series map[string]*Series
	cap    int
}

// NewBook creates an empty series book.
func NewBook(capPerSeries int) *Book {
	return &Book{series: make(map[string]*Series), cap: capPerSeries}
}

// Get returns the series for the key, creating it on first use.
func (b *Book) Get(key string) *Series {
	b.mu.RLock()
	s, ok := b.series[key]
	b.mu.RUnlock()
	if ok {
		return s
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok = b.series[key]; ok {
		return s
	}
	s = New(key, b.cap)
	b.series[key] = s
	return s
}
