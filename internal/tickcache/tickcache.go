// Package tickcache holds the latest tick per instrument in a process-local
// concurrent map. Writers never block readers; per key, the later timestamp
// wins. There is no persistence — market data is rebuilt on reconnect.
package tickcache

import (
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

// Cache maps (segment, security_id) → latest Tick.
type Cache struct {
	m sync.Map // key string → *model.Tick
}

// New creates an empty tick cache.
func New() *Cache {
	return &Cache{}
}

// Put stores the tick unless a newer one is already present for the key.
// Returns false when the tick was discarded as stale.
func (c *Cache) Put(t model.Tick) bool {
	key := t.Key()
	for {
		cur, loaded := c.m.LoadOrStore(key, &t)
		if !loaded {
			return true
		}
		existing := cur.(*model.Tick)
		if t.TS.Before(existing.TS) {
			return false
		}
		if c.m.CompareAndSwap(key, cur, &t) {
			return true
		}
		// Lost a race with a concurrent writer for the same key; retry
		// against the new current value.
	}
}

// Get returns the latest tick for the instrument, or nil if none seen.
func (c *Cache) Get(segment, securityID string) *model.Tick {
	v, ok := c.m.Load(segment + ":" + securityID)
	if !ok {
		return nil
	}
	return v.(*model.Tick)
}

// LTP returns the last traded price in paise, or 0 with ok=false when the
// instrument has no tick yet.
func (c *Cache) LTP(segment, securityID string) (int64, bool) {
	t := c.Get(segment, securityID)
	if t == nil {
		return 0, false
	}
	return t.LTP, true
}

// Age returns how long ago the instrument last ticked relative to now.
// ok=false when no tick has been seen.
func (c *Cache) Age(segment, securityID string, now time.Time) (time.Duration, bool) {
	t := c.Get(segment, securityID)
	if t == nil {
		return 0, false
	}
	return now.Sub(t.TS), true
}

// Range calls fn for every cached tick until fn returns false.
func (c *Cache) Range(fn func(t *model.Tick) bool) {
	c.m.Range(func(_, v any) bool {
		return fn(v.(*model.Tick))
	})
}
