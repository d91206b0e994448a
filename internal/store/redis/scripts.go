package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// advanceScript is a compare-and-set that only moves a numeric level upward.
// KEYS[1] = level key, ARGV[1] = candidate, ARGV[2] = TTL seconds.
// Returns the value in effect after the call.
var advanceScript = goredis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
  return cur
end
redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
return ARGV[1]
`)

// UpdatePeak advances peak:{securityID} to candidate if higher.
// Returns the level in effect and whether the candidate was applied.
func (s *Store) UpdatePeak(ctx context.Context, securityID, candidate string) (string, bool, error) {
	return s.advance(ctx, Key("peak", securityID), candidate)
}

// UpdateTrigger advances trigger:{securityID} to candidate if higher.
func (s *Store) UpdateTrigger(ctx context.Context, securityID, candidate string) (string, bool, error) {
	return s.advance(ctx, Key("trigger", securityID), candidate)
}

func (s *Store) advance(ctx context.Context, key, candidate string) (string, bool, error) {
	var current string
	err := s.cb.Execute(func() error {
		res, e := advanceScript.Run(ctx, s.client, []string{key},
			candidate, int(LevelTTL.Seconds())).Result()
		if e != nil {
			return e
		}
		v, ok := res.(string)
		if !ok {
			return fmt.Errorf("redis: advance script returned %T", res)
		}
		current = v
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return current, current == candidate, nil
}

// Peak reads peak:{securityID}. ok=false when unset.
func (s *Store) Peak(ctx context.Context, securityID string) (string, bool, error) {
	return s.Get(ctx, Key("peak", securityID))
}

// Trigger reads trigger:{securityID}. ok=false when unset.
func (s *Store) Trigger(ctx context.Context, securityID string) (string, bool, error) {
	return s.Get(ctx, Key("trigger", securityID))
}

// ClearLevels removes peak and trigger state after a position is closed.
func (s *Store) ClearLevels(ctx context.Context, securityID string) error {
	return s.Del(ctx, Key("peak", securityID), Key("trigger", securityID))
}

// SetTrend writes trend:{securityID} = ON|OFF with a short TTL. The signal
// gate owns this flag; the risk manager only reads it.
func (s *Store) SetTrend(ctx context.Context, securityID string, on bool) error {
	v := "OFF"
	if on {
		v = "ON"
	}
	return s.Set(ctx, Key("trend", securityID), v, TrendTTL)
}

// TrendOn reports whether trend:{securityID} is ON. An expired or missing
// flag reads as OFF.
func (s *Store) TrendOn(ctx context.Context, securityID string) (bool, error) {
	v, ok, err := s.Get(ctx, Key("trend", securityID))
	if err != nil {
		return false, err
	}
	return ok && v == "ON", nil
}

// Dedupe records an action marker. Returns true when this caller owns the
// action for the window; false means a duplicate within DedupeTTL.
func (s *Store) Dedupe(ctx context.Context, actionKey string, now time.Time) (bool, error) {
	return s.SetNX(ctx, Key("dedupe", actionKey), now.Format(time.RFC3339Nano), DedupeTTL)
}
