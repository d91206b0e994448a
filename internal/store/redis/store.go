// Package redis provides the typed Redis wrapper backing session state:
// balance hashes, position records, order records, peak/trigger levels and
// idempotency markers. Peak and trigger advances go through Lua
// compare-and-set scripts so they only ever move upward.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Namespace is the key prefix shared by all persisted state.
const Namespace = "dhan_scalper:v1:"

// Default TTLs per key family.
const (
	BalanceTTL = 24 * time.Hour
	LevelTTL   = time.Hour // peak:{sid}, trigger:{sid}
	TrendTTL   = 5 * time.Minute
	DedupeTTL  = 10 * time.Second
)

// Config configures the Redis store.
type Config struct {
	// URL takes precedence when set (redis://[:pass@]host:port/db).
	URL      string
	Addr     string
	Password string
	DB       int
}

// Store wraps a Redis client with the key namespace and CAS scripts.
type Store struct {
	client  *goredis.Client
	cb      *Breaker
	onWrite func(time.Duration)
}

// New connects, pings and returns a Store.
func New(cfg Config) (*Store, error) {
	var opts *goredis.Options
	if cfg.URL != "" {
		var err error
		opts, err = goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
	} else {
		opts = &goredis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	}

	client := goredis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	slog.Info("redis connected", "addr", opts.Addr)
	return &Store{
		client: client,
		cb:     NewBreaker(5, 10*time.Second),
	}, nil
}

// Client returns the underlying client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker returns the store's circuit breaker for state inspection.
func (s *Store) Breaker() *Breaker { return s.cb }

// OnWriteLatency installs an observer for write command latency. Set once
// during wiring, before concurrent use.
func (s *Store) OnWriteLatency(fn func(time.Duration)) { s.onWrite = fn }

// write runs a mutating command through the breaker, timing it for the
// latency observer.
func (s *Store) write(fn func() error) error {
	if s.onWrite == nil {
		return s.cb.Execute(fn)
	}
	start := time.Now()
	err := s.cb.Execute(fn)
	s.onWrite(time.Since(start))
	return err
}

// Key prefixes a key with the store namespace.
func Key(parts ...string) string {
	k := Namespace
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

// HSetAll writes a full hash and refreshes its TTL in one pipeline.
func (s *Store) HSetAll(ctx context.Context, key string, fields map[string]interface{}, ttl time.Duration) error {
	return s.write(func() error {
		pipe := s.client.Pipeline()
		pipe.HSet(ctx, key, fields)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

// HGetAll reads a full hash. A missing key yields an empty map, nil error.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var out map[string]string
	err := s.cb.Execute(func() error {
		var e error
		out, e = s.client.HGetAll(ctx, key).Result()
		return e
	})
	return out, err
}

// SAdd adds members to a set.
func (s *Store) SAdd(ctx context.Context, key string, members ...interface{}) error {
	return s.write(func() error {
		return s.client.SAdd(ctx, key, members...).Err()
	})
}

// SRem removes members from a set.
func (s *Store) SRem(ctx context.Context, key string, members ...interface{}) error {
	return s.write(func() error {
		return s.client.SRem(ctx, key, members...).Err()
	})
}

// SMembers lists a set's members. Missing key yields an empty slice.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	var out []string
	err := s.cb.Execute(func() error {
		var e error
		out, e = s.client.SMembers(ctx, key).Result()
		return e
	})
	return out, err
}

// Set writes a string value with TTL.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.write(func() error {
		return s.client.Set(ctx, key, value, ttl).Err()
	})
}

// Get reads a string value. ok=false when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var val string
	var found bool
	err := s.cb.Execute(func() error {
		v, e := s.client.Get(ctx, key).Result()
		if e == goredis.Nil {
			return nil
		}
		if e != nil {
			return e
		}
		val, found = v, true
		return nil
	})
	return val, found, err
}

// Del removes keys.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.write(func() error {
		return s.client.Del(ctx, keys...).Err()
	})
}

// SetNX sets key=value with TTL only when absent. Returns true when the
// marker was created (i.e. this caller won the dedupe window).
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	var won bool
	err := s.write(func() error {
		var e error
		won, e = s.client.SetNX(ctx, key, value, ttl).Result()
		return e
	})
	return won, err
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
