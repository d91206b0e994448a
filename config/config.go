// Package config loads engine configuration from a YAML file overlaid with
// environment variables. Credentials only ever come from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

// Symbol configures one tradable underlying.
type Symbol struct {
	Name           string  `mapstructure:"name"`             // NIFTY, BANKNIFTY, SENSEX
	SpotSecurityID string  `mapstructure:"spot_security_id"` // index security id
	SpotSegment    string  `mapstructure:"spot_segment"`     // IDX_I
	AllocationPct  float64 `mapstructure:"allocation_pct"`
	MaxLots        int64   `mapstructure:"max_lots"`
}

// Config is the full engine configuration.
type Config struct {
	// Broker credentials, environment only.
	ClientID    string `mapstructure:"client_id"`
	AccessToken string `mapstructure:"access_token"`

	// Infrastructure.
	RedisURL       string `mapstructure:"redis_url"`
	SQLitePath     string `mapstructure:"sqlite_path"`
	APIAddr        string `mapstructure:"api_addr"`
	InstrumentsCSV string `mapstructure:"instruments_csv"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`

	// Trading.
	Symbols            []Symbol `mapstructure:"symbols"`
	StartingBalance    float64  `mapstructure:"starting_balance"`
	ChargePerOrder     float64  `mapstructure:"charge_per_order"`
	EnforceMarketHours bool     `mapstructure:"enforce_market_hours"`
	HeartbeatWindow    int      `mapstructure:"heartbeat_window_seconds"`

	// Risk.
	EmergencyFloor        float64 `mapstructure:"emergency_floor_rupees"`
	InitialSLPct          float64 `mapstructure:"initial_sl_pct"`
	BreakevenThresholdPct float64 `mapstructure:"breakeven_threshold_pct"`
	TrailPct              float64 `mapstructure:"trail_pct"`
	RupeeStep             float64 `mapstructure:"rupee_step"`
	DayLossLimit          float64 `mapstructure:"day_loss_limit"`
	SessionTarget         float64 `mapstructure:"session_target"`

	// Notifications.
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
	WebhookURL       string `mapstructure:"webhook_url"`
}

// Load reads path (optional) and the environment. Env vars use the exact
// upper-snake form of the config key: CLIENT_ID, REDIS_URL, LOG_LEVEL, ...
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("sqlite_path", "data/scalper.db")
	v.SetDefault("api_addr", ":9090")
	v.SetDefault("instruments_csv", "data/instruments.csv")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("starting_balance", 100000)
	v.SetDefault("charge_per_order", 20)
	v.SetDefault("enforce_market_hours", true)
	v.SetDefault("heartbeat_window_seconds", 120)
	v.SetDefault("emergency_floor_rupees", 1000)
	v.SetDefault("initial_sl_pct", 0.02)
	v.SetDefault("breakeven_threshold_pct", 0.15)
	v.SetDefault("trail_pct", 0.05)
	v.SetDefault("rupee_step", 3)
	v.SetDefault("day_loss_limit", 2500)
	v.SetDefault("session_target", 0) // 0 disables the target shutdown

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w: %v", path, model.ErrConfigInvalid, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w: %v", model.ErrConfigInvalid, err)
	}

	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []Symbol{{
			Name:           "NIFTY",
			SpotSecurityID: "13",
			SpotSegment:    model.SegmentIndex,
			AllocationPct:  0.30,
			MaxLots:        10,
		}}
	}
	for i := range cfg.Symbols {
		if cfg.Symbols[i].AllocationPct <= 0 {
			cfg.Symbols[i].AllocationPct = 0.30
		}
		if cfg.Symbols[i].MaxLots <= 0 {
			cfg.Symbols[i].MaxLots = 10
		}
		if cfg.Symbols[i].SpotSegment == "" {
			cfg.Symbols[i].SpotSegment = model.SegmentIndex
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("config: "+format+": %w", append(args, model.ErrConfigInvalid)...)
	}
	if c.StartingBalance <= 0 {
		return fail("starting_balance must be positive, got %v", c.StartingBalance)
	}
	if c.InitialSLPct <= 0 || c.InitialSLPct >= 1 {
		return fail("initial_sl_pct must be in (0,1), got %v", c.InitialSLPct)
	}
	if c.TrailPct <= 0 || c.TrailPct >= 1 {
		return fail("trail_pct must be in (0,1), got %v", c.TrailPct)
	}
	if c.BreakevenThresholdPct <= 0 {
		return fail("breakeven_threshold_pct must be positive, got %v", c.BreakevenThresholdPct)
	}
	if c.HeartbeatWindow <= 0 {
		return fail("heartbeat_window_seconds must be positive, got %d", c.HeartbeatWindow)
	}
	for _, s := range c.Symbols {
		if s.Name == "" || s.SpotSecurityID == "" {
			return fail("symbol entries need name and spot_security_id")
		}
		if s.AllocationPct > 1 {
			return fail("symbol %s: allocation_pct must be <= 1, got %v", s.Name, s.AllocationPct)
		}
	}
	return nil
}

// RequireLiveCredentials verifies the broker credentials needed outside
// paper mode.
func (c *Config) RequireLiveCredentials() error {
	if c.ClientID == "" || c.AccessToken == "" {
		return fmt.Errorf("config: CLIENT_ID and ACCESS_TOKEN are required for live mode: %w",
			model.ErrConfigInvalid)
	}
	return nil
}

// Heartbeat returns the stale-feed window as a duration.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatWindow) * time.Second
}
