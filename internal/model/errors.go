package model

import "errors"

// Domain error kinds. Order-placement errors surface as failed results;
// they never escape into the scheduler as panics.
var (
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrOrderRejected       = errors.New("order_rejected")
	ErrBrokerUnavailable   = errors.New("broker_unavailable")
	ErrMarketDataStale     = errors.New("market_data_stale")
	ErrFeedDisconnected    = errors.New("feed_disconnected")
	ErrInvalidInstrument   = errors.New("invalid_instrument")
	ErrRedisUnavailable    = errors.New("redis_unavailable")
	ErrConfigInvalid       = errors.New("config_invalid")
	ErrMarketClosed        = errors.New("market_closed")
	ErrDuplicateAction     = errors.New("duplicate")
)
