package positions

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
)

// fromHash rebuilds a Position from its persisted Redis hash.
func fromHash(h map[string]string) (*model.Position, error) {
	var firstErr error
	parseMoney := func(field string) money.Money {
		m, err := money.Parse(h[field])
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("field %s: %w", field, err)
		}
		return m
	}
	parseInt := func(field string) int64 {
		if h[field] == "" {
			return 0
		}
		n, err := strconv.ParseInt(h[field], 10, 64)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("field %s: %w", field, err)
		}
		return n
	}
	parseTime := func(field string) time.Time {
		ts, _ := time.Parse(time.RFC3339, h[field])
		return ts
	}

	p := &model.Position{
		Segment:       h["exchange_segment"],
		SecurityID:    h["security_id"],
		Side:          model.PositionSide(h["side"]),
		NetQty:        parseInt("net_qty"),
		BuyQty:        parseInt("buy_qty"),
		BuyAvg:        parseMoney("buy_avg"),
		SellQty:       parseInt("sell_qty"),
		SellAvg:       parseMoney("sell_avg"),
		RealizedPnL:   parseMoney("realized_pnl"),
		UnrealizedPnL: parseMoney("unrealized_pnl"),
		CurrentPrice:  parseMoney("current_price"),
		OptionType:    h["option_type"],
		Strike:        parseInt("strike"),
		Expiry:        h["expiry"],
		Underlying:    h["underlying_symbol"],
		CreatedAt:     parseTime("created_at"),
		LastUpdated:   parseTime("last_updated"),
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return p, nil
}
