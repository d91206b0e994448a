// Package notification delivers trading alerts (fills, risk exits, shutdown
// conditions) to external channels. Delivery is best effort and never on the
// order path.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/money"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one notification.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier delivers alerts to one channel.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log. Always configured as the
// fallback channel.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, alert Alert) error {
	switch alert.Level {
	case AlertCritical:
		slog.Error(alert.Title, "component", "notify", "detail", alert.Message)
	case AlertWarning:
		slog.Warn(alert.Title, "component", "notify", "detail", alert.Message)
	default:
		slog.Info(alert.Title, "component", "notify", "detail", alert.Message)
	}
	return nil
}

// Multi fans an alert out to every channel; individual failures are logged
// and do not stop the rest.
type Multi struct {
	channels []Notifier
}

// NewMulti builds a fan-out notifier.
func NewMulti(channels ...Notifier) *Multi {
	return &Multi{channels: channels}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	for _, ch := range m.channels {
		if err := ch.Send(ctx, alert); err != nil {
			slog.Warn("alert delivery failed", "component", "notify",
				"title", alert.Title, "err", err)
		}
	}
	return nil
}

// OrderFilled formats a fill alert.
func OrderFilled(o model.Order, intent string) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("%s %s x%d", o.Side, o.Symbol, o.Qty),
		Message: fmt.Sprintf("%s %s qty %d @ %s (%s), order %s",
			o.Side, o.SecurityID, o.Qty, o.AvgPrice.Format(), intent, o.ID),
	}
}

// RiskExit formats a risk-manager exit alert.
func RiskExit(securityID, reason string, qty int64, entry, fill money.Money) Alert {
	level := AlertWarning
	if reason == "emergency" {
		level = AlertCritical
	}
	pnl := fill.Sub(entry).MulInt(qty)
	return Alert{
		Level: level,
		Title: fmt.Sprintf("Exit %s (%s)", securityID, reason),
		Message: fmt.Sprintf("qty %d, entry %s, exit %s, pnl %s",
			qty, entry.Format(), fill.Format(), pnl.Format()),
	}
}

// DayLossLimit formats the forced-shutdown alert.
func DayLossLimit(realized, limit money.Money) Alert {
	return Alert{
		Level: AlertCritical,
		Title: "Day loss limit breached",
		Message: fmt.Sprintf("realized %s breached limit %s; flattening and shutting down",
			realized.Format(), limit.Format()),
	}
}

// SessionSummary formats the end-of-session alert.
func SessionSummary(sessionID string, realized, total money.Money, orders int) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("Session %s closed", sessionID),
		Message: fmt.Sprintf("realized %s, total pnl %s, %d orders",
			realized.Format(), total.Format(), orders),
	}
}
