package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Webhook posts alerts as JSON to a generic HTTP endpoint.
type Webhook struct {
	url  string
	http *resty.Client
}

// NewWebhook creates a webhook notifier for url.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:  url,
		http: resty.New().SetTimeout(10 * time.Second),
	}
}

func (w *Webhook) Send(ctx context.Context, alert Alert) error {
	resp, err := w.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"level":   string(alert.Level),
			"title":   alert.Title,
			"message": alert.Message,
			"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: status %d", resp.StatusCode())
	}
	return nil
}
