package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Telegram sends alerts through the Bot API.
type Telegram struct {
	chatID string
	http   *resty.Client
}

// NewTelegram creates a Telegram notifier. botToken comes from @BotFather;
// chatID is the target chat, group or channel.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		chatID: chatID,
		http: resty.New().
			SetBaseURL("https://api.telegram.org/bot" + botToken).
			SetTimeout(10 * time.Second),
	}
}

func (t *Telegram) Send(ctx context.Context, alert Alert) error {
	emoji := "ℹ️"
	switch alert.Level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertCritical:
		emoji = "🚨"
	}
	text := fmt.Sprintf("%s *%s*\n\n%s",
		emoji, escapeMarkdown(alert.Title), escapeMarkdown(alert.Message))

	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "MarkdownV2",
		}).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// escapeMarkdown escapes MarkdownV2 reserved characters.
func escapeMarkdown(s string) string {
	const specials = `_*[]()~` + "`" + `>#+-=|{}.!`
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(specials, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
