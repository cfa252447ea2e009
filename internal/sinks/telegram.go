package sinks

import (
	"context"
	"fmt"
	"html"

	"github.com/flxmf365/hospital-booking-bot/internal/components/assert"
	"github.com/flxmf365/hospital-booking-bot/internal/telegram"
)

// MessageSender is the part of the telegram client the sink needs.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

var _ MessageSender = (*telegram.Client)(nil)

// Telegram posts notifications to a single chat.
type Telegram struct {
	sender MessageSender
	chatID string
}

func NewTelegram(sender MessageSender, chatID string) Telegram {
	assert.NotNil(sender)
	assert.NotEmptyStr(chatID)
	return Telegram{sender: sender, chatID: chatID}
}

// FormatTelegram renders a (title, body) pair as telegram HTML.
func FormatTelegram(title, body string) string {
	if body == "" {
		return fmt.Sprintf("<b>%s</b>", html.EscapeString(title))
	}
	return fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(title), html.EscapeString(body))
}

func (t Telegram) Notify(ctx context.Context, title, body string) error {
	return t.sender.SendMessage(ctx, t.chatID, FormatTelegram(title, body))
}
