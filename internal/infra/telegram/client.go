// internal/infra/telegram/client.go
package telegram

import (
	"context"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter delivers reminders to the configured chat using the
// gopkg.in/telebot.v3 library. It implements app.Notifier.
type TelebotAdapter struct {
	bot    *telebot.Bot
	chatID int64
}

func NewTelebotAdapter(b *telebot.Bot, chatID int64) *TelebotAdapter {
	return &TelebotAdapter{bot: b, chatID: chatID}
}

// Send sends the reminder as a single message, title above body.
func (tba *TelebotAdapter) Send(_ context.Context, title, body string) error {
	recipient := &telebot.User{ID: tba.chatID}
	_, err := tba.bot.Send(recipient, title+"\n"+body)
	return err
}
