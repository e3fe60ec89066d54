// Package notify sends operator alerts when a keyword's mention volume
// spikes. Alerting is best-effort; failures never affect collection.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Telegram delivers spike alerts to a single chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *logrus.Logger
}

// NewTelegram creates the notifier. It validates the token against the
// Telegram API, so it fails fast on a bad token.
func NewTelegram(token string, chatID int64, log *logrus.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: create telegram bot: %w", err)
	}
	log.WithField("bot", api.Self.UserName).Info("Telegram spike alerts enabled")
	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

// NotifySpike sends one alert message.
func (t *Telegram) NotifySpike(_ context.Context, keyword string, count int) error {
	text := fmt.Sprintf("Mention spike: %q reached %d mentions in the last collection cycle", keyword, count)
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("notify: send telegram message: %w", err)
	}
	return nil
}
