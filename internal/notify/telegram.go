package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// Telegram posts warnings to an ops chat.
type Telegram struct {
	bot    *bot.Bot
	chatID string
	logger *zap.Logger
}

// NewTelegram builds a notifier for the given bot token and chat.
func NewTelegram(token, chatID string, logger *zap.Logger) (*Telegram, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{bot: b, chatID: chatID, logger: logger}, nil
}

// Warn sends the message to the ops chat. Send failures are logged and
// dropped.
func (t *Telegram) Warn(ctx context.Context, msg string) {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   "⚠️ " + msg,
	})
	if err != nil {
		t.logger.Warn("failed to send telegram alert",
			zap.String("chat_id", t.chatID),
			zap.Error(err),
		)
	}
}
