package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/infra/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var _ adapter.OperatorNotifier = (*BotNotifier)(nil)

// sender is the slice of *tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotNotifier delivers operator messages to every configured admin chat.
type BotNotifier struct {
	bot     sender
	chatIDs []int64
	log     *zerolog.Logger
}

func NewBotNotifier(bot *tgbotapi.BotAPI, chatIDs []int64, logger *zerolog.Logger) (*BotNotifier, error) {
	if bot == nil {
		return nil, errors.New("telegram bot is nil")
	}
	return newBotNotifier(bot, chatIDs, logger), nil
}

func newBotNotifier(bot sender, chatIDs []int64, logger *zerolog.Logger) *BotNotifier {
	l := logger.With().Str("component", "TelegramNotifier").Logger()
	return &BotNotifier{bot: bot, chatIDs: chatIDs, log: &l}
}

// Notify sends text to each admin chat. A failing chat does not stop the
// others; the joined error is returned.
func (n *BotNotifier) Notify(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var errs []error
	for _, id := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			metrics.IncNotification("failed")
			n.log.Warn().Err(err).Int64("chat_id", id).Msg("telegram send failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
			continue
		}
		metrics.IncNotification("sent")
	}
	return errors.Join(errs...)
}
