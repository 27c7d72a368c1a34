package telegram

import (
	"context"
	"sync"

	"bytebill/internal/infra/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Report renders a text answer for an operator command.
type Report func(ctx context.Context) (string, error)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// CommandBot answers operator commands over long polling. Only chats listed
// as admins get answers.
type CommandBot struct {
	bot     sender
	updates func(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	admins  map[int64]struct{}
	reports map[string]Report
	workers int
	log     *zerolog.Logger
}

func NewCommandBot(bot *tgbotapi.BotAPI, adminChatIDs []int64, reports map[string]Report, workers int, logger *zerolog.Logger) *CommandBot {
	b := newCommandBot(bot, adminChatIDs, reports, workers, logger)
	b.updates = bot.GetUpdatesChan
	return b
}

func newCommandBot(bot sender, adminChatIDs []int64, reports map[string]Report, workers int, logger *zerolog.Logger) *CommandBot {
	if workers <= 0 {
		workers = 2
	}
	admins := make(map[int64]struct{}, len(adminChatIDs))
	for _, id := range adminChatIDs {
		admins[id] = struct{}{}
	}
	l := logger.With().Str("component", "TelegramCommandBot").Logger()
	return &CommandBot{bot: bot, admins: admins, reports: reports, workers: workers, log: &l}
}

// StartPolling blocks until ctx is done.
func (b *CommandBot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.updates(u)

	var wg sync.WaitGroup
	work := make(chan *tgbotapi.Message, 32)
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for msg := range work {
				if err := b.handleMessage(ctx, msg); err != nil {
					b.log.Warn().Err(err).Int("worker", id).Msg("command failed")
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			if up.Message == nil || !up.Message.IsCommand() {
				continue
			}
			select {
			case work <- up.Message:
			case <-ctx.Done():
			}
		}
	}
}

func (b *CommandBot) commandRoutes() map[string]commandHandler {
	routes := map[string]commandHandler{
		"help": b.adminOnly(b.handleHelpCommand),
	}
	for name, report := range b.reports {
		routes[name] = b.adminOnly(b.reportHandler(report))
	}
	return routes
}

func (b *CommandBot) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !b.isAdmin(message.Chat.ID) {
			metrics.IncAdminCommand("/"+message.Command(), "unauthorized")
			return nil
		}
		metrics.IncAdminCommand("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

func (b *CommandBot) isAdmin(chatID int64) bool {
	_, ok := b.admins[chatID]
	return ok
}

func (b *CommandBot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.Chat == nil {
		return nil
	}
	h, ok := b.commandRoutes()[message.Command()]
	if !ok {
		return nil
	}
	return h(ctx, message)
}

func (b *CommandBot) reportHandler(report Report) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		text, err := report(ctx)
		if err != nil {
			b.log.Error().Err(err).Str("command", message.Command()).Msg("report failed")
			text = "Report unavailable, check the logs."
		}
		return b.reply(message.Chat.ID, text)
	}
}

func (b *CommandBot) handleHelpCommand(_ context.Context, message *tgbotapi.Message) error {
	text := "Commands:\n/help"
	for name := range b.reports {
		text += "\n/" + name
	}
	return b.reply(message.Chat.ID, text)
}

func (b *CommandBot) reply(chatID int64, text string) error {
	_, err := b.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
