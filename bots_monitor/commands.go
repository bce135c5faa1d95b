package bots_monitor

// Telegram update loop. Parses chat commands and hands them to the tracker service.

import (
	"context"
	"time"

	"arb-stalker/internal/features/stalker"
	log "arb-stalker/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const commandTimeout = 30 * time.Second

// CommandHandler executes a parsed command and replies to the chat.
type CommandHandler interface {
	Handle(ctx context.Context, chatID int64, cmd stalker.Command) error
}

// RunCommandHandler long-polls Telegram until ctx is done.
// updatesTimeout - long polling timeout in seconds
func RunCommandHandler(ctx context.Context, bot *tgbotapi.BotAPI, handler CommandHandler, updatesTimeout int) {
	if bot == nil {
		log.LogWarn("Bot is nil, command handler not started")
		return
	}

	log.LogInfo("Starting command handler", zap.String("bot", bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updatesTimeout

	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			log.LogInfo("Command handler stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			handleUpdate(ctx, handler, update)
		}
	}
}

func handleUpdate(ctx context.Context, handler CommandHandler, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.Chat == nil {
		return
	}

	cmd := stalker.ParseCommand(message.Text)
	if cmd.Kind == stalker.CommandUnknown {
		return
	}

	username := ""
	if message.From != nil {
		username = message.From.UserName
	}
	log.LogDebug("Received command",
		zap.String("command", cmd.Kind.String()),
		zap.Int64("chatID", message.Chat.ID),
		zap.String("username", username))

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := handler.Handle(cmdCtx, message.Chat.ID, cmd); err != nil {
		log.LogError("Failed to handle command",
			zap.String("command", cmd.Kind.String()),
			zap.Int64("chatID", message.Chat.ID),
			zap.Error(err))
	}
}
