package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"arb-stalker/internal/infra/log"
	"arb-stalker/internal/infra/retry"
	"arb-stalker/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrChatUnavailable wraps Bot API answers that will not change on retry.
var ErrChatUnavailable = model.ErrChatUnavailable

// Sender delivers plain text messages, throttled to stay under the Bot API flood limits.
// Flood-wait answers (429 with retry_after) are waited out and retried.
type Sender struct {
	bot       *tgbotapi.BotAPI
	limiter   *rate.Limiter
	retryOpts retry.Options
}

// NewBot authorizes the token against the Bot API. endpoint may be empty for the public API.
func NewBot(token, endpoint string) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	log.LogSuccess("Bot authorized", zap.String("username", bot.Self.UserName))
	return bot, nil
}

func NewSender(bot *tgbotapi.BotAPI, messagesPerSecond float64) *Sender {
	if messagesPerSecond <= 0 {
		messagesPerSecond = 20
	}
	return &Sender{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), 1),
		retryOpts: retry.Options{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   time.Minute, // group flood waits run up to ~40s
			OnRetry: func(attempt int, err error, wait time.Duration) {
				log.LogWarn("Telegram send throttled, retrying",
					zap.Int("attempt", attempt),
					zap.Duration("wait", wait),
					zap.Error(err))
			},
		},
	}
}

// Bot exposes the underlying client for the update loop.
func (s *Sender) Bot() *tgbotapi.BotAPI {
	return s.bot
}

// SendMessage blocks until the message is delivered, ctx is done or retries run out.
// Errors wrapping ErrChatUnavailable mean the chat refuses messages for good.
func (s *Sender) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	err := retry.Do(ctx, s.retryOpts, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("send limiter wait failed: %w", err)
		}
		_, err := s.bot.Send(msg)
		return classifySendError(err)
	})
	if err != nil {
		log.LogError("Failed to send message", zap.Int64("chatID", chatID), zap.Error(err))
		return fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return nil
}

// classifySendError maps Bot API errors onto retry.HTTPError (transient) or
// ErrChatUnavailable (permanent). Anything else is returned unchanged.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
		return &retry.HTTPError{
			StatusCode: apiErr.Code,
			Body:       []byte(apiErr.Message),
			RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second,
		}
	case apiErr.Code == http.StatusForbidden:
		// blocked by the user, kicked from the group, user deactivated
		return fmt.Errorf("%w: %s", ErrChatUnavailable, apiErr.Message)
	case apiErr.Code == http.StatusBadRequest && isGoneChat(apiErr.Message):
		return fmt.Errorf("%w: %s", ErrChatUnavailable, apiErr.Message)
	}
	return err
}

// isGoneChat matches the 400 answers about the chat itself, not the message.
func isGoneChat(description string) bool {
	description = strings.ToLower(description)
	for _, s := range []string{"chat not found", "group chat was upgraded", "have no rights to send", "chat_write_forbidden"} {
		if strings.Contains(description, s) {
			return true
		}
	}
	return false
}
