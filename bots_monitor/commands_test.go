package bots_monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"arb-stalker/internal/features/stalker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handledCommand struct {
	chatID      int64
	cmd         stalker.Command
	hasDeadline bool
}

type recordingHandler struct {
	handled []handledCommand
	err     error
}

func (h *recordingHandler) Handle(ctx context.Context, chatID int64, cmd stalker.Command) error {
	_, ok := ctx.Deadline()
	h.handled = append(h.handled, handledCommand{chatID: chatID, cmd: cmd, hasDeadline: ok})
	return h.err
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			Chat: &tgbotapi.Chat{ID: chatID},
			From: &tgbotapi.User{UserName: "alice"},
		},
	}
}

func TestHandleUpdate_DispatchesCommands(t *testing.T) {
	h := &recordingHandler{}

	handleUpdate(context.Background(), h, textUpdate(7, "/add@arb_stalker_bot 0xABC myalias"))

	require.Len(t, h.handled, 1)
	assert.Equal(t, int64(7), h.handled[0].chatID)
	assert.Equal(t, stalker.Command{Kind: stalker.CommandAdd, Address: "0xABC", Alias: "myalias"}, h.handled[0].cmd)
	assert.True(t, h.handled[0].hasDeadline)
}

func TestHandleUpdate_IgnoresNonCommands(t *testing.T) {
	h := &recordingHandler{}

	handleUpdate(context.Background(), h, tgbotapi.Update{})
	handleUpdate(context.Background(), h, tgbotapi.Update{Message: &tgbotapi.Message{Text: "/list"}})
	handleUpdate(context.Background(), h, textUpdate(7, "gm"))
	handleUpdate(context.Background(), h, textUpdate(7, "/flashadd SOON"))

	assert.Empty(t, h.handled)
}

func TestHandleUpdate_HandlerErrorDoesNotPanic(t *testing.T) {
	h := &recordingHandler{err: errors.New("redis: connection refused")}
	update := textUpdate(7, "/list")
	update.Message.From = nil

	assert.NotPanics(t, func() { handleUpdate(context.Background(), h, update) })
	assert.Len(t, h.handled, 1)
}

func TestRunCommandHandler_NilBot(t *testing.T) {
	done := make(chan struct{})
	go func() {
		RunCommandHandler(context.Background(), nil, &recordingHandler{}, 1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCommandHandler with nil bot should return immediately")
	}
}
