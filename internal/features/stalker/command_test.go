package stalker_test

import (
	"testing"

	"arb-stalker/internal/features/stalker"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		text string
		want stalker.Command
	}{
		{"start", "/start", stalker.Command{Kind: stalker.CommandStart}},
		{"start with bot suffix", "/start@arb_stalker_bot", stalker.Command{Kind: stalker.CommandStart}},
		{"list", "  /list  ", stalker.Command{Kind: stalker.CommandList}},
		{"add", "/add 0xABC myalias", stalker.Command{Kind: stalker.CommandAdd, Address: "0xABC", Alias: "myalias"}},
		{"add alias with spaces", "/add 0xABC my   cold wallet", stalker.Command{Kind: stalker.CommandAdd, Address: "0xABC", Alias: "my cold wallet"}},
		{"add missing alias", "/add 0xABC", stalker.Command{Kind: stalker.CommandAdd, Address: "0xABC"}},
		{"add no args", "/add", stalker.Command{Kind: stalker.CommandAdd}},
		{"add with bot suffix", "/add@arb_stalker_bot 0x1 a", stalker.Command{Kind: stalker.CommandAdd, Address: "0x1", Alias: "a"}},
		{"remove", "/remove myalias", stalker.Command{Kind: stalker.CommandRemove, Alias: "myalias"}},
		{"add newline separated", "/add\n0xABC\nhot", stalker.Command{Kind: stalker.CommandAdd, Address: "0xABC", Alias: "hot"}},
		{"add tab separated", "/add\t0xABC a", stalker.Command{Kind: stalker.CommandAdd, Address: "0xABC", Alias: "a"}},
		{"remove tab separated", "/remove\tmyalias", stalker.Command{Kind: stalker.CommandRemove, Alias: "myalias"}},
		{"remove no args", "/remove   ", stalker.Command{Kind: stalker.CommandRemove}},
		{"uppercase command", "/LIST", stalker.Command{Kind: stalker.CommandList}},
		{"plain text", "hello", stalker.Command{Kind: stalker.CommandUnknown}},
		{"unknown command", "/help", stalker.Command{Kind: stalker.CommandUnknown}},
		{"prefix of command", "/lists", stalker.Command{Kind: stalker.CommandUnknown}},
		{"empty", "", stalker.Command{Kind: stalker.CommandUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stalker.ParseCommand(tt.text))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "add", stalker.CommandAdd.String())
	assert.Equal(t, "unknown", stalker.CommandUnknown.String())
}
