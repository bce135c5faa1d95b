package model

import (
	"errors"
	"strconv"
)

// ErrNotFound is returned by stores when no tracking record exists for a chat.
var ErrNotFound = errors.New("stalker not found")

// ErrChatUnavailable is returned by messengers when the chat permanently refuses
// messages: the bot was blocked or kicked, or the chat no longer exists.
var ErrChatUnavailable = errors.New("chat unavailable")

// Target is one tracked address inside a chat.
type Target struct {
	Address          string `json:"address"`
	Alias            string `json:"alias"`
	LastBlockChecked uint64 `json:"lastBlockChecked"` // watermark, never decreases
}

// Stalker is the tracking record of a single chat.
type Stalker struct {
	ChatID  int64    `json:"chatId"`
	Targets []Target `json:"targets"`
}

// Key returns the store key of the record.
func (s *Stalker) Key() string {
	return ChatKey(s.ChatID)
}

func ChatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// HasAlias reports whether any target already uses alias.
func (s *Stalker) HasAlias(alias string) bool {
	for _, t := range s.Targets {
		if t.Alias == alias {
			return true
		}
	}
	return false
}

// RemoveAlias drops every target with the given alias and returns how many were removed.
func (s *Stalker) RemoveAlias(alias string) int {
	kept := s.Targets[:0]
	removed := 0
	for _, t := range s.Targets {
		if t.Alias == alias {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.Targets = kept
	return removed
}

// Transaction is an explorer transaction touching a tracked address.
type Transaction struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"blockNumber"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Timestamp   int64  `json:"timestamp"`
	Failed      bool   `json:"failed"`
}
