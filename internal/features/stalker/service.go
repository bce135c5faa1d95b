package stalker

// Package stalker holds the per-chat tracking records, the chat commands that
// edit them and the periodic scan that turns new explorer transactions into
// notifications.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"arb-stalker/internal/infra/log"
	"arb-stalker/internal/infra/metrics"
	"arb-stalker/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Store persists one tracking record per chat.
type Store interface {
	Put(ctx context.Context, stalker *model.Stalker) error
	Get(ctx context.Context, chatID int64) (*model.Stalker, error)
	All(ctx context.Context) ([]*model.Stalker, error)
}

// Explorer reads the chain.
type Explorer interface {
	BlockNumber(ctx context.Context) (uint64, error)
	// History returns transactions of address in blocks (fromBlock, toBlock], oldest first.
	History(ctx context.Context, address string, fromBlock, toBlock uint64) ([]model.Transaction, error)
}

// Messenger delivers text to a chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Options struct {
	TxURLPrefix string
}

type commandFunc func(s *Service, ctx context.Context, chatID int64, cmd Command) (string, error)

var dispatch = map[Kind]commandFunc{
	CommandStart: func(s *Service, ctx context.Context, chatID int64, _ Command) (string, error) {
		return s.Start(ctx, chatID)
	},
	CommandList: func(s *Service, ctx context.Context, chatID int64, _ Command) (string, error) {
		return s.List(ctx, chatID)
	},
	CommandAdd: func(s *Service, ctx context.Context, chatID int64, cmd Command) (string, error) {
		return s.Add(ctx, chatID, cmd.Address, cmd.Alias)
	},
	CommandRemove: func(s *Service, ctx context.Context, chatID int64, cmd Command) (string, error) {
		return s.Remove(ctx, chatID, cmd.Alias)
	},
}

type Service struct {
	store       Store
	explorer    Explorer
	messenger   Messenger
	txURLPrefix string

	locks    chatLocks
	scanning atomic.Bool
}

func NewService(store Store, explorer Explorer, messenger Messenger, opts Options) *Service {
	if opts.TxURLPrefix == "" {
		opts.TxURLPrefix = DefaultTxURLPrefix
	}
	return &Service{
		store:       store,
		explorer:    explorer,
		messenger:   messenger,
		txURLPrefix: opts.TxURLPrefix,
		locks:       chatLocks{m: make(map[int64]*sync.Mutex)},
	}
}

// Handle runs cmd for the chat and sends the reply. Unknown commands are ignored.
// When the command fails on an external dependency the chat gets a generic
// reply and the error is returned for logging.
func (s *Service) Handle(ctx context.Context, chatID int64, cmd Command) error {
	run, ok := dispatch[cmd.Kind]
	if !ok {
		return nil
	}

	reply, err := run(s, ctx, chatID, cmd)
	if err != nil {
		metrics.Commands.WithLabelValues(cmd.Kind.String(), "error").Inc()
		log.LogError("Command failed",
			zap.String("command", cmd.Kind.String()),
			zap.Int64("chatID", chatID),
			zap.Error(err))
		reply = genericFailureMessage
	} else {
		metrics.Commands.WithLabelValues(cmd.Kind.String(), "ok").Inc()
	}

	for _, part := range splitMessage(reply, MaxMessageLength) {
		if sendErr := s.messenger.SendMessage(ctx, chatID, part); sendErr != nil {
			return errors.Join(err, fmt.Errorf("failed to reply to %s: %w", cmd.Kind, sendErr))
		}
	}
	return err
}

// Start returns the help text.
func (s *Service) Start(ctx context.Context, chatID int64) (string, error) {
	return helpMessage, nil
}

// List renders the chat's targets in stored order. It never creates a record.
func (s *Service) List(ctx context.Context, chatID int64) (string, error) {
	stalker, err := s.store.Get(ctx, chatID)
	if errors.Is(err, model.ErrNotFound) {
		return noTargetsMessage, nil
	}
	if err != nil {
		return "", err
	}
	if len(stalker.Targets) == 0 {
		return noTargetsMessage, nil
	}
	return formatTargets(stalker.Targets), nil
}

// Add registers address under alias with the current chain height as its
// watermark, so only transactions after the add are reported.
func (s *Service) Add(ctx context.Context, chatID int64, address, alias string) (string, error) {
	if address == "" || alias == "" {
		return missingAddressOrAlias, nil
	}
	address = normalizeAddress(address)

	unlock := s.locks.lock(chatID)
	defer unlock()

	stalker, err := s.store.Get(ctx, chatID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		stalker = &model.Stalker{ChatID: chatID}
	case err != nil:
		return "", err
	}

	if stalker.HasAlias(alias) {
		return fmt.Sprintf(aliasInUseFormat, alias), nil
	}

	height, err := s.explorer.BlockNumber(ctx)
	if err != nil {
		metrics.ExplorerErrors.WithLabelValues("block_number").Inc()
		return "", fmt.Errorf("failed to get current block: %w", err)
	}

	stalker.Targets = append(stalker.Targets, model.Target{
		Address:          address,
		Alias:            alias,
		LastBlockChecked: height,
	})
	if err := s.store.Put(ctx, stalker); err != nil {
		return "", err
	}

	log.LogInfo("Target added",
		zap.Int64("chatID", chatID),
		zap.String("alias", alias),
		zap.String("address", address),
		zap.Uint64("block", height))
	return addedMessage, nil
}

// Remove drops every target named alias.
func (s *Service) Remove(ctx context.Context, chatID int64, alias string) (string, error) {
	if alias == "" {
		return missingAliasMessage, nil
	}

	unlock := s.locks.lock(chatID)
	defer unlock()

	stalker, err := s.store.Get(ctx, chatID)
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Sprintf(unknownAliasFormat, alias), nil
	}
	if err != nil {
		return "", err
	}

	if stalker.RemoveAlias(alias) == 0 {
		return fmt.Sprintf(unknownAliasFormat, alias), nil
	}
	if err := s.store.Put(ctx, stalker); err != nil {
		return "", err
	}

	log.LogInfo("Target removed", zap.Int64("chatID", chatID), zap.String("alias", alias))
	return removedMessage, nil
}

// normalizeAddress stores EVM addresses in checksum form so the same address
// typed in different cases lists identically.
func normalizeAddress(address string) string {
	if common.IsHexAddress(address) {
		return common.HexToAddress(address).Hex()
	}
	return address
}

// chatLocks serializes read-modify-write cycles on one chat's record.
type chatLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func (l *chatLocks) lock(chatID int64) (unlock func()) {
	l.mu.Lock()
	mu, ok := l.m[chatID]
	if !ok {
		mu = &sync.Mutex{}
		l.m[chatID] = mu
	}
	l.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
