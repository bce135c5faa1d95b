package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"arb-stalker/internal/infra/log"
	"arb-stalker/internal/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// scanBatch is the COUNT hint for SCAN and the MGET batch size in All.
const scanBatch = 100

// RedisStore keeps one JSON tracking record per chat, keyed by the decimal chat id.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore parses a redis:// URL, connects and pings the server.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client (tests, shared pools).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Put overwrites the whole record of the chat.
func (s *RedisStore) Put(ctx context.Context, stalker *model.Stalker) error {
	if stalker == nil {
		return errors.New("nil stalker")
	}
	data, err := json.Marshal(stalker)
	if err != nil {
		return fmt.Errorf("failed to marshal stalker %d: %w", stalker.ChatID, err)
	}
	if err := s.client.Set(ctx, stalker.Key(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store stalker %d: %w", stalker.ChatID, err)
	}
	return nil
}

// Get returns model.ErrNotFound when the chat has no record.
func (s *RedisStore) Get(ctx context.Context, chatID int64) (*model.Stalker, error) {
	raw, err := s.client.Get(ctx, model.ChatKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stalker %d: %w", chatID, err)
	}

	var stalker model.Stalker
	if err := json.Unmarshal(raw, &stalker); err != nil {
		return nil, fmt.Errorf("failed to decode stalker %d: %w", chatID, err)
	}
	return &stalker, nil
}

func (s *RedisStore) Delete(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, model.ChatKey(chatID)).Err()
}

// All walks the keyspace with SCAN and loads every record with MGET.
// Keys that are not chat ids and values that fail to decode are skipped.
func (s *RedisStore) All(ctx context.Context) ([]*model.Stalker, error) {
	var stalkers []*model.Stalker
	var cursor uint64
	seen := make(map[string]struct{}) // SCAN may return a key more than once

	for {
		keys, next, err := s.client.Scan(ctx, cursor, "*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		chatKeys := keys[:0]
		for _, key := range keys {
			if _, dup := seen[key]; dup {
				continue
			}
			if _, err := strconv.ParseInt(key, 10, 64); err != nil {
				continue
			}
			seen[key] = struct{}{}
			chatKeys = append(chatKeys, key)
		}

		if len(chatKeys) > 0 {
			loaded, err := s.mget(ctx, chatKeys)
			if err != nil {
				return nil, err
			}
			stalkers = append(stalkers, loaded...)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return stalkers, nil
}

func (s *RedisStore) mget(ctx context.Context, keys []string) ([]*model.Stalker, error) {
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load stalkers: %w", err)
	}

	stalkers := make([]*model.Stalker, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// deleted between SCAN and MGET, or not a string key
			continue
		}
		var stalker model.Stalker
		if err := json.Unmarshal([]byte(raw), &stalker); err != nil {
			log.LogWarn("Skipping undecodable stalker record", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		stalkers = append(stalkers, &stalker)
	}
	return stalkers, nil
}
