package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"CashBreakout/internal/domain/models"
)

// RedisSnapshotStore holds the live quote map under one key. Write replaces
// the entire value so readers never observe a half-merged map.
type RedisSnapshotStore struct {
	client *redis.Client
	key    string
}

func NewRedisSnapshotStore(client *redis.Client, key string) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client, key: key}
}

func (s *RedisSnapshotStore) Write(ctx context.Context, quotes map[string]models.LiveQuote) error {
	payload, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisSnapshotStore) Read(ctx context.Context) (map[string]models.LiveQuote, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return map[string]models.LiveQuote{}, nil
		}
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	quotes := make(map[string]models.LiveQuote)
	if err := json.Unmarshal(raw, &quotes); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return quotes, nil
}

// RedisLevelsStore is the previous-day reference hash, keyed by symbol with
// JSON values. The engine only reads it; the daily fetch job writes it.
type RedisLevelsStore struct {
	client *redis.Client
	key    string
}

func NewRedisLevelsStore(client *redis.Client, key string) *RedisLevelsStore {
	return &RedisLevelsStore{client: client, key: key}
}

func (s *RedisLevelsStore) Get(ctx context.Context, symbol string) (*models.PrevDayLevels, error) {
	raw, err := s.client.HGet(ctx, s.key, symbol).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // no data means the symbol is disqualified, not an error
		}
		return nil, fmt.Errorf("hget %s %s: %w", s.key, symbol, err)
	}
	var lv models.PrevDayLevels
	if err := json.Unmarshal(raw, &lv); err != nil {
		return nil, fmt.Errorf("unmarshal levels %s: %w", symbol, err)
	}
	return &lv, nil
}

func (s *RedisLevelsStore) Put(ctx context.Context, symbol string, lv *models.PrevDayLevels) error {
	payload, err := json.Marshal(lv)
	if err != nil {
		return fmt.Errorf("marshal levels: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, symbol, payload).Err(); err != nil {
		return fmt.Errorf("hset %s %s: %w", s.key, symbol, err)
	}
	return nil
}
