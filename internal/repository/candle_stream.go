package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
)

// RedisCandleStream implements CandleStream on a Redis stream. Entries carry
// a single "data" field holding the JSON-encoded candle, and consumers read
// through per-user consumer groups so independent users each see the full
// stream while engine replicas for one user never double-process an entry.
type RedisCandleStream struct {
	client *redis.Client
	key    string
}

// NewRedisCandleStream creates a candle stream on the given stream key.
func NewRedisCandleStream(client *redis.Client, key string) *RedisCandleStream {
	return &RedisCandleStream{client: client, key: key}
}

func (s *RedisCandleStream) Publish(ctx context.Context, c *models.Candle) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candle: %w", err)
	}
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		Values: map[string]interface{}{"data": payload},
	}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.key, err)
	}
	return nil
}

// EnsureGroup creates the consumer group at the stream start, creating the
// stream if it does not exist yet. An already-existing group is not an error.
func (s *RedisCandleStream) EnsureGroup(ctx context.Context, group string) error {
	err := s.client.XGroupCreateMkStream(ctx, s.key, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("xgroup create %s: %w", group, err)
	}
	return nil
}

func (s *RedisCandleStream) ReadGroup(ctx context.Context, group, consumer string, count int, block time.Duration) ([]domrepo.StreamEntry, error) {
	res, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{s.key, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // block timeout, nothing new
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", group, err)
	}

	var entries []domrepo.StreamEntry
	for _, stream := range res {
		for _, msg := range stream.Messages {
			raw, ok := msg.Values["data"].(string)
			if !ok {
				// malformed entry: ack-less skip would redeliver forever
				entries = append(entries, domrepo.StreamEntry{ID: msg.ID})
				continue
			}
			var c models.Candle
			if err := json.Unmarshal([]byte(raw), &c); err != nil {
				entries = append(entries, domrepo.StreamEntry{ID: msg.ID})
				continue
			}
			entries = append(entries, domrepo.StreamEntry{ID: msg.ID, Candle: c})
		}
	}
	return entries, nil
}

func (s *RedisCandleStream) Ack(ctx context.Context, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.XAck(ctx, s.key, group, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}
