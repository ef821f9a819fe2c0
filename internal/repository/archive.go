package repository

import (
	"context"
	"fmt"
	"time"

	"CashBreakout/internal/domain/models"
	pkgch "CashBreakout/pkg/clickhouse"
	pkgkafka "CashBreakout/pkg/kafka"
)

// KafkaCandleArchive publishes finalized candles to a Kafka topic, keyed by
// symbol so one symbol's candles stay in partition order.
type KafkaCandleArchive struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaCandleArchive(producer *pkgkafka.Producer, topic string) *KafkaCandleArchive {
	return &KafkaCandleArchive{producer: producer, topic: topic}
}

func (a *KafkaCandleArchive) Archive(ctx context.Context, c *models.Candle) error {
	if err := a.producer.Publish(ctx, a.topic, []byte(c.Symbol), c); err != nil {
		return fmt.Errorf("archive candle %s: %w", c.Symbol, err)
	}
	return nil
}

func (a *KafkaCandleArchive) Close() error {
	return a.producer.Close()
}

// CandleArchiveSchema creates the ClickHouse candle table.
func CandleArchiveSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			token String,
			bucket DateTime,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64
		) ENGINE = MergeTree ORDER BY (symbol, bucket)`, database, table),
	}
}

// ClickHouseCandleArchive inserts finalized candles into a MergeTree table.
type ClickHouseCandleArchive struct {
	client *pkgch.Client
	table  string // fully qualified database.table
}

func NewClickHouseCandleArchive(client *pkgch.Client, table string) *ClickHouseCandleArchive {
	return &ClickHouseCandleArchive{client: client, table: table}
}

func (a *ClickHouseCandleArchive) Archive(ctx context.Context, c *models.Candle) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q := fmt.Sprintf(
		"INSERT INTO %s (symbol, token, bucket, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		a.table)
	if _, err := a.client.DB().ExecContext(ctx, q,
		c.Symbol, c.Token, c.Bucket, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
		return fmt.Errorf("archive candle %s: %w", c.Symbol, err)
	}
	return nil
}

func (a *ClickHouseCandleArchive) Close() error {
	return a.client.Close()
}
