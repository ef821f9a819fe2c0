// Package redisconn builds the shared Redis client used for the candle
// stream, the live snapshot key, and the previous-day levels hash.
package redisconn

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Option configures the Redis connection.
type Option func(*Config)

// Config holds Redis connection settings.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
}

// WithAddr sets the Redis address as host:port.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithPassword sets the Redis password.
func WithPassword(password string) Option {
	return func(c *Config) {
		c.Password = password
	}
}

// WithDB sets the Redis database number.
func WithDB(db int) Option {
	return func(c *Config) {
		c.DB = db
	}
}

// WithPool sets connection pool settings.
func WithPool(poolSize, minIdleConns int, timeout time.Duration) Option {
	return func(c *Config) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
		c.PoolTimeout = timeout
	}
}

// New creates a Redis client and verifies the connection with a ping.
func New(opts ...Option) (*redis.Client, error) {
	cfg := &Config{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 5,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}
