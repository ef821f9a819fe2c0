// Package retry classifies failures as transient or fatal and provides a
// bounded exponential-backoff helper. Only calls returning a transient error
// are retried; a business rejection surfaces immediately.
package retry

import (
	"context"
	"errors"
	"time"
)

// TransientError marks a failure that is safe to retry: network timeouts,
// expired sessions, write contention. Unwrap preserves the cause.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked retryable anywhere in its chain.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Config bounds the retry loop.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig mirrors the upstream broker wrapper: three attempts,
// exponential backoff between 2s and 10s.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
}

// Do runs fn up to cfg.MaxAttempts times, sleeping with exponential backoff
// between attempts. It stops early on success, on a non-transient error, or
// when ctx is cancelled. The last error is returned.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.BaseDelay

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return err
}
