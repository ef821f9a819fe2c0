package cache

import (
	"context"
	"time"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
)

// CachedLevels decorates a LevelsStore with a TTL cache. The detector checks
// reference levels on every candle; the underlying hash only changes once a
// day, so both hits and misses are cached.
type CachedLevels struct {
	inner domrepo.LevelsStore
	cache *TTLCache
	ttl   time.Duration
}

// missMarker caches the absence of an entry; a nil interface would be
// indistinguishable from a cache miss.
type missMarker struct{}

func NewCachedLevels(inner domrepo.LevelsStore, ttl time.Duration) *CachedLevels {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedLevels{inner: inner, cache: NewTTLCache(), ttl: ttl}
}

func (c *CachedLevels) Get(ctx context.Context, symbol string) (*models.PrevDayLevels, error) {
	if v, ok := c.cache.Get(symbol); ok {
		if _, miss := v.(missMarker); miss {
			return nil, nil
		}
		lv := v.(models.PrevDayLevels)
		return &lv, nil
	}

	lv, err := c.inner.Get(ctx, symbol)
	if err != nil {
		return nil, err // do not cache errors
	}
	if lv == nil {
		c.cache.Set(symbol, missMarker{}, c.ttl)
		return nil, nil
	}
	c.cache.Set(symbol, *lv, c.ttl)
	return lv, nil
}

func (c *CachedLevels) Put(ctx context.Context, symbol string, lv *models.PrevDayLevels) error {
	if err := c.inner.Put(ctx, symbol, lv); err != nil {
		return err
	}
	c.cache.Set(symbol, *lv, c.ttl)
	return nil
}
