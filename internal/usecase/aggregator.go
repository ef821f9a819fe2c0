package usecase

import (
	"context"
	"time"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	"CashBreakout/pkg/logger"
)

// bucketCandle is the in-progress candle for one token. StartVolume is the
// session-cumulative counter at bucket open; the published volume is the
// delta against it, never negative because the counter is monotonic within
// a session.
type bucketCandle struct {
	open, high, low, close float64
	startVolume            float64
	lastVolume             float64
	bucket                 time.Time
}

// Aggregator converts the raw quote stream into finalized one-minute candles
// and maintains the live snapshot. All maps are touched only from the feed
// transport's delivery goroutine, so no locking is needed; the hand-off to
// the engine happens exclusively through the candle stream and the snapshot
// store.
type Aggregator struct {
	tokenMap map[string]string // instrument token -> symbol
	loc      *time.Location

	buffers map[string]*bucketCandle
	live    map[string]models.LiveQuote

	stream  domrepo.CandleStream
	snap    domrepo.SnapshotStore
	archive domrepo.CandleArchive // optional
	metrics domrepo.Metrics
	log     *logger.Logger

	now func() time.Time
}

// NewAggregator creates an aggregator for the given token universe.
func NewAggregator(
	tokenMap map[string]string,
	loc *time.Location,
	stream domrepo.CandleStream,
	snap domrepo.SnapshotStore,
	archive domrepo.CandleArchive,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Aggregator {
	return &Aggregator{
		tokenMap: tokenMap,
		loc:      loc,
		buffers:  make(map[string]*bucketCandle),
		live:     make(map[string]models.LiveQuote),
		stream:   stream,
		snap:     snap,
		archive:  archive,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Handlers returns the slots to register against the quote transport.
func (a *Aggregator) Handlers() domrepo.TickHandlers {
	return domrepo.TickHandlers{
		OnOpen: func() {
			a.log.Info("quote feed connected", logger.Int("universe", len(a.tokenMap)))
		},
		OnTick: func(t models.Tick) {
			a.OnTick(context.Background(), t)
		},
		OnError: func(err error) {
			a.metrics.RecordError("feed")
			a.log.Warn("quote feed error", logger.Error(err))
		},
	}
}

// OnTick folds one tick into the in-progress candle for its token,
// finalizing the previous minute when the tick crosses a bucket boundary.
// Malformed ticks (unknown token, zero price) are discarded, never raised:
// one bad frame must not take down the feed.
func (a *Aggregator) OnTick(ctx context.Context, t models.Tick) {
	symbol, ok := a.tokenMap[t.Token]
	if !ok {
		return
	}
	if t.LastTradedPrice <= 0 {
		return
	}

	a.metrics.RecordTick(symbol)
	a.metrics.RecordLastPrice(symbol, t.LastTradedPrice)

	bucket := a.now().In(a.loc).Truncate(time.Minute)

	buf, exists := a.buffers[t.Token]
	if !exists {
		a.buffers[t.Token] = newBucket(t, bucket)
		a.updateLive(symbol, t.LastTradedPrice)
		return
	}

	if !buf.bucket.Equal(bucket) {
		a.buffers[t.Token] = newBucket(t, bucket)
		a.live[symbol] = models.LiveQuote{
			LTP:  t.LastTradedPrice,
			High: t.LastTradedPrice,
			Low:  t.LastTradedPrice,
		}
		a.flush(ctx, t.Token, symbol, buf)
		return
	}

	if t.LastTradedPrice > buf.high {
		buf.high = t.LastTradedPrice
	}
	if t.LastTradedPrice < buf.low {
		buf.low = t.LastTradedPrice
	}
	buf.close = t.LastTradedPrice
	buf.lastVolume = t.CumulativeVolume
	a.updateLive(symbol, t.LastTradedPrice)
}

func newBucket(t models.Tick, bucket time.Time) *bucketCandle {
	return &bucketCandle{
		open:        t.LastTradedPrice,
		high:        t.LastTradedPrice,
		low:         t.LastTradedPrice,
		close:       t.LastTradedPrice,
		startVolume: t.CumulativeVolume,
		lastVolume:  t.CumulativeVolume,
		bucket:      bucket,
	}
}

// updateLive maintains the current minute's running state for the symbol.
func (a *Aggregator) updateLive(symbol string, price float64) {
	q := a.live[symbol]
	if q.High == 0 || price > q.High {
		q.High = price
	}
	if q.Low == 0 || price < q.Low {
		q.Low = price
	}
	q.LTP = price
	a.live[symbol] = q
}

// flush publishes the finalized candle and overwrites the snapshot with the
// full live map. Publish failure drops the candle: with no durable buffer,
// at-least-once starts at the stream, and a lost minute only delays the next
// signal.
func (a *Aggregator) flush(ctx context.Context, token, symbol string, buf *bucketCandle) {
	candle := &models.Candle{
		Symbol: symbol,
		Token:  token,
		Open:   buf.open,
		High:   buf.high,
		Low:    buf.low,
		Close:  buf.close,
		Volume: buf.lastVolume - buf.startVolume,
		Bucket: buf.bucket,
	}

	if err := a.stream.Publish(ctx, candle); err != nil {
		a.metrics.RecordError("candle_publish")
		a.log.Error("candle publish failed", logger.String("symbol", symbol), logger.Error(err))
		return
	}
	a.metrics.RecordCandle(symbol)

	if err := a.snap.Write(ctx, a.live); err != nil {
		a.metrics.RecordError("snapshot_write")
		a.log.Warn("snapshot write failed", logger.Error(err))
	}

	if a.archive != nil {
		if err := a.archive.Archive(ctx, candle); err != nil {
			a.metrics.RecordError("archive")
			a.log.Warn("candle archive failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
}
