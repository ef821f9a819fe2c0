package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	domrepo "CashBreakout/internal/domain/repository"
	"CashBreakout/pkg/logger"
)

// EngineConfig tunes the run loop cadence.
type EngineConfig struct {
	User              string
	BatchSize         int
	BlockTimeout      time.Duration
	ReconcileInterval time.Duration
	Timezone          *time.Location
}

// Engine is the trading run loop. Each cycle it drains a batch of candles
// into the detector, walks the book with the monitors, and on a slower
// cadence reconciles in-flight orders. All trade state flows through one
// Book instance owned by the loop, so no component needs locks.
type Engine struct {
	cfg        EngineConfig
	stream     domrepo.CandleStream
	ledger     domrepo.Ledger
	detector   *Detector
	monitor    *Monitor
	reconciler *Reconciler
	metrics    domrepo.Metrics
	log        *logger.Logger

	group    string
	consumer string
}

func NewEngine(
	cfg EngineConfig,
	stream domrepo.CandleStream,
	ledger domrepo.Ledger,
	detector *Detector,
	monitor *Monitor,
	reconciler *Reconciler,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Engine {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	loc := cfg.Timezone
	detector.now = func() time.Time { return time.Now().In(loc) }
	monitor.now = func() time.Time { return time.Now().In(loc) }

	return &Engine{
		cfg:        cfg,
		stream:     stream,
		ledger:     ledger,
		detector:   detector,
		monitor:    monitor,
		reconciler: reconciler,
		metrics:    metrics,
		log:        log,
		group:      fmt.Sprintf("CB_GROUP:%s", cfg.User),
		consumer:   fmt.Sprintf("engine-%s", uuid.NewString()),
	}
}

// Run blocks until ctx is cancelled. The book is rebuilt from the ledger
// before the first cycle so a restart resumes mid-flight trades.
func (e *Engine) Run(ctx context.Context) error {
	book, err := LoadBook(ctx, e.ledger, e.cfg.User)
	if err != nil {
		return fmt.Errorf("rebuild trade book: %w", err)
	}
	e.log.Info("trade book rebuilt",
		logger.Int("pending", book.PendingCount()),
		logger.Int("open", book.OpenCount()),
	)

	if err := e.stream.EnsureGroup(ctx, e.group); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	lastReconcile := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		e.consume(ctx, book)
		e.monitor.Cycle(ctx, book)

		if time.Since(lastReconcile) >= e.cfg.ReconcileInterval {
			e.reconciler.Cycle(ctx, book)
			lastReconcile = time.Now()
		}
	}
}

// consume drains one batch from the candle stream. Entries are acked only
// after the detector has seen them; a crash mid-batch redelivers, and the
// book's per-symbol check makes redelivery harmless.
func (e *Engine) consume(ctx context.Context, book *Book) {
	start := time.Now()
	entries, err := e.stream.ReadGroup(ctx, e.group, e.consumer, e.cfg.BatchSize, e.cfg.BlockTimeout)
	if err != nil {
		e.metrics.RecordError("stream_read")
		e.log.Warn("candle stream read failed", logger.Error(err))
		// Pause so a dead stream cannot spin the loop hot.
		select {
		case <-ctx.Done():
		case <-time.After(e.cfg.BlockTimeout):
		}
		return
	}
	if len(entries) == 0 {
		return
	}

	ids := make([]string, 0, len(entries))
	for _, en := range entries {
		if en.Candle.Symbol != "" {
			if err := e.detector.Inspect(ctx, book, en.Candle); err != nil {
				e.metrics.RecordError("detect")
				e.log.Warn("candle inspection failed",
					logger.String("symbol", en.Candle.Symbol), logger.Error(err))
				// Not acked; the entry will be redelivered.
				continue
			}
		}
		ids = append(ids, en.ID)
	}

	if len(ids) > 0 {
		if err := e.stream.Ack(ctx, e.group, ids...); err != nil {
			e.metrics.RecordError("stream_ack")
			e.log.Warn("candle ack failed", logger.Error(err))
		}
	}
	e.metrics.RecordLatency("engine_cycle", time.Since(start).Seconds())
}
