package usecase

import (
	"context"
	"time"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	"CashBreakout/pkg/logger"
)

// Breakout geometry. Offsets are fractions of the candle's extremes; the
// target sits a fixed multiple of the initial risk above the entry.
const (
	entryOffset  = 0.0001
	stopOffset   = 0.0002
	riskMultiple = 2.5
)

// Detector turns closed 1-minute candles into PENDING trade setups. It is
// deliberately stateless beyond its collaborators: duplicate suppression
// lives in the Book, and persistence in the Ledger.
type Detector struct {
	levels   domrepo.LevelsStore
	ledger   domrepo.Ledger
	settings models.StrategySettings
	metrics  domrepo.Metrics
	log      *logger.Logger

	user string
	now  func() time.Time
}

func NewDetector(
	levels domrepo.LevelsStore,
	ledger domrepo.Ledger,
	settings models.StrategySettings,
	metrics domrepo.Metrics,
	log *logger.Logger,
	user string,
) *Detector {
	return &Detector{
		levels:   levels,
		ledger:   ledger,
		settings: settings,
		metrics:  metrics,
		log:      log,
		user:     user,
		now:      time.Now,
	}
}

// isBreakout reports whether the candle is a bullish close through the
// previous day's high: the body must straddle the level (open below, close
// above) and the candle's low must sit under it.
func isBreakout(c models.Candle, pdh float64) bool {
	return c.Close > c.Open &&
		c.Low < pdh && pdh < c.Close &&
		c.Open < pdh
}

// Inspect evaluates one candle against the breakout setup and, when it
// qualifies, persists a PENDING trade and registers it in the book. A
// symbol with any active trade is skipped, as is a symbol with no
// previous-day levels on record.
func (d *Detector) Inspect(ctx context.Context, book *Book, c models.Candle) error {
	if book.Active(c.Symbol) {
		return nil
	}
	if !d.tradingAllowed(ctx, book) {
		return nil
	}

	lv, err := d.levels.Get(ctx, c.Symbol)
	if err != nil {
		return err
	}
	if lv == nil {
		// No reference level for this symbol; nothing to evaluate.
		return nil
	}
	if !isBreakout(c, lv.High) {
		return nil
	}

	t := &models.Trade{
		User:        d.user,
		Symbol:      c.Symbol,
		Token:       c.Token,
		CandleTS:    c.Bucket,
		CandleOpen:  c.Open,
		CandleHigh:  c.High,
		CandleLow:   c.Low,
		CandleClose: c.Close,
		PrevDayHigh: lv.High,
		EntryLevel:  c.High * (1 + entryOffset),
		StopLevel:   c.Low * (1 - stopOffset),
		Side:        "BUY",
		Status:      models.StatusPending,
	}
	t.TargetLevel = t.EntryLevel + riskMultiple*(t.EntryLevel-t.StopLevel)

	if err := d.ledger.Insert(ctx, t); err != nil {
		return err
	}
	book.AddPending(t)

	d.metrics.RecordSignal(c.Symbol)
	d.log.Info("breakout detected",
		logger.String("symbol", c.Symbol),
		logger.String("trade_id", t.ID),
		logger.Float64("pdh", lv.High),
		logger.Float64("entry_level", t.EntryLevel),
		logger.Float64("stop_level", t.StopLevel),
		logger.Float64("target_level", t.TargetLevel),
	)
	return nil
}

// tradingAllowed applies the strategy gates: the strategy must be active,
// the exchange-local time inside the trading window, and the day's trade
// count under the cap.
func (d *Detector) tradingAllowed(ctx context.Context, book *Book) bool {
	if !d.settings.Active {
		return false
	}
	now := d.now()
	if !d.settings.WithinWindow(now) {
		return false
	}
	if d.settings.MaxTotalTrades > 0 {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		n, err := d.ledger.CountCreatedSince(ctx, d.user, dayStart)
		if err != nil {
			d.log.Warn("trade count lookup failed", logger.Error(err))
			return false
		}
		if n >= d.settings.MaxTotalTrades {
			return false
		}
	}
	return true
}
