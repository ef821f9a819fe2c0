package usecase

import (
	"context"
	"time"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	"CashBreakout/internal/service/ratelimit"
	"CashBreakout/pkg/logger"
)

// lookbackDays is wide enough to always contain a completed trading day
// across weekends and exchange holidays.
const lookbackDays = 5

// LevelsFetcher populates the previous-day reference data before the
// session opens. It walks the configured universe, pulls daily candles from
// the broker, and stores the most recent completed day's levels per symbol.
type LevelsFetcher struct {
	broker  domrepo.Broker
	levels  domrepo.LevelsStore
	limiter *ratelimit.Limiter
	log     *logger.Logger

	loc *time.Location
	now func() time.Time
}

func NewLevelsFetcher(broker domrepo.Broker, levels domrepo.LevelsStore, loc *time.Location, log *logger.Logger) *LevelsFetcher {
	if loc == nil {
		loc = time.UTC
	}
	return &LevelsFetcher{
		broker:  broker,
		levels:  levels,
		limiter: ratelimit.New(),
		log:     log,
		loc:     loc,
		now:     time.Now,
	}
}

// Fetch refreshes levels for every (token, symbol) pair. One symbol failing
// skips that symbol only; the job reports how many it stored.
func (f *LevelsFetcher) Fetch(ctx context.Context, universe map[string]string) (int, error) {
	to := f.now().In(f.loc)
	from := to.AddDate(0, 0, -lookbackDays)

	stored := 0
	for token, symbol := range universe {
		// The broker caps historical-data calls at a few per second.
		if err := f.limiter.Wait(ctx, "hist", 3, 3); err != nil {
			return stored, err
		}

		candles, err := f.broker.DailyCandles(ctx, token, from, to)
		if err != nil {
			f.log.Warn("daily candles fetch failed",
				logger.String("symbol", symbol), logger.Error(err))
			continue
		}

		lv := SelectPrevDay(candles, to)
		if lv == nil {
			f.log.Warn("no completed trading day in window",
				logger.String("symbol", symbol))
			continue
		}

		if err := f.levels.Put(ctx, symbol, lv); err != nil {
			f.log.Warn("levels store write failed",
				logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		stored++
		f.log.Info("previous day levels stored",
			logger.String("symbol", symbol),
			logger.Float64("high", lv.High),
			logger.String("date", lv.Date),
		)
	}
	return stored, nil
}

// SelectPrevDay picks the latest candle whose date is strictly before
// today's, by comparing calendar dates in the exchange timezone. Relying on
// position (second-to-last) breaks when the feed includes or omits today's
// partial candle; the date comparison does not.
func SelectPrevDay(candles []models.HistCandle, today time.Time) *models.PrevDayLevels {
	todayStr := today.Format("2006-01-02")
	for i := len(candles) - 1; i >= 0; i-- {
		c := candles[i]
		day := c.Date.Format("2006-01-02")
		if day != todayStr {
			return &models.PrevDayLevels{
				High:  c.High,
				Low:   c.Low,
				Close: c.Close,
				Date:  day,
			}
		}
	}
	return nil
}
