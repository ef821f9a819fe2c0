package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CashBreakout/internal/domain/models"
	"CashBreakout/pkg/logger"
)

func dailyBar(day string, high, low, close float64) models.HistCandle {
	ts, _ := time.Parse("2006-01-02", day)
	return models.HistCandle{Date: ts, Open: low, High: high, Low: low, Close: close}
}

func TestSelectPrevDaySkipsTodaysPartialBar(t *testing.T) {
	today := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	candles := []models.HistCandle{
		dailyBar("2026-08-26", 98.0, 94.0, 97.0),
		dailyBar("2026-08-27", 100.0, 95.0, 99.5),
		dailyBar("2026-08-28", 104.0, 99.0, 103.0), // today, still forming
	}

	lv := SelectPrevDay(candles, today)
	require.NotNil(t, lv)
	assert.Equal(t, "2026-08-27", lv.Date)
	assert.Equal(t, 100.0, lv.High)
	assert.Equal(t, 95.0, lv.Low)
}

func TestSelectPrevDayWhenTodayAbsent(t *testing.T) {
	// Pre-open fetches see no bar for today; the last one is already the
	// previous completed session.
	today := time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)
	candles := []models.HistCandle{
		dailyBar("2026-08-26", 98.0, 94.0, 97.0),
		dailyBar("2026-08-27", 100.0, 95.0, 99.5),
	}

	lv := SelectPrevDay(candles, today)
	require.NotNil(t, lv)
	assert.Equal(t, "2026-08-27", lv.Date)
}

func TestSelectPrevDayEmptyWindow(t *testing.T) {
	today := time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)
	assert.Nil(t, SelectPrevDay(nil, today))
	assert.Nil(t, SelectPrevDay([]models.HistCandle{
		dailyBar("2026-08-28", 104.0, 99.0, 103.0),
	}, today))
}

func TestLevelsFetcherStoresPerSymbol(t *testing.T) {
	broker := newPaperBroker()
	broker.daily = []models.HistCandle{
		dailyBar("2026-08-26", 98.0, 94.0, 97.0),
		dailyBar("2026-08-27", 100.0, 95.0, 99.5),
	}
	store := &memLevels{}
	f := NewLevelsFetcher(broker, store, time.UTC, logger.Nop())
	f.now = func() time.Time { return time.Date(2026, 8, 28, 8, 30, 0, 0, time.UTC) }

	n, err := f.Fetch(context.Background(), map[string]string{"11536": "TCS-EQ"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lv, err := store.Get(context.Background(), "TCS-EQ")
	require.NoError(t, err)
	require.NotNil(t, lv)
	assert.Equal(t, 100.0, lv.High)
	assert.Equal(t, "2026-08-27", lv.Date)
}
