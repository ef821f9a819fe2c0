package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CashBreakout/internal/domain/models"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newTrade(user, symbol string, status models.TradeStatus) *models.Trade {
	return &models.Trade{
		User:        user,
		Symbol:      symbol,
		Token:       "1333",
		CandleTS:    time.Date(2026, 8, 28, 10, 15, 0, 0, time.UTC),
		CandleOpen:  100, CandleHigh: 105, CandleLow: 98, CandleClose: 104,
		PrevDayHigh: 102,
		EntryLevel:  105.0105,
		StopLevel:   97.9804,
		TargetLevel: 122.5858,
		Side:        "BUY",
		Status:      status,
	}
}

func TestLedger_InsertAssignsIDAndTimestamps(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t)

	tr := newTrade("alice", "HDFCBANK", models.StatusPending)
	require.NoError(t, l.Insert(context.Background(), tr))

	assert.NotEmpty(t, tr.ID)
	assert.False(t, tr.CreatedAt.IsZero())

	got, err := l.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "HDFCBANK", got.Symbol)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.InDelta(t, 105.0105, got.EntryLevel, 1e-9)
}

func TestLedger_UpdateRewritesMutableColumns(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t)
	ctx := context.Background()

	tr := newTrade("alice", "INFY", models.StatusPending)
	require.NoError(t, l.Insert(ctx, tr))

	tr.Status = models.StatusPendingEntry
	tr.EntryOrderID = "ORD-1"
	tr.Quantity = 71
	require.NoError(t, l.Update(ctx, tr))

	got, err := l.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingEntry, got.Status)
	assert.Equal(t, "ORD-1", got.EntryOrderID)
	assert.Equal(t, 71, got.Quantity)
}

func TestLedger_UpdateMissingRowFails(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t)

	tr := newTrade("alice", "SBIN", models.StatusPending)
	tr.ID = "01HZZZZZZZZZZZZZZZZZZZZZZZ"
	assert.Error(t, l.Update(context.Background(), tr))
}

func TestLedger_ListByStatusScope(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Insert(ctx, newTrade("alice", "INFY", models.StatusOpen)))
	require.NoError(t, l.Insert(ctx, newTrade("alice", "TCS", models.StatusPending)))
	require.NoError(t, l.Insert(ctx, newTrade("alice", "SBIN", models.StatusClosed)))
	require.NoError(t, l.Insert(ctx, newTrade("bob", "INFY", models.StatusOpen)))

	// Restart recovery: one OPEN and one PENDING row, no others.
	active, err := l.ListByStatus(ctx, "alice", models.ActiveStatuses...)
	require.NoError(t, err)
	require.Len(t, active, 2)

	symbols := []string{active[0].Symbol, active[1].Symbol}
	assert.ElementsMatch(t, []string{"INFY", "TCS"}, symbols)
}

func TestLedger_ListRecentNewestFirst(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t)
	ctx := context.Background()

	first := newTrade("alice", "INFY", models.StatusClosed)
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, l.Insert(ctx, first))

	second := newTrade("alice", "TCS", models.StatusOpen)
	require.NoError(t, l.Insert(ctx, second))

	got, err := l.ListRecent(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "TCS", got[0].Symbol)
}

func TestLedger_CountCreatedSince(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t)
	ctx := context.Background()

	old := newTrade("alice", "INFY", models.StatusClosed)
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, l.Insert(ctx, old))
	require.NoError(t, l.Insert(ctx, newTrade("alice", "TCS", models.StatusPending)))

	n, err := l.CountCreatedSince(ctx, "alice", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
