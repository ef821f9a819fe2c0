package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	"CashBreakout/pkg/logger"
)

func newTestEngine(stream *memStream, ledger *memLedger, levels *memLevels, snap *memSnap, broker *paperBroker) *Engine {
	settings := activeSettings()
	det := NewDetector(levels, ledger, settings, nopMetrics{}, logger.Nop(), "alice")
	mon := NewMonitor(snap, ledger, broker, settings, nopMetrics{}, logger.Nop())
	rec := NewReconciler(ledger, broker, nopMetrics{}, logger.Nop())
	return NewEngine(EngineConfig{
		User:              "alice",
		BatchSize:         10,
		BlockTimeout:      time.Millisecond,
		ReconcileInterval: time.Millisecond,
		Timezone:          time.UTC,
	}, stream, ledger, det, mon, rec, nopMetrics{}, logger.Nop())
}

func TestLoadBookRebuildsOnlyActiveTradesForUser(t *testing.T) {
	ledger := newMemLedger()
	ctx := context.Background()

	seed := []*models.Trade{
		{User: "alice", Symbol: "TCS-EQ", Status: models.StatusPending},
		{User: "alice", Symbol: "INFY-EQ", Status: models.StatusOpen},
		{User: "alice", Symbol: "SBIN-EQ", Status: models.StatusClosed},
		{User: "alice", Symbol: "WIPRO-EQ", Status: models.StatusExpired},
		{User: "bob", Symbol: "TCS-EQ", Status: models.StatusOpen},
	}
	for _, tr := range seed {
		require.NoError(t, ledger.Insert(ctx, tr))
	}

	book, err := LoadBook(ctx, ledger, "alice")
	require.NoError(t, err)

	assert.Equal(t, 1, book.PendingCount())
	assert.Equal(t, 1, book.OpenCount())
	assert.True(t, book.Active("TCS-EQ"))
	assert.True(t, book.Active("INFY-EQ"))
	assert.False(t, book.Active("SBIN-EQ"))
	assert.False(t, book.Active("WIPRO-EQ"))
}

func TestLoadBookRediscoversInFlightOrders(t *testing.T) {
	ledger := newMemLedger()
	ctx := context.Background()

	// A crash after order submission leaves PENDING_ENTRY with its order id;
	// restart must resume polling it, not re-place it.
	require.NoError(t, ledger.Insert(ctx, &models.Trade{
		User: "alice", Symbol: "TCS-EQ", Token: "11536",
		Quantity: 71, EntryOrderID: "ORD001",
		Status: models.StatusPendingEntry,
	}))

	book, err := LoadBook(ctx, ledger, "alice")
	require.NoError(t, err)
	require.Equal(t, 1, book.PendingCount())

	broker := newPaperBroker()
	broker.statuses["ORD001"] = &domrepo.OrderState{
		Status: "complete", FilledQty: 71, AvgPrice: 105.03,
	}
	rec := NewReconciler(ledger, broker, nopMetrics{}, logger.Nop())
	rec.Cycle(ctx, book)

	assert.Empty(t, broker.placed)
	assert.Equal(t, 1, book.OpenCount())
	assert.Equal(t, models.StatusOpen, book.Open()["TCS-EQ"].Status)
}

func TestEngineConsumeDetectsAndAcks(t *testing.T) {
	stream := &memStream{}
	ledger := newMemLedger()
	levels := &memLevels{data: map[string]*models.PrevDayLevels{"TCS-EQ": {High: 100.0}}}
	eng := newTestEngine(stream, ledger, levels, &memSnap{}, newPaperBroker())
	ctx := context.Background()

	c := breakoutCandle()
	require.NoError(t, stream.Publish(ctx, &c))

	book := NewBook()
	eng.consume(ctx, book)

	assert.True(t, book.Active("TCS-EQ"))
	assert.Len(t, stream.acked, 1)
	assert.Empty(t, stream.entries)
}

func TestEngineConsumeAcksMalformedEntries(t *testing.T) {
	stream := &memStream{entries: []domrepo.StreamEntry{
		{ID: "1-0"}, // undecodable payload, candle left zero
	}}
	ledger := newMemLedger()
	eng := newTestEngine(stream, ledger, &memLevels{}, &memSnap{}, newPaperBroker())

	book := NewBook()
	eng.consume(context.Background(), book)

	assert.Equal(t, []string{"1-0"}, stream.acked)
	assert.Empty(t, ledger.rows)
}
