package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	"CashBreakout/pkg/logger"
)

func seedPendingEntry(t *testing.T, ledger *memLedger, book *Book) *models.Trade {
	t.Helper()
	tr := &models.Trade{
		User: "alice", Symbol: "TCS-EQ", Token: "11536",
		EntryLevel: 105.0105, StopLevel: 97.9804, TargetLevel: 122.58575,
		Quantity: 71, Side: "BUY", EntryOrderID: "ORD001",
		Status: models.StatusPendingEntry,
	}
	require.NoError(t, ledger.Insert(context.Background(), tr))
	book.AddPending(tr)
	return tr
}

func seedPendingExit(t *testing.T, ledger *memLedger, book *Book) *models.Trade {
	t.Helper()
	tr := &models.Trade{
		User: "alice", Symbol: "TCS-EQ", Token: "11536",
		EntryPrice: 105.05, Quantity: 70, Side: "BUY",
		EntryOrderID: "ORD001", ExitOrderID: "ORD002",
		ExitReason: ExitTargetHit,
		Status:     models.StatusPendingExit,
	}
	require.NoError(t, ledger.Insert(context.Background(), tr))
	book.Open()[tr.Symbol] = tr
	return tr
}

func TestReconcilerPromotesFilledEntry(t *testing.T) {
	ledger := newMemLedger()
	broker := newPaperBroker()
	book := NewBook()
	tr := seedPendingEntry(t, ledger, book)

	// The broker filled fewer shares at a worse price than requested; its
	// report wins.
	broker.statuses["ORD001"] = &domrepo.OrderState{
		Status: "complete", FilledQty: 70, AvgPrice: 105.12,
	}
	r := NewReconciler(ledger, broker, nopMetrics{}, logger.Nop())
	r.Cycle(context.Background(), book)

	assert.Equal(t, models.StatusOpen, tr.Status)
	assert.Equal(t, 105.12, tr.EntryPrice)
	assert.Equal(t, 70, tr.Quantity)
	assert.False(t, book.Pending()["TCS-EQ"] != nil)
	assert.Same(t, tr, book.Open()["TCS-EQ"])
}

func TestReconcilerFailsRejectedEntry(t *testing.T) {
	ledger := newMemLedger()
	broker := newPaperBroker()
	book := NewBook()
	tr := seedPendingEntry(t, ledger, book)

	broker.statuses["ORD001"] = &domrepo.OrderState{
		Status: "rejected", Text: "margin shortfall",
	}
	r := NewReconciler(ledger, broker, nopMetrics{}, logger.Nop())
	r.Cycle(context.Background(), book)

	assert.Equal(t, models.StatusFailedEntry, tr.Status)
	assert.Equal(t, "margin shortfall", tr.ExitReason)
	assert.False(t, book.Active("TCS-EQ"))
}

func TestReconcilerKeepsReasonWhenRejectionCarriesNoText(t *testing.T) {
	ledger := newMemLedger()
	broker := newPaperBroker()
	book := NewBook()
	tr := seedPendingEntry(t, ledger, book)
	tr.ExitReason = "entry order rejected"

	broker.statuses["ORD001"] = &domrepo.OrderState{Status: "rejected"}
	r := NewReconciler(ledger, broker, nopMetrics{}, logger.Nop())
	r.Cycle(context.Background(), book)

	assert.Equal(t, models.StatusFailedEntry, tr.Status)
	assert.Equal(t, "entry order rejected", tr.ExitReason)
}

func TestReconcilerClosesFilledExitAndBooksPnL(t *testing.T) {
	ledger := newMemLedger()
	broker := newPaperBroker()
	book := NewBook()
	tr := seedPendingExit(t, ledger, book)

	broker.statuses["ORD002"] = &domrepo.OrderState{
		Status: "complete", FilledQty: 70, AvgPrice: 122.60,
	}
	r := NewReconciler(ledger, broker, nopMetrics{}, logger.Nop())
	r.Cycle(context.Background(), book)

	assert.Equal(t, models.StatusClosed, tr.Status)
	assert.Equal(t, 122.60, tr.ExitPrice)
	assert.InDelta(t, (122.60-105.05)*70, tr.PnL, 1e-9)
	assert.InDelta(t, tr.PnL, book.RealizedPnL(), 1e-9)
	assert.False(t, book.Active("TCS-EQ"))
}

func TestReconcilerLeavesStateOnInconclusivePolls(t *testing.T) {
	cases := []struct {
		name  string
		setup func(b *paperBroker)
	}{
		{"poll error", func(b *paperBroker) { b.statusErr = errors.New("timeout") }},
		{"order not in book yet", func(b *paperBroker) {}},
		{"still working", func(b *paperBroker) {
			b.statuses["ORD001"] = &domrepo.OrderState{Status: "trigger pending"}
		}},
		{"unknown vocabulary", func(b *paperBroker) {
			b.statuses["ORD001"] = &domrepo.OrderState{Status: "amo req received"}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := newMemLedger()
			broker := newPaperBroker()
			tc.setup(broker)
			book := NewBook()
			tr := seedPendingEntry(t, ledger, book)

			r := NewReconciler(ledger, broker, nopMetrics{}, logger.Nop())
			r.Cycle(context.Background(), book)

			assert.Equal(t, models.StatusPendingEntry, tr.Status)
			assert.True(t, book.Active("TCS-EQ"))
			stored, err := ledger.Get(context.Background(), tr.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusPendingEntry, stored.Status)
		})
	}
}

func TestReconcilerIsIdempotentAcrossCycles(t *testing.T) {
	ledger := newMemLedger()
	broker := newPaperBroker()
	book := NewBook()
	tr := seedPendingEntry(t, ledger, book)

	broker.statuses["ORD001"] = &domrepo.OrderState{
		Status: "complete", FilledQty: 71, AvgPrice: 105.02,
	}
	r := NewReconciler(ledger, broker, nopMetrics{}, logger.Nop())
	r.Cycle(context.Background(), book)
	r.Cycle(context.Background(), book) // same answer again

	assert.Equal(t, models.StatusOpen, tr.Status)
	assert.Equal(t, 105.02, tr.EntryPrice)
}
