package usecase

import (
	"context"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
)

// Book is the engine's in-memory view of active trades: one index for
// pending setups and one for positions (open or exiting), both keyed by
// symbol. It is a cache over ledger rows, rebuilt from them at construction,
// and enforces the one-active-trade-per-symbol rule.
//
// The run loop is single-threaded, so Book needs no locking.
type Book struct {
	pending map[string]*models.Trade
	open    map[string]*models.Trade

	// realized accumulates PnL of trades closed during this session, used
	// by the optional global PnL exit.
	realized float64
}

// LoadBook rebuilds the indices from the ledger's non-terminal rows for the
// user. A PENDING_ENTRY row goes to the pending index (its order is still
// being reconciled); OPEN and PENDING_EXIT rows go to the position index.
func LoadBook(ctx context.Context, ledger domrepo.Ledger, user string) (*Book, error) {
	b := &Book{
		pending: make(map[string]*models.Trade),
		open:    make(map[string]*models.Trade),
	}

	trades, err := ledger.ListByStatus(ctx, user, models.ActiveStatuses...)
	if err != nil {
		return nil, err
	}
	for _, t := range trades {
		switch t.Status {
		case models.StatusPending, models.StatusPendingEntry:
			b.pending[t.Symbol] = t
		case models.StatusOpen, models.StatusPendingExit:
			b.open[t.Symbol] = t
		}
	}
	return b, nil
}

// NewBook creates an empty book; tests and fresh users start here.
func NewBook() *Book {
	return &Book{
		pending: make(map[string]*models.Trade),
		open:    make(map[string]*models.Trade),
	}
}

// Active reports whether the symbol already has a trade anywhere in its
// lifecycle. This is the duplicate-suppression check that also makes
// at-least-once candle delivery safe.
func (b *Book) Active(symbol string) bool {
	_, p := b.pending[symbol]
	_, o := b.open[symbol]
	return p || o
}

func (b *Book) AddPending(t *models.Trade) { b.pending[t.Symbol] = t }
func (b *Book) DropPending(symbol string)  { delete(b.pending, symbol) }
func (b *Book) Promote(t *models.Trade)    { delete(b.pending, t.Symbol); b.open[t.Symbol] = t }
func (b *Book) DropOpen(symbol string)     { delete(b.open, symbol) }
func (b *Book) AddRealized(pnl float64)    { b.realized += pnl }
func (b *Book) RealizedPnL() float64       { return b.realized }
func (b *Book) PendingCount() int          { return len(b.pending) }
func (b *Book) OpenCount() int             { return len(b.open) }

// Pending returns the pending index; callers must not mutate concurrently.
func (b *Book) Pending() map[string]*models.Trade { return b.pending }

// Open returns the position index.
func (b *Book) Open() map[string]*models.Trade { return b.open }
