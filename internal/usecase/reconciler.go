package usecase

import (
	"context"
	"strings"
	"time"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	"CashBreakout/pkg/logger"
)

// orderOutcome is the reconciler's verdict on one broker status poll.
type orderOutcome int

const (
	outcomePending orderOutcome = iota // order still working, poll again
	outcomeFilled
	outcomeRejected
	outcomeCancelled
)

// brokerStatusMap normalizes the broker's order-status vocabulary. Any
// status not in the table is treated as still-working and logged, so a new
// broker word can never silently fail a trade.
var brokerStatusMap = map[string]orderOutcome{
	"complete":                        outcomeFilled,
	"executed":                        outcomeFilled,
	"rejected":                        outcomeRejected,
	"cancelled":                       outcomeCancelled,
	"canceled":                        outcomeCancelled,
	"open":                            outcomePending,
	"pending":                         outcomePending,
	"open pending":                    outcomePending,
	"trigger pending":                 outcomePending,
	"validation pending":              outcomePending,
	"modify pending":                  outcomePending,
	"put order req received":          outcomePending,
	"after market order req received": outcomePending,
}

// Reconciler polls the broker's order book for in-flight orders and applies
// the resulting state transitions. It is the only writer of fill prices and
// filled quantities; the broker's report always overrides local values.
type Reconciler struct {
	ledger  domrepo.Ledger
	broker  domrepo.Broker
	metrics domrepo.Metrics
	log     *logger.Logger

	now func() time.Time
}

func NewReconciler(ledger domrepo.Ledger, broker domrepo.Broker, metrics domrepo.Metrics, log *logger.Logger) *Reconciler {
	return &Reconciler{
		ledger:  ledger,
		broker:  broker,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// Cycle reconciles every in-flight order in the book. A failed poll leaves
// the trade exactly as it was; only an affirmative broker answer moves state.
func (r *Reconciler) Cycle(ctx context.Context, book *Book) {
	for _, t := range book.Pending() {
		if t.Status == models.StatusPendingEntry {
			r.reconcileEntry(ctx, book, t)
		}
	}
	for _, t := range book.Open() {
		if t.Status == models.StatusPendingExit {
			r.reconcileExit(ctx, book, t)
		}
	}
}

func (r *Reconciler) reconcileEntry(ctx context.Context, book *Book, t *models.Trade) {
	st, ok := r.poll(ctx, t, t.EntryOrderID)
	if !ok {
		return
	}

	switch r.classify(t, st) {
	case outcomeFilled:
		t.EntryPrice = st.AvgPrice
		if st.FilledQty > 0 {
			t.Quantity = st.FilledQty
		}
		if r.apply(ctx, t, models.StatusOpen) {
			book.Promote(t)
			r.log.Info("entry filled",
				logger.String("symbol", t.Symbol),
				logger.Float64("entry_price", t.EntryPrice),
				logger.Int("qty", t.Quantity),
			)
		}
	case outcomeRejected, outcomeCancelled:
		if st.Text != "" {
			t.ExitReason = st.Text
		}
		if r.apply(ctx, t, models.StatusFailedEntry) {
			book.DropPending(t.Symbol)
		}
	}
}

func (r *Reconciler) reconcileExit(ctx context.Context, book *Book, t *models.Trade) {
	st, ok := r.poll(ctx, t, t.ExitOrderID)
	if !ok {
		return
	}

	switch r.classify(t, st) {
	case outcomeFilled:
		t.ExitPrice = st.AvgPrice
		t.PnL = (t.ExitPrice - t.EntryPrice) * float64(t.Quantity)
		if r.apply(ctx, t, models.StatusClosed) {
			book.DropOpen(t.Symbol)
			book.AddRealized(t.PnL)
			r.log.Info("trade closed",
				logger.String("symbol", t.Symbol),
				logger.Float64("exit_price", t.ExitPrice),
				logger.Float64("pnl", t.PnL),
				logger.String("reason", t.ExitReason),
			)
		}
	case outcomeRejected, outcomeCancelled:
		if st.Text != "" {
			t.ExitReason = st.Text
		}
		if r.apply(ctx, t, models.StatusFailedExit) {
			book.DropOpen(t.Symbol)
		}
	}
}

// poll fetches the order's broker state. A transport error or an order not
// yet visible in the book both mean "try again next cycle".
func (r *Reconciler) poll(ctx context.Context, t *models.Trade, orderID string) (*domrepo.OrderState, bool) {
	st, err := r.broker.OrderStatus(ctx, orderID)
	if err != nil {
		r.metrics.RecordError("order_poll")
		r.log.Warn("order status poll failed",
			logger.String("trade_id", t.ID),
			logger.String("order_id", orderID),
			logger.Error(err),
		)
		return nil, false
	}
	if st == nil {
		return nil, false
	}
	return st, true
}

func (r *Reconciler) classify(t *models.Trade, st *domrepo.OrderState) orderOutcome {
	outcome, known := brokerStatusMap[strings.ToLower(strings.TrimSpace(st.Status))]
	if !known {
		r.log.Warn("unrecognized broker order status",
			logger.String("trade_id", t.ID),
			logger.String("status", st.Status),
		)
		return outcomePending
	}
	return outcome
}

func (r *Reconciler) apply(ctx context.Context, t *models.Trade, to models.TradeStatus) bool {
	if !t.CanTransition(to) {
		r.log.Error("illegal transition suppressed",
			logger.String("trade_id", t.ID),
			logger.String("from", string(t.Status)),
			logger.String("to", string(to)),
		)
		return false
	}
	prev := t.Status
	t.Status = to
	t.UpdatedAt = r.now().UTC()
	if err := r.ledger.Update(ctx, t); err != nil {
		t.Status = prev
		r.metrics.RecordError("ledger_update")
		r.log.Error("trade update not persisted",
			logger.String("trade_id", t.ID), logger.Error(err))
		return false
	}
	r.metrics.RecordTradeStatus(string(to))
	return true
}
