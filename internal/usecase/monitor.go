package usecase

import (
	"context"
	"math"
	"time"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	"CashBreakout/pkg/logger"
	"CashBreakout/pkg/retry"
)

const (
	// pendingTTL is how long an unfilled setup may wait for its trigger
	// before it expires.
	pendingTTL = 6 * time.Minute

	// breakevenTrigger is the fraction of the initial risk the price must
	// travel above entry before the stop ratchets to breakeven.
	breakevenTrigger = 1.25
)

// Exit reasons recorded on the trade and reported by the API.
const (
	ExitTargetHit = "Target Hit"
	ExitStopLoss  = "Stop Loss Hit"
	ExitPnLTarget = "PnL Target"
	ExitPnLStop   = "PnL Stop"
)

// Monitor walks the book against live quotes each engine cycle: triggering,
// expiring or invalidating pending setups, and exiting open positions.
type Monitor struct {
	snap     domrepo.SnapshotStore
	ledger   domrepo.Ledger
	broker   domrepo.Broker
	settings models.StrategySettings
	metrics  domrepo.Metrics
	log      *logger.Logger

	now func() time.Time
}

func NewMonitor(
	snap domrepo.SnapshotStore,
	ledger domrepo.Ledger,
	broker domrepo.Broker,
	settings models.StrategySettings,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Monitor {
	return &Monitor{
		snap:     snap,
		ledger:   ledger,
		broker:   broker,
		settings: settings,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Cycle runs one pass of both monitors against the current snapshot. A
// snapshot read failure skips the pass; stale decisions are worse than
// late ones.
func (m *Monitor) Cycle(ctx context.Context, book *Book) {
	quotes, err := m.snap.Read(ctx)
	if err != nil {
		m.metrics.RecordError("snapshot_read")
		m.log.Warn("snapshot read failed", logger.Error(err))
		return
	}
	m.checkPending(ctx, book, quotes)
	m.checkOpen(ctx, book, quotes)
}

// checkPending evaluates every PENDING setup: expiry first, then stop
// invalidation, then the entry trigger. Rows in PENDING_ENTRY belong to the
// reconciler and are left alone here.
func (m *Monitor) checkPending(ctx context.Context, book *Book, quotes map[string]models.LiveQuote) {
	for symbol, t := range book.Pending() {
		if t.Status != models.StatusPending {
			continue
		}

		if m.now().Sub(t.CreatedAt) > pendingTTL {
			if m.transition(ctx, book, t, models.StatusExpired, "entry window elapsed") {
				book.DropPending(symbol)
			}
			continue
		}

		q, ok := quotes[symbol]
		if !ok {
			continue
		}

		if q.LTP < t.StopLevel {
			if m.transition(ctx, book, t, models.StatusExpired, "stop breached before trigger") {
				book.DropPending(symbol)
			}
			continue
		}

		if q.LTP > t.EntryLevel {
			m.triggerEntry(ctx, book, t)
		}
	}
}

// triggerEntry sizes the position from the configured per-trade risk and
// submits the entry order. Sizing uses the entry level, not the traded
// price, so the quantity is decided by the setup rather than the fill.
func (m *Monitor) triggerEntry(ctx context.Context, book *Book, t *models.Trade) {
	risk := t.EntryLevel - t.StopLevel
	if risk <= 0 {
		t.ExitReason = "non-positive risk per share"
		if m.transition(ctx, book, t, models.StatusExpired, "non-positive risk") {
			book.DropPending(t.Symbol)
		}
		return
	}
	qty := int(math.Floor(m.settings.PerTradeSLAmount / risk))
	if qty <= 0 {
		t.ExitReason = "quantity zero for allotted risk"
		if m.transition(ctx, book, t, models.StatusExpired, "risk exceeds per-trade allowance") {
			book.DropPending(t.Symbol)
		}
		return
	}

	orderID, err := m.broker.PlaceOrder(ctx, t.Token, t.Symbol, qty, t.Side)
	if err != nil {
		if retry.IsTransient(err) {
			// Connectivity blip; the setup stays armed for the next cycle.
			m.metrics.RecordError("entry_order")
			m.log.Warn("entry order not confirmed",
				logger.String("symbol", t.Symbol), logger.Error(err))
			return
		}
		t.ExitReason = err.Error()
		if m.transition(ctx, book, t, models.StatusFailedEntry, "entry order rejected") {
			book.DropPending(t.Symbol)
		}
		return
	}

	t.Quantity = qty
	t.EntryOrderID = orderID
	m.metrics.RecordOrder("entry")
	if m.transition(ctx, book, t, models.StatusPendingEntry, "entry order placed") {
		m.log.Info("entry submitted",
			logger.String("symbol", t.Symbol),
			logger.String("order_id", orderID),
			logger.Int("qty", qty),
		)
	}
}

// checkOpen evaluates every OPEN position: breakeven ratchet, then target
// and stop exits, then the optional account-level PnL exit.
func (m *Monitor) checkOpen(ctx context.Context, book *Book, quotes map[string]models.LiveQuote) {
	for symbol, t := range book.Open() {
		if t.Status != models.StatusOpen {
			continue
		}
		q, ok := quotes[symbol]
		if !ok {
			continue
		}

		m.ratchet(ctx, t, q.LTP)

		switch {
		case q.LTP >= t.TargetLevel:
			m.triggerExit(ctx, book, t, ExitTargetHit)
		case q.LTP <= t.StopLevel:
			m.triggerExit(ctx, book, t, ExitStopLoss)
		}
	}

	if m.settings.PnLExitEnabled {
		m.checkPnLExit(ctx, book, quotes)
	}
}

// ratchet moves the stop to the fill price once the trade has travelled
// far enough in favor. It only ever raises the stop and fires at most once.
func (m *Monitor) ratchet(ctx context.Context, t *models.Trade, ltp float64) {
	entry := t.EntryBasis()
	if t.StopLevel >= entry {
		return
	}
	if ltp < entry+breakevenTrigger*t.InitialRisk() {
		return
	}
	t.StopLevel = entry
	t.UpdatedAt = m.now().UTC()
	if err := m.ledger.Update(ctx, t); err != nil {
		m.metrics.RecordError("ledger_update")
		m.log.Error("breakeven stop not persisted",
			logger.String("trade_id", t.ID), logger.Error(err))
		return
	}
	m.log.Info("stop moved to breakeven",
		logger.String("symbol", t.Symbol),
		logger.Float64("stop_level", t.StopLevel),
	)
}

// checkPnLExit flattens everything once session PnL (realized plus marked
// open positions) breaches the configured profit or loss bound.
func (m *Monitor) checkPnLExit(ctx context.Context, book *Book, quotes map[string]models.LiveQuote) {
	total := book.RealizedPnL()
	for symbol, t := range book.Open() {
		if t.Status != models.StatusOpen {
			continue
		}
		if q, ok := quotes[symbol]; ok {
			total += t.UnrealizedPnL(q.LTP)
		}
	}

	var reason string
	switch {
	case m.settings.ProfitTarget > 0 && total >= m.settings.ProfitTarget:
		reason = ExitPnLTarget
	case m.settings.MaxLoss > 0 && total <= -m.settings.MaxLoss:
		reason = ExitPnLStop
	default:
		return
	}

	m.log.Warn("session pnl bound reached, flattening",
		logger.Float64("pnl", total), logger.String("reason", reason))
	for _, t := range book.Open() {
		if t.Status == models.StatusOpen {
			m.triggerExit(ctx, book, t, reason)
		}
	}
}

// triggerExit submits the closing order and marks the trade PENDING_EXIT.
// A transient submission failure leaves the position open for retry on the
// next cycle; a rejection is FAILED_EXIT and needs operator attention.
func (m *Monitor) triggerExit(ctx context.Context, book *Book, t *models.Trade, reason string) {
	orderID, err := m.broker.PlaceOrder(ctx, t.Token, t.Symbol, t.Quantity, "SELL")
	if err != nil {
		if retry.IsTransient(err) {
			m.metrics.RecordError("exit_order")
			m.log.Warn("exit order not confirmed",
				logger.String("symbol", t.Symbol), logger.Error(err))
			return
		}
		t.ExitReason = reason
		if m.transition(ctx, book, t, models.StatusFailedExit, "exit order rejected") {
			book.DropOpen(t.Symbol)
		}
		return
	}

	t.ExitOrderID = orderID
	t.ExitReason = reason
	m.metrics.RecordOrder("exit")
	if m.transition(ctx, book, t, models.StatusPendingExit, reason) {
		m.log.Info("exit submitted",
			logger.String("symbol", t.Symbol),
			logger.String("order_id", orderID),
			logger.String("reason", reason),
		)
	}
}

// transition persists a status change, ledger first. On a write failure the
// in-memory trade keeps its old status so the next cycle retries; indices
// are only touched by callers after success.
func (m *Monitor) transition(ctx context.Context, book *Book, t *models.Trade, to models.TradeStatus, note string) bool {
	if !t.CanTransition(to) {
		m.log.Error("illegal transition suppressed",
			logger.String("trade_id", t.ID),
			logger.String("from", string(t.Status)),
			logger.String("to", string(to)),
		)
		return false
	}
	prev := t.Status
	t.Status = to
	t.UpdatedAt = m.now().UTC()
	if err := m.ledger.Update(ctx, t); err != nil {
		t.Status = prev
		m.metrics.RecordError("ledger_update")
		m.log.Error("trade update not persisted",
			logger.String("trade_id", t.ID), logger.Error(err))
		return false
	}
	m.metrics.RecordTradeStatus(string(to))
	m.log.Info("trade transition",
		logger.String("trade_id", t.ID),
		logger.String("symbol", t.Symbol),
		logger.String("from", string(prev)),
		logger.String("to", string(to)),
		logger.String("note", note),
	)
	return true
}
