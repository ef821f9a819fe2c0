package models

import "time"

// TradeStatus is the closed set of trade lifecycle states.
type TradeStatus string

const (
	StatusPending      TradeStatus = "PENDING"
	StatusPendingEntry TradeStatus = "PENDING_ENTRY"
	StatusOpen         TradeStatus = "OPEN"
	StatusPendingExit  TradeStatus = "PENDING_EXIT"
	StatusClosed       TradeStatus = "CLOSED"
	StatusExpired      TradeStatus = "EXPIRED"
	StatusCancelled    TradeStatus = "CANCELLED"
	StatusFailedEntry  TradeStatus = "FAILED_ENTRY"
	StatusFailedExit   TradeStatus = "FAILED_EXIT"
)

// ActiveStatuses are the non-terminal states reloaded from the ledger on
// engine start.
var ActiveStatuses = []TradeStatus{
	StatusPending, StatusPendingEntry, StatusOpen, StatusPendingExit,
}

// Terminal reports whether no further transitions are possible.
func (s TradeStatus) Terminal() bool {
	switch s {
	case StatusClosed, StatusExpired, StatusCancelled, StatusFailedEntry, StatusFailedExit:
		return true
	}
	return false
}

// Valid reports whether s is a member of the status enumeration.
func (s TradeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPendingEntry, StatusOpen, StatusPendingExit,
		StatusClosed, StatusExpired, StatusCancelled, StatusFailedEntry, StatusFailedExit:
		return true
	}
	return false
}

// Trade is the durable entity owned by the ledger. In-memory indices are a
// cache over ledger rows and are rebuilt from them on restart.
//
// Entry/exit prices and filled quantity are written only by the reconciler
// from broker-reported values; the monitors write trigger and expiry outcomes.
type Trade struct {
	ID     string
	User   string
	Symbol string
	Token  string

	// Triggering candle snapshot, frozen at signal time.
	CandleTS    time.Time
	CandleOpen  float64
	CandleHigh  float64
	CandleLow   float64
	CandleClose float64

	PrevDayHigh float64

	EntryLevel  float64
	StopLevel   float64
	TargetLevel float64

	Quantity     int
	Side         string // BUY for the long breakout
	EntryOrderID string
	ExitOrderID  string
	EntryPrice   float64
	ExitPrice    float64

	Status     TradeStatus
	ExitReason string
	PnL        float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryBasis is the broker-reported fill price once one exists, otherwise
// the signal's entry level. Position management anchors to this, so a fill
// that slips above the level moves the anchor with it.
func (t *Trade) EntryBasis() float64 {
	if t.EntryPrice > 0 {
		return t.EntryPrice
	}
	return t.EntryLevel
}

// InitialRisk is the per-share risk frozen at entry, used by the breakeven
// ratchet threshold.
func (t *Trade) InitialRisk() float64 {
	return t.EntryBasis() - t.StopLevel
}

// UnrealizedPnL values an open position against the last traded price.
func (t *Trade) UnrealizedPnL(ltp float64) float64 {
	if t.Status != StatusOpen && t.Status != StatusPendingExit {
		return 0
	}
	return (ltp - t.EntryPrice) * float64(t.Quantity)
}

// transitions maps each state to the states reachable from it.
var transitions = map[TradeStatus][]TradeStatus{
	StatusPending:      {StatusPendingEntry, StatusExpired, StatusFailedEntry, StatusCancelled},
	StatusPendingEntry: {StatusOpen, StatusFailedEntry},
	StatusOpen:         {StatusPendingExit, StatusFailedExit},
	StatusPendingExit:  {StatusClosed, StatusFailedExit},
}

// CanTransition reports whether moving from the trade's current status to
// next is a legal state machine edge.
func (t *Trade) CanTransition(next TradeStatus) bool {
	for _, s := range transitions[t.Status] {
		if s == next {
			return true
		}
	}
	return false
}
