package models

import "time"

// Requests for the read-only trades HTTP endpoints. Defined in domain for
// consistency and reuse.

type TradeListRequest struct {
	Status string `query:"status" json:"status" default:"active" validate:"oneof=active all PENDING PENDING_ENTRY OPEN PENDING_EXIT CLOSED EXPIRED CANCELLED FAILED_ENTRY FAILED_EXIT"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type TradeGetRequest struct {
	ID string `param:"id" json:"id" validate:"required"`
}

// TradeResponse is the wire shape of one ledger row.
type TradeResponse struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Status      string    `json:"status"`
	Side        string    `json:"side"`
	CandleTS    time.Time `json:"candle_ts"`
	PrevDayHigh float64   `json:"prev_day_high"`
	EntryLevel  float64   `json:"entry_level"`
	StopLevel   float64   `json:"stop_level"`
	TargetLevel float64   `json:"target_level"`
	Quantity    int       `json:"quantity"`
	EntryPrice  float64   `json:"entry_price,omitempty"`
	ExitPrice   float64   `json:"exit_price,omitempty"`
	ExitReason  string    `json:"exit_reason,omitempty"`
	PnL         float64   `json:"pnl"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTradeResponse maps a ledger row to its wire shape.
func NewTradeResponse(t *Trade) TradeResponse {
	return TradeResponse{
		ID:          t.ID,
		Symbol:      t.Symbol,
		Status:      string(t.Status),
		Side:        t.Side,
		CandleTS:    t.CandleTS,
		PrevDayHigh: t.PrevDayHigh,
		EntryLevel:  t.EntryLevel,
		StopLevel:   t.StopLevel,
		TargetLevel: t.TargetLevel,
		Quantity:    t.Quantity,
		EntryPrice:  t.EntryPrice,
		ExitPrice:   t.ExitPrice,
		ExitReason:  t.ExitReason,
		PnL:         t.PnL,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
