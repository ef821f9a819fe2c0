package service

import (
	"CashBreakout/internal/domain/models"
)

// TradeStats is an aggregate view over closed and in-flight trades, served
// by the ops API for a quick session read.
type TradeStats struct {
	Total    int     `json:"total"`
	Open     int     `json:"open"`
	Pending  int     `json:"pending"`
	Closed   int     `json:"closed"`
	Failed   int     `json:"failed"`
	Expired  int     `json:"expired"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	WinRate  float64 `json:"win_rate"`
	GrossPnL float64 `json:"gross_pnl"`
}

// Summarize folds a trade list into session statistics. Win rate counts
// closed trades only; a zero-PnL close counts as neither win nor loss.
func Summarize(trades []*models.Trade) TradeStats {
	var s TradeStats
	for _, t := range trades {
		s.Total++
		switch t.Status {
		case models.StatusOpen, models.StatusPendingExit:
			s.Open++
		case models.StatusPending, models.StatusPendingEntry:
			s.Pending++
		case models.StatusClosed:
			s.Closed++
			s.GrossPnL += t.PnL
			if t.PnL > 0 {
				s.Wins++
			} else if t.PnL < 0 {
				s.Losses++
			}
		case models.StatusFailedEntry, models.StatusFailedExit:
			s.Failed++
		case models.StatusExpired, models.StatusCancelled:
			s.Expired++
		}
	}
	if s.Closed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closed)
	}
	return s
}
