package models

import "time"

// StrategySettings is the per-user risk configuration. The engine reads it
// once per cycle and never writes it; an external surface owns updates.
type StrategySettings struct {
	Active           bool
	StartTime        string // HH:MM, exchange timezone
	EndTime          string // HH:MM
	MaxTotalTrades   int
	PerTradeSLAmount float64

	PnLExitEnabled bool
	ProfitTarget   float64
	MaxLoss        float64
}

// WithinWindow reports whether now falls inside the configured trading
// window. Malformed bounds disable the window check rather than blocking.
func (s *StrategySettings) WithinWindow(now time.Time) bool {
	start, err1 := time.Parse("15:04", s.StartTime)
	end, err2 := time.Parse("15:04", s.EndTime)
	if err1 != nil || err2 != nil {
		return true
	}
	mins := now.Hour()*60 + now.Minute()
	return mins >= start.Hour()*60+start.Minute() && mins < end.Hour()*60+end.Minute()
}
