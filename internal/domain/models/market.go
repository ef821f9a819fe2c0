package models

import "time"

// Tick is a single quote update from the broker's streaming feed.
// CumulativeVolume is the session-cumulative traded volume, not a delta;
// the aggregator derives per-minute volume from it.
type Tick struct {
	Token            string  `json:"token"`
	LastTradedPrice  float64 `json:"last_traded_price"`
	CumulativeVolume float64 `json:"vol_traded"`
}

// Candle is a finalized one-minute OHLCV bar. Immutable once published.
type Candle struct {
	Symbol string  `json:"symbol"`
	Token  string  `json:"token"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	// Bucket is the minute the candle covers, truncated to the minute
	// boundary in the exchange timezone.
	Bucket time.Time `json:"ts"`
}

// Bullish reports whether the candle closed above its open.
func (c *Candle) Bullish() bool { return c.Close > c.Open }

// LiveQuote is the not-yet-closed minute's running state for one symbol.
// Overwritten on every snapshot flush, never persisted.
type LiveQuote struct {
	LTP  float64 `json:"ltp"`
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// PrevDayLevels holds the prior completed session's reference levels for a
// symbol. A missing entry disqualifies the symbol from signal detection.
type PrevDayLevels struct {
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
	Date  string  `json:"date"` // YYYY-MM-DD of the completed session
}

// HistCandle is one daily bar returned by the broker's historical data API.
type HistCandle struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
