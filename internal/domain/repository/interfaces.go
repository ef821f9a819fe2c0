package repository

import (
	"context"
	"time"

	"CashBreakout/internal/domain/models"
)

// TickHandlers are the three slots the aggregator registers against the
// streaming quote transport. The transport's delivery goroutine invokes them;
// handlers must never panic out of the callback.
type TickHandlers struct {
	OnOpen  func()
	OnTick  func(t models.Tick)
	OnError func(err error)
}

// QuoteStream is the broker's push-based quote feed. Run blocks, dialing and
// re-dialing with backoff until ctx is cancelled; a connection drop is not an
// error, only a truncated in-progress candle.
type QuoteStream interface {
	Run(ctx context.Context, h TickHandlers) error
}

// StreamEntry is one delivered candle with its stream position for acking.
type StreamEntry struct {
	ID     string
	Candle models.Candle
}

// CandleStream is the ordered, consumer-group-readable candle log. Delivery
// is at-least-once: entries are acked only after successful processing.
type CandleStream interface {
	Publish(ctx context.Context, c *models.Candle) error
	EnsureGroup(ctx context.Context, group string) error
	ReadGroup(ctx context.Context, group, consumer string, count int, block time.Duration) ([]StreamEntry, error)
	Ack(ctx context.Context, group string, ids ...string) error
}

// SnapshotStore holds the live quote map for the current minute. Write
// replaces the whole value; readers never see a partially merged map.
type SnapshotStore interface {
	Write(ctx context.Context, quotes map[string]models.LiveQuote) error
	Read(ctx context.Context) (map[string]models.LiveQuote, error)
}

// LevelsStore is the previous-day reference data, refreshed out-of-band once
// a day. Get returns (nil, nil) when the symbol has no entry.
type LevelsStore interface {
	Get(ctx context.Context, symbol string) (*models.PrevDayLevels, error)
	Put(ctx context.Context, symbol string, lv *models.PrevDayLevels) error
}

// Ledger is the durable trade store and the single source of truth for trade
// state. Every state change is one atomic update by primary key.
type Ledger interface {
	Insert(ctx context.Context, t *models.Trade) error
	Update(ctx context.Context, t *models.Trade) error
	Get(ctx context.Context, id string) (*models.Trade, error)
	ListByStatus(ctx context.Context, user string, statuses ...models.TradeStatus) ([]*models.Trade, error)
	ListRecent(ctx context.Context, user string, limit int) ([]*models.Trade, error)
	CountCreatedSince(ctx context.Context, user string, since time.Time) (int, error)
	Close() error
}

// OrderState is the broker's view of one order.
type OrderState struct {
	Status    string // raw broker vocabulary, mapped by the reconciler
	FilledQty int
	AvgPrice  float64
	Text      string
}

// Broker is the opaque remote execution service. Implementations classify
// transient failures with retry.Transient so callers never treat a timeout or
// an expired session as an order rejection.
type Broker interface {
	PlaceOrder(ctx context.Context, token, symbol string, qty int, side string) (string, error)
	// OrderStatus returns (nil, nil) when the order id is not in the book yet.
	OrderStatus(ctx context.Context, orderID string) (*OrderState, error)
	DailyCandles(ctx context.Context, token string, from, to time.Time) ([]models.HistCandle, error)
}

// CandleArchive receives finalized candles for offline analytics. Failures
// are logged by the caller and never block candle publication.
type CandleArchive interface {
	Archive(ctx context.Context, c *models.Candle) error
	Close() error
}

// Metrics is the engine's instrumentation surface.
type Metrics interface {
	RecordTick(symbol string)
	RecordCandle(symbol string)
	RecordSignal(symbol string)
	RecordOrder(kind string)
	RecordTradeStatus(status string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
