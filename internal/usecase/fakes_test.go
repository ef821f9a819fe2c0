package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
)

// In-memory collaborators for the engine tests. They implement the same
// contracts as the Redis/SQLite/broker adapters, including the (nil, nil)
// not-found conventions.

type memStream struct {
	entries []domrepo.StreamEntry
	acked   []string
	nextID  int
	pubErr  error
}

func (s *memStream) Publish(_ context.Context, c *models.Candle) error {
	if s.pubErr != nil {
		return s.pubErr
	}
	s.nextID++
	s.entries = append(s.entries, domrepo.StreamEntry{
		ID:     fmt.Sprintf("%d-0", s.nextID),
		Candle: *c,
	})
	return nil
}

func (s *memStream) EnsureGroup(context.Context, string) error { return nil }

func (s *memStream) ReadGroup(_ context.Context, _, _ string, count int, _ time.Duration) ([]domrepo.StreamEntry, error) {
	if count > len(s.entries) {
		count = len(s.entries)
	}
	out := s.entries[:count]
	s.entries = s.entries[count:]
	return out, nil
}

func (s *memStream) Ack(_ context.Context, _ string, ids ...string) error {
	s.acked = append(s.acked, ids...)
	return nil
}

type memSnap struct {
	quotes map[string]models.LiveQuote
	writes int
}

func (s *memSnap) Write(_ context.Context, q map[string]models.LiveQuote) error {
	s.quotes = q
	s.writes++
	return nil
}

func (s *memSnap) Read(context.Context) (map[string]models.LiveQuote, error) {
	if s.quotes == nil {
		return map[string]models.LiveQuote{}, nil
	}
	return s.quotes, nil
}

type memLevels struct {
	data map[string]*models.PrevDayLevels
}

func (l *memLevels) Get(_ context.Context, symbol string) (*models.PrevDayLevels, error) {
	return l.data[symbol], nil
}

func (l *memLevels) Put(_ context.Context, symbol string, lv *models.PrevDayLevels) error {
	if l.data == nil {
		l.data = make(map[string]*models.PrevDayLevels)
	}
	l.data[symbol] = lv
	return nil
}

type memLedger struct {
	rows   map[string]*models.Trade
	nextID int
	upErr  error
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string]*models.Trade)}
}

func (l *memLedger) Insert(_ context.Context, t *models.Trade) error {
	l.nextID++
	if t.ID == "" {
		t.ID = fmt.Sprintf("T%03d", l.nextID)
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	l.rows[t.ID] = &cp
	return nil
}

func (l *memLedger) Update(_ context.Context, t *models.Trade) error {
	if l.upErr != nil {
		return l.upErr
	}
	if _, ok := l.rows[t.ID]; !ok {
		return fmt.Errorf("trade %s not found", t.ID)
	}
	cp := *t
	l.rows[t.ID] = &cp
	return nil
}

func (l *memLedger) Get(_ context.Context, id string) (*models.Trade, error) {
	t, ok := l.rows[id]
	if !ok {
		return nil, fmt.Errorf("trade %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (l *memLedger) ListByStatus(_ context.Context, user string, statuses ...models.TradeStatus) ([]*models.Trade, error) {
	var out []*models.Trade
	for _, t := range l.rows {
		if t.User != user {
			continue
		}
		for _, s := range statuses {
			if t.Status == s {
				cp := *t
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *memLedger) ListRecent(_ context.Context, user string, limit int) ([]*models.Trade, error) {
	var out []*models.Trade
	for _, t := range l.rows {
		if t.User == user {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) CountCreatedSince(_ context.Context, user string, since time.Time) (int, error) {
	n := 0
	for _, t := range l.rows {
		if t.User == user && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (l *memLedger) Close() error { return nil }

// paperBroker records placed orders and serves scripted status answers.
type paperBroker struct {
	placed    []placedOrder
	placeErr  error
	nextOrder int

	statuses  map[string]*domrepo.OrderState
	statusErr error

	daily []models.HistCandle
}

type placedOrder struct {
	Token  string
	Symbol string
	Qty    int
	Side   string
}

func newPaperBroker() *paperBroker {
	return &paperBroker{statuses: make(map[string]*domrepo.OrderState)}
}

func (b *paperBroker) PlaceOrder(_ context.Context, token, symbol string, qty int, side string) (string, error) {
	if b.placeErr != nil {
		return "", b.placeErr
	}
	b.nextOrder++
	b.placed = append(b.placed, placedOrder{Token: token, Symbol: symbol, Qty: qty, Side: side})
	return fmt.Sprintf("ORD%03d", b.nextOrder), nil
}

func (b *paperBroker) OrderStatus(_ context.Context, orderID string) (*domrepo.OrderState, error) {
	if b.statusErr != nil {
		return nil, b.statusErr
	}
	return b.statuses[orderID], nil
}

func (b *paperBroker) DailyCandles(context.Context, string, time.Time, time.Time) ([]models.HistCandle, error) {
	return b.daily, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordTick(string)               {}
func (nopMetrics) RecordCandle(string)             {}
func (nopMetrics) RecordSignal(string)             {}
func (nopMetrics) RecordOrder(string)              {}
func (nopMetrics) RecordTradeStatus(string)        {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}

func activeSettings() models.StrategySettings {
	return models.StrategySettings{
		Active:           true,
		StartTime:        "00:00",
		EndTime:          "23:59",
		MaxTotalTrades:   20,
		PerTradeSLAmount: 500,
	}
}
