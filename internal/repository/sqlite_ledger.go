package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"CashBreakout/internal/domain/models"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	user TEXT NOT NULL,
	symbol TEXT NOT NULL,
	token TEXT NOT NULL,
	candle_ts DATETIME,
	candle_open REAL,
	candle_high REAL,
	candle_low REAL,
	candle_close REAL,
	prev_day_high REAL,
	entry_level REAL NOT NULL,
	stop_level REAL NOT NULL,
	target_level REAL NOT NULL,
	quantity INTEGER NOT NULL DEFAULT 0,
	side TEXT NOT NULL DEFAULT 'BUY',
	entry_order_id TEXT,
	exit_order_id TEXT,
	entry_price REAL,
	exit_price REAL,
	status TEXT NOT NULL,
	exit_reason TEXT,
	pnl REAL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_user_status ON trades(user, status);
`

// SQLiteLedger is the durable trade store. Every state change is a single
// full-row UPDATE by primary key, so readers either see the old row or the
// new one, never a partial transition.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) the ledger at path. Use ":memory:" in
// tests.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Insert stores a new trade, assigning a ULID id and timestamps when absent.
func (l *SQLiteLedger) Insert(ctx context.Context, t *models.Trade) error {
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO trades
		(id, user, symbol, token, candle_ts, candle_open, candle_high, candle_low, candle_close,
		 prev_day_high, entry_level, stop_level, target_level, quantity, side,
		 entry_order_id, exit_order_id, entry_price, exit_price, status, exit_reason, pnl,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.User, t.Symbol, t.Token, t.CandleTS, t.CandleOpen, t.CandleHigh, t.CandleLow, t.CandleClose,
		t.PrevDayHigh, t.EntryLevel, t.StopLevel, t.TargetLevel, t.Quantity, t.Side,
		t.EntryOrderID, t.ExitOrderID, t.EntryPrice, t.ExitPrice, string(t.Status), t.ExitReason, t.PnL,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.Symbol, err)
	}
	return nil
}

// Update rewrites the mutable columns of a trade by primary key.
func (l *SQLiteLedger) Update(ctx context.Context, t *models.Trade) error {
	t.UpdatedAt = time.Now().UTC()

	res, err := l.db.ExecContext(ctx, `
		UPDATE trades SET
			quantity = ?, entry_order_id = ?, exit_order_id = ?,
			entry_price = ?, exit_price = ?, stop_level = ?,
			status = ?, exit_reason = ?, pnl = ?, updated_at = ?
		WHERE id = ?`,
		t.Quantity, t.EntryOrderID, t.ExitOrderID,
		t.EntryPrice, t.ExitPrice, t.StopLevel,
		string(t.Status), t.ExitReason, t.PnL, t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update trade %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("update trade %s: no such row", t.ID)
	}
	return nil
}

// Get loads one trade by id.
func (l *SQLiteLedger) Get(ctx context.Context, id string) (*models.Trade, error) {
	row := l.db.QueryRowContext(ctx, selectTrades+" WHERE id = ?", id)
	t, err := scanTrade(row)
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", id, err)
	}
	return t, nil
}

// ListByStatus returns a user's trades whose status is in the given set,
// oldest first. This is the restart recovery query.
func (l *SQLiteLedger) ListByStatus(ctx context.Context, user string, statuses ...models.TradeStatus) ([]*models.Trade, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(statuses)+1)
	args = append(args, user)
	for _, s := range statuses {
		args = append(args, string(s))
	}

	q := fmt.Sprintf("%s WHERE user = ? AND status IN (%s) ORDER BY created_at ASC", selectTrades, placeholders)
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// ListRecent returns a user's newest trades, any status, for the read-only
// ops view.
func (l *SQLiteLedger) ListRecent(ctx context.Context, user string, limit int) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		selectTrades+" WHERE user = ? ORDER BY created_at DESC LIMIT ?", user, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// CountCreatedSince counts a user's trades created at or after the given
// time, backing the max-trades-per-day guard.
func (l *SQLiteLedger) CountCreatedSince(ctx context.Context, user string, since time.Time) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM trades WHERE user = ? AND created_at >= ?", user, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count created since: %w", err)
	}
	return n, nil
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

const selectTrades = `
	SELECT id, user, symbol, token, candle_ts, candle_open, candle_high, candle_low, candle_close,
	       prev_day_high, entry_level, stop_level, target_level, quantity, side,
	       entry_order_id, exit_order_id, entry_price, exit_price, status, exit_reason, pnl,
	       created_at, updated_at
	FROM trades`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var t models.Trade
	var status string
	var entryOrderID, exitOrderID, exitReason sql.NullString
	var candleTS sql.NullTime
	var entryPrice, exitPrice, pnl sql.NullFloat64

	err := row.Scan(
		&t.ID, &t.User, &t.Symbol, &t.Token, &candleTS, &t.CandleOpen, &t.CandleHigh, &t.CandleLow, &t.CandleClose,
		&t.PrevDayHigh, &t.EntryLevel, &t.StopLevel, &t.TargetLevel, &t.Quantity, &t.Side,
		&entryOrderID, &exitOrderID, &entryPrice, &exitPrice, &status, &exitReason, &pnl,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = models.TradeStatus(status)
	t.CandleTS = candleTS.Time
	t.EntryOrderID = entryOrderID.String
	t.ExitOrderID = exitOrderID.String
	t.ExitReason = exitReason.String
	t.EntryPrice = entryPrice.Float64
	t.ExitPrice = exitPrice.Float64
	t.PnL = pnl.Float64
	return &t, nil
}

func scanTrades(rows *sql.Rows) ([]*models.Trade, error) {
	var trades []*models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
