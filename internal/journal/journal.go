// Package journal persists every fill to SQLite for audit and offline
// analysis. The journal is the durable order record; Redis order mirrors
// expire with the session.
package journal

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

// Journal is a single-writer SQLite order journal.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the journal database at dbPath.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		session_id  TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		segment     TEXT NOT NULL,
		security_id TEXT NOT NULL,
		side        TEXT NOT NULL,
		qty         INTEGER NOT NULL,
		avg_price   TEXT NOT NULL,
		filled_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_session ON orders(session_id);
	CREATE INDEX IF NOT EXISTS idx_orders_security ON orders(security_id, segment);
	CREATE INDEX IF NOT EXISTS idx_orders_filled_at ON orders(filled_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("order journal opened", "component", "journal", "path", dbPath)
	return &Journal{db: db}, nil
}

// Recorder binds the journal to one session so it satisfies the order sink
// contract used by the brokers.
type Recorder struct {
	j         *Journal
	sessionID string
}

// ForSession returns a session-scoped recorder.
func (j *Journal) ForSession(sessionID string) *Recorder {
	return &Recorder{j: j, sessionID: sessionID}
}

// Record persists one fill.
func (r *Recorder) Record(_ context.Context, o model.Order) error {
	r.j.mu.Lock()
	defer r.j.mu.Unlock()

	_, err := r.j.db.Exec(
		`INSERT INTO orders (order_id, session_id, symbol, segment, security_id, side, qty, avg_price, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		r.sessionID,
		o.Symbol,
		o.Segment,
		o.SecurityID,
		string(o.Side),
		o.Qty,
		o.AvgPrice.String(),
		o.TS.Format(time.RFC3339),
	)
	return err
}

// Row is one journaled order.
type Row struct {
	ID         int64  `json:"id"`
	OrderID    string `json:"order_id"`
	SessionID  string `json:"session_id"`
	Symbol     string `json:"symbol"`
	Segment    string `json:"segment"`
	SecurityID string `json:"security_id"`
	Side       string `json:"side"`
	Qty        int64  `json:"qty"`
	AvgPrice   string `json:"avg_price"`
	FilledAt   string `json:"filled_at"`
}

// Recent returns the last limit orders for a session, newest first.
func (j *Journal) Recent(sessionID string, limit int) ([]Row, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, session_id, symbol, segment, security_id, side, qty, avg_price, filled_at
		 FROM orders WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.OrderID, &r.SessionID, &r.Symbol, &r.Segment,
			&r.SecurityID, &r.Side, &r.Qty, &r.AvgPrice, &r.FilledAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
