package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vikar/fx_cascade_trader/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time DATETIME NOT NULL,
			instrument TEXT NOT NULL,
			action TEXT NOT NULL,
			price REAL NOT NULL,
			lot_size REAL NOT NULL,
			stop_loss REAL NOT NULL DEFAULT 0,
			ticket_ref TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_instrument ON trades(instrument);`,
		`CREATE TABLE IF NOT EXISTS position_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instrument TEXT NOT NULL,
			side TEXT NOT NULL,
			lot_size REAL NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			reason TEXT NOT NULL,
			closed_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS plan_snapshots (
			instrument TEXT PRIMARY KEY,
			plan TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// TradeRepository implementation

func (s *SQLiteStore) SaveTrade(ctx context.Context, rec *domain.TradeRecord) error {
	query := `INSERT INTO trades (time, instrument, action, price, lot_size, stop_loss, ticket_ref)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.Time, rec.Instrument, rec.Action, rec.Price, rec.LotSize, rec.StopLoss, rec.TicketRef)
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `SELECT time, instrument, action, price, lot_size, stop_loss, ticket_ref
			  FROM trades ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.TradeRecord
	for rows.Next() {
		var r domain.TradeRecord
		if err := rows.Scan(&r.Time, &r.Instrument, &r.Action, &r.Price, &r.LotSize, &r.StopLoss, &r.TicketRef); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SavePositionHistory(ctx context.Context, h *domain.PositionHistory) error {
	query := `INSERT INTO position_history (instrument, side, lot_size, entry_price, exit_price, realized_pnl, reason, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		h.Instrument, h.Side, h.LotSize, h.EntryPrice, h.ExitPrice, h.RealizedPnL, h.Reason, h.ClosedAt)
	return err
}

func (s *SQLiteStore) ListPositionHistory(ctx context.Context, limit int) ([]*domain.PositionHistory, error) {
	query := `SELECT id, instrument, side, lot_size, entry_price, exit_price, realized_pnl, reason, closed_at
			  FROM position_history ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PositionHistory
	for rows.Next() {
		var h domain.PositionHistory
		if err := rows.Scan(&h.ID, &h.Instrument, &h.Side, &h.LotSize, &h.EntryPrice, &h.ExitPrice, &h.RealizedPnL, &h.Reason, &h.ClosedAt); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// Plan snapshots are stored as JSON blobs: the plan shape evolves with
// the engine and the store should not need migrations to follow it.

func (s *SQLiteStore) SavePlanSnapshot(ctx context.Context, plan *domain.ContingencyPlan) error {
	blob, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	query := `INSERT INTO plan_snapshots (instrument, plan, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			  ON CONFLICT(instrument) DO UPDATE SET plan = excluded.plan, updated_at = CURRENT_TIMESTAMP`
	_, err = s.db.ExecContext(ctx, query, plan.Instrument, string(blob))
	return err
}

func (s *SQLiteStore) ListPlanSnapshots(ctx context.Context) ([]*domain.ContingencyPlan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT plan FROM plan_snapshots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ContingencyPlan
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var plan domain.ContingencyPlan
		if err := json.Unmarshal([]byte(blob), &plan); err != nil {
			return nil, fmt.Errorf("unmarshal plan: %w", err)
		}
		out = append(out, &plan)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeletePlanSnapshot(ctx context.Context, instrument string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM plan_snapshots WHERE instrument = ?`, instrument)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
