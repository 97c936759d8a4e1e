package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/shopspring/decimal"
)

// SQLite stores the snapshot across the tables in Schema. Save replaces
// every table in one transaction, so a reader never sees half a snapshot.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Save(ctx context.Context, snap sim.Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"meta", "positions", "trades", "watchlist", "equity"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	meta := map[string]string{
		"version":       strconv.Itoa(snap.Version),
		"saved_at":      formatTime(snap.SavedAt),
		"starting_cash": snap.StartingCash.String(),
		"cash":          snap.Cash.String(),
		"realized_pl":   snap.RealizedPL.String(),
		"commissions":   snap.Commissions.String(),
	}
	for k, v := range meta {
		if _, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}

	for _, p := range snap.Positions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO positions
			(symbol, quantity, average_price, total_cost, current_price, last_updated)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.Symbol, p.Quantity, p.AveragePrice.String(), p.TotalCost.String(),
			p.CurrentPrice.String(), formatTime(p.LastUpdated),
		)
		if err != nil {
			return fmt.Errorf("insert position %s: %w", p.Symbol, err)
		}
	}

	for i, t := range snap.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trades
			(seq, trade_id, symbol, side, type, quantity, price, limit_price, stop_price, status, time, commission, total, realized_pl)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, t.ID, t.Symbol, string(t.Side), string(t.Type), t.Quantity, t.Price.String(),
			nullDecimal(t.LimitPrice), nullDecimal(t.StopPrice), string(t.Status),
			formatTime(t.Time), t.Commission.String(), t.Total.String(), t.RealizedPL.String(),
		)
		if err != nil {
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
	}

	for i, w := range snap.Watchlist {
		_, err = tx.ExecContext(ctx, `INSERT INTO watchlist (seq, symbol, added_at) VALUES (?, ?, ?)`,
			i, w.Symbol, formatTime(w.AddedAt))
		if err != nil {
			return fmt.Errorf("insert watchlist %s: %w", w.Symbol, err)
		}
	}

	for i, e := range snap.History {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO equity (seq, time, cash, positions_value, total_value, total_pl)
			VALUES (?, ?, ?, ?, ?, ?)`,
			i, formatTime(e.Time), e.Cash.String(), e.PositionsValue.String(),
			e.TotalValue.String(), e.TotalPL.String(),
		)
		if err != nil {
			return fmt.Errorf("insert equity: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context) (sim.Snapshot, error) {
	var snap sim.Snapshot

	meta, err := s.loadMeta(ctx)
	if err != nil {
		return snap, err
	}
	if _, ok := meta["version"]; !ok {
		return snap, ErrNotFound
	}

	if snap.Version, err = strconv.Atoi(meta["version"]); err != nil {
		return snap, fmt.Errorf("parse version: %w", err)
	}
	if snap.SavedAt, err = parseTime(meta["saved_at"]); err != nil {
		return snap, err
	}
	for key, dst := range map[string]*decimal.Decimal{
		"starting_cash": &snap.StartingCash,
		"cash":          &snap.Cash,
		"realized_pl":   &snap.RealizedPL,
		"commissions":   &snap.Commissions,
	} {
		if *dst, err = decimal.NewFromString(meta[key]); err != nil {
			return snap, fmt.Errorf("parse %s: %w", key, err)
		}
	}

	if snap.Positions, err = s.loadPositions(ctx); err != nil {
		return snap, err
	}
	if snap.Trades, err = s.loadTrades(ctx); err != nil {
		return snap, err
	}
	if snap.Watchlist, err = s.loadWatchlist(ctx); err != nil {
		return snap, err
	}
	if snap.History, err = s.loadEquity(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *SQLite) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *SQLite) loadPositions(ctx context.Context) ([]sim.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, quantity, average_price, total_cost, current_price, last_updated
		FROM positions
		ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []sim.Position
	for rows.Next() {
		var p sim.Position
		var updated string
		if err := rows.Scan(&p.Symbol, &p.Quantity, &p.AveragePrice, &p.TotalCost, &p.CurrentPrice, &updated); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if p.LastUpdated, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) loadTrades(ctx context.Context) ([]journal.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_id, symbol, side, type, quantity, price, limit_price, stop_price, status, time, commission, total, realized_pl
		FROM trades
		ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []journal.Trade
	for rows.Next() {
		var (
			t                     journal.Trade
			side, typ, status, at string
			limitPrice, stopPrice decimal.NullDecimal
		)
		if err := rows.Scan(
			&t.ID,
			&t.Symbol,
			&side,
			&typ,
			&t.Quantity,
			&t.Price,
			&limitPrice,
			&stopPrice,
			&status,
			&at,
			&t.Commission,
			&t.Total,
			&t.RealizedPL,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = broker.Side(side)
		t.Type = broker.OrderType(typ)
		t.Status = broker.OrderStatus(status)
		t.LimitPrice = decimalPtr(limitPrice)
		t.StopPrice = decimalPtr(stopPrice)
		if t.Time, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) loadWatchlist(ctx context.Context) ([]sim.WatchItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, added_at FROM watchlist ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []sim.WatchItem
	for rows.Next() {
		var w sim.WatchItem
		var at string
		if err := rows.Scan(&w.Symbol, &at); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		if w.AddedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLite) loadEquity(ctx context.Context) ([]journal.EquitySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, cash, positions_value, total_value, total_pl
		FROM equity
		ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query equity: %w", err)
	}
	defer rows.Close()

	var out []journal.EquitySnapshot
	for rows.Next() {
		var e journal.EquitySnapshot
		var at string
		if err := rows.Scan(&at, &e.Cash, &e.PositionsValue, &e.TotalValue, &e.TotalPL); err != nil {
			return nil, fmt.Errorf("scan equity: %w", err)
		}
		if e.Time, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalPtr(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}
