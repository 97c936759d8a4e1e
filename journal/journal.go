// Package journal holds the record of executed fills. Records are
// appended once and never changed afterwards.
package journal

import (
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/shopspring/decimal"
)

// Trade is one executed fill.
type Trade struct {
	ID         string             `json:"id"`
	Symbol     string             `json:"symbol"`
	Side       broker.Side        `json:"side"`
	Type       broker.OrderType   `json:"type"`
	Quantity   int64              `json:"quantity"`
	Price      decimal.Decimal    `json:"price"` // effective fill price, after slippage
	LimitPrice *decimal.Decimal   `json:"limit_price,omitempty"`
	StopPrice  *decimal.Decimal   `json:"stop_price,omitempty"`
	Status     broker.OrderStatus `json:"status"`
	Time       time.Time          `json:"time"`
	Commission decimal.Decimal    `json:"commission"`
	// Total is the cash moved: cost for a buy, net proceeds for a sell.
	Total decimal.Decimal `json:"total"`
	// RealizedPL is (Price - average cost) * Quantity for sells, zero for buys.
	RealizedPL decimal.Decimal `json:"realized_pl"`
}

// EquitySnapshot is the portfolio valuation after a mutation.
type EquitySnapshot struct {
	Time           time.Time       `json:"time"`
	Cash           decimal.Decimal `json:"cash"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
	TotalPL        decimal.Decimal `json:"total_pl"`
}

// Recorder receives every trade and valuation as it happens, for an
// external audit trail.
type Recorder interface {
	RecordTrade(Trade) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	Symbol string
	Side   broker.Side
	Since  time.Time
	Limit  int
}

func (f Filter) match(t Trade) bool {
	if f.Symbol != "" && t.Symbol != f.Symbol {
		return false
	}
	if f.Side != "" && t.Side != f.Side {
		return false
	}
	if !f.Since.IsZero() && t.Time.Before(f.Since) {
		return false
	}
	return true
}

// Log is the append-only trade journal. There is no update or delete.
type Log struct {
	mu     sync.RWMutex
	trades []Trade
	ids    map[string]int
}

func NewLog() *Log {
	return &Log{ids: make(map[string]int)}
}

// Append adds t to the end of the journal. A duplicate ID is an error.
func (l *Log) Append(t Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.ID == "" {
		return fmt.Errorf("append trade: empty id")
	}
	if _, dup := l.ids[t.ID]; dup {
		return fmt.Errorf("append trade: duplicate id %q", t.ID)
	}
	l.ids[t.ID] = len(l.trades)
	l.trades = append(l.trades, t)
	return nil
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// Get returns the trade with the given ID.
func (l *Log) Get(id string) (Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.ids[id]
	if !ok {
		return Trade{}, false
	}
	return l.trades[i], true
}

// List returns matching trades, most recent first.
func (l *Log) List(f Filter) []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Trade, 0, len(l.trades))
	for i := len(l.trades) - 1; i >= 0; i-- {
		t := l.trades[i]
		if !f.match(t) {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Chronological returns every trade in insertion order, for snapshots.
func (l *Log) Chronological() []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Summary aggregates the journal for history views.
type Summary struct {
	Trades      int             `json:"trades"`
	Buys        int             `json:"buys"`
	Sells       int             `json:"sells"`
	Commissions decimal.Decimal `json:"commissions"`
	Bought      decimal.Decimal `json:"bought"`
	Sold        decimal.Decimal `json:"sold"`
	RealizedPL  decimal.Decimal `json:"realized_pl"`
}

func Summarize(trades []Trade) Summary {
	var s Summary
	for _, t := range trades {
		s.Trades++
		s.Commissions = s.Commissions.Add(t.Commission)
		switch t.Side {
		case broker.Buy:
			s.Buys++
			s.Bought = s.Bought.Add(t.Total)
		case broker.Sell:
			s.Sells++
			s.Sold = s.Sold.Add(t.Total)
			s.RealizedPL = s.RealizedPL.Add(t.RealizedPL)
		}
	}
	return s
}
