package market

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoQuote is returned by QuoteStore.Get for a symbol never set.
var ErrNoQuote = errors.New("quote not found")

// QuoteSource resolves a reference price for a symbol. Implementations
// live outside the engine; the engine only ever sees resolved prices.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Time          time.Time       `json:"time"`
	Synthetic     bool            `json:"synthetic,omitempty"`
}

// Age reports how old the quote is relative to now.
func (q Quote) Age(now time.Time) time.Duration {
	if q.Time.IsZero() {
		return 0
	}
	return now.Sub(q.Time)
}

// QuoteStore keeps the last quote seen for each symbol.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Symbol] = q
}

func (qs *QuoteStore) Get(symbol string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[symbol]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}

// Symbols returns the stored symbols in lexical order.
func (qs *QuoteStore) Symbols() []string {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	out := make([]string, 0, len(qs.quotes))
	for s := range qs.quotes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
