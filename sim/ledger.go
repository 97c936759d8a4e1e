package sim

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Position is one held symbol. Only Symbol, Quantity, AveragePrice,
// TotalCost and CurrentPrice are state; the rest is derived by revalue.
type Position struct {
	Symbol              string          `json:"symbol"`
	Quantity            int64           `json:"quantity"`
	AveragePrice        decimal.Decimal `json:"average_price"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	TotalValue          decimal.Decimal `json:"total_value"`
	UnrealizedPL        decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPLPercent decimal.Decimal `json:"unrealized_pl_percent"`
	LastUpdated         time.Time       `json:"last_updated"`
}

func (p *Position) revalue() {
	qty := decimal.NewFromInt(p.Quantity)
	p.TotalValue = p.CurrentPrice.Mul(qty)
	p.UnrealizedPL = p.CurrentPrice.Sub(p.AveragePrice).Mul(qty)
	if p.AveragePrice.IsZero() {
		p.UnrealizedPLPercent = decimal.Zero
		return
	}
	p.UnrealizedPLPercent = p.CurrentPrice.Sub(p.AveragePrice).Div(p.AveragePrice).Mul(hundred)
}

// Ledger owns the open positions, keyed by symbol. It is not safe for
// concurrent use; the Engine serializes access.
type Ledger struct {
	positions map[string]*Position
}

func NewLedger() *Ledger {
	return &Ledger{positions: make(map[string]*Position)}
}

// ApplyBuy adds quantity shares bought at price for cost (price * quantity)
// and returns the updated position. The average price is the weighted
// average of all buys: (old cost + cost) / new quantity.
func (l *Ledger) ApplyBuy(symbol string, quantity int64, price, cost decimal.Decimal, at time.Time) (Position, error) {
	if quantity <= 0 {
		return Position{}, fmt.Errorf("apply buy %s: quantity %d must be positive", symbol, quantity)
	}

	p, ok := l.positions[symbol]
	if !ok {
		p = &Position{
			Symbol:       symbol,
			Quantity:     quantity,
			AveragePrice: price,
			TotalCost:    cost,
		}
		l.positions[symbol] = p
	} else {
		p.Quantity += quantity
		p.TotalCost = p.TotalCost.Add(cost)
		p.AveragePrice = p.TotalCost.Div(decimal.NewFromInt(p.Quantity))
	}

	p.CurrentPrice = price
	p.LastUpdated = at
	p.revalue()
	return *p, nil
}

// ApplySell removes quantity shares sold at price. The average price is
// unchanged; the cost basis shrinks to AveragePrice * remaining quantity.
// A position that reaches zero is deleted and closed is true. realized is
// (price - AveragePrice) * quantity.
func (l *Ledger) ApplySell(symbol string, quantity int64, price decimal.Decimal, at time.Time) (pos Position, realized decimal.Decimal, closed bool, err error) {
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, decimal.Zero, false, fmt.Errorf("apply sell %s: no open position", symbol)
	}
	if quantity <= 0 || quantity > p.Quantity {
		return Position{}, decimal.Zero, false, fmt.Errorf("apply sell %s: quantity %d outside (0, %d]", symbol, quantity, p.Quantity)
	}

	realized = price.Sub(p.AveragePrice).Mul(decimal.NewFromInt(quantity))

	p.Quantity -= quantity
	p.CurrentPrice = price
	p.LastUpdated = at
	if p.Quantity == 0 {
		delete(l.positions, symbol)
		p.TotalCost = decimal.Zero
		p.revalue()
		return *p, realized, true, nil
	}

	p.TotalCost = p.AveragePrice.Mul(decimal.NewFromInt(p.Quantity))
	p.revalue()
	return *p, realized, false, nil
}

// MarkPrice revalues one position at price. It reports false when no
// position exists for symbol.
func (l *Ledger) MarkPrice(symbol string, price decimal.Decimal, at time.Time) bool {
	p, ok := l.positions[symbol]
	if !ok {
		return false
	}
	p.CurrentPrice = price
	p.LastUpdated = at
	p.revalue()
	return true
}

func (l *Ledger) Get(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

func (l *Ledger) Len() int { return len(l.positions) }

// Positions returns copies of every open position ordered by symbol.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols returns the held symbols ordered alphabetically.
func (l *Ledger) Symbols() []string {
	out := make([]string, 0, len(l.positions))
	for s := range l.positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// costMatches reports whether TotalCost equals AveragePrice * Quantity, up
// to the rounding a weighted-average division leaves: one unit in the last
// division digit per share.
func costMatches(p Position) bool {
	qty := decimal.NewFromInt(p.Quantity)
	tol := decimal.New(1, -int32(decimal.DivisionPrecision)).Mul(qty)
	return p.TotalCost.Sub(p.AveragePrice.Mul(qty)).Abs().LessThanOrEqual(tol)
}

// restore replaces the ledger contents, recomputing derived fields.
func (l *Ledger) restore(positions []Position) error {
	fresh := make(map[string]*Position, len(positions))
	for _, p := range positions {
		if p.Symbol == "" {
			return fmt.Errorf("restore position: empty symbol")
		}
		if p.Quantity <= 0 {
			return fmt.Errorf("restore position %s: quantity %d must be positive", p.Symbol, p.Quantity)
		}
		if _, dup := fresh[p.Symbol]; dup {
			return fmt.Errorf("restore position %s: duplicate symbol", p.Symbol)
		}
		if !p.AveragePrice.IsPositive() {
			return fmt.Errorf("restore position %s: average price %s must be positive", p.Symbol, p.AveragePrice)
		}
		if !costMatches(p) {
			return fmt.Errorf("restore position %s: total cost %s != %d x average %s", p.Symbol, p.TotalCost, p.Quantity, p.AveragePrice)
		}
		cp := p
		cp.revalue()
		fresh[p.Symbol] = &cp
	}
	l.positions = fresh
	return nil
}
