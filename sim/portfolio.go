package sim

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is a read-only view of the account: cash, positions and the
// aggregate valuation computed from them.
type Portfolio struct {
	Cash           decimal.Decimal `json:"cash"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	// TotalPL is unrealized P/L over open positions only.
	TotalPL        decimal.Decimal `json:"total_pl"`
	TotalPLPercent decimal.Decimal `json:"total_pl_percent"`
	// RealizedPL accumulates (fill - average cost) * quantity over sells,
	// before commissions. Commissions accumulates every fee charged.
	RealizedPL  decimal.Decimal `json:"realized_pl"`
	Commissions decimal.Decimal `json:"commissions"`
	Positions   []Position      `json:"positions"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NetPL is realized plus unrealized P/L minus every commission paid.
func (p Portfolio) NetPL() decimal.Decimal {
	return p.RealizedPL.Add(p.TotalPL).Sub(p.Commissions)
}

// Accountant owns the cash balance and the aggregate valuation.
type Accountant struct {
	cash        decimal.Decimal
	realized    decimal.Decimal
	commissions decimal.Decimal
	view        Portfolio
}

func NewAccountant(cash decimal.Decimal) *Accountant {
	a := &Accountant{cash: cash}
	a.view.Cash = cash
	a.view.TotalValue = cash
	return a
}

func (a *Accountant) Cash() decimal.Decimal { return a.cash }

// Debit removes amount from cash. Overdrawing is a defect upstream.
func (a *Accountant) Debit(amount decimal.Decimal) {
	next := a.cash.Sub(amount)
	invariant(!next.IsNegative(), "cash would go negative: %s - %s", a.cash, amount)
	a.cash = next
}

func (a *Accountant) Credit(amount decimal.Decimal) {
	invariant(!amount.IsNegative(), "negative credit %s", amount)
	a.cash = a.cash.Add(amount)
}

func (a *Accountant) Realize(pl decimal.Decimal) { a.realized = a.realized.Add(pl) }

func (a *Accountant) Charge(commission decimal.Decimal) {
	a.commissions = a.commissions.Add(commission)
}

// Recompute overwrites the aggregate valuation from the ledger and cash.
// It reads nothing it writes, so calling it twice yields the same view.
func (a *Accountant) Recompute(l *Ledger, at time.Time) Portfolio {
	positions := l.Positions()

	var value, cost, pl decimal.Decimal
	for _, p := range positions {
		value = value.Add(p.TotalValue)
		cost = cost.Add(p.TotalCost)
		pl = pl.Add(p.UnrealizedPL)
	}

	pct := decimal.Zero
	if cost.IsPositive() {
		pct = pl.Div(cost).Mul(hundred)
	}

	a.view = Portfolio{
		Cash:           a.cash,
		PositionsValue: value,
		TotalValue:     a.cash.Add(value),
		TotalCost:      cost,
		TotalPL:        pl,
		TotalPLPercent: pct,
		RealizedPL:     a.realized,
		Commissions:    a.commissions,
		Positions:      positions,
		UpdatedAt:      at,
	}
	return a.View()
}

// View returns the last recomputed portfolio. Positions is a fresh slice.
func (a *Accountant) View() Portfolio {
	v := a.view
	v.Positions = append([]Position(nil), a.view.Positions...)
	return v
}

func (a *Accountant) restore(cash, realized, commissions decimal.Decimal) error {
	if cash.IsNegative() {
		return fmt.Errorf("restore cash: %s is negative", cash)
	}
	a.cash = cash
	a.realized = realized
	a.commissions = commissions
	return nil
}

// invariant panics when cond is false. Reaching it means validation
// upstream let through an order it should have rejected.
func invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("sim: invariant violated: "+format, args...))
	}
}
