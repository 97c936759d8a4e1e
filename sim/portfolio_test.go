package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountantRecompute(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	buy(t, l, "AAPL", 10, "100")
	buy(t, l, "MSFT", 2, "300")
	l.MarkPrice("AAPL", d("110"), t0)

	a := NewAccountant(d("5000"))
	p := a.Recompute(l, t0)

	assertDec(t, "5000", p.Cash)
	assertDec(t, "1700", p.PositionsValue)
	assertDec(t, "6700", p.TotalValue)
	assertDec(t, "1600", p.TotalCost)
	assertDec(t, "100", p.TotalPL)
	assertDec(t, "6.25", p.TotalPLPercent)
	assert.Len(t, p.Positions, 2)

	again := a.Recompute(l, t0)
	assert.Equal(t, p, again)
}

func TestAccountantEmpty(t *testing.T) {
	t.Parallel()

	a := NewAccountant(d("100"))
	p := a.Recompute(NewLedger(), t0)
	assertDec(t, "100", p.TotalValue)
	assertDec(t, "0", p.TotalPLPercent)
	assert.Empty(t, p.Positions)
}

func TestAccountantViewIsCopy(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	buy(t, l, "AAPL", 1, "100")
	a := NewAccountant(d("100"))
	a.Recompute(l, t0)

	v := a.View()
	v.Positions[0].Quantity = 99
	assert.Equal(t, int64(1), a.View().Positions[0].Quantity)
}

func TestAccountantCashMovements(t *testing.T) {
	t.Parallel()

	a := NewAccountant(d("100"))
	a.Debit(d("100"))
	assertDec(t, "0", a.Cash())
	a.Credit(d("25.5"))
	assertDec(t, "25.5", a.Cash())

	assert.PanicsWithValue(t, "sim: invariant violated: cash would go negative: 25.5 - 25.51", func() {
		a.Debit(d("25.51"))
	})
	assert.Panics(t, func() { a.Credit(d("-1")) })
	assertDec(t, "25.5", a.Cash())
}

func TestPortfolioNetPL(t *testing.T) {
	t.Parallel()

	p := Portfolio{RealizedPL: d("100"), TotalPL: d("-20"), Commissions: d("3")}
	assertDec(t, "77", p.NetPL())
}

func TestAccountantRestore(t *testing.T) {
	t.Parallel()

	a := NewAccountant(d("0"))
	assert.Error(t, a.restore(d("-1"), d("0"), d("0")))
	assert.NoError(t, a.restore(d("10"), d("2"), d("1")))
	p := a.Recompute(NewLedger(), t0)
	assertDec(t, "10", p.Cash)
	assertDec(t, "2", p.RealizedPL)
	assertDec(t, "1", p.Commissions)
}
