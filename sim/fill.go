package sim

import (
	"fmt"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/shopspring/decimal"
)

// Rates are the fractional fees applied to every fill.
type Rates struct {
	Commission decimal.Decimal // charged on reference notional, every order
	Slippage   decimal.Decimal // market orders only, always adverse
}

// DefaultRates are 0.1% commission and 0.05% slippage.
func DefaultRates() Rates {
	return Rates{
		Commission: decimal.RequireFromString("0.001"),
		Slippage:   decimal.RequireFromString("0.0005"),
	}
}

// Validate checks that both rates are in [0, 1) and that together they
// stay below 1, so a sell always nets a positive amount.
func (r Rates) Validate() error {
	one := decimal.NewFromInt(1)
	switch {
	case r.Commission.IsNegative() || r.Commission.GreaterThanOrEqual(one):
		return fmt.Errorf("commission rate %s must be in [0, 1)", r.Commission)
	case r.Slippage.IsNegative() || r.Slippage.GreaterThanOrEqual(one):
		return fmt.Errorf("slippage rate %s must be in [0, 1)", r.Slippage)
	case r.Commission.Add(r.Slippage).GreaterThanOrEqual(one):
		return fmt.Errorf("commission %s plus slippage %s must be below 1", r.Commission, r.Slippage)
	}
	return nil
}

// Fill is the economics of executing an order at a reference price.
type Fill struct {
	Price           decimal.Decimal `json:"price"` // effective price per share
	Commission      decimal.Decimal `json:"commission"`
	SlippageApplied bool            `json:"slippage_applied"`
	// Notional is Price * quantity.
	Notional decimal.Decimal `json:"notional"`
	// Total is the cash impact: Notional + Commission for a buy,
	// Notional - Commission for a sell.
	Total decimal.Decimal `json:"total"`
}

// Calculate prices an order. Limit and stop orders fill at the reference
// price; market orders move against the trader by the slippage rate.
func (r Rates) Calculate(side broker.Side, typ broker.OrderType, quantity int64, ref decimal.Decimal) Fill {
	qty := decimal.NewFromInt(quantity)
	f := Fill{
		Price:      ref,
		Commission: ref.Mul(qty).Mul(r.Commission),
	}

	if typ == broker.Market && !r.Slippage.IsZero() {
		f.SlippageApplied = true
		if side == broker.Buy {
			f.Price = ref.Mul(decimal.NewFromInt(1).Add(r.Slippage))
		} else {
			f.Price = ref.Mul(decimal.NewFromInt(1).Sub(r.Slippage))
		}
	}

	f.Notional = f.Price.Mul(qty)
	if side == broker.Buy {
		f.Total = f.Notional.Add(f.Commission)
	} else {
		f.Total = f.Notional.Sub(f.Commission)
	}
	return f
}
