package sim

import (
	"testing"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, what ...string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%v: want %s got %s", what, want, got)
}

func TestCalculate(t *testing.T) {
	t.Parallel()

	rates := DefaultRates()

	tests := []struct {
		name       string
		side       broker.Side
		typ        broker.OrderType
		qty        int64
		ref        string
		price      string
		commission string
		total      string
		slipped    bool
	}{
		{"market buy", broker.Buy, broker.Market, 10, "150", "150.075", "1.5", "1502.25", true},
		{"market sell", broker.Sell, broker.Market, 10, "150", "149.925", "1.5", "1497.75", true},
		{"limit buy", broker.Buy, broker.Limit, 10, "150", "150", "1.5", "1501.5", false},
		{"stop sell", broker.Sell, broker.Stop, 4, "25.5", "25.5", "0.102", "101.898", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := rates.Calculate(tt.side, tt.typ, tt.qty, d(tt.ref))
			assertDec(t, tt.price, f.Price, "price")
			assertDec(t, tt.commission, f.Commission, "commission")
			assertDec(t, tt.total, f.Total, "total")
			assert.Equal(t, tt.slipped, f.SlippageApplied)
			assert.True(t, f.Notional.Equal(f.Price.Mul(decimal.NewFromInt(tt.qty))))
		})
	}
}

func TestCalculateWithoutSlippage(t *testing.T) {
	t.Parallel()

	rates := Rates{Commission: d("0.001")}
	f := rates.Calculate(broker.Buy, broker.Market, 10, d("150"))
	assertDec(t, "150", f.Price)
	assert.False(t, f.SlippageApplied)
}

func TestCalculateHasNoDrift(t *testing.T) {
	t.Parallel()

	rates := DefaultRates()
	sum := decimal.Zero
	for i := 0; i < 10000; i++ {
		sum = sum.Add(rates.Calculate(broker.Buy, broker.Limit, 1, d("0.1")).Commission)
	}
	assertDec(t, "1", sum)
}

func TestRatesValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		commission, slippage string
		ok                   bool
	}{
		{"0.001", "0.0005", true},
		{"0", "0", true},
		{"0.5", "0.4999", true},
		{"1", "0.0005", false},
		{"0.001", "2", false},
		{"0.6", "0.4", false},
		{"-0.001", "0", false},
		{"0", "-0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.commission+"/"+tt.slippage, func(t *testing.T) {
			err := Rates{Commission: d(tt.commission), Slippage: d(tt.slippage)}.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
