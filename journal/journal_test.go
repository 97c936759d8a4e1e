package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)

func trade(id, symbol string, side broker.Side, minutes int) Trade {
	return Trade{
		ID:         id,
		Symbol:     symbol,
		Side:       side,
		Type:       broker.Market,
		Quantity:   10,
		Price:      decimal.NewFromInt(100),
		Status:     broker.Filled,
		Time:       t0.Add(time.Duration(minutes) * time.Minute),
		Commission: decimal.RequireFromString("1"),
		Total:      decimal.NewFromInt(1001),
	}
}

func seeded(t *testing.T) *Log {
	t.Helper()
	l := NewLog()
	require.NoError(t, l.Append(trade("T1", "AAPL", broker.Buy, 0)))
	require.NoError(t, l.Append(trade("T2", "MSFT", broker.Buy, 1)))
	require.NoError(t, l.Append(trade("T3", "AAPL", broker.Sell, 2)))
	require.NoError(t, l.Append(trade("T4", "AAPL", broker.Buy, 3)))
	return l
}

func ids(trades []Trade) []string {
	out := make([]string, len(trades))
	for i, t := range trades {
		out[i] = t.ID
	}
	return out
}

func TestLogListMostRecentFirst(t *testing.T) {
	t.Parallel()

	l := seeded(t)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, []string{"T4", "T3", "T2", "T1"}, ids(l.List(Filter{})))
	assert.Equal(t, []string{"T1", "T2", "T3", "T4"}, ids(l.Chronological()))
}

func TestLogFilter(t *testing.T) {
	t.Parallel()

	l := seeded(t)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"by symbol", Filter{Symbol: "AAPL"}, []string{"T4", "T3", "T1"}},
		{"by side", Filter{Side: broker.Sell}, []string{"T3"}},
		{"symbol and side", Filter{Symbol: "AAPL", Side: broker.Buy}, []string{"T4", "T1"}},
		{"limit", Filter{Limit: 2}, []string{"T4", "T3"}},
		{"since", Filter{Since: t0.Add(2 * time.Minute)}, []string{"T4", "T3"}},
		{"no match", Filter{Symbol: "TSLA"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(l.List(tt.filter)))
		})
	}
}

func TestLogRejectsDuplicateAndEmptyIDs(t *testing.T) {
	t.Parallel()

	l := seeded(t)
	assert.Error(t, l.Append(trade("T2", "AAPL", broker.Buy, 9)))
	assert.Error(t, l.Append(trade("", "AAPL", broker.Buy, 9)))
	assert.Equal(t, 4, l.Len())
}

func TestLogListReturnsCopies(t *testing.T) {
	t.Parallel()

	l := seeded(t)
	got := l.List(Filter{})
	got[0].Quantity = 999

	again, ok := l.Get("T4")
	require.True(t, ok)
	assert.Equal(t, int64(10), again.Quantity)
}

func TestLogGet(t *testing.T) {
	t.Parallel()

	l := seeded(t)
	got, ok := l.Get("T3")
	require.True(t, ok)
	assert.Equal(t, broker.Sell, got.Side)

	_, ok = l.Get("missing")
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	l := NewLog()
	for i := 0; i < 3; i++ {
		tr := trade(fmt.Sprintf("B%d", i), "AAPL", broker.Buy, i)
		require.NoError(t, l.Append(tr))
	}
	sell := trade("S1", "AAPL", broker.Sell, 5)
	sell.Total = decimal.NewFromInt(1099)
	sell.RealizedPL = decimal.NewFromInt(100)
	require.NoError(t, l.Append(sell))

	s := Summarize(l.Chronological())
	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 3, s.Buys)
	assert.Equal(t, 1, s.Sells)
	assert.True(t, s.Commissions.Equal(decimal.NewFromInt(4)))
	assert.True(t, s.Bought.Equal(decimal.NewFromInt(3003)))
	assert.True(t, s.Sold.Equal(decimal.NewFromInt(1099)))
	assert.True(t, s.RealizedPL.Equal(decimal.NewFromInt(100)))
}
