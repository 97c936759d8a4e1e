package pricing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// Synthetic makes up plausible quotes: a price in [100, 500) with a
// daily change of up to 5 either way. Prices are whole cents.
type Synthetic struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewSynthetic(seed int64) *Synthetic {
	return &Synthetic{rng: rand.New(rand.NewSource(seed)), now: time.Now}
}

func (s *Synthetic) Quote(_ context.Context, symbol string) (market.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.cents(10000, 50000)
	change := s.cents(-500, 500)
	return market.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: change.Div(price).Mul(decimal.NewFromInt(100)).Round(4),
		PreviousClose: price.Sub(change),
		Open:          price.Sub(s.cents(0, 500)),
		High:          price.Add(s.cents(0, 1000)),
		Low:           price.Sub(s.cents(0, 1000)),
		Time:          s.now().UTC(),
		Synthetic:     true,
	}, nil
}

// cents returns a price in [lo, hi) cents.
func (s *Synthetic) cents(lo, hi int64) decimal.Decimal {
	return decimal.New(lo+s.rng.Int63n(hi-lo), -2)
}
