package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"golang.org/x/time/rate"
)

// DefaultMinInterval keeps a free Finnhub key under its per-minute limit.
const DefaultMinInterval = 150 * time.Millisecond

// Throttled spaces upstream requests at least interval apart, across
// every goroutine sharing it.
type Throttled struct {
	src     market.QuoteSource
	limiter *rate.Limiter
}

func NewThrottled(src market.QuoteSource, interval time.Duration) *Throttled {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttled{src: src, limiter: rate.NewLimiter(limit, 1)}
}

func (t *Throttled) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return market.Quote{}, fmt.Errorf("throttle %s: %w", symbol, err)
	}
	return t.src.Quote(ctx, symbol)
}
