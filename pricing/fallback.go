package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/metrics"
)

// ErrUnavailable means no price could be resolved for a symbol.
var ErrUnavailable = errors.New("price unavailable")

// Fallback asks primary first and backup when primary fails. Either may
// be nil: no primary means every quote is a backup quote, no backup means
// primary failures surface as ErrUnavailable.
type Fallback struct {
	primary market.QuoteSource
	backup  market.QuoteSource
	log     *slog.Logger
}

func NewFallback(primary, backup market.QuoteSource, log *slog.Logger) *Fallback {
	if log == nil {
		log = slog.Default()
	}
	return &Fallback{primary: primary, backup: backup, log: log}
}

func (f *Fallback) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	if f.primary != nil {
		q, err := f.primary.Quote(ctx, symbol)
		if err == nil {
			metrics.QuotesTotal.WithLabelValues("provider").Inc()
			return q, nil
		}
		if f.backup == nil || ctx.Err() != nil {
			return market.Quote{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol, err)
		}
		f.log.Warn("quote provider failed, using synthetic price", "symbol", symbol, "err", err)
		metrics.QuoteFallbacks.Inc()
	}

	if f.backup == nil {
		return market.Quote{}, fmt.Errorf("%w: %s: no source configured", ErrUnavailable, symbol)
	}
	q, err := f.backup.Quote(ctx, symbol)
	if err != nil {
		return market.Quote{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol, err)
	}
	metrics.QuotesTotal.WithLabelValues("synthetic").Inc()
	return q, nil
}
