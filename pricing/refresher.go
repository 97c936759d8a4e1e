package pricing

import (
	"context"
	"log/slog"
	"sort"

	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// Marker is the part of the engine a Refresher drives.
type Marker interface {
	Symbols() []string
	MarkPrices(ctx context.Context, prices map[string]decimal.Decimal) error
}

// Refresher marks every open position to a fresh quote.
type Refresher struct {
	src    market.QuoteSource
	engine Marker
	log    *slog.Logger
}

func NewRefresher(src market.QuoteSource, engine Marker, log *slog.Logger) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{src: src, engine: engine, log: log}
}

// Report says which symbols were marked and which quotes failed.
type Report struct {
	Updated map[string]decimal.Decimal `json:"updated"`
	Failed  map[string]string          `json:"failed,omitempty"`
}

// Symbols lists the updated symbols in order.
func (r Report) Symbols() []string {
	out := make([]string, 0, len(r.Updated))
	for s := range r.Updated {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Refresh quotes each held symbol in turn and applies every price it got
// in a single MarkPrices call. A failed quote leaves that position at its
// last price. The error is only from MarkPrices or a cancelled ctx.
func (r *Refresher) Refresh(ctx context.Context) (Report, error) {
	rep := Report{Updated: map[string]decimal.Decimal{}, Failed: map[string]string{}}

	for _, sym := range r.engine.Symbols() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		q, err := r.src.Quote(ctx, sym)
		if err != nil {
			r.log.Warn("refresh quote", "symbol", sym, "err", err)
			rep.Failed[sym] = err.Error()
			continue
		}
		rep.Updated[sym] = q.Price
	}

	if len(rep.Updated) == 0 {
		return rep, nil
	}
	if err := r.engine.MarkPrices(ctx, rep.Updated); err != nil {
		return rep, err
	}
	r.log.Info("prices refreshed", "updated", len(rep.Updated), "failed", len(rep.Failed))
	return rep, nil
}
