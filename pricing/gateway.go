package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/finnhub"
	"github.com/rustyeddy/papertrader/market"
)

const (
	ProviderFinnhub   = "finnhub"
	ProviderSynthetic = "synthetic"
)

// Options configure a Gateway.
type Options struct {
	Provider    string
	APIKey      string
	BaseURL     string
	TTL         time.Duration
	MinInterval time.Duration
	// Fallback serves synthetic quotes when the provider fails.
	Fallback bool
	// Cache defaults to a MemoryCache with TTL.
	Cache  Cache
	Seed   int64
	Logger *slog.Logger
}

// Gateway is the one place reference prices come from. It remembers the
// last quote for every symbol it resolved.
type Gateway struct {
	src  market.QuoteSource
	last *market.QuoteStore
	live bool
}

// New wires the provider chain: Fallback(Cached(Throttled(client)), Synthetic).
// The provider is skipped when it is synthetic or has no API key.
func New(opts Options) (*Gateway, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	var primary market.QuoteSource
	switch opts.Provider {
	case ProviderFinnhub, "":
		if opts.APIKey == "" {
			log.Warn("no finnhub api key configured, quotes are synthetic")
			break
		}
		cache := opts.Cache
		if cache == nil {
			ttl := opts.TTL
			if ttl <= 0 {
				ttl = DefaultTTL
			}
			cache = NewMemoryCache(ttl)
		}
		client := finnhub.NewClient(opts.APIKey, opts.BaseURL)
		primary = NewCached(NewThrottled(client, opts.MinInterval), cache)
	case ProviderSynthetic:
	default:
		return nil, fmt.Errorf("new gateway: unknown provider %q", opts.Provider)
	}

	var backup market.QuoteSource
	if primary == nil || opts.Fallback {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		backup = NewSynthetic(seed)
	}
	return NewGateway(NewFallback(primary, backup, log), primary != nil), nil
}

// NewGateway wraps an already composed source. live reports whether
// quotes come from a real provider.
func NewGateway(src market.QuoteSource, live bool) *Gateway {
	return &Gateway{src: src, last: market.NewQuoteStore(), live: live}
}

// Live reports whether a real provider is configured.
func (g *Gateway) Live() bool { return g.live }

func (g *Gateway) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	symbol = broker.NormalizeSymbol(symbol)
	if symbol == "" {
		return market.Quote{}, fmt.Errorf("quote: empty symbol")
	}
	q, err := g.src.Quote(ctx, symbol)
	if err != nil {
		return market.Quote{}, err
	}
	g.last.Set(q)
	return q, nil
}

// Last returns the most recent quote resolved for symbol.
func (g *Gateway) Last(symbol string) (market.Quote, error) {
	return g.last.Get(broker.NormalizeSymbol(symbol))
}

// Recent returns the last quote for every symbol resolved so far.
func (g *Gateway) Recent() []market.Quote {
	syms := g.last.Symbols()
	out := make([]market.Quote, 0, len(syms))
	for _, s := range syms {
		if q, err := g.last.Get(s); err == nil {
			out = append(out, q)
		}
	}
	return out
}
