// Package pricing resolves reference prices for the engine: a provider
// client behind a TTL cache and a request throttle, with synthetic
// quotes as the fallback.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rustyeddy/papertrader/market"
)

// DefaultTTL is how long a provider quote stays fresh.
const DefaultTTL = 2 * time.Minute

// Cache holds recent quotes. A miss is reported by ok == false; caches
// never fail a lookup.
type Cache interface {
	Get(ctx context.Context, symbol string) (q market.Quote, ok bool)
	Set(ctx context.Context, q market.Quote)
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	quote  market.Quote
	stored time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, symbol string) (market.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[symbol]
	if !ok {
		return market.Quote{}, false
	}
	if c.now().Sub(e.stored) > c.ttl {
		delete(c.entries, symbol)
		return market.Quote{}, false
	}
	return e.quote, true
}

func (c *MemoryCache) Set(_ context.Context, q market.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[q.Symbol] = cacheEntry{quote: q, stored: c.now()}
}

// RedisCache shares quotes between processes. Redis expires the keys.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// DialRedis parses a redis:// URL and checks the server answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (c *RedisCache) Get(ctx context.Context, symbol string) (market.Quote, bool) {
	data, err := c.rdb.Get(ctx, quoteKey(symbol)).Bytes()
	if err != nil {
		return market.Quote{}, false
	}
	var q market.Quote
	if json.Unmarshal(data, &q) != nil {
		return market.Quote{}, false
	}
	return q, true
}

func (c *RedisCache) Set(ctx context.Context, q market.Quote) {
	if data, err := json.Marshal(q); err == nil {
		c.rdb.Set(ctx, quoteKey(q.Symbol), data, c.ttl)
	}
}

func quoteKey(symbol string) string { return fmt.Sprintf("papertrader:quote:%s", symbol) }

// Cached serves quotes from cache before asking src.
type Cached struct {
	src   market.QuoteSource
	cache Cache
}

func NewCached(src market.QuoteSource, cache Cache) *Cached {
	return &Cached{src: src, cache: cache}
}

func (c *Cached) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	if q, ok := c.cache.Get(ctx, symbol); ok {
		return q, nil
	}
	q, err := c.src.Quote(ctx, symbol)
	if err != nil {
		return market.Quote{}, err
	}
	c.cache.Set(ctx, q)
	return q, nil
}
