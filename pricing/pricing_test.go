package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource answers from a fixed table and counts calls.
type stubSource struct {
	prices map[string]string
	err    error
	calls  atomic.Int64
}

func (s *stubSource) Quote(_ context.Context, symbol string) (market.Quote, error) {
	s.calls.Add(1)
	if s.err != nil {
		return market.Quote{}, s.err
	}
	p, ok := s.prices[symbol]
	if !ok {
		return market.Quote{}, errors.New("unknown symbol")
	}
	return market.Quote{Symbol: symbol, Price: decimal.RequireFromString(p)}, nil
}

func TestMemoryCacheExpires(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	c := NewMemoryCache(2 * time.Minute)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok := c.Get(ctx, "AAPL")
	assert.False(t, ok)

	c.Set(ctx, market.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(150)})
	now = now.Add(2 * time.Minute)
	q, ok := c.Get(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, "150", q.Price.String())

	now = now.Add(time.Second)
	_, ok = c.Get(ctx, "AAPL")
	assert.False(t, ok)
}

func TestCachedHitsSourceOnce(t *testing.T) {
	t.Parallel()

	src := &stubSource{prices: map[string]string{"AAPL": "150"}}
	c := NewCached(src, NewMemoryCache(time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q, err := c.Quote(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "150", q.Price.String())
	}
	assert.Equal(t, int64(1), src.calls.Load())

	_, err := c.Quote(ctx, "MSFT")
	assert.Error(t, err)
	_, err = c.Quote(ctx, "MSFT")
	assert.Error(t, err)
	assert.Equal(t, int64(3), src.calls.Load(), "errors are not cached")
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("PAPERTRADER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PAPERTRADER_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	rdb, err := DialRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewRedisCache(rdb, time.Second)
	sym := "TEST" + time.Now().Format("150405.000")
	c.Set(ctx, market.Quote{Symbol: sym, Price: decimal.RequireFromString("12.34")})

	q, ok := c.Get(ctx, sym)
	require.True(t, ok)
	assert.Equal(t, "12.34", q.Price.String())

	time.Sleep(1100 * time.Millisecond)
	_, ok = c.Get(ctx, sym)
	assert.False(t, ok)
}

func TestDialRedisBadURL(t *testing.T) {
	t.Parallel()

	_, err := DialRedis(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestThrottledSpacesRequests(t *testing.T) {
	t.Parallel()

	src := &stubSource{prices: map[string]string{"AAPL": "1"}}
	th := NewThrottled(src, 40*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := th.Quote(ctx, "AAPL")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 110*time.Millisecond)
	assert.Equal(t, int64(4), src.calls.Load())
}

func TestThrottledHonoursContext(t *testing.T) {
	t.Parallel()

	th := NewThrottled(&stubSource{prices: map[string]string{"AAPL": "1"}}, time.Hour)
	_, err := th.Quote(context.Background(), "AAPL")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = th.Quote(ctx, "AAPL")
	assert.Error(t, err)
}

func TestSyntheticRange(t *testing.T) {
	t.Parallel()

	s := NewSynthetic(7)
	lo, hi := decimal.NewFromInt(100), decimal.NewFromInt(500)
	for i := 0; i < 1000; i++ {
		q, err := s.Quote(context.Background(), "X")
		require.NoError(t, err)
		assert.True(t, q.Synthetic)
		assert.True(t, q.Price.GreaterThanOrEqual(lo), q.Price.String())
		assert.True(t, q.Price.LessThan(hi), q.Price.String())
		assert.True(t, q.Low.IsPositive())
		assert.True(t, q.PreviousClose.Add(q.Change).Equal(q.Price))
		assert.LessOrEqual(t, q.Price.Exponent(), int32(0))
	}
}

func TestSyntheticSeeded(t *testing.T) {
	t.Parallel()

	a, _ := NewSynthetic(99).Quote(context.Background(), "X")
	b, _ := NewSynthetic(99).Quote(context.Background(), "X")
	assert.True(t, a.Price.Equal(b.Price))
}

func TestFallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	good := &stubSource{prices: map[string]string{"AAPL": "150"}}
	down := &stubSource{err: errors.New("connection refused")}
	backup := NewSynthetic(1)

	q, err := NewFallback(good, backup, nil).Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, q.Synthetic)

	q, err = NewFallback(down, backup, nil).Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, q.Synthetic)

	q, err = NewFallback(nil, backup, nil).Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, q.Synthetic)

	_, err = NewFallback(down, nil, nil).Quote(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "connection refused")

	_, err = NewFallback(nil, nil, nil).Quote(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGatewaySynthetic(t *testing.T) {
	t.Parallel()

	g, err := New(Options{Provider: ProviderSynthetic, Seed: 3})
	require.NoError(t, err)
	assert.False(t, g.Live())

	q, err := g.Quote(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)

	last, err := g.Last("aapl")
	require.NoError(t, err)
	assert.True(t, last.Price.Equal(q.Price))
	assert.Len(t, g.Recent(), 1)

	_, err = g.Last("MSFT")
	assert.ErrorIs(t, err, market.ErrNoQuote)

	_, err = g.Quote(context.Background(), "")
	assert.Error(t, err)
}

func TestGatewayFinnhub(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("symbol") == "NOPE" {
			_, _ = w.Write([]byte(`{"c":0}`))
			return
		}
		_, _ = w.Write([]byte(`{"c":189.84,"d":1.25,"dp":0.66,"h":190,"l":188,"o":188.5,"pc":188.59,"t":1715011200}`))
	}))
	t.Cleanup(server.Close)

	g, err := New(Options{
		Provider:    ProviderFinnhub,
		APIKey:      "k",
		BaseURL:     server.URL,
		TTL:         time.Minute,
		MinInterval: time.Millisecond,
		Fallback:    true,
	})
	require.NoError(t, err)
	assert.True(t, g.Live())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		q, err := g.Quote(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "189.84", q.Price.String())
		assert.False(t, q.Synthetic)
	}
	assert.Equal(t, int64(1), hits.Load())

	q, err := g.Quote(ctx, "NOPE")
	require.NoError(t, err)
	assert.True(t, q.Synthetic)
}

func TestGatewayWithoutFallback(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	g, err := New(Options{Provider: ProviderFinnhub, APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)
	_, err = g.Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGatewayNoKeyIsSynthetic(t *testing.T) {
	t.Parallel()

	g, err := New(Options{Provider: ProviderFinnhub})
	require.NoError(t, err)
	assert.False(t, g.Live())
	q, err := g.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, q.Synthetic)
}

func TestGatewayUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Provider: "bloomberg"})
	assert.Error(t, err)
}

type fakeMarker struct {
	symbols []string
	marked  []map[string]decimal.Decimal
	err     error
}

func (m *fakeMarker) Symbols() []string { return m.symbols }

func (m *fakeMarker) MarkPrices(_ context.Context, prices map[string]decimal.Decimal) error {
	m.marked = append(m.marked, prices)
	return m.err
}

func TestRefresher(t *testing.T) {
	t.Parallel()

	src := &stubSource{prices: map[string]string{"AAPL": "151", "MSFT": "402.5"}}
	m := &fakeMarker{symbols: []string{"AAPL", "GONE", "MSFT"}}

	rep, err := NewRefresher(src, m, nil).Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, rep.Symbols())
	assert.Contains(t, rep.Failed, "GONE")
	assert.Equal(t, int64(3), src.calls.Load())

	require.Len(t, m.marked, 1)
	assert.Equal(t, "402.5", m.marked[0]["MSFT"].String())
}

func TestRefresherNothingHeld(t *testing.T) {
	t.Parallel()

	m := &fakeMarker{}
	rep, err := NewRefresher(&stubSource{}, m, nil).Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Updated)
	assert.Empty(t, m.marked)
}

func TestRefresherMarkError(t *testing.T) {
	t.Parallel()

	m := &fakeMarker{symbols: []string{"AAPL"}, err: errors.New("save failed")}
	_, err := NewRefresher(&stubSource{prices: map[string]string{"AAPL": "1"}}, m, nil).Refresh(context.Background())
	assert.Error(t, err)
}

func TestRefresherCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &fakeMarker{symbols: []string{"AAPL"}}
	_, err := NewRefresher(&stubSource{}, m, nil).Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.marked)
}
