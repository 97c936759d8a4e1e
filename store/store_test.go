package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// sampleSnapshot drives a real engine so the snapshot is internally
// consistent.
func sampleSnapshot(t *testing.T) sim.Snapshot {
	t.Helper()

	e := sim.NewEngine(d("100000"), sim.DefaultRates(), nil)
	clock := t0
	e.SetClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	ctx := context.Background()
	lim := d("101")
	orders := []struct {
		req broker.OrderRequest
		ref string
	}{
		{broker.OrderRequest{Symbol: "AAPL", Side: broker.Buy, Type: broker.Market, Quantity: 10}, "150"},
		{broker.OrderRequest{Symbol: "MSFT", Side: broker.Buy, Type: broker.Limit, Quantity: 4, LimitPrice: &lim}, "100"},
		{broker.OrderRequest{Symbol: "AAPL", Side: broker.Sell, Type: broker.Market, Quantity: 3}, "160"},
	}
	for _, o := range orders {
		res, err := e.ExecuteOrder(ctx, o.req, d(o.ref))
		require.NoError(t, err)
		require.True(t, res.Accepted, res.String())
	}
	_, err := e.AddToWatchlist(ctx, "TSLA")
	require.NoError(t, err)
	_, err = e.AddToWatchlist(ctx, "NVDA")
	require.NoError(t, err)

	return e.Snapshot()
}

func assertSameSnapshot(t *testing.T, want, got sim.Snapshot) {
	t.Helper()

	assert.Equal(t, want.Version, got.Version)
	assert.True(t, want.SavedAt.Equal(got.SavedAt))
	assert.True(t, want.StartingCash.Equal(got.StartingCash))
	assert.True(t, want.Cash.Equal(got.Cash), "cash %s != %s", want.Cash, got.Cash)
	assert.True(t, want.RealizedPL.Equal(got.RealizedPL))
	assert.True(t, want.Commissions.Equal(got.Commissions))

	require.Len(t, got.Positions, len(want.Positions))
	for i, p := range want.Positions {
		g := got.Positions[i]
		assert.Equal(t, p.Symbol, g.Symbol)
		assert.Equal(t, p.Quantity, g.Quantity)
		assert.True(t, p.AveragePrice.Equal(g.AveragePrice), p.Symbol)
		assert.True(t, p.TotalCost.Equal(g.TotalCost), p.Symbol)
		assert.True(t, p.CurrentPrice.Equal(g.CurrentPrice), p.Symbol)
	}

	require.Len(t, got.Trades, len(want.Trades))
	for i, tr := range want.Trades {
		g := got.Trades[i]
		assert.Equal(t, tr.ID, g.ID)
		assert.Equal(t, tr.Side, g.Side)
		assert.Equal(t, tr.Type, g.Type)
		assert.Equal(t, tr.Status, g.Status)
		assert.True(t, tr.Price.Equal(g.Price))
		assert.True(t, tr.Total.Equal(g.Total))
		assert.True(t, tr.Time.Equal(g.Time))
		assert.Equal(t, tr.LimitPrice == nil, g.LimitPrice == nil)
		if tr.LimitPrice != nil {
			assert.True(t, tr.LimitPrice.Equal(*g.LimitPrice))
		}
		assert.Nil(t, g.StopPrice)
	}

	require.Len(t, got.Watchlist, len(want.Watchlist))
	for i, w := range want.Watchlist {
		assert.Equal(t, w.Symbol, got.Watchlist[i].Symbol)
	}
	assert.Len(t, got.History, len(want.History))
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	snap := sampleSnapshot(t)
	require.NoError(t, s.Save(ctx, snap))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assertSameSnapshot(t, snap, got)

	// a later save replaces everything
	smaller := snap
	smaller.Positions = snap.Positions[:1]
	smaller.Trades = nil
	smaller.Watchlist = nil
	require.NoError(t, s.Save(ctx, smaller))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Positions, 1)
	assert.Empty(t, got.Trades)
	assert.Empty(t, got.Watchlist)

	// the restored engine matches the one that produced the snapshot
	e := sim.NewEngine(d("1"), sim.DefaultRates(), s)
	require.NoError(t, s.Save(ctx, snap))
	require.NoError(t, e.Load(ctx))
	assert.True(t, e.Portfolio().Cash.Equal(snap.Cash))
	assert.Len(t, e.Trades(journal.Filter{}), len(snap.Trades))
}

func TestMemory(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	testStore(t, m)
	assert.Equal(t, 3, m.Saves())
}

func TestFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "portfolio.json")
	testStore(t, NewFile(path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFile(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFileDecimalsAreStrings(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "portfolio.json")
	snap := sim.Snapshot{Version: sim.SnapshotVersion, Cash: d("998497.75")}
	require.NoError(t, NewFile(path).Save(context.Background(), snap))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cash": "998497.75"`)
}

func TestSQLite(t *testing.T) {
	t.Parallel()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "papertrader.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	testStore(t, s)
}

func TestSQLiteReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "papertrader.db")
	ctx := context.Background()
	snap := sampleSnapshot(t)

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, snap))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assertSameSnapshot(t, snap, got)
}

func TestSQLiteSaveCancelled(t *testing.T) {
	t.Parallel()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "papertrader.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Save(ctx, sampleSnapshot(t)))

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, typ := range []string{TypeMemory, TypeFile, TypeSQLite} {
		s, err := Open(typ, filepath.Join(dir, "p."+typ))
		require.NoError(t, err, typ)
		assert.NoError(t, s.Close())
	}

	_, err := Open("s3", "")
	assert.Error(t, err)
}
