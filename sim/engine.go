package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/internal/id"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/shopspring/decimal"
)

// maxHistory bounds the valuation history kept in memory and snapshots.
const maxHistory = 1000

// Engine executes orders against a single paper portfolio. Every
// mutation holds mu for its whole read-validate-mutate-save sequence, so
// two concurrent orders can never both pass a check against the same
// stale balance.
type Engine struct {
	mu           sync.Mutex
	rates        Rates
	startingCash decimal.Decimal
	acct         *Accountant
	ledger       *Ledger
	trades       *journal.Log
	watchlist    *Watchlist
	history      []journal.EquitySnapshot

	store    SnapshotStore
	recorder journal.Recorder
	log      *slog.Logger
	now      func() time.Time
	newID    func(time.Time) string
}

var _ broker.Broker = (*Engine)(nil)

// NewEngine creates an engine holding startingCash and no positions. A
// nil store disables persistence.
func NewEngine(startingCash decimal.Decimal, rates Rates, store SnapshotStore) *Engine {
	e := &Engine{
		rates:        rates,
		startingCash: startingCash,
		store:        store,
		log:          slog.Default(),
		now:          time.Now,
		newID:        id.At,
	}
	e.resetLocked()
	return e
}

// SetClock replaces the time source. Tests use it for stable timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// SetRecorder attaches an audit trail that sees every trade and valuation.
func (e *Engine) SetRecorder(r journal.Recorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = r
}

func (e *Engine) SetLogger(l *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = l
}

func (e *Engine) Rates() Rates { return e.rates }

func (e *Engine) StartingCash() decimal.Decimal { return e.startingCash }

// Quote prices an order without executing it.
func (e *Engine) Quote(req broker.OrderRequest, referencePrice decimal.Decimal) Fill {
	return e.rates.Calculate(req.Side, orderType(req.Type), req.Quantity, referencePrice)
}

// Execution is an order outcome together with the trade and portfolio as
// they stood right after it, read under the same lock as the fill.
type Execution struct {
	broker.Result
	Trade     *journal.Trade
	Portfolio Portfolio
}

// ExecuteOrder validates req against current cash and holdings and, when
// it passes, fills it at referencePrice. Rejections are reported in the
// Result and change nothing. The returned error is only about saving the
// snapshot after an accepted fill; the fill itself has already happened.
func (e *Engine) ExecuteOrder(ctx context.Context, req broker.OrderRequest, referencePrice decimal.Decimal) (broker.Result, error) {
	x, err := e.Execute(ctx, req, referencePrice)
	return x.Result, err
}

// Execute is ExecuteOrder returning the resulting state too. Trade is nil
// for a rejected order.
func (e *Engine) Execute(ctx context.Context, req broker.OrderRequest, referencePrice decimal.Decimal) (Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req.Symbol = broker.NormalizeSymbol(req.Symbol)
	req.Type = orderType(req.Type)

	if r, ok := e.validateLocked(req, referencePrice); !ok {
		e.log.Debug("order rejected",
			"symbol", req.Symbol,
			"side", req.Side,
			"type", req.Type,
			"quantity", req.Quantity,
			"reason", r,
		)
		return Execution{Result: broker.Rejected(r), Portfolio: e.acct.View()}, nil
	}

	now := e.now()
	fill := e.rates.Calculate(req.Side, req.Type, req.Quantity, referencePrice)

	t := journal.Trade{
		ID:         e.newID(now),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Price:      fill.Price,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
		Status:     broker.Filled,
		Time:       now,
		Commission: fill.Commission,
		Total:      fill.Total,
	}

	switch req.Side {
	case broker.Buy:
		pos, err := e.ledger.ApplyBuy(req.Symbol, req.Quantity, fill.Price, fill.Notional, now)
		invariant(err == nil, "%v", err)
		invariant(pos.Quantity > 0, "position %s quantity %d", pos.Symbol, pos.Quantity)
		e.acct.Debit(fill.Total)

	case broker.Sell:
		e.acct.Credit(fill.Total)
		_, realized, _, err := e.ledger.ApplySell(req.Symbol, req.Quantity, fill.Price, now)
		invariant(err == nil, "%v", err)
		e.acct.Realize(realized)
		t.RealizedPL = realized
	}
	e.acct.Charge(fill.Commission)

	err := e.trades.Append(t)
	invariant(err == nil, "%v", err)

	p := e.recomputeLocked(now)

	e.log.Info("order filled",
		"trade_id", t.ID,
		"symbol", t.Symbol,
		"side", t.Side,
		"type", t.Type,
		"quantity", t.Quantity,
		"price", t.Price.String(),
		"commission", t.Commission.String(),
		"total", t.Total.String(),
		"cash", p.Cash.String(),
	)

	if e.recorder != nil {
		if err := e.recorder.RecordTrade(t); err != nil {
			e.log.Warn("record trade", "trade_id", t.ID, "err", err)
		}
	}

	x := Execution{Result: broker.Accepted(t.ID), Trade: &t, Portfolio: e.acct.View()}
	return x, e.saveLocked(ctx)
}

// validateLocked runs the checks in order and stops at the first failure.
func (e *Engine) validateLocked(req broker.OrderRequest, ref decimal.Decimal) (broker.Reason, bool) {
	if req.Quantity <= 0 {
		return broker.InvalidQuantity, false
	}
	if req.Symbol == "" || !req.Side.Valid() || !req.Type.Valid() {
		return broker.InvalidOrder, false
	}
	if !ref.IsPositive() {
		return broker.InvalidPrice, false
	}

	switch req.Side {
	case broker.Buy:
		fill := e.rates.Calculate(req.Side, req.Type, req.Quantity, ref)
		if fill.Total.GreaterThan(e.acct.Cash()) {
			return broker.InsufficientFunds, false
		}
	case broker.Sell:
		pos, ok := e.ledger.Get(req.Symbol)
		if !ok || pos.Quantity < req.Quantity {
			return broker.InsufficientShares, false
		}
		if e.rates.Calculate(req.Side, req.Type, req.Quantity, ref).Total.IsNegative() {
			return broker.FeesExceedProceeds, false
		}
	}

	switch req.Type {
	case broker.Limit:
		if req.LimitPrice == nil {
			return broker.MissingPriceParameter, false
		}
	case broker.Stop:
		if req.StopPrice == nil {
			return broker.MissingPriceParameter, false
		}
	}
	return "", true
}

// MarkPrice revalues the position in symbol at price. Symbols without a
// position are ignored.
func (e *Engine) MarkPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	return e.MarkPrices(ctx, map[string]decimal.Decimal{symbol: price})
}

// MarkPrices revalues several positions and saves once.
func (e *Engine) MarkPrices(ctx context.Context, prices map[string]decimal.Decimal) error {
	for sym, p := range prices {
		if !p.IsPositive() {
			return fmt.Errorf("mark price %s: %s is not positive", sym, p)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	marked := 0
	for sym, p := range prices {
		if e.ledger.MarkPrice(broker.NormalizeSymbol(sym), p, now) {
			marked++
		}
	}
	if marked == 0 {
		return nil
	}

	e.recomputeLocked(now)
	return e.saveLocked(ctx)
}

// AddToWatchlist reports whether symbol was added.
func (e *Engine) AddToWatchlist(ctx context.Context, symbol string) (bool, error) {
	symbol = broker.NormalizeSymbol(symbol)
	if symbol == "" {
		return false, fmt.Errorf("add to watchlist: empty symbol")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.watchlist.Add(symbol, e.now()) {
		return false, nil
	}
	return true, e.saveLocked(ctx)
}

// RemoveFromWatchlist reports whether symbol was present.
func (e *Engine) RemoveFromWatchlist(ctx context.Context, symbol string) (bool, error) {
	symbol = broker.NormalizeSymbol(symbol)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.watchlist.Remove(symbol) {
		return false, nil
	}
	return true, e.saveLocked(ctx)
}

// Reset returns the portfolio to its starting cash and clears positions,
// trades and history. The watchlist is kept.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	watch := e.watchlist
	e.resetLocked()
	e.watchlist = watch

	e.log.Info("portfolio reset", "cash", e.startingCash.String())
	return e.saveLocked(ctx)
}

// Load replaces the engine state with the stored snapshot. A store with
// nothing saved leaves the fresh state untouched.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	s, err := e.store.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.restoreLocked(s)
}

// Restore replaces the engine state with s.
func (e *Engine) Restore(s Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.restoreLocked(s)
}

func (e *Engine) restoreLocked(s Snapshot) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("restore snapshot: unsupported version %d", s.Version)
	}

	acct := NewAccountant(s.Cash)
	if err := acct.restore(s.Cash, s.RealizedPL, s.Commissions); err != nil {
		return err
	}
	ledger := NewLedger()
	if err := ledger.restore(s.Positions); err != nil {
		return err
	}
	trades := journal.NewLog()
	for _, t := range s.Trades {
		if err := trades.Append(t); err != nil {
			return fmt.Errorf("restore trades: %w", err)
		}
	}
	watch := NewWatchlist()
	watch.restore(s.Watchlist)

	if s.StartingCash.IsPositive() {
		e.startingCash = s.StartingCash
	}
	e.acct = acct
	e.ledger = ledger
	e.trades = trades
	e.watchlist = watch
	e.history = append([]journal.EquitySnapshot(nil), s.History...)
	e.acct.Recompute(e.ledger, s.SavedAt)
	return nil
}

// Snapshot returns a copy of the full engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) Portfolio() Portfolio {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct.View()
}

func (e *Engine) Position(symbol string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Get(broker.NormalizeSymbol(symbol))
}

// Symbols returns the symbols with open positions.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Symbols()
}

// Trades lists the journal, most recent first.
func (e *Engine) Trades(f journal.Filter) []journal.Trade {
	f.Symbol = broker.NormalizeSymbol(f.Symbol)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trades.List(f)
}

func (e *Engine) Trade(tradeID string) (journal.Trade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trades.Get(tradeID)
}

func (e *Engine) Watchlist() []WatchItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.watchlist.Items()
}

// History returns the valuation recorded after each mutation, oldest first.
func (e *Engine) History() []journal.EquitySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]journal.EquitySnapshot(nil), e.history...)
}

func (e *Engine) resetLocked() {
	e.acct = NewAccountant(e.startingCash)
	e.ledger = NewLedger()
	e.trades = journal.NewLog()
	e.watchlist = NewWatchlist()
	e.history = nil
	e.acct.Recompute(e.ledger, time.Time{})
}

// recomputeLocked refreshes the aggregate view and appends it to history.
func (e *Engine) recomputeLocked(at time.Time) Portfolio {
	p := e.acct.Recompute(e.ledger, at)
	invariant(!p.Cash.IsNegative(), "cash %s is negative", p.Cash)
	invariant(p.TotalValue.Equal(p.Cash.Add(p.PositionsValue)), "total value %s != cash %s + positions %s", p.TotalValue, p.Cash, p.PositionsValue)

	snap := journal.EquitySnapshot{
		Time:           at,
		Cash:           p.Cash,
		PositionsValue: p.PositionsValue,
		TotalValue:     p.TotalValue,
		TotalPL:        p.TotalPL,
	}
	e.history = append(e.history, snap)
	if len(e.history) > maxHistory {
		e.history = append([]journal.EquitySnapshot(nil), e.history[len(e.history)-maxHistory:]...)
	}

	if e.recorder != nil {
		if err := e.recorder.RecordEquity(snap); err != nil {
			e.log.Warn("record equity", "err", err)
		}
	}
	return p
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Version:      SnapshotVersion,
		SavedAt:      e.now(),
		StartingCash: e.startingCash,
		Cash:         e.acct.cash,
		RealizedPL:   e.acct.realized,
		Commissions:  e.acct.commissions,
		Positions:    e.ledger.Positions(),
		Trades:       e.trades.Chronological(),
		Watchlist:    e.watchlist.Items(),
		History:      append([]journal.EquitySnapshot(nil), e.history...),
	}
}

func (e *Engine) saveLocked(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Save(ctx, e.snapshotLocked()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// orderType treats an unset type as a market order.
func orderType(t broker.OrderType) broker.OrderType {
	if t == "" {
		return broker.Market
	}
	return t
}
