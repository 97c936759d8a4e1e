package sim

import "time"

type WatchItem struct {
	Symbol  string    `json:"symbol"`
	AddedAt time.Time `json:"added_at"`
}

// Watchlist is an insertion-ordered set of symbols.
type Watchlist struct {
	items []WatchItem
	index map[string]int
}

func NewWatchlist() *Watchlist {
	return &Watchlist{index: make(map[string]int)}
}

// Add reports whether symbol was new. Re-adding keeps the original AddedAt.
func (w *Watchlist) Add(symbol string, at time.Time) bool {
	if _, ok := w.index[symbol]; ok {
		return false
	}
	w.index[symbol] = len(w.items)
	w.items = append(w.items, WatchItem{Symbol: symbol, AddedAt: at})
	return true
}

func (w *Watchlist) Remove(symbol string) bool {
	i, ok := w.index[symbol]
	if !ok {
		return false
	}
	w.items = append(w.items[:i], w.items[i+1:]...)
	delete(w.index, symbol)
	for j := i; j < len(w.items); j++ {
		w.index[w.items[j].Symbol] = j
	}
	return true
}

func (w *Watchlist) Contains(symbol string) bool {
	_, ok := w.index[symbol]
	return ok
}

func (w *Watchlist) Items() []WatchItem {
	return append([]WatchItem(nil), w.items...)
}

func (w *Watchlist) restore(items []WatchItem) {
	w.items = nil
	w.index = make(map[string]int, len(items))
	for _, it := range items {
		w.Add(it.Symbol, it.AddedAt)
	}
}
