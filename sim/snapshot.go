package sim

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/shopspring/decimal"
)

// SnapshotVersion is bumped whenever the Snapshot layout changes.
const SnapshotVersion = 1

// ErrNoSnapshot is returned by a SnapshotStore that has nothing saved yet.
var ErrNoSnapshot = errors.New("no snapshot")

// Snapshot is the complete persisted engine state. Derived position and
// portfolio fields are recomputed on load, never trusted.
type Snapshot struct {
	Version      int                      `json:"version"`
	SavedAt      time.Time                `json:"saved_at"`
	StartingCash decimal.Decimal          `json:"starting_cash"`
	Cash         decimal.Decimal          `json:"cash"`
	RealizedPL   decimal.Decimal          `json:"realized_pl"`
	Commissions  decimal.Decimal          `json:"commissions"`
	Positions    []Position               `json:"positions"`
	Trades       []journal.Trade          `json:"trades"`
	Watchlist    []WatchItem              `json:"watchlist"`
	History      []journal.EquitySnapshot `json:"history"`
}

// SnapshotStore loads and saves engine state. The engine does not care
// about the medium.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}
