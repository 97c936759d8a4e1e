// Package store holds the snapshot stores the engine persists through.
package store

import (
	"fmt"

	"github.com/rustyeddy/papertrader/sim"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = sim.ErrNoSnapshot

const (
	TypeMemory = "memory"
	TypeFile   = "file"
	TypeSQLite = "sqlite"
)

// Store is a SnapshotStore that may hold an open resource.
type Store interface {
	sim.SnapshotStore
	Close() error
}

// Open builds the store named by typ. path is ignored for memory stores.
func Open(typ, path string) (Store, error) {
	switch typ {
	case TypeMemory:
		return NewMemory(), nil
	case TypeFile:
		return NewFile(path), nil
	case TypeSQLite:
		return NewSQLite(path)
	}
	return nil, fmt.Errorf("open store: unknown type %q", typ)
}
