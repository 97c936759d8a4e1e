package store

import (
	"context"
	"sync"

	"github.com/rustyeddy/papertrader/sim"
)

// Memory keeps the last snapshot in process. Nothing survives a restart.
type Memory struct {
	mu    sync.Mutex
	snap  *sim.Snapshot
	saves int
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(ctx context.Context) (sim.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return sim.Snapshot{}, ErrNotFound
	}
	return *m.snap, nil
}

func (m *Memory) Save(ctx context.Context, s sim.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &s
	m.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
