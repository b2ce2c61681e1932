package memory

import (
	"context"
	"maps"
	"sync"

	"kppsim/internal/app/ports"
	"kppsim/internal/domain/plant"
)

const defaultRetain = 10000

type Store struct {
	mu        sync.RWMutex
	retain    int
	runs      map[string]ports.RunRecord
	snapshots map[string][]plant.Snapshot
	faults    map[string][]ports.FaultEvent
}

// NewStore keeps at most retain snapshots per run, newest last.
func NewStore(retain int) *Store {
	if retain <= 0 {
		retain = defaultRetain
	}
	return &Store{
		retain:    retain,
		runs:      make(map[string]ports.RunRecord),
		snapshots: make(map[string][]plant.Snapshot),
		faults:    make(map[string][]ports.FaultEvent),
	}
}

type txKey struct{}

// TxManager serialises a batch against the store and restores the previous
// contents when fn fails.
type TxManager struct {
	store *Store
}

func NewTxManager(store *Store) TxManager {
	return TxManager{store: store}
}

func (t TxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, snapshots, faults := maps.Clone(s.runs), maps.Clone(s.snapshots), maps.Clone(s.faults)
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.runs, s.snapshots, s.faults = runs, snapshots, faults
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// read and write take the store lock unless ctx already runs inside
// TxManager.RunInTx, which holds it.
func (s *Store) read(ctx context.Context, fn func()) {
	if !inTx(ctx) {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	fn()
}

func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn()
}

func tail[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
