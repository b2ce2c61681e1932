package memory

import (
	"context"

	"kppsim/internal/domain/plant"
)

type SnapshotRepo struct {
	store *Store
}

func NewSnapshotRepo(store *Store) SnapshotRepo {
	return SnapshotRepo{store: store}
}

func (r SnapshotRepo) Append(ctx context.Context, batch []plant.Snapshot) error {
	return r.store.write(ctx, func() error {
		for _, s := range batch {
			rows := append(r.store.snapshots[s.RunID], s)
			if len(rows) > r.store.retain {
				rows = rows[len(rows)-r.store.retain:]
			}
			r.store.snapshots[s.RunID] = rows
		}
		return nil
	})
}

// ListByRun returns up to limit of the newest snapshots, oldest first.
func (r SnapshotRepo) ListByRun(ctx context.Context, runID string, limit int) ([]plant.Snapshot, error) {
	var out []plant.Snapshot
	r.store.read(ctx, func() {
		out = tail(r.store.snapshots[runID], limit)
	})
	return out, nil
}
