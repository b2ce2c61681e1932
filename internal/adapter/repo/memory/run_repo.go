package memory

import (
	"context"
	"time"

	"kppsim/internal/app/ports"
)

type RunRepo struct {
	store *Store
}

func NewRunRepo(store *Store) RunRepo {
	return RunRepo{store: store}
}

func (r RunRepo) Create(ctx context.Context, run ports.RunRecord) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.runs[run.RunID]; ok {
			return ports.ErrConflict
		}
		r.store.runs[run.RunID] = run
		return nil
	})
}

func (r RunRepo) MarkStopped(ctx context.Context, runID string, at time.Time) error {
	return r.store.write(ctx, func() error {
		run, ok := r.store.runs[runID]
		if !ok {
			return ports.ErrNotFound
		}
		run.StoppedAt = &at
		r.store.runs[runID] = run
		return nil
	})
}

func (r RunRepo) Get(ctx context.Context, runID string) (ports.RunRecord, error) {
	var (
		run ports.RunRecord
		ok  bool
	)
	r.store.read(ctx, func() {
		run, ok = r.store.runs[runID]
	})
	if !ok {
		return ports.RunRecord{}, ports.ErrNotFound
	}
	return run, nil
}
