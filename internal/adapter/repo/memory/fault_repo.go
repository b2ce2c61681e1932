package memory

import (
	"context"

	"kppsim/internal/app/ports"
)

type FaultRepo struct {
	store *Store
}

func NewFaultRepo(store *Store) FaultRepo {
	return FaultRepo{store: store}
}

func (r FaultRepo) Append(ctx context.Context, events []ports.FaultEvent) error {
	return r.store.write(ctx, func() error {
		for _, e := range events {
			r.store.faults[e.RunID] = append(r.store.faults[e.RunID], e)
		}
		return nil
	})
}

func (r FaultRepo) ListByRun(ctx context.Context, runID string, limit int) ([]ports.FaultEvent, error) {
	var out []ports.FaultEvent
	r.store.read(ctx, func() {
		out = tail(r.store.faults[runID], limit)
	})
	return out, nil
}
