package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kppsim/internal/app/ports"
	"kppsim/internal/domain/plant"
)

// StoreSink persists snapshot batches and the faults they carry in one
// transaction, registering each run the first time it is seen.
type StoreSink struct {
	TxManager ports.TxManager
	Runs      ports.RunRepository
	Snapshots ports.SnapshotRepository
	Faults    ports.FaultRepository
	// Params supplies the parameter set recorded with a new run.
	Params func() (map[string]any, error)
	Now    func() time.Time
}

func (s StoreSink) Name() string { return "store" }

func (s StoreSink) Publish(ctx context.Context, batch []plant.Snapshot) error {
	if len(batch) == 0 {
		return nil
	}
	return s.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		seen := map[string]bool{}
		for _, snap := range batch {
			if seen[snap.RunID] {
				continue
			}
			seen[snap.RunID] = true
			if err := s.ensureRun(txCtx, snap.RunID); err != nil {
				return err
			}
		}
		if err := s.Snapshots.Append(txCtx, batch); err != nil {
			return fmt.Errorf("append snapshots: %w", err)
		}
		if events := ports.FaultEvents(batch); len(events) > 0 {
			if err := s.Faults.Append(txCtx, events); err != nil {
				return fmt.Errorf("append faults: %w", err)
			}
		}
		return nil
	})
}

func (s StoreSink) ensureRun(ctx context.Context, runID string) error {
	_, err := s.Runs.Get(ctx, runID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("get run: %w", err)
	}
	run := ports.RunRecord{RunID: runID, StartedAt: s.now()}
	if s.Params != nil {
		p, err := s.Params()
		if err != nil {
			return fmt.Errorf("params for run: %w", err)
		}
		run.Params = p
	}
	if err := s.Runs.Create(ctx, run); err != nil && !errors.Is(err, ports.ErrConflict) {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s StoreSink) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}
