package ports

import (
	"context"
	"errors"
	"time"

	"kppsim/internal/domain/plant"
)

var (
	// ErrNotFound is returned when a run or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a run ID is already registered.
	ErrConflict = errors.New("conflict")
)

type RunRecord struct {
	RunID     string
	Params    map[string]any
	StartedAt time.Time
	StoppedAt *time.Time
}

type FaultEvent struct {
	RunID   string
	Tick    int64
	SimTime float64
	Kind    string
	From    string
}

type RunRepository interface {
	Create(ctx context.Context, run RunRecord) error
	MarkStopped(ctx context.Context, runID string, at time.Time) error
	Get(ctx context.Context, runID string) (RunRecord, error)
}

type SnapshotRepository interface {
	Append(ctx context.Context, snapshots []plant.Snapshot) error
	ListByRun(ctx context.Context, runID string, limit int) ([]plant.Snapshot, error)
}

type FaultRepository interface {
	Append(ctx context.Context, events []FaultEvent) error
	ListByRun(ctx context.Context, runID string, limit int) ([]FaultEvent, error)
}

// FaultEvents extracts the protection trips carried by a batch of snapshots.
func FaultEvents(snapshots []plant.Snapshot) []FaultEvent {
	var out []FaultEvent
	for _, s := range snapshots {
		for _, f := range s.NewFaults {
			out = append(out, FaultEvent{
				RunID:   s.RunID,
				Tick:    s.Tick,
				SimTime: f.Time,
				Kind:    string(f.Kind),
				From:    string(f.From),
			})
		}
	}
	return out
}

// TxManager runs fn so that every repository call made with the ctx it
// receives commits or rolls back together. Nested calls join the outer
// transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}
