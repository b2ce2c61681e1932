package ports

import (
	"context"

	"kppsim/internal/domain/plant"
)

// SnapshotSink receives drained snapshot batches, oldest first.
type SnapshotSink interface {
	Name() string
	Publish(ctx context.Context, batch []plant.Snapshot) error
}
