package publish

import (
	"context"
	"log/slog"
	"time"

	"kppsim/internal/app/ports"
	"kppsim/internal/app/queue"
	"kppsim/internal/domain/plant"
)

const (
	defaultBatchSize   = 100
	defaultSinkTimeout = 5 * time.Second
)

// Publisher moves snapshots from the engine queue to every sink. A failing
// sink is logged and counted; it never blocks the others or the engine.
type Publisher struct {
	Queue       *queue.Queue[plant.Snapshot]
	Sinks       []ports.SnapshotSink
	Logger      *slog.Logger
	Metrics     ports.PublishMetrics
	BatchSize   int
	SinkTimeout time.Duration
}

// Run drains the queue whenever it is signalled until ctx is cancelled, then
// flushes what is left.
func (p Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), p.sinkTimeout())
			p.Flush(flushCtx)
			cancel()
			return
		case <-p.Queue.Notify():
			p.Flush(ctx)
		}
	}
}

// Flush publishes everything currently queued and returns the number of
// snapshots drained.
func (p Publisher) Flush(ctx context.Context) int {
	total := 0
	for {
		batch := p.Queue.Drain(p.batchSize())
		if len(batch) == 0 {
			return total
		}
		total += len(batch)
		for _, sink := range p.Sinks {
			p.publish(ctx, sink, batch)
		}
	}
}

func (p Publisher) publish(ctx context.Context, sink ports.SnapshotSink, batch []plant.Snapshot) {
	sinkCtx, cancel := context.WithTimeout(ctx, p.sinkTimeout())
	defer cancel()
	if err := sink.Publish(sinkCtx, batch); err != nil {
		p.logger().Warn("sink publish failed", "sink", sink.Name(), "batch", len(batch), "err", err)
		if p.Metrics != nil {
			p.Metrics.RecordSinkError(sink.Name())
		}
		return
	}
	if p.Metrics != nil {
		p.Metrics.RecordPublished(sink.Name(), len(batch))
	}
}

func (p Publisher) batchSize() int {
	if p.BatchSize <= 0 {
		return defaultBatchSize
	}
	return p.BatchSize
}

func (p Publisher) sinkTimeout() time.Duration {
	if p.SinkTimeout <= 0 {
		return defaultSinkTimeout
	}
	return p.SinkTimeout
}

func (p Publisher) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
