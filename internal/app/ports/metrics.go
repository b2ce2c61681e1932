package ports

import "time"

type EngineMetrics interface {
	RecordTick(elapsed time.Duration)
	RecordTickError()
	RecordDropped(n int)
	RecordFault(kind string)
}

type PublishMetrics interface {
	RecordPublished(sink string, n int)
	RecordSinkError(sink string)
}
