package inmemory

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const tickWindow = 256

type Snapshot struct {
	TickTotal       uint64            `json:"tick_total"`
	TickErrors      uint64            `json:"tick_errors"`
	SnapshotsDrop   uint64            `json:"snapshots_dropped"`
	TickMeanMicros  float64           `json:"tick_mean_us"`
	TickP95Micros   float64           `json:"tick_p95_us"`
	FaultsByKind    map[string]uint64 `json:"faults_by_kind"`
	PublishedBySink map[string]uint64 `json:"published_by_sink"`
	ErrorsBySink    map[string]uint64 `json:"errors_by_sink"`
}

type Recorder struct {
	mu         sync.Mutex
	ticks      uint64
	tickErrors uint64
	dropped    uint64
	window     []float64
	next       int
	faults     map[string]uint64
	published  map[string]uint64
	sinkErrors map[string]uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		window:     make([]float64, 0, tickWindow),
		faults:     map[string]uint64{},
		published:  map[string]uint64{},
		sinkErrors: map[string]uint64{},
	}
}

func (r *Recorder) RecordTick(elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
	us := float64(elapsed) / float64(time.Microsecond)
	if len(r.window) < tickWindow {
		r.window = append(r.window, us)
		return
	}
	r.window[r.next] = us
	r.next = (r.next + 1) % tickWindow
}

func (r *Recorder) RecordTickError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickErrors++
}

func (r *Recorder) RecordDropped(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped += uint64(n)
}

func (r *Recorder) RecordFault(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[kind]++
}

func (r *Recorder) RecordPublished(sink string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published[sink] += uint64(n)
}

func (r *Recorder) RecordSinkError(sink string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinkErrors[sink]++
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		TickTotal:       r.ticks,
		TickErrors:      r.tickErrors,
		SnapshotsDrop:   r.dropped,
		FaultsByKind:    copyCounts(r.faults),
		PublishedBySink: copyCounts(r.published),
		ErrorsBySink:    copyCounts(r.sinkErrors),
	}
	if len(r.window) > 0 {
		sorted := append([]float64(nil), r.window...)
		sort.Float64s(sorted)
		out.TickMeanMicros = stat.Mean(sorted, nil)
		out.TickP95Micros = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
	return out
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
