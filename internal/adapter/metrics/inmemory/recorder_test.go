package inmemory

import (
	"testing"
	"time"
)

func TestRecorderSnapshot(t *testing.T) {
	r := NewRecorder()
	for i := 1; i <= 20; i++ {
		r.RecordTick(time.Duration(i) * time.Microsecond)
	}
	r.RecordTickError()
	r.RecordDropped(3)
	r.RecordFault("OVERCURRENT")
	r.RecordFault("OVERCURRENT")
	r.RecordFault("OVERSPEED")
	r.RecordPublished("nats", 10)
	r.RecordPublished("nats", 5)
	r.RecordSinkError("redis")

	s := r.Snapshot()
	if s.TickTotal != 20 || s.TickErrors != 1 || s.SnapshotsDrop != 3 {
		t.Fatalf("unexpected counters: %+v", s)
	}
	if s.TickMeanMicros != 10.5 {
		t.Fatalf("expected mean 10.5us, got %v", s.TickMeanMicros)
	}
	if s.TickP95Micros != 19 {
		t.Fatalf("expected p95 19us, got %v", s.TickP95Micros)
	}
	if s.FaultsByKind["OVERCURRENT"] != 2 || s.FaultsByKind["OVERSPEED"] != 1 {
		t.Fatalf("unexpected faults: %v", s.FaultsByKind)
	}
	if s.PublishedBySink["nats"] != 15 || s.ErrorsBySink["redis"] != 1 {
		t.Fatalf("unexpected sink counters: %v %v", s.PublishedBySink, s.ErrorsBySink)
	}
}

func TestRecorder_TickWindowIsBounded(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < tickWindow; i++ {
		r.RecordTick(time.Millisecond)
	}
	for i := 0; i < tickWindow; i++ {
		r.RecordTick(time.Microsecond)
	}
	s := r.Snapshot()
	if s.TickTotal != 2*tickWindow {
		t.Fatalf("expected %d ticks, got %d", 2*tickWindow, s.TickTotal)
	}
	if s.TickMeanMicros != 1 {
		t.Fatalf("old samples should have rotated out, mean=%v", s.TickMeanMicros)
	}
}
