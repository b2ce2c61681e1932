package queue

import "sync"

// Queue is a bounded FIFO that never blocks the producer. When full, Put
// evicts the oldest item to make room for the new one.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	size    int
	dropped uint64
	notify  chan struct{}
}

func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		items:  make([]T, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Put appends v and returns how many items were evicted to make room.
func (q *Queue[T]) Put(v T) int {
	q.mu.Lock()
	evicted := 0
	capacity := len(q.items)
	if q.size == capacity {
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % capacity
		q.size--
		q.dropped++
		evicted = 1
	}
	q.items[(q.head+q.size)%capacity] = v
	q.size++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return evicted
}

// Get removes and returns the oldest item.
func (q *Queue[T]) Get() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.size == 0 {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return v, true
}

// Drain removes up to limit items (all of them when limit <= 0), oldest first.
func (q *Queue[T]) Drain(limit int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, n)
	var zero T
	for i := 0; i < n; i++ {
		out[i] = q.items[q.head]
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
	}
	q.size -= n
	return out
}

// Items returns the queued items oldest first without removing them.
func (q *Queue[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, q.size)
	for i := range out {
		out[i] = q.items[(q.head+i)%len(q.items)]
	}
	return out
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *Queue[T]) Cap() int {
	return len(q.items)
}

func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Notify is signalled after Put. Signals coalesce, so a consumer must drain
// everything available each time it wakes.
func (q *Queue[T]) Notify() <-chan struct{} {
	return q.notify
}

func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.items)
	q.head = 0
	q.size = 0
}

// Resize changes the capacity, keeping the newest items that still fit.
func (q *Queue[T]) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if capacity == len(q.items) {
		return
	}
	items := make([]T, capacity)
	skip := 0
	if q.size > capacity {
		skip = q.size - capacity
		q.dropped += uint64(skip)
	}
	n := 0
	for i := skip; i < q.size; i++ {
		items[n] = q.items[(q.head+i)%len(q.items)]
		n++
	}
	q.items = items
	q.head = 0
	q.size = n
}
