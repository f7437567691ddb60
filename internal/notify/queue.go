package notify

import "sync"

// Queue is a bounded FIFO of frame notifications that evicts the oldest
// record instead of blocking the producer.
//
// Exactly one producer (the driver callback) and one consumer (the Worker)
// are expected. All state is guarded by mu; the consumer waits on cond, which
// is signalled by every Push and broadcast by RequestStop.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	// Circular storage, allocated at Reset so Push never allocates.
	records []Record
	head    int
	count   int

	overflowed    bool
	stopRequested bool
	dropped       uint64
}

// NewQueue creates a queue with the given capacity. Capacities below one are
// raised to one.
func NewQueue(capacity int) *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	q.records = make([]Record, clampCapacity(capacity))
	return q
}

func clampCapacity(capacity int) int {
	if capacity < 1 {
		return 1
	}
	return capacity
}

// Reset empties the queue, clears the overflow and stop flags and sets a new
// capacity. It must not race with an active producer/consumer pair.
func (q *Queue) Reset(capacity int) {
	capacity = clampCapacity(capacity)

	q.mu.Lock()
	defer q.mu.Unlock()

	if capacity != len(q.records) {
		q.records = make([]Record, capacity)
	} else {
		clear(q.records)
	}
	q.head = 0
	q.count = 0
	q.overflowed = false
	q.stopRequested = false
	q.dropped = 0
}

// Push appends a record. When the queue is full the oldest record is
// discarded and the overflow flag is set. Push never blocks on the consumer.
func (q *Queue) Push(r Record) {
	q.mu.Lock()

	size := len(q.records)
	if q.count == size {
		// Drop the oldest; its ring buffer view is simply released.
		q.records[q.head] = Record{}
		q.head = (q.head + 1) % size
		q.count--
		q.overflowed = true
		q.dropped++
	}

	q.records[(q.head+q.count)%size] = r
	q.count++

	q.mu.Unlock()
	q.cond.Signal()
}

// WaitAndPop blocks until a record is available or a stop is requested.
// It returns the oldest record and true, or a zero Record and false once
// stop has been requested. A pending stop takes precedence over queued records.
func (q *Queue) WaitAndPop() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.stopRequested {
		q.cond.Wait()
	}

	if q.stopRequested {
		return Record{}, false
	}

	r := q.records[q.head]
	q.records[q.head] = Record{}
	q.head = (q.head + 1) % len(q.records)
	q.count--

	return r, true
}

// RequestStop wakes any blocked WaitAndPop and makes it, and every later
// call, return immediately until the next Reset. Idempotent.
func (q *Queue) RequestStop() {
	q.mu.Lock()
	q.stopRequested = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Capacity returns the maximum number of queued records.
func (q *Queue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Len returns the number of queued records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// OverflowObserved reports whether any record was evicted since the last Reset.
func (q *Queue) OverflowObserved() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overflowed
}

// Dropped returns the number of records evicted since the last Reset.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// StopRequested reports whether RequestStop was called since the last Reset.
func (q *Queue) StopRequested() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopRequested
}
