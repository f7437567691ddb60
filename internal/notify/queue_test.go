package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/smazurov/framenotify/internal/ringbuf"
)

func testRecord(t *testing.T, buf *ringbuf.Buffer, frameNr uint64) Record {
	t.Helper()
	view, err := buf.Write([]byte{byte(frameNr)})
	if err != nil {
		t.Fatalf("ring buffer write failed: %v", err)
	}
	return NewRecord(Metadata{
		FrameNr:   frameNr,
		Timestamp: time.Unix(0, int64(frameNr)*int64(time.Millisecond)),
		ROI:       Region{Width: 64, Height: 32},
		Exposure:  10 * time.Millisecond,
		Flags:     FlagTriggered,
	}, view)
}

func newTestBuffer(t *testing.T, slots int) *ringbuf.Buffer {
	t.Helper()
	buf, err := ringbuf.New(slots, 1)
	if err != nil {
		t.Fatalf("ringbuf.New failed: %v", err)
	}
	return buf
}

func TestQueueOverflowKeepsNewest(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushes   int
	}{
		{"one over", 3, 4},
		{"many over", 4, 50},
		{"capacity one", 1, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := newTestBuffer(t, tt.pushes+1)
			q := NewQueue(tt.capacity)

			for i := 1; i <= tt.pushes; i++ {
				q.Push(testRecord(t, buf, uint64(i)))
			}

			if !q.OverflowObserved() {
				t.Error("expected OverflowObserved after exceeding capacity")
			}
			if q.Len() != tt.capacity {
				t.Fatalf("Len() = %d, want %d", q.Len(), tt.capacity)
			}
			if got, want := q.Dropped(), uint64(tt.pushes-tt.capacity); got != want {
				t.Errorf("Dropped() = %d, want %d", got, want)
			}

			first := uint64(tt.pushes - tt.capacity + 1)
			for want := first; want <= uint64(tt.pushes); want++ {
				r, ok := q.WaitAndPop()
				if !ok {
					t.Fatal("WaitAndPop returned no record")
				}
				if r.Metadata().FrameNr != want {
					t.Errorf("popped frame %d, want %d", r.Metadata().FrameNr, want)
				}
			}
		})
	}
}

func TestQueueCapacityThreeScenario(t *testing.T) {
	buf := newTestBuffer(t, 8)
	q := NewQueue(3)

	for i := uint64(1); i <= 5; i++ {
		q.Push(testRecord(t, buf, i))
	}

	if !q.OverflowObserved() {
		t.Fatal("expected OverflowObserved")
	}

	for _, want := range []uint64{3, 4, 5} {
		r, ok := q.WaitAndPop()
		if !ok {
			t.Fatal("WaitAndPop returned no record")
		}
		if r.Metadata().FrameNr != want {
			t.Errorf("popped frame %d, want %d", r.Metadata().FrameNr, want)
		}
	}
}

func TestQueueNoOverflowWithinCapacity(t *testing.T) {
	buf := newTestBuffer(t, 16)
	q := NewQueue(4)

	// Interleave pushes and pops without ever exceeding capacity in total.
	q.Push(testRecord(t, buf, 1))
	q.Push(testRecord(t, buf, 2))
	if r, _ := q.WaitAndPop(); r.Metadata().FrameNr != 1 {
		t.Errorf("popped frame %d, want 1", r.Metadata().FrameNr)
	}
	q.Push(testRecord(t, buf, 3))
	q.Push(testRecord(t, buf, 4))

	if q.OverflowObserved() {
		t.Error("OverflowObserved should stay false")
	}
	if q.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", q.Dropped())
	}
	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}
}

func TestQueueRoundTrip(t *testing.T) {
	buf := newTestBuffer(t, 8)
	q := NewQueue(5)

	pushed := make([]Record, 0, 5)
	for i := uint64(1); i <= 5; i++ {
		r := testRecord(t, buf, i)
		pushed = append(pushed, r)
		q.Push(r)
	}

	for i, want := range pushed {
		got, ok := q.WaitAndPop()
		if !ok {
			t.Fatalf("pop %d: no record", i)
		}
		if got.Metadata() != want.Metadata() {
			t.Errorf("pop %d: metadata %+v, want %+v", i, got.Metadata(), want.Metadata())
		}
		if got.Data() != want.Data() {
			t.Errorf("pop %d: data reference changed", i)
		}
	}

	if q.OverflowObserved() {
		t.Error("OverflowObserved should be false")
	}
}

func TestQueueWaitAndPopWakesOnPush(t *testing.T) {
	buf := newTestBuffer(t, 4)
	q := NewQueue(2)
	want := testRecord(t, buf, 42)

	result := make(chan Record, 1)
	go func() {
		r, ok := q.WaitAndPop()
		if ok {
			result <- r
		}
		close(result)
	}()

	select {
	case <-result:
		t.Fatal("WaitAndPop returned before anything was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	pushedAt := time.Now()
	q.Push(want)

	select {
	case got, ok := <-result:
		if !ok {
			t.Fatal("WaitAndPop returned no record")
		}
		if got.Data() != want.Data() || got.Metadata() != want.Metadata() {
			t.Error("WaitAndPop returned a different record")
		}
		if elapsed := time.Since(pushedAt); elapsed > time.Second {
			t.Errorf("WaitAndPop took %v to wake", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAndPop did not wake after Push")
	}
}

func TestQueueRequestStopWakesWaiter(t *testing.T) {
	q := NewQueue(2)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.WaitAndPop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.RequestStop()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitAndPop should return false after RequestStop")
		}
	case <-time.After(time.Second):
		t.Fatal("RequestStop did not wake WaitAndPop")
	}

	// Later calls return immediately.
	for i := 0; i < 3; i++ {
		start := time.Now()
		if _, ok := q.WaitAndPop(); ok {
			t.Error("WaitAndPop after stop should return false")
		}
		if time.Since(start) > 100*time.Millisecond {
			t.Error("WaitAndPop after stop should not block")
		}
	}

	// Idempotent.
	q.RequestStop()
	if !q.StopRequested() {
		t.Error("StopRequested should be true")
	}
}

func TestQueueStopTakesPrecedence(t *testing.T) {
	buf := newTestBuffer(t, 4)
	q := NewQueue(4)

	q.Push(testRecord(t, buf, 1))
	q.RequestStop()

	if _, ok := q.WaitAndPop(); ok {
		t.Error("pending stop should win over queued records")
	}
}

func TestQueueReset(t *testing.T) {
	buf := newTestBuffer(t, 8)
	q := NewQueue(2)

	for i := uint64(1); i <= 4; i++ {
		q.Push(testRecord(t, buf, i))
	}
	q.RequestStop()

	q.Reset(5)

	if q.Capacity() != 5 {
		t.Errorf("Capacity() = %d, want 5", q.Capacity())
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if q.OverflowObserved() {
		t.Error("Reset should clear OverflowObserved")
	}
	if q.StopRequested() {
		t.Error("Reset should clear the stop request")
	}
	if q.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", q.Dropped())
	}

	q.Push(testRecord(t, buf, 9))
	r, ok := q.WaitAndPop()
	if !ok || r.Metadata().FrameNr != 9 {
		t.Errorf("after Reset popped %d/%v, want frame 9", r.Metadata().FrameNr, ok)
	}
}

func TestQueueCapacityClamped(t *testing.T) {
	q := NewQueue(0)
	if q.Capacity() != 1 {
		t.Errorf("Capacity() = %d, want 1", q.Capacity())
	}

	q.Reset(-3)
	if q.Capacity() != 1 {
		t.Errorf("Capacity() after Reset(-3) = %d, want 1", q.Capacity())
	}
}

func TestQueueAccessorsConcurrentWithPush(t *testing.T) {
	buf := newTestBuffer(t, 64)
	q := NewQueue(8)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= 1000; i++ {
			view, _ := buf.Write([]byte{byte(i)})
			q.Push(NewRecord(Metadata{FrameNr: i}, view))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if q.Len() > q.Capacity() {
				t.Error("Len exceeded Capacity")
				return
			}
			_ = q.OverflowObserved()
		}
	}()
	wg.Wait()

	if !q.OverflowObserved() {
		t.Error("expected overflow after 1000 pushes into capacity 8")
	}
}
