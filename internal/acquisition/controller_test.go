package acquisition

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smazurov/framenotify/internal/events"
	"github.com/smazurov/framenotify/internal/logging"
	"github.com/smazurov/framenotify/internal/metrics"
	"github.com/smazurov/framenotify/internal/notify"
	"github.com/smazurov/framenotify/internal/ringbuf"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(t *testing.T, cameraID string, slots int, forward notify.ForwardFunc, bus *events.Bus) *Controller {
	t.Helper()
	buf, err := ringbuf.New(slots, 4)
	if err != nil {
		t.Fatalf("ringbuf.New failed: %v", err)
	}
	c, err := NewController(&Options{
		CameraID:     cameraID,
		Buffer:       buf,
		Forward:      forward,
		Bus:          bus,
		Logger:       testLogger(),
		WorkerLogger: testLogger(),
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		metrics.DeleteCamera(cameraID)
	})
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func subscribe[T events.Event](t *testing.T, bus *events.Bus) chan T {
	t.Helper()
	ch := make(chan T, 16)
	unsub := bus.Subscribe(func(e T) { ch <- e })
	t.Cleanup(unsub)
	return ch
}

func frame(nr uint64) notify.Metadata {
	return notify.Metadata{FrameNr: nr, Timestamp: time.Now()}
}

func TestCapacityFor(t *testing.T) {
	tests := []struct {
		slots   int
		want    int
		wantErr bool
	}{
		{slots: 2, wantErr: true},
		{slots: 3, want: 1},
		{slots: 4, want: 2},
		{slots: 8, want: 6},
		{slots: 12, want: 9},
		{slots: 16, want: 12},
		{slots: 64, want: 48},
	}

	for _, tt := range tests {
		got, err := CapacityFor(tt.slots)
		if tt.wantErr {
			if !errors.Is(err, ErrBufferTooSmall) {
				t.Errorf("CapacityFor(%d): expected ErrBufferTooSmall, got %v", tt.slots, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("CapacityFor(%d) failed: %v", tt.slots, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CapacityFor(%d) = %d, want %d", tt.slots, got, tt.want)
		}
		if got >= tt.slots {
			t.Errorf("CapacityFor(%d) = %d, must stay below slot count", tt.slots, got)
		}
	}
}

func TestNewControllerValidation(t *testing.T) {
	buf, _ := ringbuf.New(16, 4)
	small, _ := ringbuf.New(2, 4)
	fwd := func(notify.Metadata, ringbuf.View) error { return nil }

	tests := []struct {
		name string
		opts *Options
	}{
		{"nil options", nil},
		{"missing forward", &Options{CameraID: "c", Buffer: buf}},
		{"missing buffer", &Options{CameraID: "c", Forward: fwd}},
		{"missing camera", &Options{Buffer: buf, Forward: fwd}},
		{"buffer too small", &Options{CameraID: "c", Buffer: small, Forward: fwd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewController(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSequenceLifecycle(t *testing.T) {
	bus := events.New()
	started := subscribe[events.SequenceStartedEvent](t, bus)
	stopped := subscribe[events.SequenceStoppedEvent](t, bus)

	var mu sync.Mutex
	var got []uint64
	c := newTestController(t, "lifecycle", 16, func(meta notify.Metadata, view ringbuf.View) error {
		if _, err := view.Bytes(); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, meta.FrameNr)
		mu.Unlock()
		return nil
	}, bus)

	info, err := c.StartSequence()
	if err != nil {
		t.Fatalf("StartSequence failed: %v", err)
	}
	if info.Capacity != 12 || info.BufferSlots != 16 || info.ID == "" {
		t.Errorf("unexpected sequence info %+v", info)
	}
	if _, err := c.StartSequence(); !errors.Is(err, ErrSequenceActive) {
		t.Errorf("second StartSequence: expected ErrSequenceActive, got %v", err)
	}

	for i := uint64(1); i <= 5; i++ {
		if err := c.Publish(frame(i), []byte{byte(i)}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	waitFor(t, "five forwards", func() bool { return c.Status().Forwarded == 5 })

	summary, err := c.StopSequence()
	if err != nil {
		t.Fatalf("StopSequence failed: %v", err)
	}
	if summary.ID != info.ID || summary.Received != 5 || summary.Forwarded != 5 || summary.Dropped != 0 || summary.Overflow {
		t.Errorf("unexpected summary %+v", summary)
	}

	mu.Lock()
	for i, nr := range got {
		if nr != uint64(i+1) {
			t.Errorf("forward %d got frame %d", i, nr)
		}
	}
	mu.Unlock()

	if _, err := c.StopSequence(); !errors.Is(err, ErrNoSequence) {
		t.Errorf("second StopSequence: expected ErrNoSequence, got %v", err)
	}

	select {
	case ev := <-started:
		if ev.SequenceID != info.ID || ev.Capacity != 12 {
			t.Errorf("unexpected start event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no SequenceStartedEvent")
	}
	select {
	case ev := <-stopped:
		if ev.Forwarded != 5 || ev.Overflow {
			t.Errorf("unexpected stop event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no SequenceStoppedEvent")
	}

	m := metrics.ForCamera("lifecycle")
	if v := testutil.ToFloat64(m.Received); v != 5 {
		t.Errorf("received metric = %v, want 5", v)
	}
	if v := testutil.ToFloat64(m.Forwarded); v != 5 {
		t.Errorf("forwarded metric = %v, want 5", v)
	}
	if v := testutil.ToFloat64(m.Sequences); v != 1 {
		t.Errorf("sequences metric = %v, want 1", v)
	}
}

func TestFramesOutsideSequenceIgnored(t *testing.T) {
	var calls atomic.Int32
	c := newTestController(t, "outside", 8, func(notify.Metadata, ringbuf.View) error {
		calls.Add(1)
		return nil
	}, nil)

	if err := c.Publish(frame(1), []byte{1}); !errors.Is(err, ErrNoSequence) {
		t.Errorf("Publish without sequence: expected ErrNoSequence, got %v", err)
	}
	view, _ := c.Buffer().Write([]byte{2})
	c.HandleFrame(frame(2), view)

	if c.Status().Received != 0 {
		t.Errorf("Received = %d, want 0", c.Status().Received)
	}
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Error("frame outside a sequence was forwarded")
	}
}

func TestOverflowDropsOldestAndReportsOnce(t *testing.T) {
	bus := events.New()
	dropped := subscribe[events.FramesDroppedEvent](t, bus)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var mu sync.Mutex
	var got []uint64

	c := newTestController(t, "overflow", 8, func(meta notify.Metadata, _ ringbuf.View) error {
		if meta.FrameNr == 1 {
			entered <- struct{}{}
			<-release
		}
		mu.Lock()
		got = append(got, meta.FrameNr)
		mu.Unlock()
		return nil
	}, bus)

	info, err := c.StartSequence()
	if err != nil {
		t.Fatalf("StartSequence failed: %v", err)
	}
	if info.Capacity != 6 {
		t.Fatalf("capacity = %d, want 6", info.Capacity)
	}

	_ = c.Publish(frame(1), []byte{1})
	<-entered

	// Frame 1 is in flight; 20 more arrive while the host is stalled.
	for i := uint64(2); i <= 21; i++ {
		if err := c.Publish(frame(i), []byte{byte(i)}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	st := c.Status()
	if !st.Overflow || st.Pending != 6 {
		t.Errorf("status overflow=%v pending=%d, want true/6", st.Overflow, st.Pending)
	}

	close(release)
	waitFor(t, "queue drain", func() bool { return c.Status().Forwarded == 7 })

	summary, err := c.StopSequence()
	if err != nil {
		t.Fatalf("StopSequence failed: %v", err)
	}
	if summary.Received != 21 || summary.Dropped != 14 || !summary.Overflow {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.Forwarded+summary.Dropped+uint64(summary.Pending) != summary.Received {
		t.Errorf("frames unaccounted for: %+v", summary)
	}

	mu.Lock()
	want := []uint64{1, 16, 17, 18, 19, 20, 21}
	if len(got) != len(want) {
		t.Fatalf("forwarded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("forward %d = frame %d, want %d", i, got[i], want[i])
		}
	}
	mu.Unlock()

	select {
	case ev := <-dropped:
		if ev.FrameNr != 16 || ev.Capacity != 6 || ev.SequenceID != info.ID {
			t.Errorf("unexpected drop event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no FramesDroppedEvent")
	}
	select {
	case ev := <-dropped:
		t.Errorf("drop reported twice: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	if v := testutil.ToFloat64(metrics.ForCamera("overflow").Dropped); v != 14 {
		t.Errorf("dropped metric = %v, want 14", v)
	}
}

func TestResizeDeferredWhileActive(t *testing.T) {
	bus := events.New()
	resized := subscribe[events.BufferResizedEvent](t, bus)

	c := newTestController(t, "resize-deferred", 16, func(notify.Metadata, ringbuf.View) error { return nil }, bus)

	if _, err := c.StartSequence(); err != nil {
		t.Fatalf("StartSequence failed: %v", err)
	}
	if err := c.SetBufferSlots(32); err != nil {
		t.Fatalf("SetBufferSlots failed: %v", err)
	}

	st := c.Status()
	if st.BufferSlots != 16 || st.PendingSlots != 32 || st.Capacity != 12 {
		t.Errorf("resize applied mid-sequence: %+v", st)
	}
	select {
	case ev := <-resized:
		t.Fatalf("resize event during sequence: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := c.StopSequence(); err != nil {
		t.Fatalf("StopSequence failed: %v", err)
	}
	info, err := c.StartSequence()
	if err != nil {
		t.Fatalf("StartSequence failed: %v", err)
	}
	if info.BufferSlots != 32 || info.Capacity != 24 {
		t.Errorf("next sequence info %+v, want 32 slots / capacity 24", info)
	}

	select {
	case ev := <-resized:
		if ev.Slots != 32 || ev.Capacity != 24 {
			t.Errorf("unexpected resize event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no BufferResizedEvent")
	}
}

func TestResizeAppliedWhenIdle(t *testing.T) {
	c := newTestController(t, "resize-idle", 16, func(notify.Metadata, ringbuf.View) error { return nil }, nil)

	if err := c.SetBufferSlots(8); err != nil {
		t.Fatalf("SetBufferSlots failed: %v", err)
	}
	if got := c.Buffer().Slots(); got != 8 {
		t.Errorf("Slots() = %d, want 8", got)
	}
	if c.Slots().Get() != 8 {
		t.Errorf("property = %d, want 8", c.Slots().Get())
	}

	if err := c.SetBufferSlots(2); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("SetBufferSlots(2): expected ErrBufferTooSmall, got %v", err)
	}
	if got := c.Buffer().Slots(); got != 8 {
		t.Errorf("rejected size was applied: %d", got)
	}
}

func TestForwardErrorsReported(t *testing.T) {
	bus := events.New()
	errs := subscribe[events.ForwardErrorEvent](t, bus)

	c := newTestController(t, "fwd-error", 8, func(meta notify.Metadata, _ ringbuf.View) error {
		if meta.FrameNr == 2 {
			return errors.New("insert image failed")
		}
		return nil
	}, bus)

	if _, err := c.StartSequence(); err != nil {
		t.Fatalf("StartSequence failed: %v", err)
	}
	for i := uint64(1); i <= 3; i++ {
		_ = c.Publish(frame(i), []byte{byte(i)})
	}
	waitFor(t, "three forwards", func() bool { return c.Status().Forwarded == 3 })

	summary, _ := c.StopSequence()
	if summary.Failures != 1 {
		t.Errorf("Failures = %d, want 1", summary.Failures)
	}

	select {
	case ev := <-errs:
		if ev.FrameNr != 2 || ev.Error != "insert image failed" {
			t.Errorf("unexpected error event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no ForwardErrorEvent")
	}
	if v := testutil.ToFloat64(metrics.ForCamera("fwd-error").Failures); v != 1 {
		t.Errorf("failures metric = %v, want 1", v)
	}
}

func TestWorkerStateEvents(t *testing.T) {
	bus := events.New()
	states := subscribe[events.WorkerStateChangedEvent](t, bus)

	c := newTestController(t, "states", 8, func(notify.Metadata, ringbuf.View) error { return nil }, bus)
	_, _ = c.StartSequence()
	_, _ = c.StopSequence()

	want := []string{"running", "stopping", "idle"}
	for _, w := range want {
		select {
		case ev := <-states:
			if ev.NewState != w {
				t.Errorf("state event %q, want %q", ev.NewState, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing state event %q", w)
		}
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWorkerLogsFollowNotifyModuleLevel(t *testing.T) {
	out := &lockedBuffer{}
	logging.Initialize(logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"notify": "debug"},
		Output:  out,
	})
	t.Cleanup(func() {
		logging.Initialize(logging.Config{Level: "info", Format: "text", Output: io.Discard})
	})

	buf, _ := ringbuf.New(8, 4)
	c, err := NewController(&Options{
		CameraID: "cam-log",
		Buffer:   buf,
		Forward:  func(notify.Metadata, ringbuf.View) error { return nil },
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		metrics.DeleteCamera("cam-log")
	})

	if _, err := c.StartSequence(); err != nil {
		t.Fatalf("StartSequence: %v", err)
	}
	if _, err := c.StopSequence(); err != nil {
		t.Fatalf("StopSequence: %v", err)
	}

	logs := out.String()
	if !strings.Contains(logs, "Notification worker started") {
		t.Fatalf("worker debug log missing at notify=debug:\n%s", logs)
	}
	if !strings.Contains(logs, "module=notify") || !strings.Contains(logs, "camera_id=cam-log") {
		t.Errorf("worker log lacks module or camera attributes:\n%s", logs)
	}

	if !logging.SetLevel("notify", "info") {
		t.Fatal("SetLevel rejected info")
	}
	before := strings.Count(out.String(), "Notification worker started")

	if _, err := c.StartSequence(); err != nil {
		t.Fatalf("StartSequence: %v", err)
	}
	if _, err := c.StopSequence(); err != nil {
		t.Fatalf("StopSequence: %v", err)
	}

	if after := strings.Count(out.String(), "Notification worker started"); after != before {
		t.Errorf("worker debug log still written after raising notify to info (%d -> %d)", before, after)
	}
}
