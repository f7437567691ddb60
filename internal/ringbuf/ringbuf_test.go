package ringbuf

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func TestNewInvalidGeometry(t *testing.T) {
	tests := []struct {
		name      string
		slots     int
		frameSize int
	}{
		{"zero slots", 0, 16},
		{"zero frame size", 4, 0},
		{"negative", -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.slots, tt.frameSize); err == nil {
				t.Errorf("New(%d, %d) expected error", tt.slots, tt.frameSize)
			}
		})
	}
}

func TestWriteAndCopy(t *testing.T) {
	buf, err := New(4, 8)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	view, err := buf.Write([]byte("frame-01"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if !view.Valid() {
		t.Fatal("expected fresh view to be valid")
	}
	if view.Len() != 8 {
		t.Errorf("Len() = %d, want 8", view.Len())
	}

	dst := make([]byte, 8)
	n, err := view.CopyTo(dst)
	if err != nil {
		t.Fatalf("CopyTo failed: %v", err)
	}
	if n != 8 || !bytes.Equal(dst, []byte("frame-01")) {
		t.Errorf("CopyTo = %q (%d), want frame-01", dst, n)
	}
}

func TestWriteTooLarge(t *testing.T) {
	buf, _ := New(2, 4)

	_, err := buf.Write([]byte("too large"))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestViewInvalidAfterWraparound(t *testing.T) {
	buf, _ := New(3, 4)

	first, _ := buf.Write([]byte("aaaa"))
	_, _ = buf.Write([]byte("bbbb"))
	_, _ = buf.Write([]byte("cccc"))

	if !first.Valid() {
		t.Fatal("view should stay valid until its slot is reused")
	}

	// Fourth write lands in slot 0 again.
	fourth, _ := buf.Write([]byte("dddd"))
	if fourth.Slot() != first.Slot() {
		t.Fatalf("expected wraparound to slot %d, got %d", first.Slot(), fourth.Slot())
	}

	if first.Valid() {
		t.Error("expected overwritten view to be invalid")
	}
	if _, err := first.CopyTo(make([]byte, 4)); !errors.Is(err, ErrOverwritten) {
		t.Errorf("CopyTo on stale view: expected ErrOverwritten, got %v", err)
	}
	if _, err := first.Bytes(); !errors.Is(err, ErrOverwritten) {
		t.Errorf("Bytes on stale view: expected ErrOverwritten, got %v", err)
	}

	data, err := fourth.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if string(data) != "dddd" {
		t.Errorf("Bytes = %q, want dddd", data)
	}
}

func TestViewIdentity(t *testing.T) {
	buf, _ := New(2, 4)

	a, _ := buf.Write([]byte("xxxx"))
	b, _ := buf.Write([]byte("xxxx"))

	if a == b {
		t.Error("views of different writes must not compare equal")
	}

	copied := a
	if copied != a {
		t.Error("copied view must compare equal to the original")
	}
}

func TestGenerationIsEven(t *testing.T) {
	buf, _ := New(1, 1)

	for i := 0; i < 5; i++ {
		v, _ := buf.Write([]byte{byte(i)})
		if v.Generation()%2 != 0 {
			t.Errorf("write %d: generation %d should be even once committed", i, v.Generation())
		}
	}
}

func TestZeroView(t *testing.T) {
	var v View

	if !v.IsZero() {
		t.Error("zero View should report IsZero")
	}
	if v.Valid() {
		t.Error("zero View should not be valid")
	}
	if _, err := v.CopyTo(make([]byte, 1)); !errors.Is(err, ErrEmptyView) {
		t.Errorf("expected ErrEmptyView, got %v", err)
	}
}

func TestResizeRetiresViews(t *testing.T) {
	buf, _ := New(4, 4)
	v, _ := buf.Write([]byte("keep"))

	if err := buf.Resize(8, 4); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}

	if v.Valid() {
		t.Error("view into retired storage should be invalid")
	}
	if buf.Slots() != 8 {
		t.Errorf("Slots() = %d, want 8", buf.Slots())
	}

	next, _ := buf.Write([]byte("new!"))
	if next.Slot() != 0 {
		t.Errorf("first write after resize should use slot 0, got %d", next.Slot())
	}
}

func TestResizeSameGeometryKeepsViews(t *testing.T) {
	buf, _ := New(4, 4)
	v, _ := buf.Write([]byte("keep"))

	if err := buf.Resize(4, 4); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if !v.Valid() {
		t.Error("resize to the same geometry should be a no-op")
	}
}

func TestFillShortFrame(t *testing.T) {
	buf, _ := New(2, 16)

	v := buf.Fill(func(dst []byte) int {
		return copy(dst, "short")
	})

	data, err := v.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if string(data) != "short" {
		t.Errorf("Bytes = %q, want short", data)
	}
}

func TestConcurrentFillAndCopy(t *testing.T) {
	// Odd frame size so the last word of each slot is partial.
	const frameSize = 67
	const frames = 2000

	buf, _ := New(2, frameSize)
	views := make(chan View, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(views)
		for k := range frames {
			v := buf.Fill(func(dst []byte) int {
				for i := range dst {
					dst[i] = byte(k)
				}
				return len(dst)
			})
			select {
			case views <- v:
			default:
			}
		}
	}()

	dst := make([]byte, frameSize)
	copied, overwritten := 0, 0
	for v := range views {
		// Read the same view repeatedly so the producer laps it mid-copy.
		for range 4 {
			n, err := v.CopyTo(dst)
			if errors.Is(err, ErrOverwritten) {
				overwritten++
				break
			}
			if err != nil {
				t.Fatalf("CopyTo: %v", err)
			}
			copied++
			for i := range dst[:n] {
				if dst[i] != dst[0] {
					t.Fatalf("torn frame accepted: byte %d = %d, byte 0 = %d", i, dst[i], dst[0])
				}
			}
		}
	}
	wg.Wait()

	t.Logf("copied=%d overwritten=%d", copied, overwritten)
}

func TestPartialWordRoundTrip(t *testing.T) {
	for _, size := range []int{1, 7, 8, 9, 15, 16, 17} {
		buf, _ := New(1, size)
		want := make([]byte, size)
		for i := range want {
			want[i] = byte(i + 1)
		}
		v, err := buf.Write(want)
		if err != nil {
			t.Fatalf("size %d: Write: %v", size, err)
		}
		got, err := v.Bytes()
		if err != nil {
			t.Fatalf("size %d: Bytes: %v", size, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("size %d: got %v, want %v", size, got, want)
		}
	}
}
