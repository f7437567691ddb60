package property

import (
	"errors"
	"testing"
)

func TestValueGetSet(t *testing.T) {
	v := New("buffer_slots", 16)

	if v.Name() != "buffer_slots" {
		t.Errorf("Name() = %q, want buffer_slots", v.Name())
	}
	if v.Get() != 16 {
		t.Errorf("Get() = %d, want 16", v.Get())
	}

	if err := v.Set(32); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v.Get() != 32 {
		t.Errorf("Get() = %d, want 32", v.Get())
	}
}

func TestValueNotifiesObserversInOrder(t *testing.T) {
	v := New("mode", "normal")

	var calls []string
	v.Attach(func(s string) { calls = append(calls, "first:"+s) })
	v.Attach(func(s string) { calls = append(calls, "second:"+s) })

	_ = v.Set("fast")

	want := []string{"first:fast", "second:fast"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestValueUnchangedDoesNotNotify(t *testing.T) {
	v := New("slots", 8)
	notified := 0
	v.Attach(func(int) { notified++ })

	_ = v.Set(8)

	if notified != 0 {
		t.Errorf("observer called %d times for an unchanged value", notified)
	}
}

func TestValueDetach(t *testing.T) {
	v := New("slots", 8)
	notified := 0
	h := v.Attach(func(int) { notified++ })

	if !v.Detach(h) {
		t.Error("Detach should report the handle was attached")
	}
	if v.Detach(h) {
		t.Error("second Detach should report false")
	}

	_ = v.Set(9)
	if notified != 0 {
		t.Error("detached observer was called")
	}
}

func TestValueObserverMayDetachItself(t *testing.T) {
	v := New("slots", 1)
	var h Handle
	calls := 0
	h = v.Attach(func(int) {
		calls++
		v.Detach(h)
	})

	_ = v.Set(2)
	_ = v.Set(3)

	if calls != 1 {
		t.Errorf("observer called %d times, want 1", calls)
	}
}

func TestValueValidator(t *testing.T) {
	errSmall := errors.New("too small")
	v := New("slots", 16, WithValidator(func(n int) error {
		if n < 3 {
			return errSmall
		}
		return nil
	}))

	notified := false
	v.Attach(func(int) { notified = true })

	err := v.Set(2)
	if !errors.Is(err, errSmall) {
		t.Errorf("expected validator error, got %v", err)
	}
	if v.Get() != 16 {
		t.Errorf("rejected value was stored: %d", v.Get())
	}
	if notified {
		t.Error("observer called for a rejected value")
	}
}
