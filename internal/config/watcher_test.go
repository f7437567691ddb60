package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCameraConfig(t *testing.T, path string, slots int) {
	t.Helper()
	content := fmt.Sprintf("[camera]\nid = \"cam0\"\nbuffer_slots = %d\nexposure_ms = 10\n", slots)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startCameraWatcher(t *testing.T, path string, debounce time.Duration, opts ...WatcherOption[CameraSettings]) *Watcher[CameraSettings] {
	t.Helper()
	opts = append([]WatcherOption[CameraSettings]{WithDebounce[CameraSettings](debounce)}, opts...)
	w := NewConfigWatcher(path, LoadCameraSettings, newTestLogger(), opts...)
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	return w
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framenotify.toml")
	writeCameraConfig(t, path, 16)

	w := startCameraWatcher(t, path, 50*time.Millisecond)
	received := make(chan CameraSettings, 1)
	w.OnReload(func(s CameraSettings) { received <- s })

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	writeCameraConfig(t, path, 32)

	select {
	case s := <-received:
		if s.BufferSlots != 32 || s.ID != "cam0" {
			t.Errorf("got %+v, want buffer_slots=32 id=cam0", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_HandlersInOrderAndUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framenotify.toml")
	writeCameraConfig(t, path, 16)

	w := startCameraWatcher(t, path, time.Second)

	var mu sync.Mutex
	var calls []string
	w.OnReload(func(CameraSettings) { mu.Lock(); calls = append(calls, "a"); mu.Unlock() })
	unsubB := w.OnReload(func(CameraSettings) { mu.Lock(); calls = append(calls, "b"); mu.Unlock() })
	w.OnReload(func(CameraSettings) { mu.Lock(); calls = append(calls, "c"); mu.Unlock() })

	if err := w.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	unsubB()
	if err := w.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a", "b", "c", "a", "c"}
	if fmt.Sprint(calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framenotify.toml")
	writeCameraConfig(t, path, 16)

	errorReceived := make(chan error, 1)
	w := startCameraWatcher(t, path, 50*time.Millisecond,
		WithErrorHandler[CameraSettings](func(err error) { errorReceived <- err }))

	configReceived := make(chan CameraSettings, 1)
	w.OnReload(func(s CameraSettings) { configReceived <- s })

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("[camera\nbuffer_slots = "), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errorReceived:
	case <-configReceived:
		t.Fatal("config handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framenotify.toml")
	writeCameraConfig(t, path, 8)

	w := startCameraWatcher(t, path, 200*time.Millisecond)

	var count, last atomic.Int32
	w.OnReload(func(s CameraSettings) {
		count.Add(1)
		last.Store(int32(s.BufferSlots))
	})

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	for slots := 10; slots <= 14; slots++ {
		writeCameraConfig(t, path, slots)
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := last.Load(); got != 14 {
		t.Errorf("expected final slots 14, got %d", got)
	}
}

func TestConfigWatcher_StopHaltsReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framenotify.toml")
	writeCameraConfig(t, path, 16)

	w := NewConfigWatcher(path, LoadCameraSettings, newTestLogger(),
		WithDebounce[CameraSettings](50*time.Millisecond))

	var count atomic.Int32
	w.OnReload(func(CameraSettings) { count.Add(1) })

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	writeCameraConfig(t, path, 99)
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 calls after stop, got %d", got)
	}
}

func TestConfigWatcher_ConcurrentSubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framenotify.toml")
	writeCameraConfig(t, path, 16)

	w := startCameraWatcher(t, path, 10*time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := w.OnReload(func(CameraSettings) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}

	for slots := range 10 {
		writeCameraConfig(t, path, slots+3)
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()
}

func TestConfigWatcher_StartMissingFile(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "absent.toml"), LoadCameraSettings, newTestLogger())
	if err := w.Start(); err == nil {
		_ = w.Stop()
		t.Fatal("Start should fail for a missing file")
	}
}

func TestLoadCameraSettingsMissing(t *testing.T) {
	_, err := LoadCameraSettings(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}
