// Package systemd reports service readiness, status and watchdog pings to
// systemd via sd_notify. Outside a systemd unit every call is a no-op.
package systemd

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/framenotify/internal/events"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	logger *slog.Logger
	send   func(state string) (bool, error)
	// watchdogInterval returns the WatchdogSec interval, 0 if disabled.
	watchdogInterval func() (time.Duration, error)

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	unsubs []func()
}

// NewNotifier creates a notifier bound to $NOTIFY_SOCKET.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger: logger.With("component", "systemd"),
		send: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
		watchdogInterval: func() (time.Duration, error) {
			return daemon.SdWatchdogEnabled(false)
		},
	}
}

func (n *Notifier) notify(state string) {
	sent, err := n.send(state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}

// Ready reports that startup has finished and starts the watchdog when the
// unit configures one.
func (n *Notifier) Ready() {
	n.notify(daemon.SdNotifyReady)

	interval, err := n.watchdogInterval()
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return
	}
	if interval <= 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop != nil {
		return
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.watchdog(interval/2, n.stop, n.done)
	n.logger.Info("Watchdog enabled", "interval", interval)
}

func (n *Notifier) watchdog(every time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	n.notify("STATUS=" + fmt.Sprintf(format, args...))
}

// WatchBus mirrors sequence lifecycle events into the status line.
func (n *Notifier) WatchBus(bus *events.Bus) {
	unsubs := []func(){
		bus.Subscribe(func(e events.SequenceStartedEvent) {
			n.Status("%s: sequence %s running (capacity %d)", e.CameraID, e.SequenceID, e.Capacity)
		}),
		bus.Subscribe(func(e events.FramesDroppedEvent) {
			n.Status("%s: sequence %s dropping frames", e.CameraID, e.SequenceID)
		}),
		bus.Subscribe(func(e events.SequenceStoppedEvent) {
			n.Status("%s: idle, last sequence forwarded %d dropped %d", e.CameraID, e.Forwarded, e.Dropped)
		}),
	}

	n.mu.Lock()
	n.unsubs = append(n.unsubs, unsubs...)
	n.mu.Unlock()
}

// Stopping reports shutdown and stops the watchdog and bus subscriptions.
func (n *Notifier) Stopping() {
	n.notify(daemon.SdNotifyStopping)

	n.mu.Lock()
	stop, done, unsubs := n.stop, n.done, n.unsubs
	n.stop, n.done, n.unsubs = nil, nil, nil
	n.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if stop != nil {
		close(stop)
		<-done
	}
}
