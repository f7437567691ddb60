package nats

import (
	"log/slog"
	"sync"

	"github.com/smazurov/framenotify/internal/events"
)

// SequencePublisher publishes sequence state messages.
type SequencePublisher interface {
	PublishSequence(m SequenceMessage)
}

// Bridge republishes one camera's sequence events from the event bus to NATS.
type Bridge struct {
	cameraID string
	bus      *events.Bus
	pub      SequencePublisher
	logger   *slog.Logger

	mu     sync.Mutex
	unsubs []func()
}

// NewBridge creates a bridge for cameraID.
func NewBridge(cameraID string, bus *events.Bus, pub SequencePublisher, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cameraID: cameraID,
		bus:      bus,
		pub:      pub,
		logger:   logger.With("component", "nats-bridge"),
	}
}

// Start subscribes to the bus.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unsubs != nil {
		return
	}

	b.unsubs = []func(){
		b.bus.Subscribe(func(e events.SequenceStartedEvent) {
			if e.CameraID != b.cameraID {
				return
			}
			b.pub.PublishSequence(SequenceMessage{
				CameraID:   e.CameraID,
				SequenceID: e.SequenceID,
				Timestamp:  e.Timestamp,
				State:      "started",
				Capacity:   e.Capacity,
			})
		}),
		b.bus.Subscribe(func(e events.FramesDroppedEvent) {
			if e.CameraID != b.cameraID {
				return
			}
			b.pub.PublishSequence(SequenceMessage{
				CameraID:   e.CameraID,
				SequenceID: e.SequenceID,
				Timestamp:  e.Timestamp,
				State:      "dropping",
				Capacity:   e.Capacity,
				Overflow:   true,
			})
		}),
		b.bus.Subscribe(func(e events.SequenceStoppedEvent) {
			if e.CameraID != b.cameraID {
				return
			}
			b.pub.PublishSequence(SequenceMessage{
				CameraID:   e.CameraID,
				SequenceID: e.SequenceID,
				Timestamp:  e.Timestamp,
				State:      "stopped",
				Forwarded:  e.Forwarded,
				Dropped:    e.Dropped,
				Overflow:   e.Overflow,
			})
		}),
	}
	b.logger.Debug("NATS bridge subscribed to sequence events")
}

// Stop unsubscribes from the bus.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}
