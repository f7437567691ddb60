package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(SequenceStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case SequenceStartedEvent:
		event.Publish(b.dispatcher, e)
	case SequenceStoppedEvent:
		event.Publish(b.dispatcher, e)
	case FramesDroppedEvent:
		event.Publish(b.dispatcher, e)
	case WorkerStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case BufferResizedEvent:
		event.Publish(b.dispatcher, e)
	case ForwardErrorEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e FramesDroppedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SequenceStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SequenceStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FramesDroppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(WorkerStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BufferResizedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ForwardErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Unknown handler type
		return func() {}
	}
}
