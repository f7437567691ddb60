package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels.
// Used by the SSE endpoint where Huma expects a channel-based select loop.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full (non-blocking)
		}
	})
}

// SubscribeAll subscribes ch to every event type and returns a function that
// removes all of the subscriptions.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[SequenceStartedEvent](bus, ch),
		SubscribeToChannel[SequenceStoppedEvent](bus, ch),
		SubscribeToChannel[FramesDroppedEvent](bus, ch),
		SubscribeToChannel[WorkerStateChangedEvent](bus, ch),
		SubscribeToChannel[BufferResizedEvent](bus, ch),
		SubscribeToChannel[ForwardErrorEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
