package notify

import (
	"log/slog"

	"github.com/smazurov/framenotify/internal/ringbuf"
)

// ForwardFunc delivers one frame to the host pipeline. It runs on the worker
// goroutine, never concurrently with itself, and may block. The view is only
// valid until the producer wraps around to its slot, so the pixels must be
// copied out before returning.
type ForwardFunc func(meta Metadata, data ringbuf.View) error

// CapacityProvider returns the queue capacity to use for the next sequence.
// Called on every Reset since the ring buffer may be resized between sequences.
type CapacityProvider func() int

// ErrorCallback is called when a forward returns an error or panics.
type ErrorCallback func(meta Metadata, err error)

// StateChangeCallback is called when the worker state changes.
type StateChangeCallback func(oldState, newState State)

// WorkerOptions configures a new Worker.
type WorkerOptions struct {
	// Forward receives every retained record in arrival order (required).
	Forward ForwardFunc

	// Capacity supplies the queue capacity at Reset (required).
	Capacity CapacityProvider

	// OnStateChange is called after each state transition (optional).
	OnStateChange StateChangeCallback

	// OnError is called for failed forwards (optional).
	OnError ErrorCallback

	// Logger for worker operations. If nil, uses slog.Default().
	Logger *slog.Logger
}
