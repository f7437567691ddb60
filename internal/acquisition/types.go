package acquisition

import (
	"errors"
	"log/slog"
	"time"

	"github.com/smazurov/framenotify/internal/events"
	"github.com/smazurov/framenotify/internal/notify"
	"github.com/smazurov/framenotify/internal/property"
	"github.com/smazurov/framenotify/internal/ringbuf"
)

var (
	// ErrSequenceActive is returned when starting while a sequence runs, or
	// when an operation requires no active sequence.
	ErrSequenceActive = errors.New("acquisition sequence already active")
	// ErrNoSequence is returned when stopping or publishing without an
	// active sequence.
	ErrNoSequence = errors.New("no active acquisition sequence")
)

// Options configures a Controller.
type Options struct {
	// CameraID labels logs, events and metrics (required).
	CameraID string

	// Buffer is the camera ring buffer (required).
	Buffer *ringbuf.Buffer

	// Slots is the observable ring buffer slot count. If nil, one is created
	// from Buffer.Slots().
	Slots *property.Value[int]

	// Forward delivers frames to the host pipeline (required).
	Forward notify.ForwardFunc

	// Bus receives lifecycle events (optional).
	Bus *events.Bus

	// Logger for controller operations. If nil, uses the "acquisition" module logger.
	Logger *slog.Logger

	// WorkerLogger for the notification worker. If nil, uses the "notify"
	// module logger.
	WorkerLogger *slog.Logger
}

// SequenceInfo describes a started sequence.
type SequenceInfo struct {
	ID          string
	CameraID    string
	Capacity    int
	BufferSlots int
	StartedAt   time.Time
}

// SequenceSummary describes a finished sequence. Every received frame is
// either forwarded, dropped, or still pending when the worker stopped.
type SequenceSummary struct {
	ID        string
	Received  uint64
	Forwarded uint64
	Failures  uint64
	Dropped   uint64
	Pending   int
	Overflow  bool
	Duration  time.Duration
}

// Status is a point-in-time view of the controller.
type Status struct {
	CameraID     string
	State        notify.State
	Active       bool
	SequenceID   string
	StartedAt    time.Time
	Capacity     int
	BufferSlots  int
	PendingSlots int
	Overflow     bool
	Pending      int
	Received     uint64
	Forwarded    uint64
	Failures     uint64
	Dropped      uint64
}
