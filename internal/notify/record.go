package notify

import (
	"time"

	"github.com/smazurov/framenotify/internal/ringbuf"
)

// StatusFlags describes per-frame conditions reported by the camera.
type StatusFlags uint32

// Frame status flags.
const (
	FlagTriggered     StatusFlags = 1 << iota // Frame started by an external trigger
	FlagSmart                                 // Exposure taken from a smart-streaming list
	FlagDiscontinuity                         // Driver reported lost frames before this one
)

// Has reports whether all bits in f are set.
func (s StatusFlags) Has(f StatusFlags) bool {
	return s&f == f
}

// Region is a sensor region of interest in pixels.
type Region struct {
	X      uint16 `json:"x"`
	Y      uint16 `json:"y"`
	Width  uint16 `json:"width"`
	Height uint16 `json:"height"`
}

// Metadata is the per-frame information delivered with a notification.
// It is always stored by value since the driver reuses its own copy.
type Metadata struct {
	FrameNr   uint64        `json:"frame_nr"`
	Timestamp time.Time     `json:"timestamp"`
	ROI       Region        `json:"roi"`
	Exposure  time.Duration `json:"exposure"`
	Readout   time.Duration `json:"readout"`
	Flags     StatusFlags   `json:"flags"`
}

// Record is one frame notification: a metadata snapshot plus a borrowed
// reference into the ring buffer.
type Record struct {
	meta Metadata
	data ringbuf.View
}

// NewRecord creates a record from a metadata snapshot and a slot view.
func NewRecord(meta Metadata, data ringbuf.View) Record {
	return Record{meta: meta, data: data}
}

// Metadata returns the frame metadata.
func (r Record) Metadata() Metadata { return r.meta }

// Data returns the ring buffer view of the frame pixels.
func (r Record) Data() ringbuf.View { return r.data }
