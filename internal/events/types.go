package events

// Event type constants for kelindar/event.
const (
	TypeSequenceStarted uint32 = iota + 1
	TypeSequenceStopped
	TypeFramesDropped
	TypeWorkerStateChanged
	TypeBufferResized
	TypeForwardError
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SequenceStartedEvent is published when an acquisition sequence begins.
type SequenceStartedEvent struct {
	CameraID    string `json:"camera_id" example:"cam0" doc:"Camera identifier"`
	SequenceID  string `json:"sequence_id" example:"7d6c1f0e-3b8e-4a0e-9d55-2f0c1c8a1e3b" doc:"Sequence identifier"`
	Capacity    int    `json:"capacity" example:"12" doc:"Notification queue capacity"`
	BufferSlots int    `json:"buffer_slots" example:"16" doc:"Ring buffer slot count"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SequenceStartedEvent.
func (e SequenceStartedEvent) Type() uint32 { return TypeSequenceStarted }

// SequenceStoppedEvent is published when an acquisition sequence has ended
// and no further frames will be forwarded.
type SequenceStoppedEvent struct {
	CameraID   string `json:"camera_id" example:"cam0" doc:"Camera identifier"`
	SequenceID string `json:"sequence_id" doc:"Sequence identifier"`
	Received   uint64 `json:"received" example:"1200" doc:"Frames received from the camera"`
	Forwarded  uint64 `json:"forwarded" example:"1190" doc:"Frames handed to the host pipeline"`
	Dropped    uint64 `json:"dropped" example:"10" doc:"Frames evicted on queue overflow"`
	Failures   uint64 `json:"failures" example:"0" doc:"Forward calls that failed"`
	Overflow   bool   `json:"overflow" example:"true" doc:"Whether the queue overflowed"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SequenceStoppedEvent.
func (e SequenceStoppedEvent) Type() uint32 { return TypeSequenceStopped }

// FramesDroppedEvent is published once per sequence when the queue first
// overflows.
type FramesDroppedEvent struct {
	CameraID   string `json:"camera_id" example:"cam0" doc:"Camera identifier"`
	SequenceID string `json:"sequence_id" doc:"Sequence identifier"`
	FrameNr    uint64 `json:"frame_nr" example:"431" doc:"First frame forwarded after the overflow"`
	Capacity   int    `json:"capacity" example:"12" doc:"Notification queue capacity"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FramesDroppedEvent.
func (e FramesDroppedEvent) Type() uint32 { return TypeFramesDropped }

// WorkerStateChangedEvent reports notification worker state transitions.
type WorkerStateChangedEvent struct {
	CameraID  string `json:"camera_id" example:"cam0" doc:"Camera identifier"`
	OldState  string `json:"old_state" example:"idle" doc:"Previous state"`
	NewState  string `json:"new_state" example:"running" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for WorkerStateChangedEvent.
func (e WorkerStateChangedEvent) Type() uint32 { return TypeWorkerStateChanged }

// BufferResizedEvent is published when a new ring buffer size takes effect.
type BufferResizedEvent struct {
	CameraID  string `json:"camera_id" example:"cam0" doc:"Camera identifier"`
	Slots     int    `json:"slots" example:"32" doc:"New ring buffer slot count"`
	Capacity  int    `json:"capacity" example:"24" doc:"Resulting queue capacity"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for BufferResizedEvent.
func (e BufferResizedEvent) Type() uint32 { return TypeBufferResized }

// ForwardErrorEvent reports a failed forward into the host pipeline.
type ForwardErrorEvent struct {
	CameraID   string `json:"camera_id" example:"cam0" doc:"Camera identifier"`
	SequenceID string `json:"sequence_id" doc:"Sequence identifier"`
	FrameNr    uint64 `json:"frame_nr" example:"12" doc:"Frame number"`
	Error      string `json:"error" example:"ring buffer slot overwritten" doc:"Error description"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ForwardErrorEvent.
func (e ForwardErrorEvent) Type() uint32 { return TypeForwardError }
