// Package models holds request and response bodies for the HTTP API.
package models

// HealthData is the health check body.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Health message"`
	NATS    string `json:"nats" example:"connected" enum:"connected,offline,disabled" doc:"Frame publisher connection state"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Body HealthData
}

// VersionData describes the running build.
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"OS/architecture"`
}

// VersionResponse is the version response.
type VersionResponse struct {
	Body VersionData
}

// AcquisitionStatus is a snapshot of the acquisition controller.
type AcquisitionStatus struct {
	CameraID     string `json:"camera_id" example:"cam0" doc:"Camera identifier"`
	State        string `json:"state" example:"running" enum:"idle,running,stopping" doc:"Notification worker state"`
	Active       bool   `json:"active" example:"true" doc:"Whether a sequence is running"`
	SequenceID   string `json:"sequence_id,omitempty" doc:"Current or last sequence identifier"`
	StartedAt    string `json:"started_at,omitempty" example:"2025-01-27T10:30:00Z" doc:"Sequence start time"`
	Capacity     int    `json:"capacity" example:"12" doc:"Notification queue capacity"`
	BufferSlots  int    `json:"buffer_slots" example:"16" doc:"Ring buffer slot count"`
	PendingSlots int    `json:"pending_slots,omitempty" example:"32" doc:"Slot count applied at the next sequence start"`
	Overflow     bool   `json:"overflow" example:"false" doc:"Whether the queue overflowed in this sequence"`
	Pending      int    `json:"pending" example:"2" doc:"Notifications waiting for the worker"`
	Received     uint64 `json:"received" example:"1200" doc:"Frames received from the camera"`
	Forwarded    uint64 `json:"forwarded" example:"1190" doc:"Frames handed to the host pipeline"`
	Failures     uint64 `json:"failures" example:"0" doc:"Forward calls that failed"`
	Dropped      uint64 `json:"dropped" example:"10" doc:"Frames evicted on queue overflow"`
}

// AcquisitionStatusResponse is the acquisition status response.
type AcquisitionStatusResponse struct {
	Body AcquisitionStatus
}

// SequenceData describes a started sequence.
type SequenceData struct {
	SequenceID  string `json:"sequence_id" doc:"Sequence identifier"`
	CameraID    string `json:"camera_id" example:"cam0" doc:"Camera identifier"`
	Capacity    int    `json:"capacity" example:"12" doc:"Notification queue capacity"`
	BufferSlots int    `json:"buffer_slots" example:"16" doc:"Ring buffer slot count"`
	StartedAt   string `json:"started_at" example:"2025-01-27T10:30:00Z" doc:"Sequence start time"`
}

// SequenceStartResponse is returned when a sequence starts.
type SequenceStartResponse struct {
	Body SequenceData
}

// SequenceSummaryData describes a finished sequence.
type SequenceSummaryData struct {
	SequenceID string  `json:"sequence_id" doc:"Sequence identifier"`
	Received   uint64  `json:"received" example:"1200" doc:"Frames received from the camera"`
	Forwarded  uint64  `json:"forwarded" example:"1190" doc:"Frames handed to the host pipeline"`
	Failures   uint64  `json:"failures" example:"0" doc:"Forward calls that failed"`
	Dropped    uint64  `json:"dropped" example:"10" doc:"Frames evicted on queue overflow"`
	Pending    int     `json:"pending" example:"0" doc:"Notifications discarded at stop"`
	Overflow   bool    `json:"overflow" example:"true" doc:"Whether the queue overflowed"`
	DurationMs float64 `json:"duration_ms" example:"5021.4" doc:"Sequence duration in milliseconds"`
}

// SequenceStopResponse is returned when a sequence stops.
type SequenceStopResponse struct {
	Body SequenceSummaryData
}

// BufferSlotsRequest changes the ring buffer size.
type BufferSlotsRequest struct {
	Body struct {
		Slots int `json:"slots" minimum:"3" maximum:"4096" example:"32" doc:"Requested ring buffer slot count"`
	}
}

// BufferSlotsData reports the outcome of a resize request.
type BufferSlotsData struct {
	Slots        int  `json:"slots" example:"32" doc:"Requested slot count"`
	BufferSlots  int  `json:"buffer_slots" example:"16" doc:"Slot count currently in use"`
	PendingSlots int  `json:"pending_slots,omitempty" example:"32" doc:"Slot count applied at the next sequence start"`
	Applied      bool `json:"applied" example:"false" doc:"Whether the new size is already in use"`
}

// BufferSlotsResponse is the resize response.
type BufferSlotsResponse struct {
	Body BufferSlotsData
}

// FrameData describes one frame retained by the host sequence buffer.
type FrameData struct {
	FrameNr    uint64 `json:"frame_nr" example:"1042" doc:"Camera frame number"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00.123456789Z" doc:"Capture time"`
	ROI        [4]int `json:"roi" doc:"Region of interest as x, y, width, height"`
	ExposureUs int64  `json:"exposure_us" example:"10000" doc:"Exposure time in microseconds"`
	ReadoutUs  int64  `json:"readout_us" example:"800" doc:"Sensor readout time in microseconds"`
	Flags      uint32 `json:"flags" example:"1" doc:"Camera status flags"`
	Bytes      int    `json:"bytes" example:"6144" doc:"Pixel payload size"`
}

// FramesRequest filters the recent frames listing.
type FramesRequest struct {
	Limit int `query:"limit" minimum:"0" default:"0" doc:"Return at most this many of the newest frames, 0 for all"`
}

// FramesData lists recently copied frames, oldest first.
type FramesData struct {
	Frames   []FrameData `json:"frames" doc:"Retained frames"`
	Inserted uint64      `json:"inserted" example:"1190" doc:"Frames accepted since the last reset"`
	Rejected uint64      `json:"rejected" example:"0" doc:"Frames rejected as overwritten or corrupt"`
}

// FramesResponse is the recent frames response.
type FramesResponse struct {
	Body FramesData
}

// LogLevelData is a module log level.
type LogLevelData struct {
	Module string `json:"module" example:"notify" minLength:"1" doc:"Logging module"`
	Level  string `json:"level" example:"debug" enum:"debug,info,warn,error" doc:"Log level"`
}

// LogLevelRequest changes a module log level.
type LogLevelRequest struct {
	Body LogLevelData
}

// LogLevelResponse echoes the applied level.
type LogLevelResponse struct {
	Body LogLevelData
}
