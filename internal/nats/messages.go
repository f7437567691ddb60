package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/smazurov/framenotify/internal/notify"
)

// Subject prefixes.
const (
	SubjectCamerasPrefix = "framenotify.cameras"
	SubjectControlPrefix = "framenotify.control"
)

// Control actions.
const (
	ActionStart  = "start"
	ActionStop   = "stop"
	ActionResize = "resize"
)

// SubjectFrames returns the subject frames of a camera are published on.
func SubjectFrames(cameraID string) string {
	return fmt.Sprintf("%s.%s.frames", SubjectCamerasPrefix, cameraID)
}

// SubjectSequence returns the subject for sequence state changes.
func SubjectSequence(cameraID string) string {
	return fmt.Sprintf("%s.%s.sequence", SubjectCamerasPrefix, cameraID)
}

// SubjectControl returns the subject a camera listens on for commands.
func SubjectControl(cameraID string) string {
	return fmt.Sprintf("%s.%s", SubjectControlPrefix, cameraID)
}

// FrameMessage is one frame on the wire.
type FrameMessage struct {
	CameraID  string    `cbor:"camera_id"`
	FrameNr   uint64    `cbor:"frame_nr"`
	Timestamp int64     `cbor:"timestamp_ns"`
	ROI       [4]uint16 `cbor:"roi"` // x, y, width, height
	Exposure  int64     `cbor:"exposure_ns"`
	Readout   int64     `cbor:"readout_ns"`
	Flags     uint32    `cbor:"flags"`
	Pixels    []byte    `cbor:"pixels"`
}

// NewFrameMessage builds a message from frame metadata and a pixel copy.
func NewFrameMessage(cameraID string, meta notify.Metadata, pixels []byte) FrameMessage {
	return FrameMessage{
		CameraID:  cameraID,
		FrameNr:   meta.FrameNr,
		Timestamp: meta.Timestamp.UnixNano(),
		ROI:       [4]uint16{meta.ROI.X, meta.ROI.Y, meta.ROI.Width, meta.ROI.Height},
		Exposure:  int64(meta.Exposure),
		Readout:   int64(meta.Readout),
		Flags:     uint32(meta.Flags),
		Pixels:    pixels,
	}
}

// Metadata converts the message back into frame metadata.
func (m FrameMessage) Metadata() notify.Metadata {
	return notify.Metadata{
		FrameNr:   m.FrameNr,
		Timestamp: time.Unix(0, m.Timestamp),
		ROI:       notify.Region{X: m.ROI[0], Y: m.ROI[1], Width: m.ROI[2], Height: m.ROI[3]},
		Exposure:  time.Duration(m.Exposure),
		Readout:   time.Duration(m.Readout),
		Flags:     notify.StatusFlags(m.Flags),
	}
}

// Marshal serializes the message to CBOR.
func (m FrameMessage) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

// UnmarshalFrame deserializes a FrameMessage from CBOR.
func UnmarshalFrame(data []byte) (FrameMessage, error) {
	var m FrameMessage
	err := cbor.Unmarshal(data, &m)
	return m, err
}

// SequenceMessage reports a sequence state change.
type SequenceMessage struct {
	CameraID   string `json:"camera_id"`
	SequenceID string `json:"sequence_id"`
	Timestamp  string `json:"timestamp"`
	State      string `json:"state"` // started, dropping, stopped
	Capacity   int    `json:"capacity,omitempty"`
	Forwarded  uint64 `json:"forwarded,omitempty"`
	Dropped    uint64 `json:"dropped,omitempty"`
	Overflow   bool   `json:"overflow,omitempty"`
}

// Marshal serializes the message to JSON.
func (m SequenceMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalSequence deserializes a SequenceMessage from JSON.
func UnmarshalSequence(data []byte) (SequenceMessage, error) {
	var m SequenceMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// ControlMessage is a remote acquisition command.
type ControlMessage struct {
	Action    string `json:"action"`
	CameraID  string `json:"camera_id"`
	Slots     int    `json:"slots,omitempty"` // resize only
	Timestamp string `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalControl deserializes a ControlMessage from JSON.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
