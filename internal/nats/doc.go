// Package nats publishes acquired frames and sequence state over NATS and
// accepts remote acquisition commands.
//
// # Architecture
//
//   - Server: embedded NATS server for single-node deployments
//   - FrameClient: forwards frames as CBOR and receives control commands
//   - Bridge: republishes sequence events from the event bus
//   - ControlPublisher: sends control commands (used by "framenotify control")
//
// # Subject Hierarchy
//
//	framenotify.cameras.{camera_id}.frames     # FrameMessage, CBOR
//	framenotify.cameras.{camera_id}.sequence   # SequenceMessage, JSON
//	framenotify.control.{camera_id}            # ControlMessage, JSON
//
// Messaging is fire-and-forget core NATS. A FrameClient that cannot reach
// the server drops frames silently so acquisition keeps running.
//
// # Debugging with nats CLI
//
// Watch sequence state for all cameras:
//
//	nats sub "framenotify.cameras.*.sequence"
//
// Start a sequence by hand:
//
//	nats pub "framenotify.control.cam0" '{"action":"start","camera_id":"cam0"}'
//
// Resize the ring buffer before the next sequence:
//
//	nats pub "framenotify.control.cam0" '{"action":"resize","camera_id":"cam0","slots":32}'
package nats
