package nats

import (
	"log/slog"

	"github.com/smazurov/framenotify/internal/acquisition"
)

// Sequencer is the part of an acquisition controller that remote commands
// drive.
type Sequencer interface {
	StartSequence() (acquisition.SequenceInfo, error)
	StopSequence() (acquisition.SequenceSummary, error)
	SetBufferSlots(n int) error
}

// ControlHandler returns a handler for FrameClient.OnControl that applies
// commands to seq. Failures are logged; NATS has no reply path here.
func ControlHandler(seq Sequencer, logger *slog.Logger) func(ControlMessage) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(msg ControlMessage) {
		var err error
		switch msg.Action {
		case ActionStart:
			_, err = seq.StartSequence()
		case ActionStop:
			_, err = seq.StopSequence()
		case ActionResize:
			err = seq.SetBufferSlots(msg.Slots)
		default:
			logger.Warn("Unknown control action", "action", msg.Action)
			return
		}
		if err != nil {
			logger.Warn("Control command failed", "action", msg.Action, "error", err)
		}
	}
}
