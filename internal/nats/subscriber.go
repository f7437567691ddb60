package nats

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
)

// AllCameras subscribes to every camera when passed as a camera ID.
const AllCameras = "*"

// Subscriber consumes frame and sequence messages published by FrameClient.
type Subscriber struct {
	conn   *nats.Conn
	logger *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewSubscriber connects a consumer.
func NewSubscriber(url string, logger *slog.Logger) (*Subscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url, nats.Name("framenotify-subscriber"))
	if err != nil {
		return nil, err
	}

	return &Subscriber{
		conn:   conn,
		logger: logger.With("component", "nats-subscriber"),
	}, nil
}

// Frames calls fn for every decoded frame of cameraID. Undecodable
// messages are logged and skipped.
func (s *Subscriber) Frames(cameraID string, fn func(FrameMessage)) error {
	return s.subscribe(SubjectFrames(cameraID), func(msg *nats.Msg) {
		frame, err := UnmarshalFrame(msg.Data)
		if err != nil {
			s.logger.Warn("Failed to decode frame message", "subject", msg.Subject, "error", err)
			return
		}
		fn(frame)
	})
}

// Sequences calls fn for every sequence state message of cameraID.
func (s *Subscriber) Sequences(cameraID string, fn func(SequenceMessage)) error {
	return s.subscribe(SubjectSequence(cameraID), func(msg *nats.Msg) {
		seq, err := UnmarshalSequence(msg.Data)
		if err != nil {
			s.logger.Warn("Failed to decode sequence message", "subject", msg.Subject, "error", err)
			return
		}
		fn(seq)
	})
}

func (s *Subscriber) subscribe(subject string, handler nats.MsgHandler) error {
	sub, err := s.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	// Make sure the server registered the interest before returning.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	s.logger.Debug("Subscribed", "subject", subject)
	return nil
}

// Close removes all subscriptions and closes the connection.
func (s *Subscriber) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	s.conn.Close()
}
