package nats

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/framenotify/internal/notify"
	"github.com/smazurov/framenotify/internal/ringbuf"
)

// FrameClient publishes one camera's frames and sequence state, and
// receives control commands for it. All publishing is a no-op while
// disconnected.
type FrameClient struct {
	url      string
	cameraID string
	logger   *slog.Logger

	mu        sync.RWMutex
	conn      *nats.Conn
	sub       *nats.Subscription
	onControl func(ControlMessage)
	connected bool

	// scratch is reused by Forward, which only runs on the worker goroutine.
	scratch []byte
}

// NewFrameClient creates a client for cameraID.
func NewFrameClient(url, cameraID string, logger *slog.Logger) *FrameClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameClient{
		url:      url,
		cameraID: cameraID,
		logger:   logger.With("component", "nats-client", "camera_id", cameraID),
	}
}

// Connect dials the server. On failure the client stays usable in offline
// mode and the error is returned for logging.
func (c *FrameClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := nats.Connect(c.url,
		nats.Name("framenotify-"+c.cameraID),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setConnected(false)
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.setConnected(true)
			c.logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		c.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}

	c.conn = conn
	c.connected = true
	c.logger.Info("Connected to NATS", "url", c.url)

	c.subscribeControlLocked()
	return nil
}

func (c *FrameClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// subscribeControlLocked subscribes to the control subject. Caller holds mu.
// The library restores subscriptions after a reconnect.
func (c *FrameClient) subscribeControlLocked() {
	if c.conn == nil || c.onControl == nil || c.sub != nil {
		return
	}

	sub, err := c.conn.Subscribe(SubjectControl(c.cameraID), c.handleControl)
	if err != nil {
		c.logger.Warn("Failed to subscribe to control commands", "error", err)
		return
	}
	c.sub = sub
}

func (c *FrameClient) handleControl(msg *nats.Msg) {
	ctrl, err := UnmarshalControl(msg.Data)
	if err != nil {
		c.logger.Warn("Failed to unmarshal control message", "error", err)
		return
	}

	c.mu.RLock()
	fn := c.onControl
	c.mu.RUnlock()

	c.logger.Info("Received control command", "action", ctrl.Action, "reason", ctrl.Reason)
	if fn != nil {
		fn(ctrl)
	}
}

// OnControl sets the handler for control commands.
func (c *FrameClient) OnControl(fn func(ControlMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onControl = fn
	c.subscribeControlLocked()
}

func (c *FrameClient) activeConn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil
	}
	return c.conn
}

// Forward is a notify.ForwardFunc that publishes the frame as CBOR. The
// pixels are copied out of the ring buffer before encoding.
func (c *FrameClient) Forward(meta notify.Metadata, view ringbuf.View) error {
	conn := c.activeConn()
	if conn == nil {
		return nil
	}

	if cap(c.scratch) < view.Len() {
		c.scratch = make([]byte, view.Len())
	}
	pixels := c.scratch[:view.Len()]
	if _, err := view.CopyTo(pixels); err != nil {
		return fmt.Errorf("copy frame %d: %w", meta.FrameNr, err)
	}

	data, err := NewFrameMessage(c.cameraID, meta, pixels).Marshal()
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", meta.FrameNr, err)
	}
	if err := conn.Publish(SubjectFrames(c.cameraID), data); err != nil {
		return fmt.Errorf("publish frame %d: %w", meta.FrameNr, err)
	}
	return nil
}

// PublishSequence publishes a sequence state change.
func (c *FrameClient) PublishSequence(m SequenceMessage) {
	conn := c.activeConn()
	if conn == nil {
		return
	}

	data, err := m.Marshal()
	if err != nil {
		c.logger.Warn("Failed to marshal sequence message", "error", err)
		return
	}
	if err := conn.Publish(SubjectSequence(c.cameraID), data); err != nil {
		c.logger.Warn("Failed to publish sequence message", "error", err)
	}
}

// Flush waits until the server has processed everything published so far.
func (c *FrameClient) Flush() error {
	conn := c.activeConn()
	if conn == nil {
		return nil
	}
	return conn.Flush()
}

// IsConnected reports whether the client is connected.
func (c *FrameClient) IsConnected() bool {
	return c.activeConn() != nil
}

// Close closes the connection.
func (c *FrameClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.logger.Debug("NATS client closed")
}

// ControlPublisher sends control commands to cameras.
type ControlPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewControlPublisher connects a command publisher.
func NewControlPublisher(url string, logger *slog.Logger) (*ControlPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("framenotify-control"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, err
	}

	return &ControlPublisher{
		conn:   conn,
		logger: logger.With("component", "nats-control"),
	}, nil
}

// Send publishes msg to its camera's control subject and flushes.
func (p *ControlPublisher) Send(msg ControlMessage) error {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().Format(time.RFC3339)
	}
	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	if err := p.conn.Publish(SubjectControl(msg.CameraID), data); err != nil {
		return err
	}
	if err := p.conn.Flush(); err != nil {
		return err
	}
	p.logger.Info("Sent control command", "camera_id", msg.CameraID, "action", msg.Action)
	return nil
}

// Close closes the publisher connection.
func (p *ControlPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
