package acquisition

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/framenotify/internal/events"
	"github.com/smazurov/framenotify/internal/logging"
	"github.com/smazurov/framenotify/internal/metrics"
	"github.com/smazurov/framenotify/internal/notify"
	"github.com/smazurov/framenotify/internal/property"
	"github.com/smazurov/framenotify/internal/ringbuf"
)

// Controller drives acquisition sequences for one camera.
type Controller struct {
	cameraID string
	buffer   *ringbuf.Buffer
	slots    *property.Value[int]
	forwardF notify.ForwardFunc
	bus      *events.Bus
	logger   *slog.Logger
	metrics  *metrics.Camera

	queue  *notify.Queue
	worker *notify.Worker

	slotsHandle property.Handle

	// mu serializes sequence start/stop and ring buffer resizes.
	mu           sync.Mutex
	sequenceID   string
	startedAt    time.Time
	pendingSlots int

	active           atomic.Bool
	received         atomic.Uint64
	lastDropped      atomic.Uint64
	overflowReported atomic.Bool
}

// NewController creates an idle controller and subscribes it to slot count
// changes.
func NewController(opts *Options) (*Controller, error) {
	if opts == nil || opts.Buffer == nil || opts.Forward == nil {
		return nil, fmt.Errorf("acquisition: Options with Buffer and Forward is required")
	}
	if opts.CameraID == "" {
		return nil, fmt.Errorf("acquisition: CameraID is required")
	}
	if err := ValidateSlots(opts.Buffer.Slots()); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("acquisition")
	}
	logger = logger.With("camera_id", opts.CameraID)

	workerLogger := opts.WorkerLogger
	if workerLogger == nil {
		workerLogger = logging.GetLogger("notify")
	}
	workerLogger = workerLogger.With("camera_id", opts.CameraID)

	slots := opts.Slots
	if slots == nil {
		slots = property.New("buffer_slots", opts.Buffer.Slots(),
			property.WithValidator(ValidateSlots))
	}

	c := &Controller{
		cameraID: opts.CameraID,
		buffer:   opts.Buffer,
		slots:    slots,
		forwardF: opts.Forward,
		bus:      opts.Bus,
		logger:   logger,
		metrics:  metrics.ForCamera(opts.CameraID),
	}

	initial, _ := CapacityFor(opts.Buffer.Slots())
	c.queue = notify.NewQueue(initial)
	c.worker = notify.NewWorker(c.queue, &notify.WorkerOptions{
		Forward:       c.forward,
		Capacity:      c.capacity,
		OnStateChange: c.onStateChange,
		OnError:       c.onForwardError,
		Logger:        workerLogger,
	})

	c.slotsHandle = slots.Attach(c.onSlotsChanged)

	// The property may already differ from the buffer geometry.
	if n := slots.Get(); n != opts.Buffer.Slots() {
		c.onSlotsChanged(n)
	}

	return c, nil
}

// CameraID returns the camera this controller serves.
func (c *Controller) CameraID() string {
	return c.cameraID
}

// Buffer returns the ring buffer frames are written into.
func (c *Controller) Buffer() *ringbuf.Buffer {
	return c.buffer
}

// Slots returns the observable slot count property.
func (c *Controller) Slots() *property.Value[int] {
	return c.slots
}

// SetBufferSlots requests a new ring buffer size. While a sequence runs the
// change is applied at the next StartSequence.
func (c *Controller) SetBufferSlots(n int) error {
	if err := ValidateSlots(n); err != nil {
		return err
	}
	return c.slots.Set(n)
}

// StartSequence applies any pending resize, resets the queue with the
// capacity for the current buffer size and starts the worker.
func (c *Controller) StartSequence() (SequenceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active.Load() {
		return SequenceInfo{}, fmt.Errorf("%w: %s", ErrSequenceActive, c.sequenceID)
	}

	if c.pendingSlots != 0 {
		if err := c.resizeLocked(c.pendingSlots); err != nil {
			return SequenceInfo{}, err
		}
		c.pendingSlots = 0
	}

	if err := c.worker.Reset(); err != nil {
		return SequenceInfo{}, fmt.Errorf("reset notification worker: %w", err)
	}
	c.received.Store(0)
	c.lastDropped.Store(0)
	c.overflowReported.Store(false)

	c.sequenceID = uuid.NewString()
	c.startedAt = time.Now()

	if err := c.worker.Start(); err != nil {
		return SequenceInfo{}, fmt.Errorf("start notification worker: %w", err)
	}
	c.active.Store(true)

	info := SequenceInfo{
		ID:          c.sequenceID,
		CameraID:    c.cameraID,
		Capacity:    c.queue.Capacity(),
		BufferSlots: c.buffer.Slots(),
		StartedAt:   c.startedAt,
	}

	c.metrics.Sequences.Inc()
	c.metrics.QueueCapacity.Set(float64(info.Capacity))
	c.metrics.QueueDepth.Set(0)

	c.logger.Info("Sequence started",
		"sequence_id", info.ID,
		"capacity", info.Capacity,
		"buffer_slots", info.BufferSlots)

	c.publish(events.SequenceStartedEvent{
		CameraID:    c.cameraID,
		SequenceID:  info.ID,
		Capacity:    info.Capacity,
		BufferSlots: info.BufferSlots,
		Timestamp:   timestamp(),
	})

	return info, nil
}

// HandleFrame is the camera callback. It runs on the camera goroutine and
// never blocks on the host pipeline. Frames outside a sequence are ignored.
func (c *Controller) HandleFrame(meta notify.Metadata, view ringbuf.View) {
	if !c.active.Load() {
		return
	}
	c.received.Add(1)
	c.metrics.Received.Inc()
	c.queue.Push(notify.NewRecord(meta, view))
}

// Publish copies payload into the ring buffer and hands the resulting slot
// to HandleFrame, for producers that do not write the buffer themselves.
func (c *Controller) Publish(meta notify.Metadata, payload []byte) error {
	if !c.active.Load() {
		return ErrNoSequence
	}
	view, err := c.buffer.Write(payload)
	if err != nil {
		return err
	}
	c.HandleFrame(meta, view)
	return nil
}

// StopSequence stops the worker. No forward runs after it returns.
func (c *Controller) StopSequence() (SequenceSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active.Load() {
		return SequenceSummary{}, ErrNoSequence
	}
	c.active.Store(false)
	c.worker.Stop()
	c.syncDropped(notify.Metadata{})

	summary := SequenceSummary{
		ID:        c.sequenceID,
		Received:  c.received.Load(),
		Forwarded: c.worker.Forwarded(),
		Failures:  c.worker.Failures(),
		Dropped:   c.queue.Dropped(),
		Pending:   c.queue.Len(),
		Overflow:  c.queue.OverflowObserved(),
		Duration:  time.Since(c.startedAt),
	}

	c.metrics.QueueDepth.Set(0)

	if summary.Overflow {
		c.logger.Warn("Frames dropped during sequence",
			"sequence_id", summary.ID,
			"dropped", summary.Dropped,
			"capacity", c.queue.Capacity())
	}
	c.logger.Info("Sequence stopped",
		"sequence_id", summary.ID,
		"received", summary.Received,
		"forwarded", summary.Forwarded,
		"dropped", summary.Dropped,
		"pending", summary.Pending,
		"duration", summary.Duration)

	c.publish(events.SequenceStoppedEvent{
		CameraID:   c.cameraID,
		SequenceID: summary.ID,
		Received:   summary.Received,
		Forwarded:  summary.Forwarded,
		Dropped:    summary.Dropped,
		Failures:   summary.Failures,
		Overflow:   summary.Overflow,
		Timestamp:  timestamp(),
	})

	return summary, nil
}

// Status returns the current state and counters.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		CameraID:     c.cameraID,
		State:        c.worker.State(),
		Active:       c.active.Load(),
		SequenceID:   c.sequenceID,
		StartedAt:    c.startedAt,
		Capacity:     c.queue.Capacity(),
		BufferSlots:  c.buffer.Slots(),
		PendingSlots: c.pendingSlots,
		Overflow:     c.queue.OverflowObserved(),
		Pending:      c.queue.Len(),
		Received:     c.received.Load(),
		Forwarded:    c.worker.Forwarded(),
		Failures:     c.worker.Failures(),
		Dropped:      c.queue.Dropped(),
	}
}

// Close stops an active sequence and detaches from the slot property.
func (c *Controller) Close() {
	if _, err := c.StopSequence(); err == nil {
		c.logger.Debug("Active sequence stopped on close")
	}
	c.slots.Detach(c.slotsHandle)
}

// capacity is the worker's CapacityProvider.
func (c *Controller) capacity() int {
	n, err := CapacityFor(c.buffer.Slots())
	if err != nil {
		return 1
	}
	return n
}

// forward wraps the host pipeline forward with drop accounting and metrics.
// It runs on the worker goroutine.
func (c *Controller) forward(meta notify.Metadata, view ringbuf.View) error {
	c.syncDropped(meta)

	start := time.Now()
	defer func() {
		c.metrics.ForwardDuration.Observe(time.Since(start).Seconds())
		c.metrics.Forwarded.Inc()
		c.metrics.QueueDepth.Set(float64(c.queue.Len()))
	}()

	return c.forwardF(meta, view)
}

// syncDropped moves the queue's eviction count into metrics and reports the
// first overflow of the sequence.
func (c *Controller) syncDropped(meta notify.Metadata) {
	dropped := c.queue.Dropped()
	if prev := c.lastDropped.Swap(dropped); dropped > prev {
		c.metrics.Dropped.Add(float64(dropped - prev))
	}

	if !c.queue.OverflowObserved() || !c.overflowReported.CompareAndSwap(false, true) {
		return
	}

	c.logger.Warn("Notification queue overflow, oldest frames dropped",
		"sequence_id", c.sequenceID,
		"frame_nr", meta.FrameNr,
		"capacity", c.queue.Capacity())

	c.publish(events.FramesDroppedEvent{
		CameraID:   c.cameraID,
		SequenceID: c.sequenceID,
		FrameNr:    meta.FrameNr,
		Capacity:   c.queue.Capacity(),
		Timestamp:  timestamp(),
	})
}

func (c *Controller) onForwardError(meta notify.Metadata, err error) {
	c.metrics.Failures.Inc()
	c.publish(events.ForwardErrorEvent{
		CameraID:   c.cameraID,
		SequenceID: c.sequenceID,
		FrameNr:    meta.FrameNr,
		Error:      err.Error(),
		Timestamp:  timestamp(),
	})
}

func (c *Controller) onStateChange(oldState, newState notify.State) {
	c.publish(events.WorkerStateChangedEvent{
		CameraID:  c.cameraID,
		OldState:  string(oldState),
		NewState:  string(newState),
		Timestamp: timestamp(),
	})
}

// onSlotsChanged observes the slot count property.
func (c *Controller) onSlotsChanged(n int) {
	if err := ValidateSlots(n); err != nil {
		c.logger.Error("Ignoring invalid buffer size", "slots", n, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active.Load() {
		c.pendingSlots = n
		c.logger.Info("Buffer resize deferred until next sequence", "property", c.slots.Name(), "slots", n)
		return
	}
	c.pendingSlots = 0
	if err := c.resizeLocked(n); err != nil {
		c.logger.Error("Buffer resize failed", "slots", n, "error", err)
	}
}

func (c *Controller) resizeLocked(slots int) error {
	if slots == c.buffer.Slots() {
		return nil
	}
	if err := c.buffer.Resize(slots, c.buffer.FrameSize()); err != nil {
		return fmt.Errorf("resize ring buffer: %w", err)
	}

	capacity, _ := CapacityFor(slots)
	c.metrics.QueueCapacity.Set(float64(capacity))
	c.logger.Info("Ring buffer resized", "slots", slots, "capacity", capacity)

	c.publish(events.BufferResizedEvent{
		CameraID:  c.cameraID,
		Slots:     slots,
		Capacity:  capacity,
		Timestamp: timestamp(),
	})
	return nil
}

func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
