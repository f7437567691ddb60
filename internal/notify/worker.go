package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	// ErrAlreadyRunning is returned by Start when the worker is not idle.
	ErrAlreadyRunning = errors.New("notification worker already running")
	// ErrNotIdle is returned by Reset while the worker is running or stopping.
	ErrNotIdle = errors.New("notification worker not idle")
	// ErrStopPending is returned by Start when the queue still carries a stop
	// request from the previous sequence.
	ErrStopPending = errors.New("queue stop pending, reset required")
)

// ForwardPanicError wraps a panic raised by a ForwardFunc.
type ForwardPanicError struct {
	FrameNr uint64
	Value   any
}

func (e *ForwardPanicError) Error() string {
	return fmt.Sprintf("forward panicked on frame %d: %v", e.FrameNr, e.Value)
}

// Worker drains a Queue on a dedicated goroutine and hands every record to
// the forward callback.
type Worker struct {
	queue  *Queue
	opts   WorkerOptions
	logger *slog.Logger

	mu    sync.Mutex
	state State
	done  chan struct{}

	forwarded atomic.Uint64
	failures  atomic.Uint64
}

// NewWorker creates an idle worker bound to queue.
func NewWorker(queue *Queue, opts *WorkerOptions) *Worker {
	if queue == nil {
		panic("notify: queue is required")
	}
	if opts == nil || opts.Forward == nil || opts.Capacity == nil {
		panic("notify: WorkerOptions with Forward and Capacity is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		queue:  queue,
		opts:   *opts,
		logger: logger,
		state:  StateIdle,
	}
}

// Queue returns the queue the worker drains.
func (w *Worker) Queue() *Queue {
	return w.queue
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Forwarded returns the number of forward calls made since the last Reset.
func (w *Worker) Forwarded() uint64 {
	return w.forwarded.Load()
}

// Failures returns the number of forward calls that failed since the last Reset.
func (w *Worker) Failures() uint64 {
	return w.failures.Load()
}

// Reset prepares the queue for a new sequence using the capacity reported by
// the CapacityProvider. Only permitted while idle.
func (w *Worker) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateIdle {
		return fmt.Errorf("%w: state %s", ErrNotIdle, w.state)
	}

	capacity := w.opts.Capacity()
	w.queue.Reset(capacity)
	w.forwarded.Store(0)
	w.failures.Store(0)

	w.logger.Debug("Notification queue reset", "capacity", w.queue.Capacity())
	return nil
}

// Start launches the service loop.
func (w *Worker) Start() error {
	w.mu.Lock()
	if w.state != StateIdle {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrAlreadyRunning, state)
	}
	if w.queue.StopRequested() {
		w.mu.Unlock()
		return ErrStopPending
	}

	done := make(chan struct{})
	w.done = done
	w.state = StateRunning
	w.mu.Unlock()

	w.notifyStateChange(StateIdle, StateRunning)
	w.logger.Debug("Notification worker started", "capacity", w.queue.Capacity())

	go func() {
		defer close(done)
		w.run()
	}()

	return nil
}

// Stop requests the service loop to exit and waits for it. A forward that is
// in progress completes first. No forward happens after Stop returns.
// Stop does not drain the queue: records still queued when the stop is
// observed are left unforwarded and remain counted by Queue.Len until the
// next Reset. Stop must not be called from inside the ForwardFunc.
func (w *Worker) Stop() {
	w.mu.Lock()
	switch w.state {
	case StateIdle:
		w.mu.Unlock()
		return
	case StateStopping:
		done := w.done
		w.mu.Unlock()
		<-done
		return
	}

	w.state = StateStopping
	done := w.done
	w.mu.Unlock()
	w.notifyStateChange(StateRunning, StateStopping)

	w.queue.RequestStop()
	<-done

	w.mu.Lock()
	w.state = StateIdle
	w.done = nil
	w.mu.Unlock()
	w.notifyStateChange(StateStopping, StateIdle)

	w.logger.Debug("Notification worker stopped",
		"forwarded", w.forwarded.Load(),
		"failures", w.failures.Load(),
		"dropped", w.queue.Dropped())
}

// run is the service loop.
func (w *Worker) run() {
	for {
		r, ok := w.queue.WaitAndPop()
		if !ok {
			return
		}

		err := w.forward(r)
		w.forwarded.Add(1)
		if err == nil {
			continue
		}

		w.failures.Add(1)
		w.logger.Warn("Frame forward failed", "frame_nr", r.meta.FrameNr, "error", err)
		if w.opts.OnError != nil {
			w.opts.OnError(r.meta, err)
		}
	}
}

// forward invokes the callback and converts a panic into a ForwardPanicError.
func (w *Worker) forward(r Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &ForwardPanicError{FrameNr: r.meta.FrameNr, Value: p}
		}
	}()
	return w.opts.Forward(r.meta, r.data)
}

func (w *Worker) notifyStateChange(oldState, newState State) {
	if w.opts.OnStateChange != nil {
		w.opts.OnStateChange(oldState, newState)
	}
}
