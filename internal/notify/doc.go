// Package notify decouples a capture driver's frame callback from the code
// that forwards frames into the host pipeline.
//
// The package offers two pieces:
//
// Queue is a bounded FIFO of frame notifications with a drop-oldest policy:
//   - Push never blocks and never fails; when full the oldest record is evicted
//   - WaitAndPop blocks until a record arrives or a stop is requested
//   - OverflowObserved stays set from the first eviction until Reset
//
// Worker drains a Queue on its own goroutine:
//   - State tracking (idle, running, stopping)
//   - Forwarding happens outside the queue lock, one record at a time, in FIFO order
//   - Stop waits for an in-flight forward to finish, then joins the goroutine;
//     records still queued are not forwarded
//   - Forward errors and panics are reported through OnError and never stop the loop
//
// Example usage:
//
//	queue := notify.NewQueue(12)
//	worker := notify.NewWorker(queue, &notify.WorkerOptions{
//	    Forward: func(meta notify.Metadata, data ringbuf.View) error {
//	        return pipeline.Insert(meta, data)
//	    },
//	    Capacity: func() int { return buf.Slots() - 4 },
//	})
//	if err := worker.Reset(); err != nil {
//	    return err // ErrNotIdle
//	}
//	if err := worker.Start(); err != nil {
//	    return err // ErrAlreadyRunning or ErrStopPending
//	}
//	defer worker.Stop()
//
//	// from the driver callback
//	queue.Push(notify.NewRecord(meta, view))
package notify
