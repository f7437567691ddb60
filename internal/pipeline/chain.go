package pipeline

import (
	"errors"

	"github.com/smazurov/framenotify/internal/notify"
	"github.com/smazurov/framenotify/internal/ringbuf"
)

// Chain returns a ForwardFunc that hands each frame to every fn in order.
// All sinks run even if an earlier one fails; their errors are joined.
func Chain(fns ...notify.ForwardFunc) notify.ForwardFunc {
	return func(meta notify.Metadata, view ringbuf.View) error {
		var errs []error
		for _, fn := range fns {
			if err := fn(meta, view); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
