// Package pipeline holds host-side frame sinks that sit behind the
// notification worker.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/framenotify/internal/logging"
	"github.com/smazurov/framenotify/internal/notify"
	"github.com/smazurov/framenotify/internal/ringbuf"
)

// ErrCorruptFrame is returned when a copied frame fails verification.
var ErrCorruptFrame = errors.New("frame content does not match its metadata")

// Image is a frame owned by the host: metadata plus a private pixel copy.
type Image struct {
	Metadata notify.Metadata
	Pixels   []byte
}

// SequenceBufferOptions configures a SequenceBuffer.
type SequenceBufferOptions struct {
	// History is the number of images kept; older ones are overwritten.
	History int

	// Delay is slept after each copy to emulate a slow host.
	Delay time.Duration

	// Verify, if set, checks copied pixels against the frame number.
	Verify func(pixels []byte, frameNr uint64) bool

	Logger *slog.Logger
}

// SequenceBuffer copies every forwarded frame out of the ring buffer and
// keeps the most recent History images.
type SequenceBuffer struct {
	opts   SequenceBufferOptions
	logger *slog.Logger

	mu       sync.Mutex
	images   []Image
	head     int
	count    int
	inserted uint64
	rejected uint64
}

// NewSequenceBuffer creates an empty buffer. History below one is raised to one.
func NewSequenceBuffer(opts SequenceBufferOptions) *SequenceBuffer {
	opts.History = max(opts.History, 1)
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("pipeline")
	}
	return &SequenceBuffer{
		opts:   opts,
		logger: logger,
		images: make([]Image, opts.History),
	}
}

// Forward is a notify.ForwardFunc. The pixel copy happens before Forward
// returns, so the ring slot may be reused afterwards.
func (s *SequenceBuffer) Forward(meta notify.Metadata, view ringbuf.View) error {
	pixels := make([]byte, view.Len())
	if _, err := view.CopyTo(pixels); err != nil {
		s.reject()
		s.logger.Debug("Slot overwritten before copy", "frame_nr", meta.FrameNr, "slot", view.Slot(), "generation", view.Generation())
		return fmt.Errorf("copy frame %d: %w", meta.FrameNr, err)
	}
	if s.opts.Verify != nil && !s.opts.Verify(pixels, meta.FrameNr) {
		s.reject()
		return fmt.Errorf("frame %d: %w", meta.FrameNr, ErrCorruptFrame)
	}

	s.insert(Image{Metadata: meta, Pixels: pixels})
	s.logger.Debug("Image inserted", "frame_nr", meta.FrameNr, "bytes", len(pixels))

	if s.opts.Delay > 0 {
		time.Sleep(s.opts.Delay)
	}
	return nil
}

func (s *SequenceBuffer) insert(img Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := (s.head + s.count) % len(s.images)
	s.images[tail] = img
	if s.count == len(s.images) {
		s.head = (s.head + 1) % len(s.images)
	} else {
		s.count++
	}
	s.inserted++
}

func (s *SequenceBuffer) reject() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

// Latest returns the newest image.
func (s *SequenceBuffer) Latest() (Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return Image{}, false
	}
	return s.images[(s.head+s.count-1)%len(s.images)], true
}

// Snapshot returns the retained images, oldest first.
func (s *SequenceBuffer) Snapshot() []Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Image, s.count)
	for i := range out {
		out[i] = s.images[(s.head+i)%len(s.images)]
	}
	return out
}

// Inserted returns the number of images accepted since the last Reset.
func (s *SequenceBuffer) Inserted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserted
}

// Rejected returns the number of frames that could not be copied or failed
// verification since the last Reset.
func (s *SequenceBuffer) Rejected() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// Reset drops all images and counters.
func (s *SequenceBuffer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.images)
	s.head = 0
	s.count = 0
	s.inserted = 0
	s.rejected = 0
}
