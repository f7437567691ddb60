// Package camera simulates a frame-producing camera driver. It writes 16-bit
// monochrome frames into a ring buffer at a fixed rate and invokes a callback
// per frame on its own goroutine, the way a vendor SDK delivers
// end-of-frame notifications.
package camera

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/smazurov/framenotify/internal/logging"
	"github.com/smazurov/framenotify/internal/notify"
	"github.com/smazurov/framenotify/internal/ringbuf"
)

// BytesPerPixel is the sample size of generated frames.
const BytesPerPixel = 2

// ErrAlreadyRunning is returned when Run is called concurrently.
var ErrAlreadyRunning = errors.New("camera already running")

// FrameHandler receives each completed frame. It is called synchronously from
// the acquisition goroutine, one frame at a time, and must return quickly.
type FrameHandler func(meta notify.Metadata, view ringbuf.View)

// Options configures a Camera.
type Options struct {
	ID       string
	Width    int
	Height   int
	FPS      float64       // 0 runs free, as fast as the handler returns
	Exposure time.Duration // reported in metadata
	Frames   uint64        // stop after this many frames, 0 for unlimited

	// Buffer receives the pixels. If nil, a 16-slot buffer is allocated.
	Buffer *ringbuf.Buffer

	Logger *slog.Logger
}

// Camera is a synthetic frame source.
type Camera struct {
	opts    Options
	buffer  *ringbuf.Buffer
	logger  *slog.Logger
	roi     notify.Region
	readout time.Duration

	running atomic.Bool
	frameNr atomic.Uint64
}

// FrameSize returns the byte size of one width x height frame.
func FrameSize(width, height int) int {
	return width * height * BytesPerPixel
}

// New creates a camera. The buffer's slot size must fit one frame.
func New(opts Options) (*Camera, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.Width > 0xFFFF || opts.Height > 0xFFFF {
		return nil, fmt.Errorf("camera: invalid geometry %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS < 0 {
		return nil, fmt.Errorf("camera: invalid frame rate %v", opts.FPS)
	}

	size := FrameSize(opts.Width, opts.Height)
	buf := opts.Buffer
	if buf == nil {
		var err error
		if buf, err = ringbuf.New(16, size); err != nil {
			return nil, err
		}
	} else if buf.FrameSize() < size {
		return nil, fmt.Errorf("camera: %w: slot %d bytes, frame %d bytes", ringbuf.ErrFrameTooLarge, buf.FrameSize(), size)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("camera")
	}

	return &Camera{
		opts:   opts,
		buffer: buf,
		logger: logger.With("camera_id", opts.ID),
		roi: notify.Region{
			Width:  uint16(opts.Width),
			Height: uint16(opts.Height),
		},
		// Rolling readout at roughly 10µs per line.
		readout: time.Duration(opts.Height) * 10 * time.Microsecond,
	}, nil
}

// ID returns the camera identifier.
func (c *Camera) ID() string {
	return c.opts.ID
}

// FrameNr returns the number of the last frame produced.
func (c *Camera) FrameNr() uint64 {
	return c.frameNr.Load()
}

// Run produces frames until ctx is cancelled or the frame limit is reached.
// Frame numbers continue across runs; the first frame of each run carries
// FlagDiscontinuity.
func (c *Camera) Run(ctx context.Context, handler FrameHandler) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	var tick <-chan time.Time
	if c.opts.FPS > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / c.opts.FPS))
		defer ticker.Stop()
		tick = ticker.C
	}

	c.logger.Info("Camera acquisition started",
		"width", c.opts.Width,
		"height", c.opts.Height,
		"fps", c.opts.FPS)

	var produced uint64
	flags := notify.FlagDiscontinuity
	for {
		if c.opts.Frames > 0 && produced >= c.opts.Frames {
			c.logger.Info("Camera frame limit reached", "frames", produced)
			return nil
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return c.stopped(ctx, produced)
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return c.stopped(ctx, produced)
		}

		meta, view := c.capture(flags)
		handler(meta, view)
		flags = 0
		produced++
	}
}

func (c *Camera) stopped(ctx context.Context, produced uint64) error {
	c.logger.Info("Camera acquisition stopped", "frames", produced)
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// capture fills the next ring slot with the test pattern for a new frame.
func (c *Camera) capture(flags notify.StatusFlags) (notify.Metadata, ringbuf.View) {
	nr := c.frameNr.Add(1)
	start := time.Now()

	size := FrameSize(c.opts.Width, c.opts.Height)
	view := c.buffer.Fill(func(dst []byte) int {
		FillPattern(dst[:size], nr)
		return size
	})

	return notify.Metadata{
		FrameNr:   nr,
		Timestamp: start,
		ROI:       c.roi,
		Exposure:  c.opts.Exposure,
		Readout:   c.readout,
		Flags:     flags | notify.FlagTriggered,
	}, view
}

// Pixel returns the test pattern value of pixel i in frame frameNr.
func Pixel(frameNr uint64, i int) uint16 {
	return uint16(frameNr*257 + uint64(i))
}

// FillPattern writes the test pattern for frameNr into dst.
func FillPattern(dst []byte, frameNr uint64) {
	for i := 0; i+BytesPerPixel <= len(dst); i += BytesPerPixel {
		binary.LittleEndian.PutUint16(dst[i:], Pixel(frameNr, i/BytesPerPixel))
	}
}

// VerifyPattern reports whether pixels hold the test pattern of frameNr, so
// sinks can detect frames that were overwritten while being read.
func VerifyPattern(pixels []byte, frameNr uint64) bool {
	for i := 0; i+BytesPerPixel <= len(pixels); i += BytesPerPixel {
		if binary.LittleEndian.Uint16(pixels[i:]) != Pixel(frameNr, i/BytesPerPixel) {
			return false
		}
	}
	return true
}
