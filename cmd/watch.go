package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/framenotify/internal/camera"
	"github.com/smazurov/framenotify/internal/logging"
	"github.com/smazurov/framenotify/internal/nats"
	"github.com/spf13/cobra"
)

// WatchStats summarizes what a watch session received.
type WatchStats struct {
	Frames    uint64 `json:"frames"`
	Corrupt   uint64 `json:"corrupt"`   // pixels do not match the test pattern
	Gaps      uint64 `json:"gaps"`      // frame numbers skipped between consecutive messages
	Sequences uint64 `json:"sequences"` // sequence state messages
}

type frameWatcher struct {
	out   io.Writer
	quiet bool
	limit uint64
	done  chan struct{}

	mu    sync.Mutex
	stats WatchStats
	last  map[string]uint64
}

func newFrameWatcher(out io.Writer, limit uint64, quiet bool) *frameWatcher {
	return &frameWatcher{
		out:   out,
		quiet: quiet,
		limit: limit,
		done:  make(chan struct{}),
		last:  make(map[string]uint64),
	}
}

func (w *frameWatcher) frame(m nats.FrameMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.limit > 0 && w.stats.Frames >= w.limit {
		return
	}
	w.stats.Frames++

	ok := camera.VerifyPattern(m.Pixels, m.FrameNr)
	if !ok {
		w.stats.Corrupt++
	}
	if prev, seen := w.last[m.CameraID]; seen && m.FrameNr > prev+1 {
		w.stats.Gaps += m.FrameNr - prev - 1
	}
	w.last[m.CameraID] = m.FrameNr

	if !w.quiet {
		meta := m.Metadata()
		status := "ok"
		if !ok {
			status = "CORRUPT"
		}
		_, _ = fmt.Fprintf(w.out, "%s frame=%d ts=%s roi=%dx%d bytes=%d %s\n",
			m.CameraID, m.FrameNr, meta.Timestamp.Format(time.RFC3339Nano),
			meta.ROI.Width, meta.ROI.Height, len(m.Pixels), status)
	}

	if w.limit > 0 && w.stats.Frames == w.limit {
		close(w.done)
	}
}

func (w *frameWatcher) sequence(m nats.SequenceMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.Sequences++
	if w.quiet {
		return
	}
	switch m.State {
	case "stopped":
		_, _ = fmt.Fprintf(w.out, "%s sequence %s stopped: forwarded=%d dropped=%d overflow=%t\n",
			m.CameraID, m.SequenceID, m.Forwarded, m.Dropped, m.Overflow)
	default:
		_, _ = fmt.Fprintf(w.out, "%s sequence %s %s\n", m.CameraID, m.SequenceID, m.State)
	}
}

func (w *frameWatcher) snapshot() WatchStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Watch subscribes to a camera's frame and sequence subjects and reports what
// arrives until ctx ends or limit frames were received.
func Watch(ctx context.Context, sub *nats.Subscriber, cameraID string, limit uint64, out io.Writer, quiet bool) (WatchStats, error) {
	w := newFrameWatcher(out, limit, quiet)

	if err := sub.Frames(cameraID, w.frame); err != nil {
		return WatchStats{}, err
	}
	if err := sub.Sequences(cameraID, w.sequence); err != nil {
		return WatchStats{}, err
	}

	select {
	case <-ctx.Done():
	case <-w.done:
	}
	return w.snapshot(), nil
}

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	var url, cameraID string
	var count uint64
	var quiet bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print frames and sequence events published over NATS",
		Long: `Subscribes to the frame and sequence subjects of a running framenotify ` +
			`instance, checks every frame against the synthetic test pattern and ` +
			`reports frame number gaps. Use --camera '*' to watch all cameras.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text", Output: cmd.ErrOrStderr()})

			sub, err := nats.NewSubscriber(url, logging.GetLogger("nats"))
			if err != nil {
				return fmt.Errorf("connect to %s: %w", url, err)
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stats, err := Watch(ctx, sub, cameraID, count, cmd.OutOrStdout(), quiet)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "frames=%d corrupt=%d gaps=%d sequences=%d\n",
				stats.Frames, stats.Corrupt, stats.Gaps, stats.Sequences)
			return err
		},
	}

	cmd.Flags().StringVar(&url, "url", fmt.Sprintf("nats://%s:%d", nats.DefaultHost, nats.DefaultPort), "NATS server URL")
	cmd.Flags().StringVar(&cameraID, "camera", "cam0", "Camera identifier, or * for all")
	cmd.Flags().Uint64VarP(&count, "count", "n", 0, "Exit after this many frames (0 runs until interrupted)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the summary")

	return cmd
}
