package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/smazurov/framenotify/internal/acquisition"
	"github.com/smazurov/framenotify/internal/camera"
	"github.com/smazurov/framenotify/internal/events"
	"github.com/smazurov/framenotify/internal/logging"
	"github.com/smazurov/framenotify/internal/metrics"
	"github.com/smazurov/framenotify/internal/pipeline"
	"github.com/smazurov/framenotify/internal/ringbuf"
	"github.com/spf13/cobra"
)

// SimulationConfig describes one offline sequence.
type SimulationConfig struct {
	CameraID     string
	Frames       uint64
	Slots        int
	Width        int
	Height       int
	FPS          float64
	Delay        time.Duration // per-frame host delay
	History      int
	DrainTimeout time.Duration // how long to wait for the queue to empty after the last frame
}

// SimulationResult reports the outcome of RunSimulation.
type SimulationResult struct {
	SequenceID     string        `json:"sequence_id"`
	Slots          int           `json:"slots"`
	Capacity       int           `json:"capacity"`
	Received       uint64        `json:"received"`
	Forwarded      uint64        `json:"forwarded"`
	Failures       uint64        `json:"failures"`
	Dropped        uint64        `json:"dropped"`
	Pending        int           `json:"pending"`
	Overflow       bool          `json:"overflow"`
	Copied         uint64        `json:"copied"`
	Corrupt        uint64        `json:"corrupt"`
	LastFrame      uint64        `json:"last_frame"`
	FirstAfterDrop uint64        `json:"first_after_drop,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// RunSimulation runs a synthetic camera through the acquisition controller
// into a host sequence buffer for one sequence.
func RunSimulation(ctx context.Context, cfg SimulationConfig) (SimulationResult, error) {
	if cfg.CameraID == "" {
		cfg.CameraID = "sim"
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if err := acquisition.ValidateSlots(cfg.Slots); err != nil {
		return SimulationResult{}, fmt.Errorf("slots: %w", err)
	}

	buf, err := ringbuf.New(cfg.Slots, camera.FrameSize(cfg.Width, cfg.Height))
	if err != nil {
		return SimulationResult{}, err
	}

	cam, err := camera.New(camera.Options{
		ID:     cfg.CameraID,
		Width:  cfg.Width,
		Height: cfg.Height,
		FPS:    cfg.FPS,
		Frames: cfg.Frames,
		Buffer: buf,
		Logger: logging.GetLogger("camera"),
	})
	if err != nil {
		return SimulationResult{}, err
	}

	sink := pipeline.NewSequenceBuffer(pipeline.SequenceBufferOptions{
		History: cfg.History,
		Delay:   cfg.Delay,
		Verify:  camera.VerifyPattern,
		Logger:  logging.GetLogger("pipeline"),
	})

	bus := events.New()
	var firstAfterDrop atomic.Uint64
	unsub := bus.Subscribe(func(e events.FramesDroppedEvent) {
		firstAfterDrop.Store(e.FrameNr)
	})
	defer unsub()

	ctrl, err := acquisition.NewController(&acquisition.Options{
		CameraID: cfg.CameraID,
		Buffer:   buf,
		Forward:  sink.Forward,
		Bus:      bus,
		Logger:   logging.GetLogger("acquisition"),
	})
	if err != nil {
		return SimulationResult{}, err
	}
	defer func() {
		ctrl.Close()
		metrics.DeleteCamera(cfg.CameraID)
	}()

	info, err := ctrl.StartSequence()
	if err != nil {
		return SimulationResult{}, err
	}

	if err := cam.Run(ctx, ctrl.HandleFrame); err != nil {
		return SimulationResult{}, err
	}
	waitDrained(ctx, ctrl, cfg.DrainTimeout)

	summary, err := ctrl.StopSequence()
	if err != nil {
		return SimulationResult{}, err
	}

	res := SimulationResult{
		SequenceID:     summary.ID,
		Slots:          info.BufferSlots,
		Capacity:       info.Capacity,
		Received:       summary.Received,
		Forwarded:      summary.Forwarded,
		Failures:       summary.Failures,
		Dropped:        summary.Dropped,
		Pending:        summary.Pending,
		Overflow:       summary.Overflow,
		Copied:         sink.Inserted(),
		Corrupt:        sink.Rejected(),
		FirstAfterDrop: firstAfterDrop.Load(),
		Duration:       summary.Duration,
	}
	if img, ok := sink.Latest(); ok {
		res.LastFrame = img.Metadata.FrameNr
	}
	return res, nil
}

// waitDrained polls until the notification queue is empty, ctx ends or the
// timeout passes.
func waitDrained(ctx context.Context, ctrl *acquisition.Controller, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for ctrl.Status().Pending > 0 && time.Now().Before(deadline) && ctx.Err() == nil {
		time.Sleep(time.Millisecond)
	}
}

func printSummary(w io.Writer, res SimulationResult) {
	fmt.Fprintf(w, "sequence     %s\n", res.SequenceID)
	fmt.Fprintf(w, "buffer       %d slots, queue capacity %d\n", res.Slots, res.Capacity)
	fmt.Fprintf(w, "received     %d\n", res.Received)
	fmt.Fprintf(w, "forwarded    %d (%d failed)\n", res.Forwarded, res.Failures)
	fmt.Fprintf(w, "dropped      %d\n", res.Dropped)
	fmt.Fprintf(w, "pending      %d\n", res.Pending)
	fmt.Fprintf(w, "copied       %d (%d corrupt)\n", res.Copied, res.Corrupt)
	fmt.Fprintf(w, "last frame   %d\n", res.LastFrame)
	fmt.Fprintf(w, "duration     %s\n", res.Duration.Round(time.Millisecond))
	if res.Overflow {
		fmt.Fprint(w, "WARNING: notification queue overflowed, oldest frames were dropped")
		if res.FirstAfterDrop > 0 {
			fmt.Fprintf(w, " (first frame after overflow: %d)", res.FirstAfterDrop)
		}
		fmt.Fprintln(w)
	}
}

// CreateSimulateCmd creates the simulate command.
func CreateSimulateCmd() *cobra.Command {
	var cfg SimulationConfig
	var logLevel string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one offline sequence against a slow consumer",
		Long: `Runs the synthetic camera for a fixed number of frames through the acquisition ` +
			`controller into a host sequence buffer, then prints how many frames were forwarded ` +
			`and how many were dropped on queue overflow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{
				Level:  logLevel,
				Format: "text",
				Output: cmd.ErrOrStderr(),
			})

			res, err := RunSimulation(cmd.Context(), cfg)
			if err != nil {
				if errors.Is(err, acquisition.ErrBufferTooSmall) {
					return fmt.Errorf("%w (need at least %d slots)", err, acquisition.MinBufferSlots)
				}
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.CameraID, "camera", "sim", "Camera identifier")
	cmd.Flags().Uint64VarP(&cfg.Frames, "frames", "n", 500, "Number of frames to acquire")
	cmd.Flags().IntVarP(&cfg.Slots, "slots", "s", 16, "Ring buffer slot count")
	cmd.Flags().IntVar(&cfg.Width, "width", 64, "Frame width in pixels")
	cmd.Flags().IntVar(&cfg.Height, "height", 48, "Frame height in pixels")
	cmd.Flags().Float64Var(&cfg.FPS, "fps", 0, "Frames per second, 0 runs free")
	cmd.Flags().DurationVarP(&cfg.Delay, "delay", "d", 2*time.Millisecond, "Artificial host delay per frame")
	cmd.Flags().IntVar(&cfg.History, "history", 32, "Images kept by the host sequence buffer")
	cmd.Flags().DurationVar(&cfg.DrainTimeout, "drain-timeout", 5*time.Second, "Time allowed for queued frames to drain")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Logging level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")

	return cmd
}
