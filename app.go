package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/smazurov/framenotify/internal/acquisition"
	"github.com/smazurov/framenotify/internal/api"
	"github.com/smazurov/framenotify/internal/camera"
	"github.com/smazurov/framenotify/internal/config"
	"github.com/smazurov/framenotify/internal/events"
	"github.com/smazurov/framenotify/internal/logging"
	"github.com/smazurov/framenotify/internal/nats"
	"github.com/smazurov/framenotify/internal/notify"
	"github.com/smazurov/framenotify/internal/pipeline"
	"github.com/smazurov/framenotify/internal/property"
	"github.com/smazurov/framenotify/internal/ringbuf"
	"github.com/smazurov/framenotify/internal/systemd"
)

// app owns the long-running components of the default command.
type app struct {
	opts   *Options
	logger *slog.Logger

	bus        *events.Bus
	camera     *camera.Camera
	sink       *pipeline.SequenceBuffer
	controller *acquisition.Controller
	watcher    *config.Watcher[config.CameraSettings]
	server     *api.Server
	notifier   *systemd.Notifier

	natsServer *nats.Server
	frames     *nats.FrameClient
	bridge     *nats.Bridge

	cancel     context.CancelFunc
	cameraDone chan struct{}
	stopOnce   sync.Once
}

func newApp(opts *Options, logger *slog.Logger) (*app, error) {
	if err := acquisition.ValidateSlots(opts.CameraBufferSlots); err != nil {
		return nil, fmt.Errorf("camera.buffer_slots: %w", err)
	}

	a := &app{
		opts:       opts,
		logger:     logger,
		bus:        events.New(),
		cameraDone: make(chan struct{}),
	}

	buf, err := ringbuf.New(opts.CameraBufferSlots, camera.FrameSize(opts.CameraWidth, opts.CameraHeight))
	if err != nil {
		return nil, err
	}

	a.camera, err = camera.New(camera.Options{
		ID:       opts.CameraID,
		Width:    opts.CameraWidth,
		Height:   opts.CameraHeight,
		FPS:      opts.CameraFPS,
		Exposure: time.Duration(opts.CameraExposureMs) * time.Millisecond,
		Buffer:   buf,
		Logger:   logging.GetLogger("camera").With("camera_id", opts.CameraID),
	})
	if err != nil {
		return nil, fmt.Errorf("create camera: %w", err)
	}

	sinkOpts := pipeline.SequenceBufferOptions{
		History: opts.PipelineHistory,
		Delay:   time.Duration(opts.PipelineForwardDelayMs) * time.Millisecond,
		Logger:  logging.GetLogger("pipeline").With("camera_id", opts.CameraID),
	}
	if opts.PipelineVerify {
		sinkOpts.Verify = camera.VerifyPattern
	}
	a.sink = pipeline.NewSequenceBuffer(sinkOpts)

	forward := notify.ForwardFunc(a.sink.Forward)
	if opts.NatsEnabled {
		natsLogger := logging.GetLogger("nats")
		url := opts.NatsURL
		if opts.NatsEmbedded {
			a.natsServer = nats.NewServer(nats.ServerOptions{Port: opts.NatsPort, Logger: natsLogger})
			if url == "" {
				url = fmt.Sprintf("nats://%s:%d", nats.DefaultHost, opts.NatsPort)
			}
		}
		if url == "" {
			return nil, errors.New("nats.url is required when the embedded server is disabled")
		}
		a.frames = nats.NewFrameClient(url, opts.CameraID, natsLogger)
		forward = pipeline.Chain(a.sink.Forward, a.frames.Forward)
	}

	slots := property.New("buffer_slots", opts.CameraBufferSlots,
		property.WithValidator(acquisition.ValidateSlots))

	a.controller, err = acquisition.NewController(&acquisition.Options{
		CameraID: opts.CameraID,
		Buffer:   buf,
		Slots:    slots,
		Forward:  forward,
		Bus:      a.bus,
		Logger:   logging.GetLogger("acquisition"),
	})
	if err != nil {
		return nil, fmt.Errorf("create controller: %w", err)
	}

	if a.frames != nil {
		a.frames.OnControl(nats.ControlHandler(a.controller, logging.GetLogger("nats")))
		a.bridge = nats.NewBridge(opts.CameraID, a.bus, a.frames, logging.GetLogger("nats"))
	}

	a.watcher = config.NewConfigWatcher(opts.Config, config.LoadCameraSettings, logger)
	a.watcher.OnReload(a.applyCameraSettings)

	a.notifier = systemd.NewNotifier(logger)
	a.notifier.WatchBus(a.bus)

	apiOpts := &api.Options{
		AuthUsername: opts.AuthUsername,
		AuthPassword: opts.AuthPassword,
		Acquisition:  a.controller,
		Frames:       a.sink,
		Bus:          a.bus,
	}
	if a.frames != nil {
		apiOpts.Publisher = a.frames
	}
	a.server = api.NewServer(apiOpts)

	return a, nil
}

// applyCameraSettings pushes a reloaded buffer size into the controller.
func (a *app) applyCameraSettings(s config.CameraSettings) {
	if s.BufferSlots == 0 || s.BufferSlots == a.controller.Slots().Get() {
		return
	}
	if err := a.controller.SetBufferSlots(s.BufferSlots); err != nil {
		a.logger.Warn("Ignoring buffer size from config", "slots", s.BufferSlots, "error", err)
		return
	}
	a.logger.Info("Buffer size changed in config", "slots", s.BufferSlots)
}

// run starts every component and serves HTTP until shutdown.
func (a *app) run() error {
	if a.natsServer != nil {
		if err := a.natsServer.Start(); err != nil {
			return fmt.Errorf("start NATS server: %w", err)
		}
	}
	if a.frames != nil {
		// Connection failures leave the client in offline mode.
		_ = a.frames.Connect()
		a.bridge.Start()
	}

	if err := a.watcher.Start(); err != nil {
		a.logger.Warn("Config watcher disabled", "path", a.opts.Config, "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.logger.Info("Starting camera", "camera", a.camera.ID())
	go func() {
		defer close(a.cameraDone)
		if err := a.camera.Run(ctx, a.controller.HandleFrame); err != nil {
			a.logger.Error("Camera stopped", "error", err)
		}
	}()

	if a.opts.CameraAutostart {
		if _, err := a.controller.StartSequence(); err != nil {
			a.logger.Warn("Autostart failed", "error", err)
		}
	}

	a.notifier.Ready()
	a.notifier.Status("%s: serving API on %s", a.opts.CameraID, a.opts.Port)

	err := a.server.Start(a.opts.Port)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// shutdown stops components in reverse dependency order.
func (a *app) shutdown() {
	a.stopOnce.Do(func() {
		a.notifier.Stopping()

		if err := a.server.Stop(); err != nil {
			a.logger.Error("Error stopping HTTP server", "error", err)
		}

		if a.cancel != nil {
			a.cancel()
			<-a.cameraDone
			a.logger.Info("Camera stopped", "camera", a.camera.ID(), "last_frame", a.camera.FrameNr())
		}
		a.controller.Close()

		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Error stopping config watcher", "error", err)
		}

		if a.bridge != nil {
			a.bridge.Stop()
		}
		if a.frames != nil {
			a.frames.Close()
		}
		if a.natsServer != nil && a.natsServer.IsRunning() {
			a.logger.Info("Stopping embedded NATS server", "clients", a.natsServer.NumClients())
			a.natsServer.Stop()
		}
	})
}
