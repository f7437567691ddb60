package main

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/framenotify/cmd"
	"github.com/smazurov/framenotify/internal/config"
	"github.com/smazurov/framenotify/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings, disabled when either is empty
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Camera settings
	CameraID          string  `help:"Camera identifier" default:"cam0" toml:"camera.id" env:"CAMERA_ID"`
	CameraWidth       int     `help:"Frame width in pixels" default:"640" toml:"camera.width" env:"CAMERA_WIDTH"`
	CameraHeight      int     `help:"Frame height in pixels" default:"480" toml:"camera.height" env:"CAMERA_HEIGHT"`
	CameraFPS         float64 `help:"Frames per second, 0 runs free" default:"30" toml:"camera.fps" env:"CAMERA_FPS"`
	CameraBufferSlots int     `help:"Ring buffer slot count (min 3)" default:"16" toml:"camera.buffer_slots" env:"CAMERA_BUFFER_SLOTS"`
	CameraExposureMs  int     `help:"Exposure reported in frame metadata" default:"10" toml:"camera.exposure_ms" env:"CAMERA_EXPOSURE_MS"`
	CameraAutostart   bool    `help:"Start a sequence when the server starts" default:"false" toml:"camera.autostart" env:"CAMERA_AUTOSTART"`

	// Host pipeline settings
	PipelineHistory        int  `help:"Images kept by the host sequence buffer" default:"32" toml:"pipeline.history" env:"PIPELINE_HISTORY"`
	PipelineForwardDelayMs int  `help:"Artificial per-frame host delay" default:"0" toml:"pipeline.forward_delay_ms" env:"PIPELINE_FORWARD_DELAY_MS"`
	PipelineVerify         bool `help:"Verify the test pattern of every copied frame" default:"true" toml:"pipeline.verify" env:"PIPELINE_VERIFY"`

	// NATS settings
	NatsEnabled  bool   `help:"Publish frames and accept commands over NATS" default:"false" toml:"nats.enabled" env:"NATS_ENABLED"`
	NatsEmbedded bool   `help:"Run an embedded NATS server" default:"true" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NatsURL      string `help:"NATS server URL, defaults to the embedded server" default:"" toml:"nats.url" env:"NATS_URL"`

	// Logging settings
	LoggingLevel       string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat      string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingAcquisition string `help:"Acquisition logging level" default:"info" toml:"logging.acquisition" env:"LOGGING_ACQUISITION"`
	LoggingNotify      string `help:"Notification worker logging level" default:"info" toml:"logging.notify" env:"LOGGING_NOTIFY"`
	LoggingCamera      string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingPipeline    string `help:"Host pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingAPI         string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingNats        string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"acquisition": o.LoggingAcquisition,
			"notify":      o.LoggingNotify,
			"camera":      o.LoggingCamera,
			"pipeline":    o.LoggingPipeline,
			"api":         o.LoggingAPI,
			"nats":        o.LoggingNats,
		},
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		var running atomic.Pointer[app]
		hooks.OnStart(func() {
			a, err := newApp(opts, logger)
			if err != nil {
				logger.Error("Failed to initialize", "error", err)
				os.Exit(1)
			}
			running.Store(a)
			if err := a.run(); err != nil {
				logger.Error("Server failed", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if a := running.Load(); a != nil {
				a.shutdown()
			}
		})
	})

	cli.Root().Use = "framenotify"
	cli.Root().Short = "Camera frame notification service"

	cli.Root().AddCommand(cmd.CreateSimulateCmd())
	cli.Root().AddCommand(cmd.CreateControlCmd())
	cli.Root().AddCommand(cmd.CreateWatchCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
