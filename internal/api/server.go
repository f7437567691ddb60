// Package api serves the diagnostics and control HTTP API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/framenotify/internal/acquisition"
	"github.com/smazurov/framenotify/internal/api/models"
	"github.com/smazurov/framenotify/internal/events"
	"github.com/smazurov/framenotify/internal/logging"
	"github.com/smazurov/framenotify/internal/pipeline"
	"github.com/smazurov/framenotify/internal/version"
)

// Acquisition is the part of the acquisition controller the API drives.
type Acquisition interface {
	StartSequence() (acquisition.SequenceInfo, error)
	StopSequence() (acquisition.SequenceSummary, error)
	SetBufferSlots(n int) error
	Status() acquisition.Status
}

// Frames is the host sequence buffer the frames route reads.
type Frames interface {
	Snapshot() []pipeline.Image
	Inserted() uint64
	Rejected() uint64
	Reset()
}

// Publisher reports the frame publisher connection.
type Publisher interface {
	IsConnected() bool
}

// Options configures the API server.
type Options struct {
	AuthUsername   string
	AuthPassword   string
	Acquisition    Acquisition
	Frames         Frames    // optional
	Publisher      Publisher // optional, nil when NATS is disabled
	Bus            *events.Bus
	MetricsHandler http.Handler // defaults to promhttp.Handler()
	Logger         *slog.Logger
}

// Server is the huma API mounted on a chi router.
type Server struct {
	api        huma.API
	router     chi.Router
	httpServer *http.Server
	acq        Acquisition
	frames     Frames
	publisher  Publisher
	bus        *events.Bus
	logger     *slog.Logger
}

// NewServer builds the router, middleware stack and routes.
func NewServer(opts *Options) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.Handle("/metrics", metricsHandler)

	config := huma.DefaultConfig("framenotify API", version.Version)
	config.Info.Description = "Acquisition control and frame notification diagnostics"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("api")
	}

	s := &Server{
		api:       humachi.New(router, config),
		router:    router,
		acq:       opts.Acquisition,
		frames:    opts.Frames,
		publisher: opts.Publisher,
		bus:       opts.Bus,
		logger:    logger,
	}

	s.api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		s.api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	s.registerRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves HTTP on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the listener and all open connections, including SSE streams.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
				NATS:    s.natsState(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerAcquisitionRoutes()
	s.registerSystemRoutes()
	s.registerSSERoutes()
}

func (s *Server) natsState() string {
	switch {
	case s.publisher == nil:
		return "disabled"
	case s.publisher.IsConnected():
		return "connected"
	default:
		return "offline"
	}
}

// withAuth returns the basic auth security requirement.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
