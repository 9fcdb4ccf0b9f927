// Package web provides the status dashboard for the robot
package web

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-superbit/internal/log"
	"github.com/teslashibe/go-superbit/pkg/hub"
	"github.com/teslashibe/go-superbit/pkg/protocol"
)

// StatusFunc returns the current controller status.
type StatusFunc func() protocol.StatusData

// Config holds dashboard settings. Use functional options (WithXxx) to set them.
type Config struct {
	Port    int
	AppName string
	Logger  *slog.Logger
}

// Option is a functional option for configuring the server.
type Option func(*Config)

// WithPort sets the listen port.
func WithPort(port int) Option {
	return func(c *Config) { c.Port = port }
}

// WithAppName sets the fiber app name.
func WithAppName(name string) Option {
	return func(c *Config) { c.AppName = name }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:    8080,
		AppName: "SuperBit Dashboard",
		Logger:  log.L(),
	}
}

// Server is the web dashboard server
type Server struct {
	app *fiber.App
	cfg Config

	status    StatusFunc
	statusHub *hub.Hub
	startedAt time.Time
}

// NewServer creates a new web dashboard server
func NewServer(status StatusFunc, opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		cfg:       cfg,
		status:    status,
		statusHub: hub.New("status"),
		startedAt: time.Now(),
	}
	s.statusHub.SetLogger(cfg.Logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/colors", s.handleColors)
	api.Get("/health", s.handleHealth)

	// WebSocket upgrade middleware
	app.Use("/ws/status", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the fiber app so other endpoints can be mounted on it.
func (s *Server) App() *fiber.App {
	return s.app
}

// PublishStatus broadcasts a status snapshot to dashboard clients.
func (s *Server) PublishStatus(st protocol.StatusData) {
	if err := s.statusHub.PublishStatus(st); err != nil {
		s.cfg.Logger.Warn("status broadcast failed", "error", err)
	}
}

// Start runs the status hub and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("web dashboard listening", "url", fmt.Sprintf("http://localhost:%d", s.cfg.Port))
		errCh <- s.app.Listen(fmt.Sprintf(":%d", s.cfg.Port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}
