package session

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-superbit/internal/log"
)

// Default advertising identity of the robot.
const (
	DefaultDeviceName = "SuperBit"
	DefaultServiceID  = 0x1809
)

// Config holds transport settings. Use functional options (WithXxx) to set them.
type Config struct {
	// DeviceName is the advertised short name.
	DeviceName string

	// ServiceID is the advertised 16-bit service id.
	ServiceID uint16

	// AdvertiseInterval is the BLE advertising interval.
	AdvertiseInterval time.Duration

	// EventQueue bounds the events buffered between the transport and Run.
	EventQueue int

	// Path is the websocket route of the remote endpoint.
	Path string

	Logger *slog.Logger
}

// Option is a functional option for configuring a transport.
type Option func(*Config)

// WithDeviceName sets the advertised name.
func WithDeviceName(name string) Option {
	return func(c *Config) { c.DeviceName = name }
}

// WithServiceID sets the advertised 16-bit service id.
func WithServiceID(id uint16) Option {
	return func(c *Config) { c.ServiceID = id }
}

// WithAdvertiseInterval sets the BLE advertising interval.
func WithAdvertiseInterval(d time.Duration) Option {
	return func(c *Config) { c.AdvertiseInterval = d }
}

// WithEventQueue sets the event queue depth.
func WithEventQueue(n int) Option {
	return func(c *Config) { c.EventQueue = n }
}

// WithPath sets the websocket route.
func WithPath(path string) Option {
	return func(c *Config) { c.Path = path }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DeviceName:        DefaultDeviceName,
		ServiceID:         DefaultServiceID,
		AdvertiseInterval: 100 * time.Millisecond,
		EventQueue:        32,
		Path:              "/ws/remote",
		Logger:            log.L(),
	}
}

func newConfig(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.EventQueue <= 0 {
		cfg.EventQueue = 1
	}
	return cfg
}
