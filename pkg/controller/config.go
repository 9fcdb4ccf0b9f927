package controller

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-superbit/internal/log"
	"github.com/teslashibe/go-superbit/pkg/actuator"
	"github.com/teslashibe/go-superbit/pkg/protocol"
)

// NotifyPolicy decides when a subscribed remote is pushed the LED value.
type NotifyPolicy string

const (
	// NotifyOnChange pushes only when the LED index actually changed.
	NotifyOnChange NotifyPolicy = "on-change"
	// NotifyEveryWrite pushes after every accepted LED write.
	NotifyEveryWrite NotifyPolicy = "every-write"
	// NotifyOff never pushes; the value is still readable.
	NotifyOff NotifyPolicy = "off"
)

// ParseNotifyPolicy validates a policy name.
func ParseNotifyPolicy(s string) (NotifyPolicy, error) {
	switch p := NotifyPolicy(s); p {
	case NotifyOnChange, NotifyEveryWrite, NotifyOff:
		return p, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q", s)
	}
}

// Observer receives a status snapshot after every state change. It is
// called on the control loop's goroutine and must not block.
type Observer func(protocol.StatusData)

// Config holds controller settings. Use functional options (WithXxx) to set them.
type Config struct {
	DeviceName     string
	Notify         NotifyPolicy
	AdvertiseRetry time.Duration

	// Indicator, when set, shows the advertising pattern while no remote
	// is connected.
	Indicator actuator.Indicator

	// Clock paces advertise retries.
	Clock actuator.Clock

	Observer Observer
	Logger   *slog.Logger
}

// Option is a functional option for configuring the controller.
type Option func(*Config)

// WithDeviceName sets the name reported in status snapshots.
func WithDeviceName(name string) Option {
	return func(c *Config) { c.DeviceName = name }
}

// WithNotifyPolicy sets the LED notification policy.
func WithNotifyPolicy(p NotifyPolicy) Option {
	return func(c *Config) { c.Notify = p }
}

// WithAdvertiseRetry sets the delay after a failed advertise.
func WithAdvertiseRetry(d time.Duration) Option {
	return func(c *Config) { c.AdvertiseRetry = d }
}

// WithIndicator sets the advertising indicator.
func WithIndicator(ind actuator.Indicator) Option {
	return func(c *Config) { c.Indicator = ind }
}

// WithClock sets the clock used for retry delays.
func WithClock(clock actuator.Clock) Option {
	return func(c *Config) { c.Clock = clock }
}

// WithObserver sets the status observer.
func WithObserver(o Observer) Option {
	return func(c *Config) { c.Observer = o }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DeviceName:     "SuperBit",
		Notify:         NotifyOnChange,
		AdvertiseRetry: time.Second,
		Clock:          actuator.RealClock{},
		Logger:         log.L(),
	}
}
