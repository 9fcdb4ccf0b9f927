package sequencer

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-superbit/internal/log"
)

// Catapult servo positions in the servo's native units.
const (
	ServoRest  uint16 = 115
	ServoReady uint16 = 105
	ServoFire  uint16 = 135
)

// Config holds the motion parameters. Use functional options (WithXxx) to set them.
type Config struct {
	DrivePulse    time.Duration
	DriveSpeed    uint8
	ArmReadyPause time.Duration

	ServoRest  uint16
	ServoReady uint16
	ServoFire  uint16

	Logger *slog.Logger
}

// Option is a functional option for configuring the sequencer.
type Option func(*Config)

// WithDrivePulse sets how long one drive command runs the motors.
func WithDrivePulse(d time.Duration) Option {
	return func(c *Config) { c.DrivePulse = d }
}

// WithDriveSpeed sets the motor speed used for drive pulses.
func WithDriveSpeed(speed uint8) Option {
	return func(c *Config) { c.DriveSpeed = speed }
}

// WithArmReadyPause sets the pause between the ready and fire positions.
func WithArmReadyPause(d time.Duration) Option {
	return func(c *Config) { c.ArmReadyPause = d }
}

// WithServoPositions overrides the rest, ready and fire positions.
func WithServoPositions(rest, ready, fire uint16) Option {
	return func(c *Config) {
		c.ServoRest = rest
		c.ServoReady = ready
		c.ServoFire = fire
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the stock robot's timings.
func DefaultConfig() Config {
	return Config{
		DrivePulse:    250 * time.Millisecond,
		DriveSpeed:    255,
		ArmReadyPause: 100 * time.Millisecond,
		ServoRest:     ServoRest,
		ServoReady:    ServoReady,
		ServoFire:     ServoFire,
		Logger:        log.L(),
	}
}
