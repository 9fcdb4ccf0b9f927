// Package config loads go-superbit configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/teslashibe/go-superbit/pkg/controller"
)

// ErrInvalidConfig is returned (wrapped) by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Transport kinds.
const (
	TransportBLE = "ble"
	TransportWS  = "ws"
)

// Board kinds.
const (
	BoardSerial = "serial"
	BoardSim    = "sim"
)

// Config is the complete runtime configuration.
type Config struct {
	Device    DeviceConfig  `yaml:"device"`
	Transport string        `yaml:"transport"`
	Board     BoardConfig   `yaml:"board"`
	HTTP      HTTPConfig    `yaml:"http"`
	Motion    MotionConfig  `yaml:"motion"`
	Session   SessionConfig `yaml:"session"`
	Log       LogConfig     `yaml:"log"`
}

// DeviceConfig controls what the robot advertises.
type DeviceConfig struct {
	Name      string `yaml:"name"`
	ServiceID uint16 `yaml:"serviceId"` // 16-bit id placed in advertisements
}

// BoardConfig selects the actuator backend.
type BoardConfig struct {
	Kind       string `yaml:"kind"`
	SerialPort string `yaml:"serialPort"`
	Baud       int    `yaml:"baud"`
}

// HTTPConfig holds the websocket transport and dashboard listener settings.
type HTTPConfig struct {
	Port      int  `yaml:"port"`
	Dashboard bool `yaml:"dashboard"`
}

// MotionConfig holds sequence timings and output levels.
type MotionConfig struct {
	DrivePulseMs    int    `yaml:"drivePulseMs"`
	ArmReadyPauseMs int    `yaml:"armReadyPauseMs"`
	DriveSpeed      uint8  `yaml:"driveSpeed"`
	ServoRest       uint16 `yaml:"servoRest"`
	ServoReady      uint16 `yaml:"servoReady"`
	ServoFire       uint16 `yaml:"servoFire"`
}

// SessionConfig holds connection handling settings.
type SessionConfig struct {
	EventQueue          int    `yaml:"eventQueue"`
	AdvertiseRetryMs    int    `yaml:"advertiseRetryMs"`
	AdvertiseIntervalMs int    `yaml:"advertiseIntervalMs"`
	Notify              string `yaml:"notify"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// DrivePulse is the duration of one drive pulse.
func (m MotionConfig) DrivePulse() time.Duration {
	return time.Duration(m.DrivePulseMs) * time.Millisecond
}

// ArmReadyPause is the pause between the ready and fire positions.
func (m MotionConfig) ArmReadyPause() time.Duration {
	return time.Duration(m.ArmReadyPauseMs) * time.Millisecond
}

// AdvertiseInterval is the advertising packet interval.
func (s SessionConfig) AdvertiseInterval() time.Duration {
	return time.Duration(s.AdvertiseIntervalMs) * time.Millisecond
}

// AdvertiseRetry is the wait before advertising again after a failure.
func (s SessionConfig) AdvertiseRetry() time.Duration {
	return time.Duration(s.AdvertiseRetryMs) * time.Millisecond
}

// Default returns the configuration matching the stock robot.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:      "SuperBit",
			ServiceID: 0x1809,
		},
		Transport: TransportBLE,
		Board: BoardConfig{
			Kind:       BoardSerial,
			SerialPort: "/dev/ttyACM0",
			Baud:       115200,
		},
		HTTP: HTTPConfig{
			Port:      8080,
			Dashboard: true,
		},
		Motion: MotionConfig{
			DrivePulseMs:    250,
			ArmReadyPauseMs: 100,
			DriveSpeed:      255,
			ServoRest:       115,
			ServoReady:      105,
			ServoFire:       135,
		},
		Session: SessionConfig{
			EventQueue:          32,
			AdvertiseRetryMs:    1000,
			AdvertiseIntervalMs: 100,
			Notify:              string(controller.NotifyOnChange),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// SUPERBIT_CONFIG when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SUPERBIT_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUPERBIT_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("SUPERBIT_BOARD"); v != "" {
		cfg.Board.Kind = v
	}
	if v := os.Getenv("SUPERBIT_SERIAL_PORT"); v != "" {
		cfg.Board.SerialPort = v
	}
	if v := os.Getenv("SUPERBIT_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = port
		}
	}
	if v := os.Getenv("SUPERBIT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SUPERBIT_NOTIFY"); v != "" {
		cfg.Session.Notify = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Device.Name == "" {
		return fmt.Errorf("%w: device name is required", ErrInvalidConfig)
	}
	if len(c.Device.Name) > 8 {
		// Fits a single advertising packet next to flags and the service id.
		return fmt.Errorf("%w: device name %q longer than 8 bytes", ErrInvalidConfig, c.Device.Name)
	}
	switch c.Transport {
	case TransportBLE, TransportWS:
	default:
		return fmt.Errorf("%w: transport must be %q or %q, got %q", ErrInvalidConfig, TransportBLE, TransportWS, c.Transport)
	}
	switch c.Board.Kind {
	case BoardSim:
	case BoardSerial:
		if c.Board.SerialPort == "" {
			return fmt.Errorf("%w: serial board needs serialPort", ErrInvalidConfig)
		}
		if c.Board.Baud <= 0 {
			return fmt.Errorf("%w: baud must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: board must be %q or %q, got %q", ErrInvalidConfig, BoardSerial, BoardSim, c.Board.Kind)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http port %d out of range", ErrInvalidConfig, c.HTTP.Port)
	}
	if c.Motion.DrivePulseMs <= 0 {
		return fmt.Errorf("%w: drivePulseMs must be positive", ErrInvalidConfig)
	}
	if c.Motion.ArmReadyPauseMs <= 0 {
		// Firing straight from rest skips the ready position.
		return fmt.Errorf("%w: armReadyPauseMs must be positive", ErrInvalidConfig)
	}
	if c.Session.EventQueue <= 0 {
		return fmt.Errorf("%w: eventQueue must be positive", ErrInvalidConfig)
	}
	if c.Session.AdvertiseRetryMs <= 0 {
		return fmt.Errorf("%w: advertiseRetryMs must be positive", ErrInvalidConfig)
	}
	if _, err := controller.ParseNotifyPolicy(c.Session.Notify); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
