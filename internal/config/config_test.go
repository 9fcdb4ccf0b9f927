package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-superbit/pkg/controller"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Motion.DrivePulse().Milliseconds() != 250 {
		t.Errorf("DrivePulse = %v, want 250ms", cfg.Motion.DrivePulse())
	}
	if cfg.Motion.ArmReadyPause().Milliseconds() != 100 {
		t.Errorf("ArmReadyPause = %v, want 100ms", cfg.Motion.ArmReadyPause())
	}
	if cfg.Session.AdvertiseInterval().Milliseconds() != 100 {
		t.Errorf("AdvertiseInterval = %v, want 100ms", cfg.Session.AdvertiseInterval())
	}
	if cfg.Device.ServiceID != 0x1809 {
		t.Errorf("ServiceID = %#x, want 0x1809", cfg.Device.ServiceID)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "superbit.yaml")
	yml := `
transport: ws
board:
  kind: sim
motion:
  drivePulseMs: 400
session:
  notify: every-write
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SUPERBIT_HTTP_PORT", "9090")
	t.Setenv("SUPERBIT_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport != TransportWS {
		t.Errorf("Transport = %q, want ws", cfg.Transport)
	}
	if cfg.Board.Kind != BoardSim {
		t.Errorf("Board.Kind = %q, want sim", cfg.Board.Kind)
	}
	if cfg.Motion.DrivePulseMs != 400 {
		t.Errorf("DrivePulseMs = %d, want 400", cfg.Motion.DrivePulseMs)
	}
	// Untouched keys keep their defaults.
	if cfg.Motion.ArmReadyPauseMs != 100 {
		t.Errorf("ArmReadyPauseMs = %d, want 100", cfg.Motion.ArmReadyPauseMs)
	}
	if cfg.Session.Notify != string(controller.NotifyEveryWrite) {
		t.Errorf("Notify = %q, want every-write", cfg.Session.Notify)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("HTTP.Port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestLoad_EnvSelectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte("board:\n  kind: sim\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SUPERBIT_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Board.Kind != BoardSim {
		t.Errorf("Board.Kind = %q, want sim", cfg.Board.Kind)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Device.Name = "" }},
		{"long name", func(c *Config) { c.Device.Name = "SuperBitRobot" }},
		{"bad transport", func(c *Config) { c.Transport = "zigbee" }},
		{"bad board", func(c *Config) { c.Board.Kind = "gpio" }},
		{"serial without port", func(c *Config) { c.Board.SerialPort = "" }},
		{"zero baud", func(c *Config) { c.Board.Baud = 0 }},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"zero pulse", func(c *Config) { c.Motion.DrivePulseMs = 0 }},
		{"negative pause", func(c *Config) { c.Motion.ArmReadyPauseMs = -1 }},
		{"zero pause", func(c *Config) { c.Motion.ArmReadyPauseMs = 0 }},
		{"zero queue", func(c *Config) { c.Session.EventQueue = 0 }},
		{"zero advertise retry", func(c *Config) { c.Session.AdvertiseRetryMs = 0 }},
		{"negative advertise retry", func(c *Config) { c.Session.AdvertiseRetryMs = -5 }},
		{"bad notify", func(c *Config) { c.Session.Notify = "sometimes" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
