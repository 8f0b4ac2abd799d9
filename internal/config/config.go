// Package config loads go-rover application configuration from a JSON file
// with environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/teslashibe/go-rover/pkg/pathtracker"
)

// Defaults.
const (
	DefaultAddr     = ":8080"
	DefaultDBPath   = "rover.db"
	DefaultBaudRate = 115200
	DefaultLogLevel = "info"
)

// Preset names for the tracker section.
const (
	PresetDefault    = "default"
	PresetSlow       = "slow"
	PresetAggressive = "aggressive"
)

// App is the full application configuration.
type App struct {
	Tracker  TrackerConfig  `json:"tracker"`
	Server   ServerConfig   `json:"server"`
	Serial   SerialConfig   `json:"serial"`
	Motor    MotorConfig    `json:"motor"`
	Journal  JournalConfig  `json:"journal"`
	Watchdog WatchdogConfig `json:"watchdog"`
	Log      LogConfig      `json:"log"`
}

// TrackerConfig selects a preset; fields set in Config override it.
type TrackerConfig struct {
	Preset string             `json:"preset"`
	Config pathtracker.Config `json:"config"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// SerialConfig configures the optional local motor board. Empty Port
// disables it.
type SerialConfig struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

// MotorConfig points at an HTTP motor daemon. Empty URL disables it.
type MotorConfig struct {
	URL string `json:"url"`
}

// JournalConfig configures the SQLite mission journal. Empty Path disables it.
type JournalConfig struct {
	Path string `json:"path"`
}

// WatchdogConfig configures the stalled-pose watchdog in milliseconds.
// A zero TimeoutMs disables it.
type WatchdogConfig struct {
	TimeoutMs int `json:"timeout_ms"`
	RateMs    int `json:"rate_ms"`
}

// Timeout returns the timeout as a duration.
func (w WatchdogConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutMs) * time.Millisecond
}

// Rate returns the check rate as a duration.
func (w WatchdogConfig) Rate() time.Duration {
	return time.Duration(w.RateMs) * time.Millisecond
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `json:"level"`
}

// Default returns the configuration used when no file is given.
func Default() App {
	return App{
		Tracker:  TrackerConfig{Preset: PresetDefault, Config: pathtracker.DefaultConfig()},
		Server:   ServerConfig{Addr: DefaultAddr},
		Serial:   SerialConfig{Baud: DefaultBaudRate},
		Journal:  JournalConfig{Path: DefaultDBPath},
		Watchdog: WatchdogConfig{TimeoutMs: 500, RateMs: 50},
		Log:      LogConfig{Level: DefaultLogLevel},
	}
}

// PresetConfig returns the tracker configuration for a preset name.
func PresetConfig(name string) (pathtracker.Config, error) {
	switch name {
	case "", PresetDefault:
		return pathtracker.DefaultConfig(), nil
	case PresetSlow:
		return pathtracker.SlowConfig(), nil
	case PresetAggressive:
		return pathtracker.AggressiveConfig(), nil
	}
	return pathtracker.Config{}, fmt.Errorf("unknown tracker preset %q", name)
}

// Load reads the JSON file at path (if non-empty) over the defaults, then
// applies environment overrides. The result is validated.
func Load(path string) (App, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return App{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return App{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return App{}, err
	}
	return cfg, nil
}

// decode overlays raw onto cfg. The tracker preset is resolved first so that
// explicit tracker fields override the preset rather than the defaults.
func decode(raw []byte, cfg *App) error {
	var head struct {
		Tracker struct {
			Preset string `json:"preset"`
		} `json:"tracker"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}
	if head.Tracker.Preset != "" {
		preset, err := PresetConfig(head.Tracker.Preset)
		if err != nil {
			return err
		}
		cfg.Tracker.Config = preset
	}
	return json.Unmarshal(raw, cfg)
}

func applyEnv(cfg *App) {
	cfg.Server.Addr = Env("ROVER_ADDR", cfg.Server.Addr)
	cfg.Journal.Path = Env("ROVER_DB", cfg.Journal.Path)
	cfg.Serial.Port = Env("ROVER_SERIAL", cfg.Serial.Port)
	cfg.Motor.URL = Env("ROVER_MOTOR_URL", cfg.Motor.URL)
	cfg.Log.Level = Env("LOG_LEVEL", cfg.Log.Level)
}

// Validate checks the configuration.
func (a App) Validate() error {
	var errs []error
	if err := a.Tracker.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if a.Server.Addr == "" {
		errs = append(errs, errors.New("config: server.addr is required"))
	}
	if a.Serial.Port != "" && a.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("config: serial.baud must be positive, got %d", a.Serial.Baud))
	}
	if a.Serial.Port != "" && a.Motor.URL != "" {
		errs = append(errs, errors.New("config: serial.port and motor.url are mutually exclusive"))
	}
	if a.Watchdog.TimeoutMs < 0 || a.Watchdog.RateMs < 0 {
		errs = append(errs, errors.New("config: watchdog durations must not be negative"))
	}
	return errors.Join(errs...)
}

// Env returns the environment variable key, or def if it is unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
