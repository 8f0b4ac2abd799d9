package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-rover/pkg/pathtracker"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ROVER_ADDR", "ROVER_DB", "ROVER_SERIAL", "ROVER_MOTOR_URL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rover.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, pathtracker.DefaultConfig(), cfg.Tracker.Config)
	assert.Equal(t, 500*time.Millisecond, cfg.Watchdog.Timeout())
	assert.Equal(t, 50*time.Millisecond, cfg.Watchdog.Rate())
}

func TestLoad_FileOverlay(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"server": {"addr": ":9090"},
		"serial": {"port": "/dev/ttyUSB0"},
		"tracker": {"preset": "slow", "config": {"min_drive_speed": 45}}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, DefaultBaudRate, cfg.Serial.Baud, "unset fields keep defaults")

	want := pathtracker.SlowConfig()
	want.MinDriveSpeed = 45
	assert.Equal(t, want, cfg.Tracker.Config)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"server": {"addr": ":9090"}}`)
	t.Setenv("ROVER_ADDR", ":7000")
	t.Setenv("ROVER_DB", "/tmp/x.db")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ROVER_MOTOR_URL", "localhost:8000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/x.db", cfg.Journal.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "localhost:8000", cfg.Motor.URL)
}

func TestLoad_MotorURL(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, `{"motor": {"url": "http://10.0.0.5:8000"}}`))
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000", cfg.Motor.URL)
	assert.Empty(t, Default().Motor.URL)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"unknown preset", `{"tracker": {"preset": "turbo"}}`},
		{"invalid tracker", `{"tracker": {"config": {"max_motor_speed": 0}}}`},
		{"bad baud", `{"serial": {"port": "/dev/ttyACM0", "baud": -1}}`},
		{"negative watchdog", `{"watchdog": {"timeout_ms": -5}}`},
		{"two motor drivers", `{"serial": {"port": "/dev/ttyACM0"}, "motor": {"url": "localhost:8000"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoad_InvalidTrackerWrapsSentinel(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, `{"tracker": {"config": {"position_dead_band": -1}}}`))
	assert.ErrorIs(t, err, pathtracker.ErrInvalidConfig)
}

func TestPresetConfig(t *testing.T) {
	for name, want := range map[string]pathtracker.Config{
		"":               pathtracker.DefaultConfig(),
		PresetDefault:    pathtracker.DefaultConfig(),
		PresetSlow:       pathtracker.SlowConfig(),
		PresetAggressive: pathtracker.AggressiveConfig(),
	} {
		got, err := PresetConfig(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("ROVER_TEST_KEY", "")
	assert.Equal(t, "fallback", Env("ROVER_TEST_KEY", "fallback"))
	t.Setenv("ROVER_TEST_KEY", "set")
	assert.Equal(t, "set", Env("ROVER_TEST_KEY", "fallback"))
}
