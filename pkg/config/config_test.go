// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/Thermoquad/gyrostat/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, session.DefaultBaud, cfg.Serial.Baud)
	assert.Equal(t, linewire.VariantBalance, cfg.Variant())
	assert.Equal(t, session.DefaultMaxLineLength, cfg.Serial.MaxLineLength)
	assert.Equal(t, 300*time.Millisecond, cfg.Debounce())
	assert.Equal(t, linewire.DefaultRanges, cfg.Ranges())
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyACM0
  baud: 57600
  variant: tilt
control:
  kp: 1.2
  ki: 0.5
  kd: 0.1
  tau: 0.02
  setpoint: 10
  color: "#00ff7f"
  debounce_ms: 150
remote:
  url: mqtt://broker:1883
  topic: rig/setpoint
  enabled: true
gauges:
  tilt-angle:
    min: -30
    max: 30
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.Baud)
	assert.Equal(t, linewire.VariantTilt, cfg.Variant())
	assert.Equal(t, 150*time.Millisecond, cfg.Debounce())
	assert.Equal(t, "rig/setpoint", cfg.Remote.Topic)
	assert.Equal(t, "debug", cfg.Logging.Level)

	ranges := cfg.Ranges()
	assert.Equal(t, linewire.Range{Min: -30, Max: 30}, ranges[linewire.ChannelTilt])
	assert.Equal(t, linewire.DefaultRanges[linewire.ChannelLeftRPM], ranges[linewire.ChannelLeftRPM])

	state := cfg.ControlState(cfg.Variant())
	assert.InDelta(t, 1.2, state.Kp, 1e-9)
	assert.InDelta(t, 10, state.Setpoint, 1e-9)
	assert.True(t, state.UseRemoteSetpoint)
	assert.Nil(t, state.Motors, "tilt variant has no motors")

	line, err := linewire.EncodeCommand(state)
	require.NoError(t, err)
	assert.Equal(t, "p: 1.2 i: 0.5 d: 0.1 t: 0.02 s: 0 b: 00ff7f g: 0\n", line)
}

func TestControlState_Motors(t *testing.T) {
	cfg := Default()
	cfg.Control.Motors = MotorsConfig{Left: true}

	state := cfg.ControlState(linewire.VariantBalance)
	require.NotNil(t, state.Motors)
	assert.True(t, state.Motors.Left)
	assert.False(t, state.Motors.Right)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "syntax", body: "serial: [unterminated"},
		{name: "baud", body: "serial:\n  baud: 1234\n"},
		{name: "variant", body: "serial:\n  variant: hover\n"},
		{name: "color", body: "control:\n  color: purple\n"},
		{name: "debounce", body: "control:\n  debounce_ms: -1\n"},
		{name: "gauge", body: "gauges:\n  left-rpm:\n    min: 10\n    max: 10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "serial:\n  port: /dev/ttyUSB0\n  baud: 9600\n")

	t.Setenv(EnvPort, "/dev/ttyACM1")
	t.Setenv(EnvBaud, "38400")
	t.Setenv(EnvVariant, "TILT")
	t.Setenv(EnvRemoteURL, "ws://localhost:9000/setpoint")
	t.Setenv(EnvRemoteTopic, "bench")
	t.Setenv(EnvLogFile, "/tmp/gyrostat.log")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Port)
	assert.Equal(t, 38400, cfg.Serial.Baud)
	assert.Equal(t, linewire.VariantTilt, cfg.Variant())
	assert.Equal(t, "ws://localhost:9000/setpoint", cfg.Remote.URL)
	assert.Equal(t, "bench", cfg.Remote.Topic)
	assert.Equal(t, "/tmp/gyrostat.log", cfg.Logging.File)
}

func TestLoad_EnvBadBaud(t *testing.T) {
	t.Setenv(EnvBaud, "fast")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvBaud)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Serial.Port = "/dev/ttyACM0"
	cfg.Control.Kp = 2.5
	cfg.Gauges = map[linewire.Channel]linewire.Range{
		linewire.ChannelTilt: {Min: -20, Max: 20},
	}
	require.NoError(t, cfg.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", loaded.Serial.Port)
	assert.InDelta(t, 2.5, loaded.Control.Kp, 1e-9)
	assert.Equal(t, linewire.Range{Min: -20, Max: 20}, loaded.Ranges()[linewire.ChannelTilt])
}

func TestSetControlState_PersistsTunedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.SetControlState(linewire.ControlState{
		Kp:                1.5,
		Ki:                0.2,
		Kd:                0.05,
		Tau:               0.01,
		Setpoint:          -0.5,
		UseRemoteSetpoint: true,
		LEDs:              0xff,
		Motors:            &linewire.Motors{Right: true},
		Color:             "00ff88",
	})
	require.NoError(t, cfg.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	got := loaded.ControlState(linewire.VariantBalance)
	assert.Equal(t, linewire.ControlState{
		Kp:                1.5,
		Ki:                0.2,
		Kd:                0.05,
		Tau:               0.01,
		Setpoint:          -0.5,
		UseRemoteSetpoint: true,
		Motors:            &linewire.Motors{Right: true},
		Color:             "00ff88",
	}, got, "LEDs start off")

	// A tilt session has no motors and leaves the saved switches alone
	loaded.SetControlState(linewire.ControlState{Kp: 3})
	assert.Equal(t, MotorsConfig{Right: true}, loaded.Control.Motors)
}
