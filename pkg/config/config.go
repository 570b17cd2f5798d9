// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package config loads the gyrostat YAML configuration file and applies
// environment variable overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/Thermoquad/gyrostat/pkg/session"
	"gopkg.in/yaml.v3"
)

// Environment variable overrides
const (
	EnvPort        = "GYROSTAT_PORT"
	EnvBaud        = "GYROSTAT_BAUD"
	EnvVariant     = "GYROSTAT_VARIANT"
	EnvRemoteURL   = "GYROSTAT_REMOTE_URL"
	EnvRemoteTopic = "GYROSTAT_REMOTE_TOPIC"
	EnvLogFile     = "GYROSTAT_LOG_FILE"
)

// Config holds all gyrostat configuration
type Config struct {
	Serial  SerialConfig                        `yaml:"serial"`
	Control ControlConfig                       `yaml:"control"`
	Remote  RemoteConfig                        `yaml:"remote"`
	Gauges  map[linewire.Channel]linewire.Range `yaml:"gauges,omitempty"`
	Logging LoggingConfig                       `yaml:"logging"`

	path string // file path for save/load
}

type SerialConfig struct {
	Port          string `yaml:"port"`
	Baud          int    `yaml:"baud"`
	Variant       string `yaml:"variant"`         // "balance" or "tilt"
	MaxLineLength int    `yaml:"max_line_length"` // 0 = default (1024), negative = unbounded
}

// ControlConfig is the control state the panel starts with
type ControlConfig struct {
	Kp         float64      `yaml:"kp"`
	Ki         float64      `yaml:"ki"`
	Kd         float64      `yaml:"kd"`
	Tau        float64      `yaml:"tau"`
	Setpoint   float64      `yaml:"setpoint"`
	Motors     MotorsConfig `yaml:"motors"`
	Color      string       `yaml:"color"` // RRGGBB, empty = not sent
	DebounceMS int          `yaml:"debounce_ms"`
}

type MotorsConfig struct {
	Left  bool `yaml:"left"`
	Right bool `yaml:"right"`
}

// RemoteConfig selects the remote setpoint feed
type RemoteConfig struct {
	URL      string `yaml:"url"`   // ws://, wss://, mqtt:// or mqtts://
	Topic    string `yaml:"topic"` // MQTT only
	Username string `yaml:"username"`
	Enabled  bool   `yaml:"enabled"` // start in remote setpoint mode
}

type LoggingConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"` // zerolog level name
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud:          session.DefaultBaud,
			Variant:       linewire.VariantBalance.Name,
			MaxLineLength: session.DefaultMaxLineLength,
		},
		Control: ControlConfig{
			DebounceMS: 300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath is config.yaml in the user's config directory
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "gyrostat.yaml"
	}
	return filepath.Join(dir, "gyrostat", "config.yaml")
}

// Load reads path on top of the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides values from GYROSTAT_* environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvPort); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv(EnvBaud); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBaud, err)
		}
		c.Serial.Baud = n
	}
	if v := os.Getenv(EnvVariant); v != "" {
		c.Serial.Variant = v
	}
	if v := os.Getenv(EnvRemoteURL); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv(EnvRemoteTopic); v != "" {
		c.Remote.Topic = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Logging.File = v
	}
	return nil
}

// Validate checks values the YAML decoder cannot
func (c *Config) Validate() error {
	if !session.ValidBaud(c.Serial.Baud) {
		return fmt.Errorf("serial.baud: %w: %d", session.ErrUnsupportedBaud, c.Serial.Baud)
	}
	if _, err := linewire.ParseVariant(c.Serial.Variant); err != nil {
		return fmt.Errorf("serial.variant: %w", err)
	}
	if c.Control.Color != "" {
		if _, err := linewire.NormalizeColor(c.Control.Color); err != nil {
			return fmt.Errorf("control.color: %w", err)
		}
	}
	if c.Control.DebounceMS < 0 {
		return fmt.Errorf("control.debounce_ms: must not be negative, got %d", c.Control.DebounceMS)
	}
	for ch, r := range c.Gauges {
		if r.Max <= r.Min {
			return fmt.Errorf("gauges.%s: max %v must be above min %v", ch, r.Max, r.Min)
		}
	}
	return nil
}

// Path returns the file the config was loaded from
func (c *Config) Path() string {
	return c.path
}

// Save writes the config to the file it was loaded from
func (c *Config) Save() error {
	if c.path == "" {
		c.path = DefaultPath()
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return os.WriteFile(c.path, data, 0o644)
}

// Variant returns the configured protocol variant
func (c *Config) Variant() linewire.Variant {
	v, err := linewire.ParseVariant(c.Serial.Variant)
	if err != nil {
		return linewire.VariantBalance
	}
	return v
}

// Debounce returns the auto-send debounce period
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Control.DebounceMS) * time.Millisecond
}

// Ranges returns the gauge ranges, configured values over the defaults
func (c *Config) Ranges() map[linewire.Channel]linewire.Range {
	ranges := maps.Clone(linewire.DefaultRanges)
	for ch, r := range c.Gauges {
		ranges[linewire.Channel(strings.ToLower(string(ch)))] = r
	}
	return ranges
}

// SetControlState stores the tunable parts of s as the panel's start state.
// LEDs are not persisted.
func (c *Config) SetControlState(s linewire.ControlState) {
	c.Control.Kp = s.Kp
	c.Control.Ki = s.Ki
	c.Control.Kd = s.Kd
	c.Control.Tau = s.Tau
	c.Control.Setpoint = s.Setpoint
	c.Control.Color = s.Color
	c.Remote.Enabled = s.UseRemoteSetpoint
	if s.Motors != nil {
		c.Control.Motors = MotorsConfig{Left: s.Motors.Left, Right: s.Motors.Right}
	}
}

// ControlState builds the initial control state for variant v
func (c *Config) ControlState(v linewire.Variant) linewire.ControlState {
	s := linewire.ControlState{
		Kp:                c.Control.Kp,
		Ki:                c.Control.Ki,
		Kd:                c.Control.Kd,
		Tau:               c.Control.Tau,
		Setpoint:          c.Control.Setpoint,
		UseRemoteSetpoint: c.Remote.Enabled,
		Color:             c.Control.Color,
	}
	if v.HasMotors() {
		s.Motors = &linewire.Motors{Left: c.Control.Motors.Left, Right: c.Control.Motors.Right}
	}
	return s
}
