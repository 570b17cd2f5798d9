// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/gyrostat/pkg/config"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName    string
	baudRate    int
	variantName string

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Configuration and logging flags
	configPath string
	logFile    string
	debug      bool

	// cfg is the loaded configuration with explicit flags applied
	cfg *config.Config
)

// annotationTUI marks commands that own the terminal
const annotationTUI = "tui"

var rootCmd = &cobra.Command{
	Use:   "gyrostat",
	Short: "Balance controller control panel",
	Long: `Gyrostat - A CLI tool for monitoring and tuning a serial balance/motor controller.

The controller streams telemetry lines (wheel speeds and tilt angle) and
accepts command lines carrying PID gains, the setpoint, motor switches and
the LED mask. Gyrostat decodes the telemetry, sends commands and provides an
interactive control panel.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings are read from --config (default: the user config directory), then
GYROSTAT_* environment variables, then explicitly set flags.

For WebSocket authentication, the password is read from the GYROSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVar(&variantName, "variant", "balance", "Firmware variant (balance or tilt)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Configuration and logging
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file (default: "+defaultLogFile()+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// setup loads the config, lets explicitly set flags win and starts logging
func setup(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		loaded.Serial.Port = portName
	}
	if flags.Changed("baud") {
		loaded.Serial.Baud = baudRate
	}
	if flags.Changed("variant") {
		loaded.Serial.Variant = variantName
	}
	if flags.Changed("log-file") {
		loaded.Logging.File = logFile
	}
	if debug {
		loaded.Logging.Level = "debug"
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	if cmd.Annotations[annotationTUI] == "true" {
		return InitLogging(cfg.Logging.File, cfg.Logging.Level)
	}
	return InitLogging(cfg.Logging.File, cfg.Logging.Level, consoleWriter())
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
