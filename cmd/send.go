// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/Thermoquad/gyrostat/pkg/session"
	"github.com/spf13/cobra"
)

var (
	sendTimeout  int
	sendKp       float64
	sendKi       float64
	sendKd       float64
	sendTau      float64
	sendSetpoint float64
	sendColor    string
	sendLEDs     string
	sendLeft     bool
	sendRight    bool
	sendDryRun   bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one command line and wait for telemetry",
	Long: `Send a single command line to the controller and wait for the first
decoded telemetry line.

Values start from the control section of the config file; flags override
them. --leds takes a comma-separated list of LED indices (0-7) that are on.
With --dry-run the command line is printed and nothing is sent.

Exit codes:
  0 - Command sent and telemetry received before timeout
  1 - Timeout reached without receiving telemetry
  2 - Connection or encoding error

Examples:
  gyrostat send --port /dev/ttyACM0 --kp 1.2 --ki 0.5 --kd 0.1 --tau 0.02 --setpoint 10
  gyrostat send --port /dev/ttyACM0 --leds 1,3 --left --right`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendTimeout, "timeout", 5, "Timeout in seconds to wait for telemetry")
	sendCmd.Flags().Float64Var(&sendKp, "kp", 0, "Proportional gain")
	sendCmd.Flags().Float64Var(&sendKi, "ki", 0, "Integral gain")
	sendCmd.Flags().Float64Var(&sendKd, "kd", 0, "Derivative gain")
	sendCmd.Flags().Float64Var(&sendTau, "tau", 0, "Derivative filter time constant")
	sendCmd.Flags().Float64Var(&sendSetpoint, "setpoint", 0, "Setpoint")
	sendCmd.Flags().StringVar(&sendColor, "color", "", "LED strip color (RRGGBB)")
	sendCmd.Flags().StringVar(&sendLEDs, "leds", "", "Comma-separated LED indices that are on")
	sendCmd.Flags().BoolVar(&sendLeft, "left", false, "Left motor on (balance firmware)")
	sendCmd.Flags().BoolVar(&sendRight, "right", false, "Right motor on (balance firmware)")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "Print the command line without sending it")
}

// parseLEDList parses "1,3" into a mask
func parseLEDList(s string) (linewire.LEDMask, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	var indices []int
	for _, part := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, fmt.Errorf("invalid LED index %q", part)
		}
		indices = append(indices, i)
	}
	return linewire.NewLEDMask(indices...)
}

// sendState builds the control state from the config and explicit flags
func sendState(cmd *cobra.Command) (linewire.ControlState, error) {
	variant := cfg.Variant()
	state := cfg.ControlState(variant)
	state.UseRemoteSetpoint = false

	flags := cmd.Flags()
	if flags.Changed("kp") {
		state.Kp = sendKp
	}
	if flags.Changed("ki") {
		state.Ki = sendKi
	}
	if flags.Changed("kd") {
		state.Kd = sendKd
	}
	if flags.Changed("tau") {
		state.Tau = sendTau
	}
	if flags.Changed("setpoint") {
		state.Setpoint = sendSetpoint
	}
	if flags.Changed("color") {
		state.Color = sendColor
	}

	leds, err := parseLEDList(sendLEDs)
	if err != nil {
		return state, err
	}
	state.LEDs = leds

	if flags.Changed("left") || flags.Changed("right") {
		if state.Motors == nil {
			return state, fmt.Errorf("the %s firmware has no motor control", variant.Name)
		}
		state.Motors.Left = sendLeft
		state.Motors.Right = sendRight
	}
	return state, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	state, err := sendState(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid command: %v\n", err)
		os.Exit(2)
	}

	line, err := linewire.EncodeCommand(state)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encoding error: %v\n", err)
		os.Exit(2)
	}

	if sendDryRun {
		fmt.Print(line)
		return nil
	}

	readings := make(chan linewire.Reading, 1)
	c, t, err := OpenController(cmd.Context(), session.Config{
		OnReading: func(r linewire.Reading) {
			select {
			case readings <- r:
			default:
			}
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Disconnect()

	fmt.Printf("Gyrostat - Send Command\n")
	fmt.Printf("Connection: %s\n", t.info)
	fmt.Printf("Timeout: %d seconds\n", sendTimeout)
	fmt.Printf("Sending: %s", line)

	if err := c.Send(state); err != nil {
		c.Disconnect()
		fmt.Fprintf(os.Stderr, "SEND FAILED: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("Waiting for telemetry...\n\n")

	select {
	case r := <-readings:
		fmt.Printf("SUCCESS: %s\n", linewire.FormatReading(c.Variant(), r, time.Now()))
		c.Disconnect()
		os.Exit(0)

	case <-time.After(time.Duration(sendTimeout) * time.Second):
		c.Disconnect()
		fmt.Fprintf(os.Stderr, "TIMEOUT: No telemetry received within %d seconds\n", sendTimeout)
		os.Exit(1)
	}

	return nil
}
