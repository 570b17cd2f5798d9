// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/gyrostat/pkg/session"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports the controller can be opened on",
	Long: `List the serial ports of this host with their USB details.

USB ports are listed first. The port selected by --port, GYROSTAT_PORT or the
config file is marked with '*'.

Examples:
  gyrostat ports
  gyrostat ports --port /dev/ttyACM0`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := session.SerialPorts.Ports()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}

	fmt.Printf("Gyrostat - Serial Ports\n\n")

	if len(ports) == 0 {
		fmt.Printf("No serial ports found. Check the cable and device power.\n")
		return nil
	}

	for _, p := range ports {
		marker := " "
		if p.Name == cfg.Serial.Port {
			marker = "*"
		}
		fmt.Printf("%s %-24s %s\n", marker, p.Name, p.Description())
	}

	fmt.Printf("\n%d port(s)\n", len(ports))
	return nil
}
