// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/Thermoquad/gyrostat/pkg/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	monitorStatsInterval int
	monitorShowSkipped   bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded telemetry in human-readable format",
	Long: `Continuously decode and display telemetry lines as they arrive.

Each decoded line is printed with a timestamp and the value of every channel
the firmware variant reports. Lines that are not telemetry are skipped; use
--show-skipped to print them too. Line statistics are printed every
--stats-interval seconds (0 disables them).

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Seconds between statistics reports (0 = off)")
	monitorCmd.Flags().BoolVar(&monitorShowSkipped, "show-skipped", false, "Print lines that are not telemetry")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	closed := make(chan session.Status, 1)
	variant := cfg.Variant()

	c, t, err := OpenController(ctx, session.Config{
		OnReading: func(r linewire.Reading) {
			fmt.Println(linewire.FormatReading(variant, r, time.Now()))
		},
		OnLine: func(line string, decoded bool) {
			if !decoded && monitorShowSkipped && line != "" {
				fmt.Printf("[SKIP] %q\n", line)
			}
		},
		OnStatus: func(s session.Status) {
			if s.State != session.StateClosed {
				return
			}
			select {
			case closed <- s:
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	defer c.Disconnect()

	fmt.Printf("Gyrostat - Telemetry Monitor\n")
	fmt.Printf("Connection: %s\n", t.info)
	fmt.Printf("Variant: %s\n", variant.Name)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var statsTick <-chan time.Time
	if monitorStatsInterval > 0 {
		ticker := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
		defer ticker.Stop()
		statsTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			stats := c.Stats()
			fmt.Printf("\n%s", stats.String())
			return nil
		case <-statsTick:
			stats := c.Stats()
			fmt.Printf("\n%s\n", stats.String())
		case s := <-closed:
			if s.Err != nil {
				return s.Err
			}
			log.Info().Msg(s.Message)
			fmt.Printf("Connection closed: %s\n", s.Message)
			return nil
		}
	}
}

