// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Decode captured protocol lines offline",
	Long: `Read protocol lines from a file or stdin and show how each one decodes,
either as a telemetry line for the selected --variant or as a command line.

Useful for checking captured serial logs and hand-written command lines
without a device attached.

Examples:
  gyrostat inspect capture.txt
  echo "p: 1.2 i: 0.5 d: 0.1 t: 0.02 s: 10 g: 5" | gyrostat inspect`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	in := io.Reader(os.Stdin)
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	return inspectLines(in, cmd.OutOrStdout(), cfg.Variant(), cfg.Serial.MaxLineLength)
}

// inspectLines frames r and describes each line on w
func inspectLines(r io.Reader, w io.Writer, variant linewire.Variant, maxLine int) error {
	framer := linewire.NewFramer(max(maxLine, 0))
	decoder := linewire.NewDecoder(variant)
	stats := linewire.NewStatistics()

	describe := func(line string) {
		reading, ok := decoder.Decode(line)
		stats.RecordLine(line, ok)

		switch {
		case line == "":
			return
		case ok:
			fmt.Fprintf(w, "TELEMETRY %s\n", linewire.FormatReading(variant, reading, time.Now()))
		default:
			fields, err := linewire.ParseCommand(line)
			if err != nil {
				fmt.Fprintf(w, "SKIP      %q\n", line)
				return
			}
			fmt.Fprintf(w, "COMMAND   %q\n%s", line, linewire.FormatCommand(fields))
		}
	}

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			stats.BytesReceived += uint64(n)
			for line := range framer.Feed(string(buf[:n])) {
				describe(line)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
	}

	// A final line without terminator still counts
	if framer.Buffered() > 0 {
		for line := range framer.Feed(string(linewire.LineTerminator)) {
			describe(line)
		}
	}

	stats.DroppedLines = framer.Dropped()
	fmt.Fprintf(w, "\n%s", stats.String())
	return nil
}
