// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package linewire

import (
	"fmt"
	"time"
)

// Statistics tracks line and command counters for a session
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	BytesReceived  uint64
	TotalLines     uint64
	DecodedLines   uint64
	EmptyLines     uint64
	SkippedLines   uint64 // non-empty lines that did not decode
	DroppedLines   uint64 // oversized lines discarded by the framer
	CommandsSent   uint64
	WriteErrors    uint64
	LastCommand    string
	LastSkippedRaw string

	// Rates (calculated)
	LineRate  float64 // lines/sec
	ReadingHz float64 // decoded readings/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordLine counts one framed line and whether it decoded
func (s *Statistics) RecordLine(line string, decoded bool) {
	s.TotalLines++
	switch {
	case decoded:
		s.DecodedLines++
	case line == "":
		s.EmptyLines++
	default:
		s.SkippedLines++
		s.LastSkippedRaw = line
	}
	s.LastUpdateTime = time.Now()
}

// RecordCommand counts one command write attempt
func (s *Statistics) RecordCommand(line string, err error) {
	if err != nil {
		s.WriteErrors++
		return
	}
	s.CommandsSent++
	s.LastCommand = line
}

// CalculateRates calculates line and reading rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.LineRate = float64(s.TotalLines) / elapsed
		s.ReadingHz = float64(s.DecodedLines) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var decodedPercent, skippedPercent float64
	if s.TotalLines > 0 {
		decodedPercent = float64(s.DecodedLines) * 100.0 / float64(s.TotalLines)
		skippedPercent = float64(s.SkippedLines) * 100.0 / float64(s.TotalLines)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Bytes Received:  %8d\n", s.BytesReceived)
	result += fmt.Sprintf("Total Lines:     %8d\n", s.TotalLines)
	result += fmt.Sprintf("Decoded Lines:   %8d (%.1f%%)\n", s.DecodedLines, decodedPercent)

	if s.SkippedLines > 0 {
		result += fmt.Sprintf("Skipped Lines:   %8d (%.1f%%)\n", s.SkippedLines, skippedPercent)
		result += fmt.Sprintf("  Last Skipped:  %q\n", s.LastSkippedRaw)
	}
	if s.EmptyLines > 0 {
		result += fmt.Sprintf("Empty Lines:     %8d\n", s.EmptyLines)
	}
	if s.DroppedLines > 0 {
		result += fmt.Sprintf("Oversized Lines: %8d\n", s.DroppedLines)
	}

	result += fmt.Sprintf("Commands Sent:   %8d\n", s.CommandsSent)
	if s.WriteErrors > 0 {
		result += fmt.Sprintf("Write Errors:    %8d\n", s.WriteErrors)
	}

	result += fmt.Sprintf("Line Rate:       %8.1f lines/sec\n", s.LineRate)
	result += fmt.Sprintf("Reading Rate:    %8.1f Hz\n", s.ReadingHz)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
