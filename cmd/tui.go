// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle = boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 1)

	activeButtonStyle = buttonStyle.
		Background(lipgloss.Color("10"))
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// eventLog keeps the most recent entries
type eventLog struct {
	entries    []errorLogEntry
	maxEntries int
}

func newEventLog(maxEntries int) eventLog {
	return eventLog{entries: make([]errorLogEntry, 0), maxEntries: maxEntries}
}

func (l *eventLog) add(message string, isError bool) {
	l.entries = append(l.entries, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[len(l.entries)-l.maxEntries:]
	}
}

// last returns up to n of the newest entries
func (l eventLog) last(n int) []errorLogEntry {
	start := max(len(l.entries)-n, 0)
	return l.entries[start:]
}

func (l eventLog) render(height, width int) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	entries := l.last(height)
	if len(entries) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range entries {
		icon := "i"
		style := warningStyle
		if entry.isError {
			icon = "x"
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return boxStyle.Width(width).Render(strings.TrimRight(s.String(), "\n"))
}

// readingBuffer holds the newest reading between UI refreshes so a fast
// telemetry stream does not flood the program with messages
type readingBuffer struct {
	mu     sync.Mutex
	latest linewire.Reading
	count  uint64
	dirty  bool
}

func (b *readingBuffer) put(r linewire.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = r
	b.count++
	b.dirty = true
}

// take returns the newest reading if one arrived since the last take
func (b *readingBuffer) take() (linewire.Reading, uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty {
		return nil, b.count, false
	}
	b.dirty = false
	return b.latest, b.count, true
}

func (b *readingBuffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = nil
	b.dirty = false
}

// formatUptime formats a duration to a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := uint64(d / time.Second)
	if seconds == 0 {
		return "0 seconds"
	}

	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	for _, unit := range []struct {
		n    uint64
		name string
	}{
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
		{seconds, "second"},
	} {
		switch {
		case unit.n == 1:
			parts = append(parts, "1 "+unit.name)
		case unit.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", unit.n, unit.name))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}
