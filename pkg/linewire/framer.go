// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package linewire

import (
	"iter"
	"strings"
)

// Framer splits a text stream with arbitrary chunk boundaries into trimmed lines.
//
// The partial trailing fragment stays buffered until its terminator arrives.
// With a non-zero maxLine, any line longer than maxLine bytes is discarded
// and the framer skips ahead to the next terminator. A zero maxLine leaves
// the buffer unbounded.
type Framer struct {
	pending    string // unconsumed text, including a partial last line
	maxLine    int
	discarding bool // inside an oversized line, waiting for its terminator
	dropped    uint64
}

// NewFramer creates a framer. maxLine <= 0 disables the length limit.
func NewFramer(maxLine int) *Framer {
	if maxLine < 0 {
		maxLine = 0
	}
	return &Framer{maxLine: maxLine}
}

// Feed appends a chunk and returns the complete lines it made available.
//
// Lines are extracted lazily as the sequence is consumed; lines left
// unconsumed stay buffered and are yielded by the next Feed.
func (f *Framer) Feed(chunk string) iter.Seq[string] {
	f.pending += chunk
	return func(yield func(string) bool) {
		for {
			idx := strings.IndexByte(f.pending, LineTerminator)
			if idx < 0 {
				f.limitPending()
				return
			}

			raw := f.pending[:idx]
			f.pending = f.pending[idx+1:]

			if f.discarding {
				// Tail of a line already counted as dropped
				f.discarding = false
				continue
			}
			if f.maxLine > 0 && len(raw) > f.maxLine {
				f.dropped++
				continue
			}

			if !yield(strings.TrimSpace(raw)) {
				return
			}
		}
	}
}

// Lines feeds a chunk and collects every complete line
func (f *Framer) Lines(chunk string) []string {
	var lines []string
	for line := range f.Feed(chunk) {
		lines = append(lines, line)
	}
	return lines
}

// Reset discards the partial-line buffer
func (f *Framer) Reset() {
	f.pending = ""
	f.discarding = false
}

// Buffered returns the number of bytes waiting for a terminator
func (f *Framer) Buffered() int {
	return len(f.pending)
}

// Dropped returns how many oversized lines were discarded
func (f *Framer) Dropped() uint64 {
	return f.dropped
}

// limitPending drops an unterminated fragment that already exceeds maxLine.
// Must only be called when pending holds no terminator.
func (f *Framer) limitPending() {
	if f.maxLine <= 0 || len(f.pending) <= f.maxLine {
		return
	}
	if !f.discarding {
		f.dropped++
		f.discarding = true
	}
	f.pending = ""
}
