// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package session owns the connection to the balance controller: it opens
// the serial channel, runs the single read loop that frames and decodes
// telemetry, and writes command lines.
package session

// State is the connection lifecycle state
type State int

// Connection states
const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

// String returns the human-readable state name
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Status is pushed to the status callback on every transition and error
type Status struct {
	State     State
	Connected bool
	Port      string
	Message   string
	Err       error // nil for normal transitions
}
