// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrPortUnavailable is returned when no port is selected or the port is
	// not among the enumerated ports
	ErrPortUnavailable = errors.New("serial port unavailable")

	// ErrNotConnected is returned by Send outside the open state
	ErrNotConnected = errors.New("not connected")

	// ErrUnsupportedBaud is returned for a baud rate outside BaudRates
	ErrUnsupportedBaud = errors.New("unsupported baud rate")

	// ErrBusy is returned by Connect while a connect or disconnect is in progress
	ErrBusy = errors.New("connection is opening or closing")

	// ErrAborted is returned by Connect when Disconnect was called during the open
	ErrAborted = errors.New("connect aborted")
)

// OpenError reports a channel that failed to open
type OpenError struct {
	Port string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open %s: %v", e.Port, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// WriteError reports a rejected command write. The session stays open.
type WriteError struct {
	Port string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to %s failed: %v", e.Port, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ReadError reports a failed read loop. The session is torn down.
type ReadError struct {
	Port string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read from %s failed: %v", e.Port, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
