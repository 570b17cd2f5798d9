// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package session

import (
	"context"
	"io"
	"slices"
)

// BaudRates are the supported baud rates
var BaudRates = []int{9600, 19200, 38400, 57600, 115200}

// DefaultBaud matches the firmware default
const DefaultBaud = 115200

// ValidBaud reports whether baud is one of BaudRates
func ValidBaud(baud int) bool {
	return slices.Contains(BaudRates, baud)
}

// Channel is an opened byte stream to the device
type Channel interface {
	io.Reader
	io.Writer
	io.Closer
}

// Opener opens a channel to a port
type Opener interface {
	Open(ctx context.Context, port string, baud int) (Channel, error)
}

// OpenerFunc adapts a function to Opener
type OpenerFunc func(ctx context.Context, port string, baud int) (Channel, error)

// Open calls f
func (f OpenerFunc) Open(ctx context.Context, port string, baud int) (Channel, error) {
	return f(ctx, port, baud)
}

// PortInfo describes an enumerated port
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Description returns a one-line summary for port pickers
func (p PortInfo) Description() string {
	if !p.IsUSB {
		return "native"
	}
	desc := "USB " + p.VID + ":" + p.PID
	if p.Product != "" {
		desc += " " + p.Product
	}
	if p.SerialNumber != "" {
		desc += " (" + p.SerialNumber + ")"
	}
	return desc
}

// Enumerator lists the ports a connection may be opened on
type Enumerator interface {
	Ports() ([]PortInfo, error)
}

// EnumeratorFunc adapts a function to Enumerator
type EnumeratorFunc func() ([]PortInfo, error)

// Ports calls f
func (f EnumeratorFunc) Ports() ([]PortInfo, error) {
	return f()
}

// StaticPorts is a fixed port list, used for transports with a single
// pseudo-port such as a WebSocket bridge
type StaticPorts []string

// Ports returns the fixed list
func (s StaticPorts) Ports() ([]PortInfo, error) {
	ports := make([]PortInfo, len(s))
	for i, name := range s {
		ports[i] = PortInfo{Name: name}
	}
	return ports, nil
}
