// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialReadTimeout bounds each blocking read so the read loop re-checks
// the session between chunks even when the device is silent
const SerialReadTimeout = 100 * time.Millisecond

// SerialPort is the subset of serial.Port the opener needs (for mocking in tests)
type SerialPort interface {
	Channel
	SetReadTimeout(t time.Duration) error
}

// SerialPortFactory opens a serial port
type SerialPortFactory func(path string, mode *serial.Mode) (SerialPort, error)

// DefaultSerialPortFactory opens real serial ports
func DefaultSerialPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// SerialOpener opens 8N1 serial channels
type SerialOpener struct {
	Factory     SerialPortFactory // nil uses DefaultSerialPortFactory
	ReadTimeout time.Duration     // zero uses SerialReadTimeout
}

// Open opens the port at the given baud rate
func (o SerialOpener) Open(ctx context.Context, portName string, baud int) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	factory := o.Factory
	if factory == nil {
		factory = DefaultSerialPortFactory
	}
	timeout := o.ReadTimeout
	if timeout == 0 {
		timeout = SerialReadTimeout
	}

	port, err := factory(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return port, nil
}

// SerialPorts enumerates the serial ports of the host, USB details included
// where the platform provides them
var SerialPorts = EnumeratorFunc(func() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		// Fall back to plain names
		names, listErr := serial.GetPortsList()
		if listErr != nil {
			return nil, fmt.Errorf("failed to enumerate ports: %w", err)
		}
		return StaticPorts(names).Ports()
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}

	// USB adapters first, then by name
	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].IsUSB != ports[j].IsUSB {
			return ports[i].IsUSB
		}
		return ports[i].Name < ports[j].Name
	})
	return ports, nil
})
