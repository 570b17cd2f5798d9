// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// mockSerialPort records the read timeout and close calls
type mockSerialPort struct {
	*fakeChannel
	timeout    time.Duration
	timeoutErr error
}

func (m *mockSerialPort) SetReadTimeout(t time.Duration) error {
	m.timeout = t
	return m.timeoutErr
}

func TestSerialOpener_Open(t *testing.T) {
	t.Parallel()

	port := &mockSerialPort{fakeChannel: newFakeChannel()}
	var gotPath string
	var gotMode *serial.Mode

	opener := SerialOpener{
		Factory: func(path string, mode *serial.Mode) (SerialPort, error) {
			gotPath = path
			gotMode = mode
			return port, nil
		},
	}

	ch, err := opener.Open(context.Background(), "/dev/ttyUSB0", 57600)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	assert.Equal(t, "/dev/ttyUSB0", gotPath)
	assert.Equal(t, 57600, gotMode.BaudRate)
	assert.Equal(t, 8, gotMode.DataBits)
	assert.Equal(t, serial.NoParity, gotMode.Parity)
	assert.Equal(t, serial.OneStopBit, gotMode.StopBits)
	assert.Equal(t, SerialReadTimeout, port.timeout)
}

func TestSerialOpener_SetReadTimeoutError(t *testing.T) {
	t.Parallel()

	port := &mockSerialPort{fakeChannel: newFakeChannel(), timeoutErr: errors.New("ioctl failed")}
	opener := SerialOpener{
		Factory: func(string, *serial.Mode) (SerialPort, error) {
			return port, nil
		},
		ReadTimeout: 20 * time.Millisecond,
	}

	_, err := opener.Open(context.Background(), "/dev/ttyUSB0", 9600)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read timeout")
	assert.True(t, port.isClosed(), "port must be closed when setup fails")
	assert.Equal(t, 20*time.Millisecond, port.timeout)
}

func TestSerialOpener_FactoryError(t *testing.T) {
	t.Parallel()

	opener := SerialOpener{
		Factory: func(string, *serial.Mode) (SerialPort, error) {
			return nil, errors.New("no such file or directory")
		},
	}

	_, err := opener.Open(context.Background(), "/dev/ttyUSB9", 9600)
	require.EqualError(t, err, "no such file or directory")
}

func TestSerialOpener_CancelledContext(t *testing.T) {
	t.Parallel()

	called := false
	opener := SerialOpener{
		Factory: func(string, *serial.Mode) (SerialPort, error) {
			called = true
			return nil, errors.New("unreachable")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := opener.Open(ctx, "/dev/ttyUSB0", 9600)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestValidBaud(t *testing.T) {
	t.Parallel()

	for _, b := range BaudRates {
		assert.True(t, ValidBaud(b), "baud %d", b)
	}
	assert.True(t, ValidBaud(DefaultBaud))
	assert.False(t, ValidBaud(0))
	assert.False(t, ValidBaud(115201))
}

func TestPortInfo_Description(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info PortInfo
		want string
	}{
		{"native", PortInfo{Name: "/dev/ttyS0"}, "native"},
		{"usb", PortInfo{IsUSB: true, VID: "1a86", PID: "7523"}, "USB 1a86:7523"},
		{"usb with details", PortInfo{IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R", SerialNumber: "A50285BI"},
			"USB 0403:6001 FT232R (A50285BI)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.info.Description())
		})
	}
}

func TestStaticPorts(t *testing.T) {
	t.Parallel()

	ports, err := StaticPorts{"bridge"}.Ports()
	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, "bridge", ports[0].Name)
	assert.False(t, ports[0].IsUSB)
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "opening", StateOpening.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "unknown", State(42).String())
}
