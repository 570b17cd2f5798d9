// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package linewire

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLED is returned for an LED index outside 0-7
var ErrInvalidLED = errors.New("LED index out of range")

// ErrInvalidColor is returned for a color that is not six hex digits
var ErrInvalidColor = errors.New("color must be six hex digits")

// LEDMask holds the on/off state of the eight indicator LEDs.
// Bit i is LED i.
type LEDMask uint8

// NewLEDMask builds a mask with the given indices switched on
func NewLEDMask(indices ...int) (LEDMask, error) {
	var m LEDMask
	for _, i := range indices {
		if err := m.Set(i, true); err != nil {
			return 0, err
		}
	}
	return m, nil
}

// On reports whether LED i is on
func (m LEDMask) On(i int) bool {
	if i < 0 || i >= LEDCount {
		return false
	}
	return m&(1<<uint(i)) != 0
}

// Set switches LED i on or off
func (m *LEDMask) Set(i int, on bool) error {
	if i < 0 || i >= LEDCount {
		return fmt.Errorf("%w: %d", ErrInvalidLED, i)
	}
	if on {
		*m |= 1 << uint(i)
	} else {
		*m &^= 1 << uint(i)
	}
	return nil
}

// Toggle flips LED i
func (m *LEDMask) Toggle(i int) error {
	return m.Set(i, !m.On(i))
}

// Indices returns the indices of the LEDs that are on, ascending
func (m LEDMask) Indices() []int {
	var out []int
	for i := 0; i < LEDCount; i++ {
		if m.On(i) {
			out = append(out, i)
		}
	}
	return out
}

// Motors holds the wheel motor enable flags of the full firmware
type Motors struct {
	Left  bool
	Right bool
}

// ControlState is the full set of parameters sent to the device.
//
// Exactly one setpoint source is active: RemoteSetpoint when
// UseRemoteSetpoint is set, Setpoint otherwise.
type ControlState struct {
	Kp  float64
	Ki  float64
	Kd  float64
	Tau float64 // filter time constant

	Setpoint          float64
	RemoteSetpoint    float64
	UseRemoteSetpoint bool

	Motors *Motors // nil on firmware without motor control
	LEDs   LEDMask
	Color  string // RRGGBB, optional leading '#', empty when unused
}

// EffectiveSetpoint returns the setpoint of the active source
func (s ControlState) EffectiveSetpoint() float64 {
	if s.UseRemoteSetpoint {
		return s.RemoteSetpoint
	}
	return s.Setpoint
}

// Clone returns a deep copy safe to hand to another goroutine
func (s ControlState) Clone() ControlState {
	out := s
	if s.Motors != nil {
		m := *s.Motors
		out.Motors = &m
	}
	return out
}

// NormalizeColor strips a leading '#' and validates six hex digits
func NormalizeColor(color string) (string, error) {
	c := strings.TrimPrefix(strings.TrimSpace(color), "#")
	if len(c) != 6 {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	for i := 0; i < len(c); i++ {
		if !isHexDigit(c[i]) {
			return "", fmt.Errorf("%w: %q", ErrInvalidColor, color)
		}
	}
	return c, nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
