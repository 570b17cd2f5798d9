// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package control

import (
	"errors"
	"fmt"
	"math"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
)

// ErrSetpointLocked is returned for manual setpoint edits while the remote
// feed drives the setpoint
var ErrSetpointLocked = errors.New("setpoint is driven by the remote feed")

// ErrNoMotors is returned for motor events on firmware without motor control
var ErrNoMotors = errors.New("firmware has no motor control")

// SendPolicy says when a change reaches the device
type SendPolicy int

const (
	// SendNone keeps the change local
	SendNone SendPolicy = iota
	// SendDebounced coalesces rapid edits into one send
	SendDebounced
	// SendNow sends immediately
	SendNow
)

// Event is a change request consumed by the Dispatcher
type Event interface {
	// apply mutates state and reports whether it changed and how to send it
	apply(s *linewire.ControlState) (bool, SendPolicy, error)
}

// Param names a numeric control parameter
type Param int

// Numeric parameters
const (
	ParamKp Param = iota
	ParamKi
	ParamKd
	ParamTau
	ParamSetpoint
)

var paramNames = map[Param]string{
	ParamKp:       "kp",
	ParamKi:       "ki",
	ParamKd:       "kd",
	ParamTau:      "tau",
	ParamSetpoint: "setpoint",
}

func (p Param) String() string {
	if name, ok := paramNames[p]; ok {
		return name
	}
	return fmt.Sprintf("param(%d)", int(p))
}

// Params lists the numeric parameters in display order
var Params = []Param{ParamKp, ParamKi, ParamKd, ParamTau, ParamSetpoint}

// Value returns the parameter's value in s (the manual setpoint for ParamSetpoint)
func (p Param) Value(s linewire.ControlState) float64 {
	switch p {
	case ParamKp:
		return s.Kp
	case ParamKi:
		return s.Ki
	case ParamKd:
		return s.Kd
	case ParamTau:
		return s.Tau
	default:
		return s.Setpoint
	}
}

// SetParam sets a numeric parameter from local input
type SetParam struct {
	Param Param
	Value float64
}

func (e SetParam) apply(s *linewire.ControlState) (bool, SendPolicy, error) {
	if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
		return false, SendNone, fmt.Errorf("%s: %w", e.Param, linewire.ErrNotFinite)
	}

	var field *float64
	switch e.Param {
	case ParamKp:
		field = &s.Kp
	case ParamKi:
		field = &s.Ki
	case ParamKd:
		field = &s.Kd
	case ParamTau:
		field = &s.Tau
	case ParamSetpoint:
		if s.UseRemoteSetpoint {
			return false, SendNone, ErrSetpointLocked
		}
		field = &s.Setpoint
	default:
		return false, SendNone, fmt.Errorf("unknown parameter %s", e.Param)
	}

	if *field == e.Value {
		return false, SendNone, nil
	}
	*field = e.Value
	return true, SendDebounced, nil
}

// SetRemoteMode selects the setpoint source
type SetRemoteMode struct {
	Enabled bool
}

func (e SetRemoteMode) apply(s *linewire.ControlState) (bool, SendPolicy, error) {
	if s.UseRemoteSetpoint == e.Enabled {
		return false, SendNone, nil
	}
	s.UseRemoteSetpoint = e.Enabled
	return true, SendNow, nil
}

// RemoteSetpoint is a setpoint update from the remote feed. It is stored in
// either mode but only sent while remote mode is active.
type RemoteSetpoint struct {
	Value float64
}

func (e RemoteSetpoint) apply(s *linewire.ControlState) (bool, SendPolicy, error) {
	if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
		return false, SendNone, fmt.Errorf("remote setpoint: %w", linewire.ErrNotFinite)
	}
	s.RemoteSetpoint = e.Value
	if !s.UseRemoteSetpoint {
		return true, SendNone, nil
	}
	return true, SendNow, nil
}

// ToggleLED flips one indicator LED
type ToggleLED struct {
	Index int
}

func (e ToggleLED) apply(s *linewire.ControlState) (bool, SendPolicy, error) {
	if err := s.LEDs.Toggle(e.Index); err != nil {
		return false, SendNone, err
	}
	return true, SendNow, nil
}

// Motor names a wheel motor
type Motor int

// Wheel motors
const (
	MotorLeft Motor = iota
	MotorRight
)

// SetMotor switches a wheel motor on or off
type SetMotor struct {
	Motor Motor
	On    bool
}

func (e SetMotor) apply(s *linewire.ControlState) (bool, SendPolicy, error) {
	if s.Motors == nil {
		return false, SendNone, ErrNoMotors
	}
	flag := &s.Motors.Left
	if e.Motor == MotorRight {
		flag = &s.Motors.Right
	}
	if *flag == e.On {
		return false, SendNone, nil
	}
	*flag = e.On
	return true, SendNow, nil
}

// SetColor sets the LED strip color; empty clears it
type SetColor struct {
	Color string
}

func (e SetColor) apply(s *linewire.ControlState) (bool, SendPolicy, error) {
	color := ""
	if e.Color != "" {
		var err error
		if color, err = linewire.NormalizeColor(e.Color); err != nil {
			return false, SendNone, err
		}
	}
	if s.Color == color {
		return false, SendNone, nil
	}
	s.Color = color
	return true, SendDebounced, nil
}

// ResetOutputs switches every LED and motor off without sending, used when
// the connection goes away
type ResetOutputs struct{}

func (ResetOutputs) apply(s *linewire.ControlState) (bool, SendPolicy, error) {
	changed := s.LEDs != 0
	s.LEDs = 0
	if s.Motors != nil && (s.Motors.Left || s.Motors.Right) {
		s.Motors = &linewire.Motors{}
		changed = true
	}
	return changed, SendNone, nil
}

// Flush sends the current state now, cancelling any pending debounced send
type Flush struct{}

func (Flush) apply(*linewire.ControlState) (bool, SendPolicy, error) {
	return false, SendNow, nil
}
