// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package linewire implements the line-oriented text protocol spoken by the
// balance controller firmware.
//
// The device streams telemetry lines such as "L: 1200.0 A: -3.2 R: 1195.5"
// and accepts command lines such as "p: 1.2 i: 0.5 d: 0.1 t: 0.02 s: 10 g: 5".
// This package provides the stream framer, the telemetry decoder, the command
// encoder, the control state model and display helpers. It does no I/O.
package linewire

import (
	"fmt"
	"strings"
)

// LineTerminator ends every line in both directions
const LineTerminator = '\n'

// Channel names a telemetry channel
type Channel string

// Telemetry channels
const (
	ChannelLeftRPM  Channel = "left-rpm"
	ChannelTilt     Channel = "tilt-angle"
	ChannelRightRPM Channel = "right-rpm"
)

// Field binds a single-letter wire tag to a telemetry channel
type Field struct {
	Tag     string
	Channel Channel
}

// Variant is the set of telemetry fields a firmware build emits, in wire order
type Variant struct {
	Name   string
	Fields []Field
}

// Protocol variants
var (
	// VariantBalance is the full firmware: both wheel speeds and the tilt angle
	VariantBalance = Variant{
		Name: "balance",
		Fields: []Field{
			{Tag: "L", Channel: ChannelLeftRPM},
			{Tag: "A", Channel: ChannelTilt},
			{Tag: "R", Channel: ChannelRightRPM},
		},
	}

	// VariantTilt is the reduced firmware that only reports the tilt angle
	VariantTilt = Variant{
		Name: "tilt",
		Fields: []Field{
			{Tag: "A", Channel: ChannelTilt},
		},
	}
)

// Variants lists every known protocol variant
var Variants = []Variant{VariantBalance, VariantTilt}

// ParseVariant looks up a variant by name (case-insensitive)
func ParseVariant(name string) (Variant, error) {
	for _, v := range Variants {
		if strings.EqualFold(v.Name, strings.TrimSpace(name)) {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("unknown protocol variant %q (use balance or tilt)", name)
}

// Channels returns the variant's channels in wire order
func (v Variant) Channels() []Channel {
	channels := make([]Channel, len(v.Fields))
	for i, f := range v.Fields {
		channels[i] = f.Channel
	}
	return channels
}

// HasMotors reports whether the variant drives the two wheel motors
func (v Variant) HasMotors() bool {
	for _, f := range v.Fields {
		if f.Channel == ChannelLeftRPM || f.Channel == ChannelRightRPM {
			return true
		}
	}
	return false
}

// LEDCount is the number of indicator LEDs addressed by the LED mask
const LEDCount = 8

// Command keys, in wire order
const (
	KeyKp       = "p"
	KeyKi       = "i"
	KeyKd       = "d"
	KeyTau      = "t"
	KeySetpoint = "s"
	KeyColor    = "b"
	KeyLeft     = "l"
	KeyRight    = "r"
	KeyLEDs     = "g"
)

// DefaultRanges are the display ranges used to clamp gauges
var DefaultRanges = map[Channel]Range{
	ChannelLeftRPM:  {Min: -3000, Max: 3000},
	ChannelTilt:     {Min: -45, Max: 45},
	ChannelRightRPM: {Min: -3000, Max: 3000},
}
