// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package linewire

import (
	"fmt"
	"strings"
	"time"
)

// channelUnits maps channels to their display unit
var channelUnits = map[Channel]string{
	ChannelLeftRPM:  "rpm",
	ChannelTilt:     "deg",
	ChannelRightRPM: "rpm",
}

// FormatChannel returns a human-readable channel label
func FormatChannel(c Channel) string {
	switch c {
	case ChannelLeftRPM:
		return "Left"
	case ChannelTilt:
		return "Tilt"
	case ChannelRightRPM:
		return "Right"
	default:
		return string(c)
	}
}

// FormatReading renders a reading in variant order, e.g.
// "[15:04:05.000] Left=1200.0rpm Tilt=-3.2deg Right=1195.5rpm"
func FormatReading(v Variant, r Reading, ts time.Time) string {
	parts := make([]string, 0, len(v.Fields))
	for _, c := range v.Channels() {
		value, ok := r[c]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%.1f%s", FormatChannel(c), value, channelUnits[c]))
	}
	return fmt.Sprintf("[%s] %s", ts.Format("15:04:05.000"), strings.Join(parts, " "))
}

// FormatCommand describes a parsed command line
func FormatCommand(c CommandFields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Gains: kp=%s ki=%s kd=%s tau=%s\n",
		FormatNumber(c.Kp), FormatNumber(c.Ki), FormatNumber(c.Kd), FormatNumber(c.Tau))
	fmt.Fprintf(&b, "  Setpoint: %s\n", FormatNumber(c.Setpoint))
	if c.Color != "" {
		fmt.Fprintf(&b, "  Color: #%s\n", c.Color)
	}
	if c.Motors != nil {
		fmt.Fprintf(&b, "  Motors: left=%s right=%s\n", onOff(c.Motors.Left), onOff(c.Motors.Right))
	}
	fmt.Fprintf(&b, "  LEDs: mask=%d on=%v\n", c.LEDs, c.LEDs.Indices())
	return b.String()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
