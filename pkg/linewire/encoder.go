// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package linewire

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotFinite is returned when a numeric parameter is NaN or infinite
var ErrNotFinite = errors.New("value is not a finite number")

// ErrMalformedCommand is returned by ParseCommand for lines the encoder could not have produced
var ErrMalformedCommand = errors.New("malformed command line")

// commandOrder is the fixed key order of a command line
var commandOrder = []string{KeyKp, KeyKi, KeyKd, KeyTau, KeySetpoint, KeyColor, KeyLeft, KeyRight, KeyLEDs}

// EncodeCommand serializes the control state into one newline-terminated command line.
//
// Keys appear in the order p, i, d, t, s, [b], [l, r], g. The color is only
// written when set and the motor flags only when Motors is non-nil. Nothing
// is produced if any numeric field is NaN or infinite.
func EncodeCommand(s ControlState) (string, error) {
	numbers := []struct {
		key   string
		value float64
	}{
		{KeyKp, s.Kp},
		{KeyKi, s.Ki},
		{KeyKd, s.Kd},
		{KeyTau, s.Tau},
		{KeySetpoint, s.EffectiveSetpoint()},
	}

	var b strings.Builder
	for i, n := range numbers {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) {
			return "", fmt.Errorf("%s: %w", n.key, ErrNotFinite)
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		writeToken(&b, n.key, FormatNumber(n.value))
	}

	if s.Color != "" {
		color, err := NormalizeColor(s.Color)
		if err != nil {
			return "", fmt.Errorf("%s: %w", KeyColor, err)
		}
		b.WriteByte(' ')
		writeToken(&b, KeyColor, color)
	}

	if s.Motors != nil {
		b.WriteByte(' ')
		writeToken(&b, KeyLeft, flag(s.Motors.Left))
		b.WriteByte(' ')
		writeToken(&b, KeyRight, flag(s.Motors.Right))
	}

	b.WriteByte(' ')
	writeToken(&b, KeyLEDs, strconv.Itoa(int(s.LEDs)))
	b.WriteByte(LineTerminator)

	return b.String(), nil
}

// FormatNumber renders a float the way command lines carry it:
// shortest exact decimal, never exponent notation
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeToken(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
}

func flag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// CommandFields is a parsed command line
type CommandFields struct {
	Kp       float64
	Ki       float64
	Kd       float64
	Tau      float64
	Setpoint float64
	Color    string  // empty when the line carries no color
	Motors   *Motors // nil when the line carries no motor flags
	LEDs     LEDMask
}

var commandToken = regexp.MustCompile(`([a-z]):\s*(\S+)`)

// ParseCommand parses a line produced by EncodeCommand.
// Keys must appear in encoder order; p, i, d, t, s and g are required and
// l and r must appear together.
func ParseCommand(line string) (CommandFields, error) {
	line = strings.TrimSpace(line)
	var out CommandFields

	matches := commandToken.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return out, fmt.Errorf("%w: no key/value pairs", ErrMalformedCommand)
	}

	seen := make(map[string]bool, len(commandOrder))
	orderIdx := 0
	prevEnd := 0
	var left, right *bool

	for _, m := range matches {
		if strings.TrimSpace(line[prevEnd:m[0]]) != "" {
			return out, fmt.Errorf("%w: unexpected text %q", ErrMalformedCommand, line[prevEnd:m[0]])
		}
		prevEnd = m[1]

		key := line[m[2]:m[3]]
		value := line[m[4]:m[5]]

		pos := keyPosition(key)
		if pos < 0 {
			return out, fmt.Errorf("%w: unknown key %q", ErrMalformedCommand, key)
		}
		if seen[key] || pos < orderIdx {
			return out, fmt.Errorf("%w: key %q out of order", ErrMalformedCommand, key)
		}
		seen[key] = true
		orderIdx = pos

		var err error
		switch key {
		case KeyKp:
			out.Kp, err = parseNumber(key, value)
		case KeyKi:
			out.Ki, err = parseNumber(key, value)
		case KeyKd:
			out.Kd, err = parseNumber(key, value)
		case KeyTau:
			out.Tau, err = parseNumber(key, value)
		case KeySetpoint:
			out.Setpoint, err = parseNumber(key, value)
		case KeyColor:
			out.Color, err = NormalizeColor(value)
		case KeyLeft:
			left, err = parseFlag(key, value)
		case KeyRight:
			right, err = parseFlag(key, value)
		case KeyLEDs:
			var mask uint64
			mask, err = strconv.ParseUint(value, 10, 8)
			if err != nil {
				err = fmt.Errorf("%w: %s=%q", ErrMalformedCommand, key, value)
			}
			out.LEDs = LEDMask(mask)
		}
		if err != nil {
			return out, err
		}
	}

	if strings.TrimSpace(line[prevEnd:]) != "" {
		return out, fmt.Errorf("%w: trailing text %q", ErrMalformedCommand, line[prevEnd:])
	}

	for _, key := range []string{KeyKp, KeyKi, KeyKd, KeyTau, KeySetpoint, KeyLEDs} {
		if !seen[key] {
			return out, fmt.Errorf("%w: missing key %q", ErrMalformedCommand, key)
		}
	}
	if (left == nil) != (right == nil) {
		return out, fmt.Errorf("%w: motor flags must appear together", ErrMalformedCommand)
	}
	if left != nil {
		out.Motors = &Motors{Left: *left, Right: *right}
	}

	return out, nil
}

func keyPosition(key string) int {
	for i, k := range commandOrder {
		if k == key {
			return i
		}
	}
	return -1
}

func parseNumber(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s=%q", ErrMalformedCommand, key, value)
	}
	return v, nil
}

func parseFlag(key, value string) (*bool, error) {
	switch value {
	case "0":
		v := false
		return &v, nil
	case "1":
		v := true
		return &v, nil
	}
	return nil, fmt.Errorf("%w: %s=%q (want 0 or 1)", ErrMalformedCommand, key, value)
}
