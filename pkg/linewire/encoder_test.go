// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package linewire

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name  string
		state ControlState
		want  string
	}{
		{
			name:  "basic variant",
			state: ControlState{Kp: 1.2, Ki: 0.5, Kd: 0.1, Tau: 0.02, Setpoint: 10, LEDs: 5},
			want:  "p: 1.2 i: 0.5 d: 0.1 t: 0.02 s: 10 g: 5\n",
		},
		{
			name: "full variant with color and motors",
			state: ControlState{
				Kp: 30, Ki: 0, Kd: -0.75, Tau: 0.5, Setpoint: -2.5,
				Motors: &Motors{Left: true, Right: false},
				LEDs:   255,
				Color:  "#ff8800",
			},
			want: "p: 30 i: 0 d: -0.75 t: 0.5 s: -2.5 b: ff8800 l: 1 r: 0 g: 255\n",
		},
		{
			name: "remote setpoint wins in remote mode",
			state: ControlState{
				Setpoint: 10, RemoteSetpoint: 3.25, UseRemoteSetpoint: true,
			},
			want: "p: 0 i: 0 d: 0 t: 0 s: 3.25 g: 0\n",
		},
		{
			name:  "manual setpoint when remote mode is off",
			state: ControlState{Setpoint: 10, RemoteSetpoint: 3.25},
			want:  "p: 0 i: 0 d: 0 t: 0 s: 10 g: 0\n",
		},
		{
			name:  "large and tiny values never use exponent notation",
			state: ControlState{Kp: 1e21, Ki: 1e-7},
			want:  "p: 1000000000000000000000 i: 0.0000001 d: 0 t: 0 s: 0 g: 0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCommand(tt.state)
			if err != nil {
				t.Fatalf("EncodeCommand() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeCommand_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		state   ControlState
		wantErr error
		wantKey string
	}{
		{"NaN gain", ControlState{Ki: math.NaN()}, ErrNotFinite, "i:"},
		{"infinite tau", ControlState{Tau: math.Inf(1)}, ErrNotFinite, "t:"},
		{"NaN remote setpoint", ControlState{UseRemoteSetpoint: true, RemoteSetpoint: math.NaN()}, ErrNotFinite, "s:"},
		{"bad color", ControlState{Color: "#12345"}, ErrInvalidColor, "b:"},
		{"non-hex color", ControlState{Color: "zzzzzz"}, ErrInvalidColor, "b:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCommand(tt.state)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("EncodeCommand() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.HasPrefix(err.Error(), tt.wantKey) {
				t.Errorf("error %q does not name key %q", err, tt.wantKey)
			}
			if got != "" {
				t.Errorf("EncodeCommand() produced %q on error", got)
			}
		})
	}
}

func TestEncodeCommand_NaNInInactiveSetpoint(t *testing.T) {
	// Only the active setpoint source is encoded
	state := ControlState{Setpoint: math.NaN(), UseRemoteSetpoint: true, RemoteSetpoint: 1}
	got, err := EncodeCommand(state)
	if err != nil {
		t.Fatalf("EncodeCommand() error = %v", err)
	}
	if !strings.Contains(got, "s: 1 ") {
		t.Errorf("EncodeCommand() = %q, want remote setpoint", got)
	}
}

func TestEncodeCommand_RoundTrip(t *testing.T) {
	states := []ControlState{
		{Kp: 1.2, Ki: 0.5, Kd: 0.1, Tau: 0.02, Setpoint: 10, LEDs: 5},
		{Kp: -3, Ki: 123.456, Kd: 0, Tau: 1, Setpoint: -0.001, LEDs: 10, Color: "00FF7f"},
		{Kp: 0.1, Ki: 0.2, Kd: 0.3, Tau: 0.4, RemoteSetpoint: 7.5, UseRemoteSetpoint: true,
			Motors: &Motors{Left: false, Right: true}, LEDs: 128},
		{Motors: &Motors{Left: true, Right: true}, Color: "#abcdef"},
	}

	for _, s := range states {
		line, err := EncodeCommand(s)
		if err != nil {
			t.Fatalf("EncodeCommand(%+v) error = %v", s, err)
		}
		if !strings.HasSuffix(line, "\n") || strings.Count(line, "\n") != 1 {
			t.Fatalf("line %q is not a single terminated line", line)
		}

		got, err := ParseCommand(line)
		if err != nil {
			t.Fatalf("ParseCommand(%q) error = %v", line, err)
		}

		wantColor := strings.TrimPrefix(s.Color, "#")
		want := CommandFields{
			Kp: s.Kp, Ki: s.Ki, Kd: s.Kd, Tau: s.Tau,
			Setpoint: s.EffectiveSetpoint(),
			Color:    wantColor,
			Motors:   s.Motors,
			LEDs:     s.LEDs,
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip of %q = %+v, want %+v", line, got, want)
		}
	}
}

func TestEncodeCommand_KeyOrder(t *testing.T) {
	line, err := EncodeCommand(ControlState{Motors: &Motors{}, Color: "010203"})
	if err != nil {
		t.Fatal(err)
	}

	var keys []string
	for _, tok := range strings.Fields(line) {
		if strings.HasSuffix(tok, ":") {
			keys = append(keys, strings.TrimSuffix(tok, ":"))
		}
	}
	want := []string{"p", "i", "d", "t", "s", "b", "l", "r", "g"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

func TestParseCommand_Malformed(t *testing.T) {
	lines := []string{
		"",
		"hello",
		"p: 1 i: 2 d: 3 t: 4 s: 5",                // missing g
		"i: 2 p: 1 d: 3 t: 4 s: 5 g: 0",           // out of order
		"p: 1 p: 1 i: 2 d: 3 t: 4 s: 5 g: 0",      // duplicate
		"p: 1 i: 2 d: 3 t: 4 s: 5 l: 1 g: 0",      // l without r
		"p: 1 i: 2 d: 3 t: 4 s: 5 l: 2 r: 0 g: 0", // flag not 0/1
		"p: 1 i: 2 d: 3 t: 4 s: 5 g: 256",         // mask overflow
		"p: x i: 2 d: 3 t: 4 s: 5 g: 0",           // bad number
		"p: NaN i: 2 d: 3 t: 4 s: 5 g: 0",         // not finite
		"p: 1 i: 2 d: 3 t: 4 s: 5 z: 9 g: 0",      // unknown key
		"p: 1 i: 2 d: 3 t: 4 s: 5 g: 0 trailing",  // trailing text
		"junk p: 1 i: 2 d: 3 t: 4 s: 5 g: 0",      // leading text
		"p: 1 i: 2 d: 3 t: 4 s: 5 b: 12 g: 0",     // short color
	}

	for _, line := range lines {
		if _, err := ParseCommand(line); !errors.Is(err, ErrMalformedCommand) && !errors.Is(err, ErrInvalidColor) {
			t.Errorf("ParseCommand(%q) error = %v, want malformed", line, err)
		}
	}
}
