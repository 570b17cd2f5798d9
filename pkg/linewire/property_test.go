// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package linewire

import (
	"fmt"
	"reflect"
	"slices"
	"testing"

	"pgregory.net/rapid"
)

// ============================================================
// Framer Property Tests
// ============================================================

// TestPropertyFramerChunkingInvariance verifies that any segmentation of a
// stream yields the same lines as feeding it whole
func TestPropertyFramerChunkingInvariance(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		stream := rapid.StringMatching(`[LAR:0-9. \-\t\r\nx]{0,200}`).Draw(t, "stream")
		maxLine := rapid.IntRange(0, 16).Draw(t, "maxLine")
		cuts := rapid.SliceOfN(rapid.IntRange(0, len(stream)), 0, 20).Draw(t, "cuts")
		slices.Sort(cuts)

		var chunks []string
		prev := 0
		for _, c := range cuts {
			chunks = append(chunks, stream[prev:c])
			prev = c
		}
		chunks = append(chunks, stream[prev:])

		whole := NewFramer(maxLine)
		want := whole.Lines(stream)

		split := NewFramer(maxLine)
		var got []string
		for _, chunk := range chunks {
			got = append(got, split.Lines(chunk)...)
		}

		if !reflect.DeepEqual(got, want) {
			t.Fatalf("chunks %q yielded %q, whole stream yielded %q", chunks, got, want)
		}
		if split.Dropped() != whole.Dropped() {
			t.Fatalf("dropped %d in chunks, %d whole", split.Dropped(), whole.Dropped())
		}
	})
}

// TestPropertyFramerBounded verifies the buffer never grows past the limit
func TestPropertyFramerBounded(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		maxLine := rapid.IntRange(1, 32).Draw(t, "maxLine")
		chunks := rapid.SliceOfN(rapid.StringMatching(`[a-z \n]{0,40}`), 1, 10).Draw(t, "chunks")

		f := NewFramer(maxLine)
		for _, chunk := range chunks {
			for line := range f.Feed(chunk) {
				if len(line) > maxLine {
					t.Fatalf("line %q longer than %d", line, maxLine)
				}
			}
			if f.Buffered() > maxLine {
				t.Fatalf("buffered %d bytes, limit %d", f.Buffered(), maxLine)
			}
		}
	})
}

// ============================================================
// Codec Property Tests
// ============================================================

// TestPropertyTelemetryRoundTrip verifies numbers formatted for the wire
// decode back to the same values
func TestPropertyTelemetryRoundTrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		left := rapid.Float64Range(-1e6, 1e6).Draw(t, "left")
		tilt := rapid.Float64Range(-180, 180).Draw(t, "tilt")
		right := rapid.Float64Range(-1e6, 1e6).Draw(t, "right")

		line := fmt.Sprintf("L: %s A: %s R: %s", FormatNumber(left), FormatNumber(tilt), FormatNumber(right))
		got, ok := NewDecoder(VariantBalance).Decode(line)
		if !ok {
			t.Fatalf("Decode(%q) skipped the line", line)
		}

		want := Reading{ChannelLeftRPM: left, ChannelTilt: tilt, ChannelRightRPM: right}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Decode(%q) = %v, want %v", line, got, want)
		}
	})
}

// TestPropertyCommandRoundTrip verifies every encoded command parses back
func TestPropertyCommandRoundTrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		state := ControlState{
			Kp:                rapid.Float64Range(-1000, 1000).Draw(t, "kp"),
			Ki:                rapid.Float64Range(-1000, 1000).Draw(t, "ki"),
			Kd:                rapid.Float64Range(-1000, 1000).Draw(t, "kd"),
			Tau:               rapid.Float64Range(0, 10).Draw(t, "tau"),
			Setpoint:          rapid.Float64Range(-90, 90).Draw(t, "setpoint"),
			RemoteSetpoint:    rapid.Float64Range(-90, 90).Draw(t, "remote"),
			UseRemoteSetpoint: rapid.Bool().Draw(t, "useRemote"),
			LEDs:              LEDMask(rapid.Uint8().Draw(t, "leds")),
		}
		if rapid.Bool().Draw(t, "hasMotors") {
			state.Motors = &Motors{
				Left:  rapid.Bool().Draw(t, "left"),
				Right: rapid.Bool().Draw(t, "right"),
			}
		}
		state.Color = rapid.StringMatching(`(#?[0-9a-fA-F]{6})?`).Draw(t, "color")

		line, err := EncodeCommand(state)
		if err != nil {
			t.Fatalf("EncodeCommand() error = %v", err)
		}
		got, err := ParseCommand(line)
		if err != nil {
			t.Fatalf("ParseCommand(%q) error = %v", line, err)
		}

		if got.Kp != state.Kp || got.Ki != state.Ki || got.Kd != state.Kd || got.Tau != state.Tau {
			t.Fatalf("gains changed: %q -> %+v", line, got)
		}
		if got.Setpoint != state.EffectiveSetpoint() {
			t.Fatalf("setpoint = %v, want %v", got.Setpoint, state.EffectiveSetpoint())
		}
		if got.LEDs != state.LEDs {
			t.Fatalf("LEDs = %d, want %d", got.LEDs, state.LEDs)
		}
		if !reflect.DeepEqual(got.Motors, state.Motors) {
			t.Fatalf("motors = %+v, want %+v", got.Motors, state.Motors)
		}
		if (got.Color == "") != (state.Color == "") {
			t.Fatalf("color presence changed: %q -> %q", state.Color, got.Color)
		}
	})
}

// TestPropertyNeedleAngleBounded verifies the needle never leaves the dial
func TestPropertyNeedleAngleBounded(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		lo := rapid.Float64Range(-1e4, 1e4).Draw(t, "min")
		span := rapid.Float64Range(0, 1e4).Draw(t, "span")
		v := rapid.Float64Range(-1e5, 1e5).Draw(t, "value")

		angle := Range{Min: lo, Max: lo + span}.NeedleAngle(v)
		if angle < -90 || angle > 90 {
			t.Fatalf("NeedleAngle(%v) = %v outside [-90, 90]", v, angle)
		}
	})
}
