// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectLines(t *testing.T) {
	input := "L: 1200.0 A: -3.2 R: 1195.5\n" +
		"hello\n" +
		"p: 1.2 i: 0.5 d: 0.1 t: 0.02 s: 10 g: 5\n" +
		"\n" +
		"A: 1"

	var out bytes.Buffer
	require.NoError(t, inspectLines(strings.NewReader(input), &out, linewire.VariantBalance, 0))
	got := out.String()

	assert.Contains(t, got, "Left=1200.0rpm Tilt=-3.2deg Right=1195.5rpm")
	assert.Contains(t, got, `SKIP      "hello"`)
	assert.Contains(t, got, `COMMAND   "p: 1.2 i: 0.5 d: 0.1 t: 0.02 s: 10 g: 5"`)
	assert.Contains(t, got, "  Setpoint: 10\n")
	assert.Contains(t, got, "  LEDs: mask=5 on=[0 2]\n")

	// The unterminated final line is still described
	assert.Contains(t, got, `SKIP      "A: 1"`)

	assert.Regexp(t, `Total Lines:\s+5\n`, got)
	assert.Regexp(t, `Decoded Lines:\s+1 `, got)
	assert.Regexp(t, `Empty Lines:\s+1\n`, got)
}

func TestInspectLines_TiltVariant(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, inspectLines(strings.NewReader("A: 1\nL: 1 A: 2 R: 3\n"), &out, linewire.VariantTilt, 0))
	got := out.String()

	assert.Contains(t, got, "TELEMETRY [")
	assert.Contains(t, got, "Tilt=1.0deg")
	assert.Contains(t, got, `SKIP      "L: 1 A: 2 R: 3"`)
}

func TestInspectLines_OversizedLine(t *testing.T) {
	input := strings.Repeat("x", 64) + "\nA: 1\n"

	var out bytes.Buffer
	require.NoError(t, inspectLines(strings.NewReader(input), &out, linewire.VariantTilt, 16))
	got := out.String()

	assert.NotContains(t, got, "xxxx")
	assert.Contains(t, got, "Tilt=1.0deg")
	assert.Regexp(t, `Oversized Lines:\s+1\n`, got)
	assert.Regexp(t, `Total Lines:\s+1\n`, got)
}
