// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package linewire

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numberPattern matches a signed decimal without exponent notation
const numberPattern = `(-?(?:\d+(?:\.\d*)?|\.\d+))`

// Reading is one decoded telemetry line
type Reading map[Channel]float64

// Decoder parses telemetry lines for a fixed protocol variant
type Decoder struct {
	variant Variant
	pattern *regexp.Regexp
}

// NewDecoder creates a decoder for the given variant
func NewDecoder(v Variant) *Decoder {
	return &Decoder{
		variant: v,
		pattern: compileVariant(v),
	}
}

// Variant returns the variant the decoder was built for
func (d *Decoder) Variant() Variant {
	return d.variant
}

// Decode parses a single line.
// Returns false when the line does not match the variant or a field fails to
// parse; such lines are skipped, not treated as errors.
func (d *Decoder) Decode(line string) (Reading, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	match := d.pattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false
	}

	reading := make(Reading, len(d.variant.Fields))
	for i, field := range d.variant.Fields {
		value, err := strconv.ParseFloat(match[i+1], 64)
		if err != nil || math.IsInf(value, 0) {
			return nil, false
		}
		reading[field.Channel] = value
	}
	return reading, true
}

// compileVariant builds the anchored line pattern, e.g.
// ^L:\s*(num)\s*A:\s*(num)\s*R:\s*(num)$
func compileVariant(v Variant) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`^`)
	for i, field := range v.Fields {
		if i > 0 {
			b.WriteString(`\s*`)
		}
		b.WriteString(regexp.QuoteMeta(field.Tag))
		b.WriteString(`:\s*`)
		b.WriteString(numberPattern)
	}
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}
