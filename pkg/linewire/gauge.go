// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package linewire

// Range is the display range of a gauge.
// It only clamps what is drawn; the protocol accepts any value.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Clamp limits v to [Min, Max]
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Fraction maps v onto [0, 1]. A zero-width range maps to 0.
func (r Range) Fraction(v float64) float64 {
	span := r.Max - r.Min
	if span == 0 {
		return 0
	}
	return (r.Clamp(v) - r.Min) / span
}

// NeedleAngle returns the gauge needle angle in degrees:
// -90 at Min, +90 at Max
func (r Range) NeedleAngle(v float64) float64 {
	return -90 + 180*r.Fraction(v)
}
