// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gesture

import "fmt"

// Axis is one acceleration channel.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// MaxAxes is the number of channels a SensorSource can provide.
const MaxAxes = 3

func (a Axis) String() string {
	switch a {
	case X:
		return "X"
	case Y:
		return "Y"
	case Z:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Layout holds the dimensions shared by every stage of the pipeline.
type Layout struct {
	Axes    int // number of channels captured, 1..MaxAxes
	Samples int // samples per gesture
	Window  int // moving-average window per axis
	Trim    int // samples ignored at each end when correlating
}

// DefaultLayout matches the enrolled templates already in the field:
// 3 axes, 40 samples, 8-wide window, 5 samples trimmed per end.
var DefaultLayout = Layout{
	Axes:    3,
	Samples: 40,
	Window:  8,
	Trim:    5,
}

// Validate reports whether the layout can be used for capture and matching.
func (l Layout) Validate() error {
	if l.Axes < 1 || l.Axes > MaxAxes {
		return fmt.Errorf("layout: axes must be 1-%d, got %d", MaxAxes, l.Axes)
	}
	if l.Samples < 1 {
		return fmt.Errorf("layout: samples must be positive, got %d", l.Samples)
	}
	if l.Window < 1 {
		return fmt.Errorf("layout: window must be positive, got %d", l.Window)
	}
	if l.Trim < 0 || 2*l.Trim >= l.Samples {
		return fmt.Errorf("layout: trim %d leaves no samples out of %d", l.Trim, l.Samples)
	}
	return nil
}

// RegionSize is the persisted size of one Series in bytes (float32 per value).
func (l Layout) RegionSize() int {
	return l.Axes * l.Samples * 4
}

// Series is an [axis][sample] block of smoothed readings. The enrolled
// template and a live attempt share this shape.
type Series [][]float32

// NewSeries returns a zeroed Series sized for the layout.
func NewSeries(l Layout) Series {
	s := make(Series, l.Axes)
	for a := range s {
		s[a] = make([]float32, l.Samples)
	}
	return s
}

// Fits reports whether s has exactly the layout's dimensions.
func (s Series) Fits(l Layout) bool {
	if len(s) != l.Axes {
		return false
	}
	for _, row := range s {
		if len(row) != l.Samples {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	for a, row := range s {
		out[a] = append([]float32(nil), row...)
	}
	return out
}
