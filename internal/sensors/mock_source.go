// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a sensor that generates a smooth, repeatable
// figure-eight motion, for running without hardware.
func NewMockSource() gesture.SensorSource {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) ReadAxis(axis gesture.Axis) float64 {
	elapsed := m.now().Sub(m.start).Seconds()

	switch axis {
	case gesture.X:
		return 0.8 * math.Sin(2*math.Pi*elapsed)
	case gesture.Y:
		return 0.5 * math.Sin(4*math.Pi*elapsed)
	case gesture.Z:
		return 1 + 0.2*math.Cos(2*math.Pi*elapsed)
	default:
		return 0
	}
}

// ReplaySource plays back recorded frames, one per tick. Reading X moves
// to the next frame; after the last frame the last one repeats.
type ReplaySource struct {
	frames [][3]float64
	pos    int
}

// NewReplaySource returns a source over frames.
func NewReplaySource(frames [][3]float64) *ReplaySource {
	return &ReplaySource{frames: frames, pos: -1}
}

func (r *ReplaySource) ReadAxis(axis gesture.Axis) float64 {
	if len(r.frames) == 0 || axis < 0 || int(axis) >= gesture.MaxAxes {
		return 0
	}
	if axis == gesture.X && r.pos < len(r.frames)-1 {
		r.pos++
	}
	if r.pos < 0 {
		return r.frames[0][axis]
	}
	return r.frames[r.pos][axis]
}

// Rewind starts playback from the first frame again.
func (r *ReplaySource) Rewind() { r.pos = -1 }

// RampFrames returns n frames with X=i, Y=2i, Z=3i.
func RampFrames(n int) [][3]float64 {
	frames := make([][3]float64, n)
	for i := range frames {
		frames[i] = [3]float64{float64(i), 2 * float64(i), 3 * float64(i)}
	}
	return frames
}
