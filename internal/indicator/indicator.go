// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package indicator renders session signals on LEDs, a buzzer, a small
// OLED display, MQTT and Prometheus.
package indicator

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/session"
)

// DefaultHold is how long a verdict stays visible before clearing.
const DefaultHold = 800 * time.Millisecond

// Colour of the status light.
type Colour int

const (
	Off Colour = iota
	Orange
	White
	Green
	Red
)

func (c Colour) String() string {
	switch c {
	case Orange:
		return "orange"
	case White:
		return "white"
	case Green:
		return "green"
	case Red:
		return "red"
	default:
		return "off"
	}
}

// Feedback is how a signal is presented.
type Feedback struct {
	Colour  Colour
	ToneHz  int
	ToneFor time.Duration
	Held    bool // cleared after the hold time
	Text    string
}

// FeedbackFor maps a session signal to its presentation.
func FeedbackFor(sig session.Signal) Feedback {
	switch sig {
	case session.RecordingActive:
		return Feedback{Colour: Orange, Text: "Recording"}
	case session.AttemptingActive:
		return Feedback{Colour: White, Text: "Attempting"}
	case session.RecordingDone:
		return Feedback{Colour: Off, Text: "Saved"}
	case session.Matched:
		return Feedback{Colour: Green, ToneHz: 1000, ToneFor: 200 * time.Millisecond, Held: true, Text: "Unlocked"}
	case session.NotMatched:
		return Feedback{Colour: Red, ToneHz: 200, ToneFor: 400 * time.Millisecond, Held: true, Text: "Denied"}
	default:
		return Feedback{Colour: Off, Text: "Ready"}
	}
}

// Multi fans a signal out to several sinks in order.
type Multi []session.IndicatorSink

func (m Multi) SetState(sig session.Signal) {
	for _, s := range m {
		s.SetState(sig)
	}
}

// LogSink logs every signal.
type LogSink struct {
	Logger *log.Logger
}

func (l LogSink) SetState(sig session.Signal) {
	logger := l.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	fb := FeedbackFor(sig)
	logger.WithFields(log.Fields{
		"signal": sig.String(),
		"colour": fb.Colour.String(),
	}).Infof("indicator: %s", fb.Text)
}

// diagnosticsOnly lets a type satisfy session.Diagnostics when it only
// cares about correlations.
type diagnosticsOnly struct{}

func (diagnosticsOnly) Series(string, gesture.Series) {}
