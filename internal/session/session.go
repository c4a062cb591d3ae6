// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session sequences enrollment and unlock attempts. A Session is
// advanced one tick at a time by its owner and is not safe for concurrent
// use.
package session

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

// State of the capture state machine.
type State int

const (
	Idle State = iota
	Recording
	Attempting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Attempting:
		return "attempting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Signal is the feedback shown to the user.
type Signal int

const (
	RecordingActive Signal = iota
	AttemptingActive
	RecordingDone
	Matched
	NotMatched
)

func (s Signal) String() string {
	switch s {
	case RecordingActive:
		return "recording_active"
	case AttemptingActive:
		return "attempting_active"
	case RecordingDone:
		return "recording_done"
	case Matched:
		return "matched"
	case NotMatched:
		return "not_matched"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// TriggerSource reports the two momentary inputs. It is polled once per tick.
type TriggerSource interface {
	RecordActive() bool
	AttemptActive() bool
}

// IndicatorSink renders feedback. Calls must not block the tick.
type IndicatorSink interface {
	SetState(Signal)
}

// Diagnostics observes captured data. It has no effect on the outcome.
type Diagnostics interface {
	Series(label string, s gesture.Series)
	Correlation(c gesture.CorrelationVector, v gesture.Verdict)
}

// TemplateStore persists the enrolled template.
type TemplateStore interface {
	Save(gesture.Series) error
	Load() (gesture.Series, error)
}

// Options configure a Session.
type Options struct {
	Layout        gesture.Layout
	Normalization gesture.Normalization
	Threshold     float64
	// RejectShort discards captures that end before the sample budget
	// instead of keeping them zero padded.
	RejectShort bool
}

// Outcome describes what a tick did. Done is set on the tick that ended a
// capture; Kind then says which one.
type Outcome struct {
	Done    bool
	Kind    State
	Samples int
	Short   bool

	// enrollment
	Saved bool

	// attempt
	Verdict      gesture.Verdict
	Correlations gesture.CorrelationVector
}

// Session is the Idle/Recording/Attempting state machine.
type Session struct {
	opts     Options
	sensor   gesture.SensorSource
	triggers TriggerSource
	store    TemplateStore
	sink     IndicatorSink
	diag     Diagnostics
	matcher  *gesture.Matcher

	state State
	rec   *gesture.Recorder
}

// New wires a session. diag may be nil.
func New(opts Options, sensor gesture.SensorSource, triggers TriggerSource, store TemplateStore, sink IndicatorSink, diag Diagnostics) (*Session, error) {
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}
	if diag == nil {
		diag = nopDiagnostics{}
	}
	return &Session{
		opts:     opts,
		sensor:   sensor,
		triggers: triggers,
		store:    store,
		sink:     sink,
		diag:     diag,
		matcher:  gesture.NewMatcher(opts.Layout, opts.Normalization, opts.Threshold),
	}, nil
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Tick polls the triggers and takes at most one sample. When both
// triggers are active in Idle, recording wins.
func (s *Session) Tick() (Outcome, error) {
	if s.state == Idle {
		switch {
		case s.triggers.RecordActive():
			s.begin(Recording, RecordingActive)
		case s.triggers.AttemptActive():
			s.begin(Attempting, AttemptingActive)
		default:
			return Outcome{}, nil
		}
		return s.step()
	}

	if !s.held() {
		return s.finish()
	}
	return s.step()
}

func (s *Session) begin(st State, sig Signal) {
	s.state = st
	s.rec = gesture.NewRecorder(s.opts.Layout, s.sensor)
	s.sink.SetState(sig)
	log.Debugf("session: %s started", st)
}

func (s *Session) held() bool {
	if s.state == Recording {
		return s.triggers.RecordActive()
	}
	return s.triggers.AttemptActive()
}

func (s *Session) step() (Outcome, error) {
	s.rec.Sample()
	if s.rec.Full() {
		log.Infof("session: %s reached %d samples", s.state, s.rec.Count())
		return s.finish()
	}
	return Outcome{Kind: s.state, Samples: s.rec.Count()}, nil
}

func (s *Session) finish() (Outcome, error) {
	kind, rec := s.state, s.rec
	s.state, s.rec = Idle, nil

	out := Outcome{
		Done:    true,
		Kind:    kind,
		Samples: rec.Count(),
		Short:   !rec.Full(),
	}
	if out.Short {
		log.Warnf("session: %s ended early after %d of %d samples", kind, out.Samples, s.opts.Layout.Samples)
	}

	if kind == Recording {
		return s.finishRecording(out, rec.Series())
	}
	return s.finishAttempt(out, rec.Series())
}

func (s *Session) finishRecording(out Outcome, series gesture.Series) (Outcome, error) {
	if out.Short && s.opts.RejectShort {
		log.Warnf("session: short enrollment discarded, stored template unchanged")
		s.sink.SetState(NotMatched)
		return out, nil
	}
	if err := s.store.Save(series); err != nil {
		s.sink.SetState(NotMatched)
		return out, fmt.Errorf("session: save template: %w", err)
	}
	out.Saved = true
	s.sink.SetState(RecordingDone)
	s.diag.Series("template", series)
	log.Infof("session: gesture saved (%d samples)", out.Samples)
	return out, nil
}

func (s *Session) finishAttempt(out Outcome, attempt gesture.Series) (Outcome, error) {
	out.Verdict = gesture.NotMatched
	s.diag.Series("attempt", attempt)

	if out.Short && s.opts.RejectShort {
		log.Warnf("session: short attempt rejected")
		s.sink.SetState(NotMatched)
		return out, nil
	}

	template, err := s.store.Load()
	if err != nil {
		s.sink.SetState(NotMatched)
		return out, fmt.Errorf("session: load template: %w", err)
	}
	s.diag.Series("loaded", template)

	out.Correlations = s.matcher.Correlate(template, attempt)
	out.Verdict = s.matcher.Decide(out.Correlations)
	s.diag.Correlation(out.Correlations, out.Verdict)

	if out.Verdict == gesture.Matched {
		s.sink.SetState(Matched)
	} else {
		s.sink.SetState(NotMatched)
	}
	log.Infof("session: attempt %s (%s)", out.Verdict, gesture.FormatCorrelations(out.Correlations))
	return out, nil
}

type nopDiagnostics struct{}

func (nopDiagnostics) Series(string, gesture.Series)                         {}
func (nopDiagnostics) Correlation(gesture.CorrelationVector, gesture.Verdict) {}
