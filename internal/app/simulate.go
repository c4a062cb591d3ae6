// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/sensors"
	"github.com/relabs-tech/gesture_lock/internal/session"
	"github.com/relabs-tech/gesture_lock/internal/store"
)

// switchSensor forwards to whichever source is current.
type switchSensor struct {
	gesture.SensorSource
}

// RunSimulate exercises the lock without hardware: it records the mock
// motion, enrolls it, replays it as an attempt and then tries the live
// motion, which is out of phase with the template.
func RunSimulate(ctx context.Context, cfg *config.Config, w io.Writer) error {
	l := cfg.Layout()
	mock := sensors.NewMockSource()

	frames := make([][3]float64, 0, l.Samples)
	t := time.NewTicker(cfg.TickInterval)
	defer t.Stop()
	for len(frames) < l.Samples {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		frames = append(frames, [3]float64{mock.ReadAxis(gesture.X), mock.ReadAxis(gesture.Y), mock.ReadAxis(gesture.Z)})
	}

	gs, err := store.NewGestureStore(l, store.NewMemoryRegion(l.RegionSize()))
	if err != nil {
		return err
	}
	sensor := &switchSensor{}
	soft := &sensors.SoftTriggers{}
	sess, err := session.New(session.Options{
		Layout:        l,
		Normalization: cfg.Normalization(),
		Threshold:     cfg.Threshold,
		RejectShort:   cfg.RejectShortCaptures,
	}, sensor, soft, gs, printSink{w}, nil)
	if err != nil {
		return err
	}

	steps := []struct {
		name   string
		source gesture.SensorSource
		set    func(bool)
	}{
		{"enroll recorded motion", sensors.NewReplaySource(frames), soft.SetRecord},
		{"attempt with the same motion", sensors.NewReplaySource(frames), soft.SetAttempt},
		{"attempt with live motion", mock, soft.SetAttempt},
	}
	for _, step := range steps {
		fmt.Fprintf(w, "== %s\n", step.name)
		sensor.SensorSource = step.source
		out, err := hold(ctx, sess, step.set, l.Samples, t.C)
		if err != nil {
			return err
		}
		if out.Kind == session.Attempting {
			fmt.Fprintf(w, "   %s  %s\n", out.Verdict, gesture.FormatCorrelations(out.Correlations))
		}
	}
	return nil
}

// hold keeps a trigger active for up to n ticks and releases it, returning
// the outcome that completed the capture.
func hold(ctx context.Context, sess *session.Session, set func(bool), n int, tick <-chan time.Time) (session.Outcome, error) {
	set(true)
	defer set(false)
	for i := 0; i <= n; i++ {
		if i == n {
			set(false)
		}
		select {
		case <-ctx.Done():
			return session.Outcome{}, ctx.Err()
		case <-tick:
		}
		out, err := sess.Tick()
		if err != nil || out.Done {
			return out, err
		}
	}
	return session.Outcome{}, fmt.Errorf("simulate: capture did not complete")
}

type printSink struct {
	w io.Writer
}

func (p printSink) SetState(sig session.Signal) {
	fmt.Fprintf(p.w, "   [%s]\n", sig)
}
