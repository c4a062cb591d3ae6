// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/indicator"
	"github.com/relabs-tech/gesture_lock/internal/sensors"
	"github.com/relabs-tech/gesture_lock/internal/session"
)

// ticker is the part of Session the loop drives.
type ticker interface {
	Tick() (session.Outcome, error)
}

// RunLock wires sensor, triggers, store and indicators from cfg and runs
// the capture loop until ctx is cancelled.
func RunLock(ctx context.Context, cfg *config.Config) error {
	res := newResources(ctx)
	defer res.release()
	ctx, cl := res.ctx, &res.closers

	sensor, err := buildSensor(ctx, cfg, cl)
	if err != nil {
		return err
	}
	gs, err := buildStore(cfg, cl)
	if err != nil {
		return err
	}

	soft := &sensors.SoftTriggers{}
	triggers := sensors.AnyTriggers{soft}
	if cfg.TriggerRecordPin != "" && cfg.TriggerAttemptPin != "" {
		hw, err := sensors.NewGPIOTriggers(cfg.TriggerRecordPin, cfg.TriggerAttemptPin)
		if err != nil {
			return err
		}
		triggers = append(triggers, hw)
	} else {
		log.Warn("lock: no trigger pins, remote commands only")
	}

	sinks := indicator.Multi{indicator.LogSink{}}
	diags := session.MultiDiagnostics{session.TableDiagnostics{}}

	if cfg.LEDOrangePin != "" || cfg.LEDWhitePin != "" || cfg.LEDGreenPin != "" || cfg.LEDRedPin != "" || cfg.BuzzerPin != "" {
		leds, err := indicator.NewGPIOLeds(indicator.LEDPins{
			Orange: cfg.LEDOrangePin,
			White:  cfg.LEDWhitePin,
			Green:  cfg.LEDGreenPin,
			Red:    cfg.LEDRedPin,
			Buzzer: cfg.BuzzerPin,
		}, cfg.IndicatorHold)
		if err != nil {
			return err
		}
		cl.add(leds)
		sinks = append(sinks, leds)
	}

	if cfg.DisplayI2CAddr != 0 {
		if disp, err := indicator.NewDisplay(cfg.DisplayI2CBus, cfg.DisplayI2CAddr, cfg.IndicatorHold); err != nil {
			log.Warnf("lock: display unavailable: %v", err)
		} else {
			cl.add(disp)
			sinks = append(sinks, disp)
			res.spawn("display", disp.Run)
		}
	}

	reg := prometheus.NewRegistry()
	metrics, err := indicator.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("lock: metrics: %w", err)
	}
	sinks = append(sinks, metrics)
	diags = append(diags, metrics)

	if cfg.MQTTBroker != "" {
		pub, client, err := indicator.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientIDLock, indicator.Topics{
			State:       cfg.TopicState,
			Correlation: cfg.TopicCorrelation,
			Series:      cfg.TopicSeries,
		})
		if err != nil {
			log.Warnf("lock: running without MQTT: %v", err)
		} else {
			defer client.Disconnect(250)
			sinks = append(sinks, pub)
			diags = append(diags, pub)
			if err := subscribeCommands(client, cfg.TopicCommand, soft); err != nil {
				return err
			}
		}
	}

	if cfg.MetricsPort > 0 {
		srv := &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.MetricsPort),
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		go func() {
			log.Infof("lock: metrics listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("lock: metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	sess, err := session.New(session.Options{
		Layout:        cfg.Layout(),
		Normalization: cfg.Normalization(),
		Threshold:     cfg.Threshold,
		RejectShort:   cfg.RejectShortCaptures,
	}, sensor, triggers, gs, sinks, diags)
	if err != nil {
		return err
	}

	log.Infof("lock: ready (%d samples, threshold %.2f, %s normalization, tick %s)",
		cfg.Samples, cfg.Threshold, cfg.Normalization(), cfg.TickInterval)
	return runLoop(ctx, sess, cfg.TickInterval)
}

// resources owns the workers and hardware of one RunLock call.
type resources struct {
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
	closers closers
}

func newResources(parent context.Context) *resources {
	ctx, cancel := context.WithCancel(parent)
	return &resources{ctx: ctx, cancel: cancel}
}

// spawn runs fn until the resources are released.
func (r *resources) spawn(name string, fn func(context.Context) error) {
	r.workers.Add(1)
	go func() {
		defer r.workers.Done()
		if err := fn(r.ctx); err != nil {
			log.Warnf("%s: %v", name, err)
		}
	}()
}

// release stops every worker before closing the hardware they use.
func (r *resources) release() {
	r.cancel()
	r.workers.Wait()
	if err := r.closers.Close(); err != nil {
		log.Warnf("lock: release hardware: %v", err)
	}
}

// runLoop ticks sess at interval. Tick errors are logged and the loop
// keeps going; the session is back in Idle after an error.
func runLoop(ctx context.Context, sess ticker, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("lock: shutting down")
			return nil
		case <-t.C:
			out, err := sess.Tick()
			if err != nil {
				log.Errorf("lock: %v", err)
				continue
			}
			if out.Done && out.Kind == session.Attempting {
				log.Infof("lock: attempt %s", out.Verdict)
			}
		}
	}
}

func subscribeCommands(client mqtt.Client, topic string, soft *sensors.SoftTriggers) error {
	if topic == "" {
		return nil
	}
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handleCommand(soft, msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("lock: subscribe %s: %w", topic, token.Error())
	}
	log.Infof("lock: accepting commands on %s", topic)
	return nil
}

func handleCommand(soft *sensors.SoftTriggers, payload []byte) {
	cmd, err := parseCommand(payload)
	if err != nil {
		log.Warnf("lock: %v", err)
		return
	}
	cmd.apply(soft)
	log.Debugf("lock: remote %s active=%t", cmd.Action, cmd.Active)
}
