package sensors

import (
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIOTriggers reads two push buttons wired to ground with the internal
// pull-up enabled, so a pressed button reads Low.
type GPIOTriggers struct {
	record  gpio.PinIn
	attempt gpio.PinIn
}

// NewGPIOTriggers configures the record and attempt button pins.
func NewGPIOTriggers(recordPin, attemptPin string) (*GPIOTriggers, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("triggers: periph host init: %w", err)
	}
	rec := gpioreg.ByName(recordPin)
	if rec == nil {
		return nil, fmt.Errorf("triggers: record pin %q not found", recordPin)
	}
	att := gpioreg.ByName(attemptPin)
	if att == nil {
		return nil, fmt.Errorf("triggers: attempt pin %q not found", attemptPin)
	}
	t, err := newGPIOTriggers(rec, att)
	if err != nil {
		return nil, err
	}
	log.Infof("triggers: record=%s attempt=%s (active low)", recordPin, attemptPin)
	return t, nil
}

func newGPIOTriggers(rec, att gpio.PinIn) (*GPIOTriggers, error) {
	for _, p := range []gpio.PinIn{rec, att} {
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("triggers: configure %s: %w", p, err)
		}
	}
	return &GPIOTriggers{record: rec, attempt: att}, nil
}

func (t *GPIOTriggers) RecordActive() bool  { return t.record.Read() == gpio.Low }
func (t *GPIOTriggers) AttemptActive() bool { return t.attempt.Read() == gpio.Low }

// SoftTriggers are set programmatically, from tests, the console or a
// remote command. Safe for concurrent use.
type SoftTriggers struct {
	record  atomic.Bool
	attempt atomic.Bool
}

func (t *SoftTriggers) SetRecord(on bool)   { t.record.Store(on) }
func (t *SoftTriggers) SetAttempt(on bool)  { t.attempt.Store(on) }
func (t *SoftTriggers) RecordActive() bool  { return t.record.Load() }
func (t *SoftTriggers) AttemptActive() bool { return t.attempt.Load() }

// AnyTriggers is active when any of its members is.
type AnyTriggers []interface {
	RecordActive() bool
	AttemptActive() bool
}

func (a AnyTriggers) RecordActive() bool {
	for _, t := range a {
		if t.RecordActive() {
			return true
		}
	}
	return false
}

func (a AnyTriggers) AttemptActive() bool {
	for _, t := range a {
		if t.AttemptActive() {
			return true
		}
	}
	return false
}
