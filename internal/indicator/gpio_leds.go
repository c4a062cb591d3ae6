package indicator

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gesture_lock/internal/session"
)

// LEDPins names the GPIO pins of the status LEDs and the buzzer. Empty
// names are skipped.
type LEDPins struct {
	Orange string
	White  string
	Green  string
	Red    string
	Buzzer string
}

// GPIOLeds lights one LED per colour and drives a piezo buzzer with PWM.
// Held colours are cleared by a timer so SetState never blocks.
type GPIOLeds struct {
	mu     sync.Mutex
	leds   map[Colour]gpio.PinOut
	buzzer gpio.PinOut
	hold   time.Duration

	gen       uint64
	clearTmr  *time.Timer
	silentTmr *time.Timer
}

// NewGPIOLeds opens the named pins.
func NewGPIOLeds(pins LEDPins, hold time.Duration) (*GPIOLeds, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("leds: periph host init: %w", err)
	}
	lookup := func(name string) (gpio.PinOut, error) {
		if name == "" {
			return nil, nil
		}
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("leds: pin %q not found", name)
		}
		return p, nil
	}

	leds := map[Colour]gpio.PinOut{}
	for c, name := range map[Colour]string{Orange: pins.Orange, White: pins.White, Green: pins.Green, Red: pins.Red} {
		p, err := lookup(name)
		if err != nil {
			return nil, err
		}
		if p != nil {
			leds[c] = p
		}
	}
	buzzer, err := lookup(pins.Buzzer)
	if err != nil {
		return nil, err
	}
	l, err := newGPIOLeds(leds, buzzer, hold)
	if err != nil {
		return nil, err
	}
	log.Infof("leds: orange=%q white=%q green=%q red=%q buzzer=%q", pins.Orange, pins.White, pins.Green, pins.Red, pins.Buzzer)
	return l, nil
}

func newGPIOLeds(leds map[Colour]gpio.PinOut, buzzer gpio.PinOut, hold time.Duration) (*GPIOLeds, error) {
	if hold <= 0 {
		hold = DefaultHold
	}
	l := &GPIOLeds{leds: leds, buzzer: buzzer, hold: hold}
	for c, p := range leds {
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("leds: %s: %w", c, err)
		}
	}
	if buzzer != nil {
		if err := buzzer.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("leds: buzzer: %w", err)
		}
	}
	return l, nil
}

func (l *GPIOLeds) SetState(sig session.Signal) {
	fb := FeedbackFor(sig)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.gen++
	if l.clearTmr != nil {
		l.clearTmr.Stop()
		l.clearTmr = nil
	}
	l.show(fb.Colour)

	if fb.ToneHz > 0 && l.buzzer != nil {
		if l.silentTmr != nil {
			l.silentTmr.Stop()
		}
		if err := l.buzzer.PWM(gpio.DutyHalf, physic.Frequency(fb.ToneHz)*physic.Hertz); err != nil {
			log.Warnf("leds: buzzer tone: %v", err)
		}
		l.silentTmr = time.AfterFunc(fb.ToneFor, func() {
			if err := l.buzzer.Out(gpio.Low); err != nil {
				log.Warnf("leds: buzzer off: %v", err)
			}
		})
	}

	if fb.Held {
		gen := l.gen
		l.clearTmr = time.AfterFunc(l.hold, func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.gen == gen {
				l.show(Off)
			}
		})
	}
}

// show lights c and turns every other LED off. l.mu must be held.
func (l *GPIOLeds) show(c Colour) {
	for colour, p := range l.leds {
		level := gpio.Low
		if colour == c {
			level = gpio.High
		}
		if err := p.Out(level); err != nil {
			log.Warnf("leds: %s: %v", colour, err)
		}
	}
}

// Close turns everything off.
func (l *GPIOLeds) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	for _, t := range []*time.Timer{l.clearTmr, l.silentTmr} {
		if t != nil {
			t.Stop()
		}
	}
	l.show(Off)
	if l.buzzer != nil {
		return l.buzzer.Out(gpio.Low)
	}
	return nil
}
