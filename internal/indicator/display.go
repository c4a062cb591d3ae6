// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package indicator

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gesture_lock/internal/session"
)

const (
	screenWidth  = 128
	screenHeight = 64
)

// panel is the part of *ssd1306.Dev the display drives.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// Display shows the lock state on an SSD1306 OLED. SetState only records
// the latest signal; Run does the I2C traffic.
type Display struct {
	panel panel
	bus   i2c.BusCloser
	hold  time.Duration

	mu      sync.Mutex
	latest  session.Signal
	pending bool
	wake    chan struct{}
}

// NewDisplay opens busName (empty for the first bus) and initializes the
// panel at addr.
func NewDisplay(busName string, addr uint16, hold time.Duration) (*Display, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("display: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("display: open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, addr, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("display: initialize at 0x%02X: %w", addr, err)
	}
	d, err := newDisplay(dev, hold)
	if err != nil {
		bus.Close()
		return nil, err
	}
	d.bus = bus
	log.Infof("display: initialized at 0x%02X", addr)
	return d, nil
}

func newDisplay(p panel, hold time.Duration) (*Display, error) {
	if hold <= 0 {
		hold = DefaultHold
	}
	d := &Display{panel: p, hold: hold, wake: make(chan struct{}, 1)}
	if err := d.show("Ready"); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Display) show(status string) error {
	img := renderScreen("Gesture Lock", status)
	if err := d.panel.Draw(d.panel.Bounds(), img, image.Point{}); err != nil {
		return fmt.Errorf("display: draw: %w", err)
	}
	return nil
}

func (d *Display) SetState(sig session.Signal) {
	d.mu.Lock()
	d.latest, d.pending = sig, true
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run draws signals as they arrive until ctx is done.
func (d *Display) Run(ctx context.Context) error {
	idle := time.NewTimer(time.Hour)
	idle.Stop()
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
			if err := d.show("Ready"); err != nil {
				log.Warnf("%v", err)
			}
		case <-d.wake:
			d.mu.Lock()
			sig, ok := d.latest, d.pending
			d.pending = false
			d.mu.Unlock()
			if !ok {
				continue
			}
			fb := FeedbackFor(sig)
			idle.Stop()
			if err := d.show(fb.Text); err != nil {
				log.Warnf("%v", err)
			}
			if fb.Held {
				idle.Reset(d.hold)
			}
		}
	}
}

// Close blanks the panel and releases the bus.
func (d *Display) Close() error {
	err := d.panel.Halt()
	if d.bus != nil {
		if cerr := d.bus.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func renderScreen(title, status string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, screenWidth, screenHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString(title)

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawString(status)

	return img
}
