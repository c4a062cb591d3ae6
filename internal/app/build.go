package app

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/sensors"
	"github.com/relabs-tech/gesture_lock/internal/store"
)

// closers releases hardware in reverse order of acquisition.
type closers []io.Closer

func (c *closers) add(cl io.Closer) { *c = append(*c, cl) }

func (c closers) Close() error {
	var first error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func buildSensor(ctx context.Context, cfg *config.Config, cl *closers) (gesture.SensorSource, error) {
	switch cfg.Sensor {
	case "mpu9250":
		src, err := sensors.NewIMUSource(cfg.IMUSPIDevice, cfg.IMUCSPin, sensors.AccelSettings{
			Range:         cfg.IMUAccelRange,
			DLPF:          cfg.IMUAccelDLPF,
			SampleRateDiv: cfg.IMUSampleRateDiv,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case "serial":
		src, err := sensors.NewSerialSource(cfg.SerialPort, uint(cfg.SerialBaudRate))
		if err != nil {
			return nil, err
		}
		go func() {
			if err := src.Run(ctx); err != nil {
				log.Errorf("serial accel: %v", err)
			}
		}()
		return src, nil
	case "mock":
		log.Warn("sensor: using mock motion source")
		return sensors.NewMockSource(), nil
	default:
		return nil, fmt.Errorf("sensor: unknown kind %q", cfg.Sensor)
	}
}

func buildRegion(cfg *config.Config, cl *closers) (store.Region, error) {
	size := cfg.Layout().RegionSize()
	switch cfg.Store {
	case "file":
		return store.NewFileRegion(cfg.StorePath, size), nil
	case "eeprom":
		r, err := store.NewEEPROMRegion(cfg.EEPROMI2CBus, cfg.EEPROMI2CAddr, cfg.EEPROMOffset, size)
		if err != nil {
			return nil, err
		}
		cl.add(r)
		return r, nil
	case "memory":
		log.Warn("store: template kept in memory only")
		return store.NewMemoryRegion(size), nil
	default:
		return nil, fmt.Errorf("store: unknown kind %q", cfg.Store)
	}
}

func buildStore(cfg *config.Config, cl *closers) (*store.GestureStore, error) {
	region, err := buildRegion(cfg, cl)
	if err != nil {
		return nil, err
	}
	return store.NewGestureStore(cfg.Layout(), region)
}
