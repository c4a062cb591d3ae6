// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

// accelCountsPerG is the MPU9250 sensitivity for range codes 0-3.
var accelCountsPerG = [4]float64{16384, 8192, 4096, 2048}

// AccelSettings mirror the MPU9250 configuration fields exposed in the
// config file.
type AccelSettings struct {
	Range         byte // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	DLPF          byte // accelerometer DLPF 0-7
	SampleRateDiv byte
}

// accelReader is the part of *mpu9250.MPU9250 a capture needs.
type accelReader interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
}

// IMUSource reads the MPU9250 accelerometer in g. Reading X latches a new
// frame; Y and Z return values from that same frame.
type IMUSource struct {
	dev   accelReader
	scale float64
	frame [3]float64
}

// NewIMUSource initializes the MPU9250 on spiDev with csPin as chip select.
func NewIMUSource(spiDev, csPin string, s AccelSettings) (*IMUSource, error) {
	if s.Range > 3 {
		return nil, fmt.Errorf("IMU: accel range must be 0-3, got %d", s.Range)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}
	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := imu.SetAccelRange(s.Range); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	if err := imu.SetAccelDLPF(s.DLPF); err != nil {
		return nil, fmt.Errorf("IMU: set accel DLPF: %w", err)
	}
	if err := imu.SetSampleRateDivider(s.SampleRateDiv); err != nil {
		return nil, fmt.Errorf("IMU: set sample rate divider: %w", err)
	}

	if err := imu.Calibrate(); err != nil {
		log.Warnf("IMU: calibration failed: %v", err)
	}

	log.Infof("IMU: accelerometer ready on %s, range ±%dg, DLPF %d", spiDev, []int{2, 4, 8, 16}[s.Range], s.DLPF)
	return newIMUSource(imu, s.Range), nil
}

func newIMUSource(dev accelReader, accelRange byte) *IMUSource {
	return &IMUSource{dev: dev, scale: accelCountsPerG[accelRange&0x03]}
}

// ReadAxis returns acceleration in g. A failed read keeps the previous
// frame so a capture is never interrupted.
func (s *IMUSource) ReadAxis(axis gesture.Axis) float64 {
	if axis < 0 || int(axis) >= len(s.frame) {
		return 0
	}
	if axis == gesture.X {
		raw, err := s.read()
		if err != nil {
			log.Warnf("IMU: %v", err)
		} else {
			for a, v := range raw {
				s.frame[a] = float64(v) / s.scale
			}
		}
	}
	return s.frame[axis]
}

func (s *IMUSource) read() ([3]int16, error) {
	var raw [3]int16
	var err error
	if raw[0], err = s.dev.GetAccelerationX(); err != nil {
		return raw, fmt.Errorf("accel X: %w", err)
	}
	if raw[1], err = s.dev.GetAccelerationY(); err != nil {
		return raw, fmt.Errorf("accel Y: %w", err)
	}
	if raw[2], err = s.dev.GetAccelerationZ(); err != nil {
		return raw, fmt.Errorf("accel Z: %w", err)
	}
	return raw, nil
}
