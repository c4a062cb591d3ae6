// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// 24C32/24C64 style parts: 16-bit word address, 32-byte write pages,
// up to 5 ms internal write cycle.
const (
	eepromPageSize     = 32
	eepromWriteCycle   = 5 * time.Millisecond
	eepromAddressSpace = 1 << 16
)

// EEPROMRegion is a Region on an I2C serial EEPROM, starting at a fixed
// base address on the chip.
type EEPROMRegion struct {
	bus  i2c.BusCloser
	dev  *i2c.Dev
	base int
	size int
}

// NewEEPROMRegion opens busName (empty for the default bus) and addresses
// the EEPROM at addr.
func NewEEPROMRegion(busName string, addr uint16, base, size int) (*EEPROMRegion, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("eeprom: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("eeprom: open I2C bus %q: %w", busName, err)
	}
	r, err := newEEPROMRegion(bus, addr, base, size)
	if err != nil {
		bus.Close()
		return nil, err
	}
	log.Infof("eeprom: using 0x%02X on bus %q, base %d, %d bytes", addr, busName, base, size)
	return r, nil
}

// newEEPROMRegion rejects regions that do not fit the 16-bit word address,
// which would otherwise wrap around to the start of the chip.
func newEEPROMRegion(bus i2c.BusCloser, addr uint16, base, size int) (*EEPROMRegion, error) {
	if base < 0 || size < 0 || base+size > eepromAddressSpace {
		return nil, fmt.Errorf("%w: eeprom region [%d, %d) beyond 0x%X", ErrOutOfRange, base, base+size, eepromAddressSpace)
	}
	return &EEPROMRegion{
		bus:  bus,
		dev:  &i2c.Dev{Bus: bus, Addr: addr},
		base: base,
		size: size,
	}, nil
}

func (e *EEPROMRegion) Size() int { return e.size }

// span checks a transfer against the region and the chip address space.
func (e *EEPROMRegion) span(offset, length int) error {
	if err := checkRange(e.size, offset, length); err != nil {
		return err
	}
	if end := e.base + offset + length; end > eepromAddressSpace {
		return fmt.Errorf("%w: eeprom address 0x%X", ErrOutOfRange, end)
	}
	return nil
}

func wordAddr(a int) []byte {
	return []byte{byte(a >> 8), byte(a)}
}

func (e *EEPROMRegion) ReadBytes(offset, length int) ([]byte, error) {
	if err := e.span(offset, length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if err := e.dev.Tx(wordAddr(e.base+offset), buf); err != nil {
		return nil, fmt.Errorf("eeprom: read %d bytes at %d: %w", length, e.base+offset, err)
	}
	return buf, nil
}

// WriteBytes splits b on page boundaries and waits out the write cycle
// after each page.
func (e *EEPROMRegion) WriteBytes(offset int, b []byte) error {
	if err := e.span(offset, len(b)); err != nil {
		return err
	}
	addr := e.base + offset
	for len(b) > 0 {
		n := eepromPageSize - addr%eepromPageSize
		if n > len(b) {
			n = len(b)
		}
		msg := append(wordAddr(addr), b[:n]...)
		if err := e.dev.Tx(msg, nil); err != nil {
			return fmt.Errorf("eeprom: write page at %d: %w", addr, err)
		}
		time.Sleep(eepromWriteCycle)
		addr += n
		b = b[n:]
	}
	return nil
}

// Close releases the I2C bus.
func (e *EEPROMRegion) Close() error {
	return e.bus.Close()
}
