// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package i2cdev drives the update bridge registers directly over a
// Linux I2C character device.
//
// Register writes are a two byte transfer with the high bit of the
// register address set. Register reads write the bare address and then
// read a single byte back.
package i2cdev

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
)

// DefaultAddress is the 7-bit address the bridge answers on.
const DefaultAddress = 0x1F

// writeFlag marks a register write.
const writeFlag = 0x80

// Device is a register channel on an I2C bus.
type Device struct {
	mu   sync.Mutex
	rw   io.ReadWriter
	c    io.Closer
	bus  int
	addr uint16
}

var _ fwupdate.RegisterChannel = (*Device)(nil)

// NewDevice wraps an already addressed bus handle.
func NewDevice(rw io.ReadWriter, addr uint16) *Device {
	d := &Device{rw: rw, addr: addr, bus: -1}
	if c, ok := rw.(io.Closer); ok {
		d.c = c
	}
	return d
}

func (d *Device) String() string {
	if d.bus < 0 {
		return fmt.Sprintf("i2c@0x%02X", d.addr)
	}
	return fmt.Sprintf("i2c-%d@0x%02X", d.bus, d.addr)
}

// ReadRegister reads one byte from reg.
func (d *Device) ReadRegister(ctx context.Context, reg fwupdate.Register) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.rw.Write([]byte{byte(reg) &^ writeFlag}); err != nil {
		return 0, fmt.Errorf("%s: select %s: %w", d, reg, err)
	}

	var buf [1]byte
	n, err := d.rw.Read(buf[:])
	if err != nil {
		return 0, fmt.Errorf("%s: read %s: %w", d, reg, err)
	}
	if n != 1 {
		return 0, fmt.Errorf("%s: read %s: short read", d, reg)
	}
	return buf[0], nil
}

// WriteRegister writes value to reg.
func (d *Device) WriteRegister(ctx context.Context, reg fwupdate.Register, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.rw.Write([]byte{byte(reg) | writeFlag, value})
	if err != nil {
		return fmt.Errorf("%s: write %s: %w", d, reg, err)
	}
	if n != 2 {
		return fmt.Errorf("%s: write %s: short write (%d of 2)", d, reg, n)
	}
	return nil
}

// Close releases the bus handle.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.c == nil {
		return nil
	}
	return d.c.Close()
}
