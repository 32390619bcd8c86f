// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package i2cdev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE ioctl from linux/i2c-dev.h.
const i2cSlave = 0x0703

// Open opens /dev/i2c-<bus> and addresses the bridge at addr.
func Open(bus int, addr uint16) (*Device, error) {
	if addr > 0x7F {
		return nil, fmt.Errorf("i2c address 0x%X out of 7-bit range", addr)
	}

	path := fmt.Sprintf("/dev/i2c-%d", bus)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := unix.IoctlSetInt(fd, i2cSlave, int(addr)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to address 0x%02X on %s: %w", addr, path, err)
	}

	d := NewDevice(os.NewFile(uintptr(fd), path), addr)
	d.bus = bus
	return d, nil
}
