// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package i2cdev

import "errors"

// Open is only available on Linux.
func Open(bus int, addr uint16) (*Device, error) {
	return nil, errors.New("i2c devices are only supported on linux")
}
