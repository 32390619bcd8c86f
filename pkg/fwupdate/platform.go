// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import (
	"fmt"
	"strings"
)

// Platform identifies the microcontroller being updated.
type Platform uint8

// Platform selector codes written to RegTargetSelect
const (
	PlatformRP2040 Platform = 0x01
	PlatformESP32  Platform = 0x02
)

// Platforms lists every supported platform in selector order.
var Platforms = []Platform{PlatformRP2040, PlatformESP32}

// Selector returns the code written to RegTargetSelect.
func (p Platform) Selector() byte {
	return byte(p)
}

// Name returns the platform name sent in the update handshake.
func (p Platform) Name() string {
	switch p {
	case PlatformRP2040:
		return "RP2040"
	case PlatformESP32:
		return "ESP32"
	default:
		return fmt.Sprintf("PLATFORM(0x%02X)", uint8(p))
	}
}

// String implements fmt.Stringer
func (p Platform) String() string {
	return p.Name()
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == PlatformRP2040 || p == PlatformESP32
}

// ParsePlatform converts a platform name (case-insensitive) to a Platform.
func ParsePlatform(s string) (Platform, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, p := range Platforms {
		if p.Name() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown platform %q (expected rp2040 or esp32)", s)
}
