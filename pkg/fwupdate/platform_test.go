// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in   string
		want Platform
	}{
		{"esp32", PlatformESP32},
		{"ESP32", PlatformESP32},
		{" rp2040 ", PlatformRP2040},
		{"Rp2040", PlatformRP2040},
	}
	for _, tt := range tests {
		got, err := ParsePlatform(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParsePlatform("stm32")
	assert.Error(t, err)
}

func TestPlatformSelectors(t *testing.T) {
	assert.Equal(t, byte(0x01), PlatformRP2040.Selector())
	assert.Equal(t, byte(0x02), PlatformESP32.Selector())
	assert.True(t, PlatformESP32.Valid())
	assert.False(t, Platform(7).Valid())
	assert.Equal(t, "PLATFORM(0x07)", Platform(7).Name())
}

func TestRegisterAddresses(t *testing.T) {
	assert.Equal(t, Register(0x30), RegUpdateChannel)
	assert.Equal(t, Register(0x31), RegTargetSelect)
	assert.Equal(t, Register(0x32), RegPeripheralStatus)
	assert.Equal(t, "UPDATE_CHANNEL", RegUpdateChannel.String())
	assert.Equal(t, "REG(0x10)", Register(0x10).String())
}
