// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package modbusreg

import (
	"context"
	"errors"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
)

// fakeModbus implements the holding register calls of modbus.Client.
// Every other call panics through the embedded nil interface.
type fakeModbus struct {
	modbus.Client
	holding map[uint16]uint16
	written [][2]uint16
	err     error
	short   bool
}

func (f *fakeModbus) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.short {
		return []byte{0x00}, nil
	}
	v := f.holding[address]
	return []byte{byte(v >> 8), byte(v)}, nil
}

func (f *fakeModbus) WriteSingleRegister(address, value uint16) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.written = append(f.written, [2]uint16{address, value})
	return []byte{byte(value >> 8), byte(value)}, nil
}

func TestClient_ReadLowByte(t *testing.T) {
	fake := &fakeModbus{holding: map[uint16]uint16{0x32: 0xAB03}}
	c := New(fake, "test")

	v, err := c.ReadRegister(context.Background(), fwupdate.RegPeripheralStatus)
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), v)
}

func TestClient_Write(t *testing.T) {
	fake := &fakeModbus{}
	c := New(fake, "test")

	require.NoError(t, c.WriteRegister(context.Background(), fwupdate.RegTargetSelect, 0x02))
	assert.Equal(t, [][2]uint16{{0x31, 0x0002}}, fake.written)
}

func TestClient_Errors(t *testing.T) {
	boom := errors.New("modbus: exception '2' (illegal data address)")
	c := New(&fakeModbus{err: boom}, "test")

	_, err := c.ReadRegister(context.Background(), fwupdate.RegUpdateChannel)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, c.WriteRegister(context.Background(), fwupdate.RegUpdateChannel, 1), boom)
}

func TestClient_ShortResponse(t *testing.T) {
	c := New(&fakeModbus{short: true}, "test")

	_, err := c.ReadRegister(context.Background(), fwupdate.RegUpdateChannel)
	assert.Error(t, err)
}

func TestClient_CancelledContext(t *testing.T) {
	fake := &fakeModbus{}
	c := New(fake, "test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.WriteRegister(ctx, fwupdate.RegUpdateChannel, 1), context.Canceled)
	assert.Empty(t, fake.written)
}

func TestDial_InvalidEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{"empty", ""},
		{"unknown scheme", "udp://10.0.0.1:502"},
		{"tcp without host", "tcp://"},
		{"rtu without path", "rtu://"},
		{"bad baud", "rtu:///dev/ttyUSB0?baud=fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Dial(Config{Endpoint: tt.endpoint})
			assert.Error(t, err)
		})
	}
}

func TestClient_DrivesTransport(t *testing.T) {
	fake := &fakeModbus{holding: map[uint16]uint16{
		0x32: 0x0003,
		0x30: uint16(fwupdate.StatusOff),
	}}
	c := New(fake, "test")

	// OFF during the handshake is a rejection
	_, err := fwupdate.New(c, fwupdate.PlatformESP32).Run(context.Background(), fwupdate.NewImage([]string{":00000001FF"}))
	var rejected *fwupdate.HandshakeRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, fwupdate.StatusOff, rejected.Status())
}
