// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import (
	"context"
	"fmt"
)

// Register is an address in the coprocessor's 8-bit register space.
type Register uint8

// Registers used by the update protocol
const (
	// RegUpdateChannel streams one image byte on write and returns the
	// current Status on read.
	RegUpdateChannel Register = 0x30
	// RegTargetSelect selects the platform to update.
	RegTargetSelect Register = 0x31
	// RegPeripheralStatus is a read-only connectivity bit-field.
	RegPeripheralStatus Register = 0x32
)

// String implements fmt.Stringer
func (r Register) String() string {
	switch r {
	case RegUpdateChannel:
		return "UPDATE_CHANNEL"
	case RegTargetSelect:
		return "TARGET_SELECT"
	case RegPeripheralStatus:
		return "PERIPHERAL_STATUS"
	default:
		return fmt.Sprintf("REG(0x%02X)", uint8(r))
	}
}

// RegisterChannel performs single-byte register transactions against the
// coprocessor. Both calls block until the transaction completes or ctx is
// done. Implementations are not required to be safe for concurrent use; the
// update protocol issues exactly one transaction at a time.
type RegisterChannel interface {
	ReadRegister(ctx context.Context, reg Register) (byte, error)
	WriteRegister(ctx context.Context, reg Register, value byte) error
}

// connectedMask selects the two flags that must both be set before an update.
const connectedMask = 0x03

// ConnectivityFlags is the raw value of RegPeripheralStatus.
type ConnectivityFlags uint8

// LinkUp reports whether the coprocessor's secondary transport is initialized.
func (f ConnectivityFlags) LinkUp() bool {
	return f&0x01 != 0
}

// Ready reports whether the target is present and answering.
func (f ConnectivityFlags) Ready() bool {
	return f&connectedMask == connectedMask
}

// String implements fmt.Stringer
func (f ConnectivityFlags) String() string {
	switch {
	case f.Ready():
		return fmt.Sprintf("0x%02X (connected)", uint8(f))
	case f.LinkUp():
		return fmt.Sprintf("0x%02X (link up, target not responding)", uint8(f))
	default:
		return fmt.Sprintf("0x%02X (not connected)", uint8(f))
	}
}
