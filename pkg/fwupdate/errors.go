// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import (
	"errors"
	"fmt"
)

// ChannelError indicates the register transport itself failed.
// It is always fatal to the session.
type ChannelError struct {
	Op       string // "read" or "write"
	Register Register
	Lines    int
	Err      error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("register channel: %s %s failed after %d lines: %v",
		e.Op, e.Register, e.Lines, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// UnsupportedPlatformError indicates a platform outside the known set.
// No register is touched when it is returned.
type UnsupportedPlatformError struct {
	Platform Platform
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s", e.Platform.Name())
}

// TargetNotConnectedError indicates the connectivity check failed before
// the handshake.
type TargetNotConnectedError struct {
	Flags ConnectivityFlags
}

func (e *TargetNotConnectedError) Error() string {
	return fmt.Sprintf("target not connected: peripheral status %s", e.Flags)
}

// HandshakeRejectedError indicates the target did not enter the receiving
// state after the update preamble.
type HandshakeRejectedError struct {
	Raw byte
}

// Status returns the rejected status as a Status value.
func (e *HandshakeRejectedError) Status() Status {
	return Status(e.Raw)
}

func (e *HandshakeRejectedError) Error() string {
	return fmt.Sprintf("handshake rejected: status %s (%d)", Status(e.Raw), e.Raw)
}

// ProtocolFailureError indicates the target reported a failure status while
// streaming or at the final check.
type ProtocolFailureError struct {
	Status Status
	Lines  int
	Phase  Phase
}

func (e *ProtocolFailureError) Error() string {
	return fmt.Sprintf("update failed during %s: status %s (%d) after %d lines: %s",
		e.Phase, e.Status, uint8(e.Status), e.Lines, e.Status.Description())
}

// UnrecognizedStatusError indicates a status outside the known code range.
type UnrecognizedStatusError struct {
	Raw   byte
	Lines int
	Phase Phase
}

func (e *UnrecognizedStatusError) Error() string {
	return fmt.Sprintf("unrecognized status 0x%02X (%d) during %s after %d lines",
		e.Raw, e.Raw, e.Phase, e.Lines)
}

// SourceReadError indicates the firmware image could not be loaded.
type SourceReadError struct {
	Path string
	Err  error
}

func (e *SourceReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("read image: %v", e.Err)
	}
	return fmt.Sprintf("read image %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// StatusOf extracts the target status carried by err, if any.
func StatusOf(err error) (Status, bool) {
	var hr *HandshakeRejectedError
	if errors.As(err, &hr) {
		return hr.Status(), true
	}
	var pf *ProtocolFailureError
	if errors.As(err, &pf) {
		return pf.Status, true
	}
	var us *UnrecognizedStatusError
	if errors.As(err, &us) {
		return Status(us.Raw), true
	}
	return 0, false
}
