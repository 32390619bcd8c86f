// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package fwupdate implements the host side of the puppet firmware update
// protocol.
//
// A coprocessor exposes three 8-bit registers: a platform selector, a
// peripheral status bit-field and a dual-purpose update channel. The host
// writes an Intel HEX image into the update channel one byte at a time and
// reads the same register back to learn the update status. The coprocessor
// relays the stream to the selected target (RP2040 or ESP32).
//
// Transport drives one update session:
//
//	select platform -> check connectivity -> handshake -> stream -> final check
//
// The session never retries and never resumes. Any failure is terminal and is
// returned as one of the typed errors in this package together with a Report.
//
// Example:
//
//	img, err := fwupdate.LoadImage("firmware.hex")
//	if err != nil {
//	    return err
//	}
//	t := fwupdate.New(channel, fwupdate.PlatformESP32,
//	    fwupdate.WithPollInterval(10),
//	    fwupdate.WithLogger(logger),
//	)
//	report, err := t.Run(ctx, img)
package fwupdate
