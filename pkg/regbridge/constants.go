// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package regbridge implements the register bridge protocol used to reach a
// puppet coprocessor through a USB-serial adapter or a WebSocket relay.
//
// The bridge performs one I2C register transaction per request frame and
// answers with exactly one response frame carrying the same sequence number.
//
// Wire format:
//
//	START | stuffed(LEN | SEQ | CBOR[LEN] | CRC_HI | CRC_LO) | END
//
// CBOR is a two element array [msg_type, payload_map] with integer map keys.
// CRC-16-CCITT covers LEN, SEQ and the CBOR bytes.
package regbridge

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	MaxFrameSize   = 64 // length + seq + payload + crc
	MaxPayloadSize = 60
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Message types - Requests (Host → Bridge) 0x10-0x2F
const (
	MsgRegRead  = 0x10
	MsgRegWrite = 0x11
	MsgPing     = 0x2F
)

// Message types - Responses (Bridge → Host) 0x30-0x3F
const (
	MsgRegValue = 0x30
	MsgRegAck   = 0x31
	MsgPong     = 0x3F
)

// Message types - Errors (Bridge → Host) 0xE0-0xEF
const (
	MsgError = 0xE0
)

// Payload map keys
const (
	keyRegister = 0
	keyValue    = 1
	keyUptime   = 0
	keyCode     = 0
)

// ErrorCode is the code carried by MsgError.
type ErrorCode uint8

// Bridge error codes
const (
	ErrorCodeNack           ErrorCode = 0x01
	ErrorCodeBusError       ErrorCode = 0x02
	ErrorCodeInvalidRequest ErrorCode = 0x03
	ErrorCodeBusy           ErrorCode = 0x04
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	stateSeq
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)
