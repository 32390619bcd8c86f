// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package regbridge

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Frame represents a decoded register bridge frame
type Frame struct {
	length      uint8
	seq         uint8
	cborPayload []byte // Raw CBOR bytes: [msg_type, payload_map]
	crc         uint16
	timestamp   time.Time

	// Cached parsed values (lazy parsing)
	msgType    uint8
	payloadMap map[int]interface{}
	parsed     bool
	parseErr   error
}

// NewFrame creates a frame from message type and payload map.
// The CBOR encoding and CRC are computed when the frame is encoded.
func NewFrame(seq uint8, msgType uint8, payload map[int]interface{}) *Frame {
	return &Frame{
		seq:        seq,
		msgType:    msgType,
		payloadMap: payload,
		parsed:     true,
		timestamp:  time.Now(),
	}
}

// ensureParsed parses the CBOR payload if not already done
func (f *Frame) ensureParsed() {
	if f.parsed {
		return
	}
	f.parsed = true
	if len(f.cborPayload) == 0 {
		return
	}
	f.msgType, f.payloadMap, f.parseErr = decodeMessage(f.cborPayload)
}

// Length returns the frame's CBOR payload length
func (f *Frame) Length() uint8 {
	return f.length
}

// Seq returns the frame's sequence number
func (f *Frame) Seq() uint8 {
	return f.seq
}

// Type returns the frame's message type (parsed from CBOR)
func (f *Frame) Type() uint8 {
	f.ensureParsed()
	return f.msgType
}

// Payload returns the raw CBOR payload bytes
func (f *Frame) Payload() []byte {
	return f.cborPayload
}

// PayloadMap returns the decoded CBOR payload map (nil for empty payloads)
func (f *Frame) PayloadMap() map[int]interface{} {
	f.ensureParsed()
	return f.payloadMap
}

// ParseError returns any error from parsing the CBOR payload
func (f *Frame) ParseError() error {
	f.ensureParsed()
	return f.parseErr
}

// CRC returns the frame's CRC value
func (f *Frame) CRC() uint16 {
	return f.crc
}

// Timestamp returns the frame's decode timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// decodeMessage splits a [msg_type, payload_map] body. A null payload
// yields a nil map.
func decodeMessage(data []byte) (uint8, map[int]interface{}, error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("empty CBOR payload")
	}

	var parts []cbor.RawMessage
	if err := cbor.Unmarshal(data, &parts); err != nil {
		return 0, nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(parts) != 2 {
		return 0, nil, fmt.Errorf("expected 2-element array, got %d elements", len(parts))
	}

	var msgType uint8
	if err := cbor.Unmarshal(parts[0], &msgType); err != nil {
		return 0, nil, fmt.Errorf("message type: %w", err)
	}

	var payload map[int]interface{}
	if err := cbor.Unmarshal(parts[1], &payload); err != nil {
		return 0, nil, fmt.Errorf("payload map: %w", err)
	}
	return msgType, payload, nil
}

// GetMapUint returns a non-negative integer stored under key.
func GetMapUint(m map[int]interface{}, key int) (uint64, bool) {
	switch v := m[key].(type) {
	case uint64:
		return v, true
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}

func getMapByte(m map[int]interface{}, key int) (byte, error) {
	v, ok := GetMapUint(m, key)
	if !ok {
		return 0, fmt.Errorf("missing payload key %d", key)
	}
	if v > 0xFF {
		return 0, fmt.Errorf("payload key %d out of range: %d", key, v)
	}
	return byte(v), nil
}
