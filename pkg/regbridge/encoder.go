// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package regbridge

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// EncodeFrame creates a complete wire-formatted bridge frame.
// Returns the frame bytes ready for transmission, including framing and byte stuffing.
func EncodeFrame(seq uint8, msgType uint8, payloadMap map[int]interface{}) ([]byte, error) {
	cborPayload, err := encodeCBORPayload(msgType, payloadMap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR payload: %w", err)
	}

	if len(cborPayload) > MaxPayloadSize {
		return nil, fmt.Errorf("CBOR payload too large: %d bytes (max %d)", len(cborPayload), MaxPayloadSize)
	}

	// length + seq + payload is what gets CRC'd and byte-stuffed
	data := make([]byte, 0, 2+len(cborPayload)+2)
	data = append(data, uint8(len(cborPayload)), seq)
	data = append(data, cborPayload...)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, StartByte)
	frame = append(frame, stuffed...)
	frame = append(frame, EndByte)

	return frame, nil
}

// Encode encodes an existing Frame back to wire format.
func (f *Frame) Encode() ([]byte, error) {
	return EncodeFrame(f.seq, f.Type(), f.PayloadMap())
}

// encodeCBORPayload creates the CBOR-encoded payload for a message.
func encodeCBORPayload(msgType uint8, payloadMap map[int]interface{}) ([]byte, error) {
	var msg interface{}
	if len(payloadMap) == 0 {
		msg = []interface{}{uint64(msgType), nil}
	} else {
		msg = []interface{}{uint64(msgType), payloadMap}
	}
	return cbor.Marshal(msg)
}

// stuffBytes applies byte stuffing to escape special bytes.
// Special bytes (START, END, ESC) are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// Request builders

func newReadRequest(seq uint8, reg byte) ([]byte, error) {
	return EncodeFrame(seq, MsgRegRead, map[int]interface{}{
		keyRegister: uint64(reg),
	})
}

func newWriteRequest(seq uint8, reg, value byte) ([]byte, error) {
	return EncodeFrame(seq, MsgRegWrite, map[int]interface{}{
		keyRegister: uint64(reg),
		keyValue:    uint64(value),
	})
}

func newPingRequest(seq uint8) ([]byte, error) {
	return EncodeFrame(seq, MsgPing, nil)
}
