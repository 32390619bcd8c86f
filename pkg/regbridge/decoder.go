// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package regbridge

import (
	"errors"
	"fmt"
	"time"
)

// ErrCRCMismatch is wrapped by decode errors caused by a bad frame checksum.
var ErrCRCMismatch = errors.New("CRC mismatch")

// Decoder implements the bridge frame decoder state machine
type Decoder struct {
	state       int
	buffer      []byte
	bufferIndex int
	escapeNext  bool
	frame       *Frame
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateIdle,
		buffer: make([]byte, MaxFrameSize),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.escapeNext = false
	d.frame = nil
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error if decoding fails; the decoder resynchronizes on the next
// START byte.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	// Framing bytes are never escaped on the wire
	if b == StartByte {
		d.Reset()
		d.state = stateLength
		return nil, nil
	}

	if b == EndByte {
		state := d.state
		frame := d.frame
		calculated := CalculateCRC(d.buffer[:d.bufferIndex])
		d.Reset()

		if state == stateEnd {
			if frame.crc != calculated {
				return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculated, frame.crc)
			}
			frame.timestamp = time.Now()
			return frame, nil
		}
		if state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected END byte in state %d", state)
	}

	if d.state == stateIdle {
		return nil, nil
	}

	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateLength:
		if b > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", b, MaxPayloadSize)
		}
		d.frame = &Frame{length: b, cborPayload: make([]byte, 0, b)}
		d.push(b)
		d.state = stateSeq
		return nil, nil

	case stateSeq:
		d.frame.seq = b
		d.push(b)
		if d.frame.length == 0 {
			d.state = stateCRC1
		} else {
			d.state = statePayload
		}
		return nil, nil

	case statePayload:
		d.frame.cborPayload = append(d.frame.cborPayload, b)
		d.push(b)
		if len(d.frame.cborPayload) >= int(d.frame.length) {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.frame.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.frame.crc |= uint16(b)
		// Wait for END byte
		d.state = stateEnd
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("frame too long: expected END byte")
	}
}

func (d *Decoder) push(b byte) {
	d.buffer[d.bufferIndex] = b
	d.bufferIndex++
}
