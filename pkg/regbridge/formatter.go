// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package regbridge

import "fmt"

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgRegRead:
		return "REG_READ"
	case MsgRegWrite:
		return "REG_WRITE"
	case MsgPing:
		return "PING"
	case MsgRegValue:
		return "REG_VALUE"
	case MsgRegAck:
		return "REG_ACK"
	case MsgPong:
		return "PONG"
	case MsgError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// String implements fmt.Stringer
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeNack:
		return "NACK"
	case ErrorCodeBusError:
		return "BUS_ERROR"
	case ErrorCodeInvalidRequest:
		return "INVALID_REQUEST"
	case ErrorCodeBusy:
		return "BUSY"
	default:
		return fmt.Sprintf("ERROR(0x%02X)", uint8(c))
	}
}

// FormatFrame formats a frame into a single human-readable line
func FormatFrame(f *Frame) string {
	result := fmt.Sprintf("[%s] %s (0x%02X) seq=%d len=%d",
		f.Timestamp().Format("15:04:05.000"), FormatMessageType(f.Type()), f.Type(), f.Seq(), f.Length())

	m := f.PayloadMap()
	switch f.Type() {
	case MsgRegRead, MsgRegAck:
		if reg, ok := GetMapUint(m, keyRegister); ok {
			result += fmt.Sprintf(" reg=0x%02X", reg)
		}
	case MsgRegWrite, MsgRegValue:
		reg, _ := GetMapUint(m, keyRegister)
		val, _ := GetMapUint(m, keyValue)
		result += fmt.Sprintf(" reg=0x%02X value=0x%02X", reg, val)
	case MsgPong:
		if up, ok := GetMapUint(m, keyUptime); ok {
			result += fmt.Sprintf(" uptime=%dms", up)
		}
	case MsgError:
		if code, ok := GetMapUint(m, keyCode); ok {
			result += fmt.Sprintf(" code=%s", ErrorCode(code))
		}
	}
	return result
}
