// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import "fmt"

// Status is the update status code read from RegUpdateChannel.
type Status uint8

// Update status codes reported by the coprocessor
const (
	StatusOff                       Status = 0
	StatusReceiving                 Status = 1
	StatusFailed                    Status = 2
	StatusFailedLineOverflow        Status = 3
	StatusFailedFlashEmpty          Status = 4
	StatusFailedFlashOverflow       Status = 5
	StatusFailedBadLine             Status = 6
	StatusFailedBadChecksum         Status = 7
	StatusFailedCommError           Status = 8
	StatusFailedUnsupportedPlatform Status = 9
	StatusAwaitingReboot            Status = 10
)

var statusNames = [...]string{
	StatusOff:                       "OFF",
	StatusReceiving:                 "RECEIVING",
	StatusFailed:                    "FAILED",
	StatusFailedLineOverflow:        "FAILED_LINE_OVERFLOW",
	StatusFailedFlashEmpty:          "FAILED_FLASH_EMPTY",
	StatusFailedFlashOverflow:       "FAILED_FLASH_OVERFLOW",
	StatusFailedBadLine:             "FAILED_BAD_LINE",
	StatusFailedBadChecksum:         "FAILED_BAD_CHECKSUM",
	StatusFailedCommError:           "FAILED_COMM_ERROR",
	StatusFailedUnsupportedPlatform: "FAILED_UNSUPPORTED_PLATFORM",
	StatusAwaitingReboot:            "AWAITING_REBOOT",
}

// Known reports whether s is one of the eleven defined codes.
func (s Status) Known() bool {
	return int(s) < len(statusNames)
}

// String implements fmt.Stringer
func (s Status) String() string {
	if !s.Known() {
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(s))
	}
	return statusNames[s]
}

// Description returns a short human-readable explanation of the status.
func (s Status) Description() string {
	switch s {
	case StatusOff:
		return "no update in progress"
	case StatusReceiving:
		return "receiving image data"
	case StatusFailed:
		return "update failed"
	case StatusFailedLineOverflow:
		return "HEX line exceeded the coprocessor line buffer"
	case StatusFailedFlashEmpty:
		return "image contained no data records"
	case StatusFailedFlashOverflow:
		return "image does not fit in the flash staging area"
	case StatusFailedBadLine:
		return "malformed HEX record"
	case StatusFailedBadChecksum:
		return "HEX record checksum mismatch"
	case StatusFailedCommError:
		return "coprocessor could not communicate with the target"
	case StatusFailedUnsupportedPlatform:
		return "selected platform is not supported by the coprocessor"
	case StatusAwaitingReboot:
		return "update complete, target rebooting"
	default:
		return "status code not defined by this protocol version"
	}
}

// Action is the decision taken for an observed status.
type Action int

// Classifier actions
const (
	// ActionContinue means the target is still accepting data.
	ActionContinue Action = iota
	// ActionComplete means the target finished (Off or AwaitingReboot).
	ActionComplete
	// ActionFail means the target reported a specific failure.
	ActionFail
	// ActionUnrecognized means the code is outside the known set.
	ActionUnrecognized
)

// String implements fmt.Stringer
func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionComplete:
		return "complete"
	case ActionFail:
		return "fail"
	case ActionUnrecognized:
		return "unrecognized"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Verdict is the result of classifying a raw status byte.
type Verdict struct {
	Action Action
	Status Status
}

// Classify maps a raw status byte to a Verdict. Codes outside the known set
// are never treated as success or continuation.
func Classify(raw byte) Verdict {
	s := Status(raw)
	switch s {
	case StatusReceiving:
		return Verdict{Action: ActionContinue, Status: s}
	case StatusOff, StatusAwaitingReboot:
		return Verdict{Action: ActionComplete, Status: s}
	case StatusFailed,
		StatusFailedLineOverflow,
		StatusFailedFlashEmpty,
		StatusFailedFlashOverflow,
		StatusFailedBadLine,
		StatusFailedBadChecksum,
		StatusFailedCommError,
		StatusFailedUnsupportedPlatform:
		return Verdict{Action: ActionFail, Status: s}
	default:
		return Verdict{Action: ActionUnrecognized, Status: s}
	}
}
