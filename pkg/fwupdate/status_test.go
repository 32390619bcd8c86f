// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_KnownCodes(t *testing.T) {
	tests := []struct {
		raw    byte
		action Action
		name   string
	}{
		{0, ActionComplete, "OFF"},
		{1, ActionContinue, "RECEIVING"},
		{2, ActionFail, "FAILED"},
		{3, ActionFail, "FAILED_LINE_OVERFLOW"},
		{4, ActionFail, "FAILED_FLASH_EMPTY"},
		{5, ActionFail, "FAILED_FLASH_OVERFLOW"},
		{6, ActionFail, "FAILED_BAD_LINE"},
		{7, ActionFail, "FAILED_BAD_CHECKSUM"},
		{8, ActionFail, "FAILED_COMM_ERROR"},
		{9, ActionFail, "FAILED_UNSUPPORTED_PLATFORM"},
		{10, ActionComplete, "AWAITING_REBOOT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.raw)
			assert.Equal(t, tt.action, v.Action)
			assert.Equal(t, Status(tt.raw), v.Status)
			assert.True(t, v.Status.Known())
			assert.Equal(t, tt.name, v.Status.String())
		})
	}
}

func TestClassify_UnknownCodesNeverContinueOrComplete(t *testing.T) {
	for raw := 11; raw <= 255; raw++ {
		v := Classify(byte(raw))
		assert.Equal(t, ActionUnrecognized, v.Action, "code %d", raw)
		assert.False(t, v.Status.Known())
	}
	assert.Equal(t, "UNKNOWN(0xFF)", Status(255).String())
}

func TestStatus_Description(t *testing.T) {
	assert.Equal(t, "update complete, target rebooting", StatusAwaitingReboot.Description())
	assert.Equal(t, "HEX record checksum mismatch", StatusFailedBadChecksum.Description())
	assert.Contains(t, Status(42).Description(), "not defined")
}

func TestConnectivityFlags(t *testing.T) {
	assert.True(t, ConnectivityFlags(0x03).Ready())
	assert.True(t, ConnectivityFlags(0xFF).Ready())
	assert.False(t, ConnectivityFlags(0x01).Ready())
	assert.True(t, ConnectivityFlags(0x01).LinkUp())
	assert.False(t, ConnectivityFlags(0x02).Ready())

	assert.Equal(t, "0x03 (connected)", ConnectivityFlags(0x03).String())
	assert.Equal(t, "0x01 (link up, target not responding)", ConnectivityFlags(0x01).String())
	assert.Equal(t, "0x00 (not connected)", ConnectivityFlags(0x00).String())
}

func TestStatusOf(t *testing.T) {
	s, ok := StatusOf(&HandshakeRejectedError{Raw: 9})
	assert.True(t, ok)
	assert.Equal(t, StatusFailedUnsupportedPlatform, s)

	s, ok = StatusOf(&ProtocolFailureError{Status: StatusFailedBadLine})
	assert.True(t, ok)
	assert.Equal(t, StatusFailedBadLine, s)

	s, ok = StatusOf(&UnrecognizedStatusError{Raw: 200})
	assert.True(t, ok)
	assert.Equal(t, Status(200), s)

	_, ok = StatusOf(&TargetNotConnectedError{})
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	err := &ProtocolFailureError{Status: StatusFailedBadChecksum, Lines: 40, Phase: PhaseStreaming}
	assert.Equal(t,
		"update failed during streaming: status FAILED_BAD_CHECKSUM (7) after 40 lines: HEX record checksum mismatch",
		err.Error())

	unknown := &UnrecognizedStatusError{Raw: 0xFF, Lines: 10, Phase: PhaseStreaming}
	assert.Equal(t, "unrecognized status 0xFF (255) during streaming after 10 lines", unknown.Error())

	rejected := &HandshakeRejectedError{Raw: 9}
	assert.Equal(t, "handshake rejected: status FAILED_UNSUPPORTED_PLATFORM (9)", rejected.Error())
}
