// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/puppetflash/internal/config"
	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
	"github.com/Thermoquad/puppetflash/pkg/regbridge"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitFailure},
		{"usage", exitWith(ExitUsage, errors.New("bad flag")), ExitUsage},
		{"cancelled", context.Canceled, ExitInterrupted},
		{"wrapped cancel", &fwupdate.ChannelError{Op: "write", Err: context.Canceled}, ExitInterrupted},
		{"reported failure", exitReported(ExitFailure, &fwupdate.ProtocolFailureError{Status: fwupdate.StatusFailedBadChecksum}), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestUpdateResult(t *testing.T) {
	ok := fwupdate.Report{Outcome: fwupdate.OutcomeAwaitingReboot}
	assert.NoError(t, updateResult(ok, nil))

	failed := fwupdate.Report{Outcome: fwupdate.OutcomeFailed, Detail: "target not connected"}
	err := updateResult(failed, &fwupdate.TargetNotConnectedError{Flags: 0x01})
	assert.Equal(t, ExitFailure, ExitCode(err))

	err = updateResult(failed, &fwupdate.ChannelError{Op: "read", Err: context.Canceled})
	assert.Equal(t, ExitInterrupted, ExitCode(err))

	// failed report without an error still fails
	err = updateResult(failed, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target not connected")
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0 seconds"},
		{1000, "1 second"},
		{61000, "1 minute and 1 second"},
		{3600000, "1 hour"},
		{90061000, "1 day, 1 hour, 1 minute, and 1 second"},
		{172800000, "2 days"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUptime(tt.ms), "%d ms", tt.ms)
	}
}

// scriptedChannel serves fixed register values and records writes.
type scriptedChannel struct {
	values map[fwupdate.Register][]byte
	writes []byte
	err    error
}

func (c *scriptedChannel) ReadRegister(ctx context.Context, reg fwupdate.Register) (byte, error) {
	if c.err != nil {
		return 0, c.err
	}
	q := c.values[reg]
	if len(q) == 0 {
		return 0, fmt.Errorf("no value for %s", reg)
	}
	v := q[0]
	if len(q) > 1 {
		c.values[reg] = q[1:]
	}
	return v, nil
}

func (c *scriptedChannel) WriteRegister(ctx context.Context, reg fwupdate.Register, value byte) error {
	if c.err != nil {
		return c.err
	}
	if reg == fwupdate.RegUpdateChannel {
		c.writes = append(c.writes, value)
	}
	return nil
}

func TestReadSnapshot(t *testing.T) {
	ch := &scriptedChannel{values: map[fwupdate.Register][]byte{
		fwupdate.RegTargetSelect:     {0x02},
		fwupdate.RegPeripheralStatus: {0x01},
		fwupdate.RegUpdateChannel:    {0x07},
	}}

	snap, err := readSnapshot(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, fwupdate.PlatformESP32, snap.Platform)
	assert.False(t, snap.Flags.Ready())

	var buf bytes.Buffer
	printSnapshot(&buf, snap)
	out := buf.String()
	assert.Contains(t, out, "TARGET_SELECT")
	assert.Contains(t, out, "ESP32")
	assert.Contains(t, out, "link up, target not responding")
	assert.Contains(t, out, "FAILED_BAD_CHECKSUM")
}

func TestReadSnapshot_Error(t *testing.T) {
	_, err := readSnapshot(context.Background(), &scriptedChannel{err: errors.New("nack")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TARGET_SELECT")
}

func TestProgressPrinter(t *testing.T) {
	ch := &scriptedChannel{values: map[fwupdate.Register][]byte{
		fwupdate.RegPeripheralStatus: {0x03},
		fwupdate.RegUpdateChannel:    {byte(fwupdate.StatusReceiving), byte(fwupdate.StatusReceiving), byte(fwupdate.StatusAwaitingReboot)},
	}}
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = ":0400000000000000FC"
	}

	var buf bytes.Buffer
	printer := &progressPrinter{w: &buf}
	tr := fwupdate.New(ch, fwupdate.PlatformRP2040, fwupdate.WithEventCallback(printer.handle))
	report, err := tr.Run(context.Background(), fwupdate.NewImage(lines))
	require.NoError(t, err)
	printReport(&buf, report, err)

	out := buf.String()
	assert.Contains(t, out, "Selecting platform RP2040")
	assert.Contains(t, out, "streaming 12 lines")
	assert.Contains(t, out, "10/12 lines")
	assert.Contains(t, out, "Outcome:  awaiting-reboot")
	assert.Equal(t, "+RP2040\n", string(ch.writes[:8]))
}

func TestApplyFlags(t *testing.T) {
	flags := updateCmd.Flags()
	flags.AddFlagSet(rootCmd.PersistentFlags())

	require.NoError(t, flags.Set("port", "/dev/ttyACM1"))
	require.NoError(t, flags.Set("platform", "rp2040"))
	require.NoError(t, flags.Set("poll-every", "5"))
	require.NoError(t, flags.Set("timeout", "250ms"))
	require.NoError(t, flags.Set("i2c-bus", "-1"))
	t.Cleanup(func() {
		portName, updatePlatform, updatePollEvery, updateTimeout, i2cBus = "", "esp32", fwupdate.DefaultPollInterval, time.Second, -1
	})

	c := config.Default()
	bus := 3
	c.Connection.I2CBus = &bus
	c.Log.Level = "debug"

	applyFlags(flags, c)

	assert.Equal(t, "/dev/ttyACM1", c.Connection.Port)
	assert.Nil(t, c.Connection.I2CBus)
	assert.Equal(t, "rp2040", c.Update.Platform)
	assert.Equal(t, 5, c.Update.PollEvery)
	assert.Equal(t, 250, c.Update.OpTimeoutMs)
	// untouched flags keep the file value
	assert.Equal(t, "debug", c.Log.Level)
}

const infoHex = `:10000000000102030405060708090A0B0C0D0E0F78
:0400100010111213A6
:04000005000001C036
:00000001FF
`

func TestSummarizeImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.hex")
	require.NoError(t, os.WriteFile(path, []byte(infoHex), 0o644))

	s, err := summarizeImage(path, 2)
	require.NoError(t, err)
	require.NoError(t, s.ParseError)
	assert.Equal(t, 4, s.Records)
	assert.Equal(t, 2, s.Polls)
	assert.Equal(t, 20, s.DataBytes)
	require.NotEmpty(t, s.Segments)
	assert.Equal(t, uint32(0), s.Segments[0].Address)
	assert.True(t, s.HasStart)
	assert.Equal(t, uint32(0x000001C0), s.StartAddr)

	var buf bytes.Buffer
	printImageSummary(&buf, s)
	assert.Contains(t, buf.String(), "Data bytes:    20")
	assert.Contains(t, buf.String(), "Start address: 0x000001C0")
}

func TestSummarizeImage_NotHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.hex")
	require.NoError(t, os.WriteFile(path, []byte("hello\nworld\n"), 0o644))

	s, err := summarizeImage(path, 10)
	require.NoError(t, err)
	assert.Error(t, s.ParseError)
	assert.Equal(t, 2, s.Records)

	var buf bytes.Buffer
	printImageSummary(&buf, s)
	assert.Contains(t, buf.String(), "WARNING")
}

func TestSummarizeImage_Missing(t *testing.T) {
	_, err := summarizeImage(filepath.Join(t.TempDir(), "nope.hex"), 10)
	var srcErr *fwupdate.SourceReadError
	assert.True(t, errors.As(err, &srcErr))
}

type fakePinger struct {
	fail  map[int]bool
	calls int
	stats regbridge.Statistics
}

func (f *fakePinger) Ping(ctx context.Context) (time.Duration, time.Duration, error) {
	f.calls++
	if f.fail[f.calls] {
		return 0, 0, regbridge.ErrTimeout
	}
	return 90 * time.Second, 3 * time.Millisecond, nil
}

func (f *fakePinger) Statistics() regbridge.Statistics {
	return f.stats
}

func TestPingBridge(t *testing.T) {
	p := &fakePinger{fail: map[int]bool{2: true}, stats: *regbridge.NewStatistics()}
	var buf bytes.Buffer

	failed := pingBridge(context.Background(), &buf, p, 3, 0)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 3, p.calls)

	out := buf.String()
	assert.Contains(t, out, "uptime=1 minute and 30 seconds")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "3 pings sent, 2 responses received, 33% loss")
}

func TestUpdateModel_Events(t *testing.T) {
	cancelled := false
	m := newUpdateModel("fw.hex", "Serial: /dev/ttyACM0", fwupdate.PlatformESP32, 20, func() { cancelled = true })

	next, _ := m.Update(updateEventMsg(fwupdate.Event{Kind: fwupdate.EventPhase, Phase: fwupdate.PhaseStreaming, TotalLines: 20}))
	m = next.(updateModel)
	next, _ = m.Update(updateEventMsg(fwupdate.Event{Kind: fwupdate.EventPoll, Phase: fwupdate.PhaseStreaming, Lines: 10, TotalLines: 20, Status: fwupdate.StatusFailedFlashOverflow}))
	m = next.(updateModel)

	assert.Equal(t, fwupdate.PhaseStreaming, m.phase)
	assert.Equal(t, 10, m.lines)
	assert.InDelta(t, 0.5, m.percent(), 1e-9)
	assert.Equal(t, 1, m.polls)
	require.NotEmpty(t, m.eventLog)
	assert.True(t, m.eventLog[len(m.eventLog)-1].isError)
	assert.Contains(t, m.View(), "ESP32")

	// first ctrl+c cancels, the session result still arrives
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(updateModel)
	assert.True(t, cancelled)
	assert.True(t, m.aborting)
	assert.Nil(t, cmd)

	next, cmd = m.Update(updateDoneMsg{report: fwupdate.Report{Outcome: fwupdate.OutcomeFailed}, err: context.Canceled})
	m = next.(updateModel)
	assert.True(t, m.done)
	assert.Equal(t, fwupdate.PhaseFailed, m.phase)
	assert.NotNil(t, cmd)
}

func TestOpenChannel_NoConnection(t *testing.T) {
	_, _, err := OpenChannel(config.Default().Connection, time.Second)
	assert.Error(t, err)
}

func TestParseRegister(t *testing.T) {
	tests := []struct {
		in      string
		want    fwupdate.Register
		wantErr bool
	}{
		{"update_channel", fwupdate.RegUpdateChannel, false},
		{"TARGET-SELECT", fwupdate.RegTargetSelect, false},
		{"peripheral_status", fwupdate.RegPeripheralStatus, false},
		{"0x32", fwupdate.RegPeripheralStatus, false},
		{"48", fwupdate.RegUpdateChannel, false},
		{"0x100", 0, true},
		{"flash", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRegister(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseByte(t *testing.T) {
	v, err := parseByte("':'")
	require.NoError(t, err)
	assert.Equal(t, byte(':'), v)

	v, err = parseByte("0x7E")
	require.NoError(t, err)
	assert.Equal(t, byte(0x7E), v)

	_, err = parseByte("-1")
	assert.Error(t, err)
}

func TestDescribeRegister(t *testing.T) {
	assert.Equal(t, "RP2040", describeRegister(fwupdate.RegTargetSelect, 0x01))
	assert.Equal(t, "0x03 (connected)", describeRegister(fwupdate.RegPeripheralStatus, 0x03))
	assert.Equal(t, "AWAITING_REBOOT", describeRegister(fwupdate.RegUpdateChannel, 10))
	assert.Equal(t, "0x05", describeRegister(fwupdate.Register(0x40), 5))
}
