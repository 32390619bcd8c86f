// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Handshake framing bytes written to RegUpdateChannel
const (
	headerMarker   = '+'
	lineTerminator = '\n'
)

const detailAwaitingReboot = "update complete, target rebooting."

// Transport runs firmware update sessions over a RegisterChannel.
//
// A Transport may run several sessions one after another; each call to Run
// starts from platform selection and holds the channel exclusively until it
// returns.
type Transport struct {
	mu       sync.Mutex
	channel  RegisterChannel
	platform Platform
	config   Config
}

// New creates a Transport bound to channel and platform.
func New(channel RegisterChannel, platform Platform, opts ...Option) *Transport {
	if channel == nil {
		panic("channel cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Transport{
		channel:  channel,
		platform: platform,
		config:   cfg,
	}
}

// Platform returns the platform this transport updates.
func (t *Transport) Platform() Platform {
	return t.platform
}

// PollInterval returns the configured number of lines between status reads.
func (t *Transport) PollInterval() int {
	return t.config.PollInterval
}

// session is the mutable state of a single Run call.
type session struct {
	ctx     context.Context
	t       *Transport
	phase   Phase
	lines   int
	total   int
	polls   int
	status  Status
	flags   ConnectivityFlags
	started time.Time
}

// Run performs one complete update of img. On success the returned error is
// nil and the report outcome is OutcomeSuccess or OutcomeAwaitingReboot. On
// failure the report outcome is OutcomeFailed and the error is one of
// *ChannelError, *TargetNotConnectedError, *HandshakeRejectedError,
// *ProtocolFailureError, *UnrecognizedStatusError or *SourceReadError.
//
// Cancelling ctx abandons the session before the next register transaction.
func (t *Transport) Run(ctx context.Context, img *Image) (Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &session{
		ctx:     ctx,
		t:       t,
		phase:   PhaseSelectingPlatform,
		started: time.Now(),
	}

	if !t.platform.Valid() {
		return s.fail(&UnsupportedPlatformError{Platform: t.platform})
	}
	if img == nil {
		return s.fail(&SourceReadError{Err: errors.New("no image")})
	}
	s.total = img.Len()

	log := t.config.Logger.With("platform", t.platform.Name())
	log.Info("starting update", "lines", s.total, "poll_interval", t.config.PollInterval)

	// Select platform
	s.emit(EventPhase)
	if err := s.write(RegTargetSelect, t.platform.Selector()); err != nil {
		return s.fail(err)
	}
	log.Debug("selected target platform", "selector", fmt.Sprintf("0x%02X", t.platform.Selector()))

	// Check connectivity
	s.enter(PhaseCheckingConnectivity)
	raw, err := s.read(RegPeripheralStatus)
	if err != nil {
		return s.fail(err)
	}
	s.flags = ConnectivityFlags(raw)
	if !s.flags.Ready() {
		return s.fail(&TargetNotConnectedError{Flags: s.flags})
	}
	log.Debug("target connected", "peripheral_status", fmt.Sprintf("0x%02X", raw))

	// Handshake
	s.enter(PhaseHandshaking)
	if err := s.handshake(); err != nil {
		return s.fail(err)
	}
	log.Debug("target accepted handshake")

	// Stream
	s.enter(PhaseStreaming)
	if err := s.stream(img.lines); err != nil {
		return s.fail(err)
	}

	// Final check
	s.enter(PhaseFinalCheck)
	report, err := s.finalCheck()
	if err != nil {
		return report, err
	}

	log.Info("update complete",
		"outcome", report.Outcome.String(),
		"lines", report.Lines,
		"polls", report.Polls,
		"elapsed", report.Elapsed.String(),
	)
	return report, nil
}

// handshake writes the update preamble and expects StatusReceiving.
func (s *session) handshake() error {
	preamble := make([]byte, 0, len(s.t.platform.Name())+2)
	preamble = append(preamble, headerMarker)
	preamble = append(preamble, s.t.platform.Name()...)
	preamble = append(preamble, lineTerminator)

	for _, b := range preamble {
		if err := s.write(RegUpdateChannel, b); err != nil {
			return err
		}
	}

	raw, err := s.read(RegUpdateChannel)
	if err != nil {
		return err
	}
	s.status = Status(raw)
	if s.status != StatusReceiving {
		return &HandshakeRejectedError{Raw: raw}
	}
	return nil
}

// stream writes image lines and polls the status every PollInterval lines.
// It returns nil when the image is exhausted or the target signals early
// completion.
func (s *session) stream(lines []string) error {
	interval := s.t.config.PollInterval

	for _, line := range lines {
		for i := 0; i < len(line); i++ {
			if err := s.write(RegUpdateChannel, line[i]); err != nil {
				return err
			}
		}
		if err := s.write(RegUpdateChannel, lineTerminator); err != nil {
			return err
		}
		s.lines++
		s.emit(EventLine)

		if s.lines%interval != 0 {
			continue
		}

		raw, err := s.read(RegUpdateChannel)
		if err != nil {
			return err
		}
		s.polls++
		s.status = Status(raw)
		s.emit(EventPoll)

		v := Classify(raw)
		s.t.config.Logger.Debug("progress",
			"lines", s.lines,
			"status", v.Status.String(),
			"action", v.Action.String(),
		)

		switch v.Action {
		case ActionContinue:
			continue
		case ActionComplete:
			return nil
		case ActionFail:
			return &ProtocolFailureError{Status: v.Status, Lines: s.lines, Phase: PhaseStreaming}
		default:
			return &UnrecognizedStatusError{Raw: raw, Lines: s.lines, Phase: PhaseStreaming}
		}
	}
	return nil
}

// finalCheck reads the terminal status and builds the report.
func (s *session) finalCheck() (Report, error) {
	raw, err := s.read(RegUpdateChannel)
	if err != nil {
		return s.fail(err)
	}
	s.status = Status(raw)

	switch s.status {
	case StatusAwaitingReboot:
		return s.succeed(OutcomeAwaitingReboot, detailAwaitingReboot), nil
	case StatusOff:
		return s.succeed(OutcomeSuccess, "update complete."), nil
	}

	if !s.status.Known() {
		return s.fail(&UnrecognizedStatusError{Raw: raw, Lines: s.lines, Phase: PhaseFinalCheck})
	}
	return s.fail(&ProtocolFailureError{Status: s.status, Lines: s.lines, Phase: PhaseFinalCheck})
}

func (s *session) write(reg Register, value byte) error {
	if err := s.ctx.Err(); err != nil {
		return &ChannelError{Op: "write", Register: reg, Lines: s.lines, Err: err}
	}
	if err := s.t.channel.WriteRegister(s.ctx, reg, value); err != nil {
		return &ChannelError{Op: "write", Register: reg, Lines: s.lines, Err: err}
	}
	return nil
}

func (s *session) read(reg Register) (byte, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, &ChannelError{Op: "read", Register: reg, Lines: s.lines, Err: err}
	}
	v, err := s.t.channel.ReadRegister(s.ctx, reg)
	if err != nil {
		return 0, &ChannelError{Op: "read", Register: reg, Lines: s.lines, Err: err}
	}
	return v, nil
}

func (s *session) enter(p Phase) {
	s.phase = p
	s.emit(EventPhase)
}

func (s *session) emit(kind EventKind) {
	cb := s.t.config.EventCallback
	if cb == nil {
		return
	}
	cb(Event{
		Kind:       kind,
		Phase:      s.phase,
		Platform:   s.t.platform,
		Lines:      s.lines,
		TotalLines: s.total,
		Status:     s.status,
		Flags:      s.flags,
		Elapsed:    time.Since(s.started),
	})
}

func (s *session) report(outcome Outcome, detail string) Report {
	return Report{
		Outcome:  outcome,
		Platform: s.t.platform,
		Status:   s.status,
		Lines:    s.lines,
		Polls:    s.polls,
		Detail:   detail,
		Elapsed:  time.Since(s.started),
	}
}

func (s *session) succeed(outcome Outcome, detail string) Report {
	s.enter(PhaseSucceeded)
	return s.report(outcome, detail)
}

func (s *session) fail(err error) (Report, error) {
	failedIn := s.phase
	s.enter(PhaseFailed)
	s.t.config.Logger.Error("update failed",
		"phase", failedIn.String(),
		"lines", s.lines,
		"error", err,
	)
	return s.report(OutcomeFailed, err.Error()), err
}
