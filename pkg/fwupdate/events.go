// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import "time"

// Phase is a state of the update session state machine.
type Phase int

// Session phases, in the only order they can occur
const (
	PhaseSelectingPlatform Phase = iota
	PhaseCheckingConnectivity
	PhaseHandshaking
	PhaseStreaming
	PhaseFinalCheck
	PhaseSucceeded
	PhaseFailed
)

// String implements fmt.Stringer
func (p Phase) String() string {
	switch p {
	case PhaseSelectingPlatform:
		return "selecting-platform"
	case PhaseCheckingConnectivity:
		return "checking-connectivity"
	case PhaseHandshaking:
		return "handshaking"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalCheck:
		return "final-check"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can follow p.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// EventKind distinguishes the events emitted during a session.
type EventKind int

// Event kinds
const (
	// EventPhase is emitted on every phase transition.
	EventPhase EventKind = iota
	// EventLine is emitted after each image line has been written.
	EventLine
	// EventPoll is emitted after every status read during streaming.
	EventPoll
)

// Event describes progress of an update session.
// Passed to EventCallback; events are delivered synchronously from Run.
type Event struct {
	Kind  EventKind
	Phase Phase

	// Platform being updated
	Platform Platform

	// Lines is the number of image lines written so far
	Lines int

	// TotalLines is the number of non-empty lines in the image
	TotalLines int

	// Status is the last status read (EventPoll and terminal phases)
	Status Status

	// Flags is the peripheral status read during connectivity check
	Flags ConnectivityFlags

	// Elapsed is the time since Run started
	Elapsed time.Duration
}

// Percentage returns transfer progress in the range 0-100.
func (e Event) Percentage() float64 {
	if e.TotalLines == 0 {
		return 0
	}
	return float64(e.Lines) * 100 / float64(e.TotalLines)
}

// EventCallback observes session progress. Implementations should return
// quickly; every register transaction waits for the callback.
type EventCallback func(Event)
