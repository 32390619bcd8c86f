// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import (
	"fmt"
	"time"
)

// Outcome is the terminal result of an update session.
type Outcome int

// Outcomes
const (
	OutcomeFailed Outcome = iota
	OutcomeSuccess
	OutcomeAwaitingReboot
)

// String implements fmt.Stringer
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAwaitingReboot:
		return "awaiting-reboot"
	default:
		return "failed"
	}
}

// Report is the immutable summary of one update session.
type Report struct {
	Outcome  Outcome
	Platform Platform

	// Status is the last status read from the target
	Status Status

	// Lines is the number of non-empty image lines written
	Lines int

	// Polls is the number of status reads performed while streaming
	Polls int

	// Detail is a human-readable summary
	Detail string

	Elapsed time.Duration
}

// Succeeded reports whether the outcome is Success or AwaitingReboot.
func (r Report) Succeeded() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeAwaitingReboot
}

// String implements fmt.Stringer
func (r Report) String() string {
	s := fmt.Sprintf("%s: %s, %d lines, status %s, %s",
		r.Platform, r.Outcome, r.Lines, r.Status, r.Elapsed.Round(time.Millisecond))
	if r.Detail != "" {
		s += " (" + r.Detail + ")"
	}
	return s
}
