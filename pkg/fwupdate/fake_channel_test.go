// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type opKind int

const (
	opRead opKind = iota
	opWrite
)

type regOp struct {
	kind  opKind
	reg   Register
	value byte
}

// fakeChannel records every transaction and serves scripted reads.
type fakeChannel struct {
	ops       []regOp
	reads     map[Register][]byte
	failAfter int // fail the Nth transaction (1-based), 0 = never
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{reads: make(map[Register][]byte)}
}

// script queues read responses for reg.
func (f *fakeChannel) script(reg Register, values ...byte) *fakeChannel {
	f.reads[reg] = append(f.reads[reg], values...)
	return f
}

func (f *fakeChannel) ReadRegister(ctx context.Context, reg Register) (byte, error) {
	f.ops = append(f.ops, regOp{kind: opRead, reg: reg})
	if f.failAfter > 0 && len(f.ops) == f.failAfter {
		return 0, errors.New("bus fault")
	}
	q := f.reads[reg]
	if len(q) == 0 {
		return 0, fmt.Errorf("unscripted read of %s", reg)
	}
	f.reads[reg] = q[1:]
	return q[0], nil
}

func (f *fakeChannel) WriteRegister(ctx context.Context, reg Register, value byte) error {
	f.ops = append(f.ops, regOp{kind: opWrite, reg: reg, value: value})
	if f.failAfter > 0 && len(f.ops) == f.failAfter {
		return errors.New("bus fault")
	}
	return nil
}

// writes returns the bytes written to reg in order.
func (f *fakeChannel) writes(reg Register) []byte {
	var out []byte
	for _, op := range f.ops {
		if op.kind == opWrite && op.reg == reg {
			out = append(out, op.value)
		}
	}
	return out
}

// readCount returns how many reads of reg were issued.
func (f *fakeChannel) readCount(reg Register) int {
	n := 0
	for _, op := range f.ops {
		if op.kind == opRead && op.reg == reg {
			n++
		}
	}
	return n
}

// linesAtReads returns, for each UpdateChannel read after the
// handshake, how many image terminators had been written before it.
func (f *fakeChannel) linesAtReads() []int {
	var out []int
	terminators := 0
	for _, op := range f.ops {
		switch {
		case op.kind == opWrite && op.reg == RegUpdateChannel && op.value == '\n':
			terminators++
		case op.kind == opRead && op.reg == RegUpdateChannel:
			// first terminator belongs to the handshake
			out = append(out, terminators-1)
		}
	}
	return out
}

// hexLines generates n distinct HEX-looking lines.
func hexLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf(":10%04X0000112233445566778899AABBCCDDEEFF%02X", i*16, i&0xFF)
	}
	return lines
}

// expectedStream is the handshake plus every line followed by a terminator.
func expectedStream(p Platform, lines []string) []byte {
	var b strings.Builder
	b.WriteString("+" + p.Name() + "\n")
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	return []byte(b.String())
}
