// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package regbridge

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame and transaction counters for a bridge client
type Statistics struct {
	StartTime time.Time

	// Transactions
	Transactions uint64
	Reads        uint64
	Writes       uint64
	Timeouts     uint64
	BridgeErrors uint64

	// Frames
	TotalFrames  uint64
	ValidFrames  uint64
	StaleFrames  uint64 // valid frames with an unexpected sequence number
	CRCErrors    uint64
	DecodeErrors uint64

	// Rates (calculated)
	TransactionRate float64 // transactions/sec
	ErrorRate       float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// recordFrame updates frame counters from a decode result
func (s *Statistics) recordFrame(frame *Frame, decodeErr error) {
	s.TotalFrames++

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrCRCMismatch) {
			s.CRCErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}
	if frame != nil {
		s.ValidFrames++
	}
}

// CalculateRates calculates transaction and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.TransactionRate = float64(s.Transactions) / elapsed
		errorCount := s.CRCErrors + s.DecodeErrors + s.Timeouts + s.BridgeErrors
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Bridge statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Transactions:    %8d (%d reads, %d writes)\n", s.Transactions, s.Reads, s.Writes)
	result += fmt.Sprintf("Frames:          %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.StaleFrames > 0 {
		result += fmt.Sprintf("Stale Frames:    %8d\n", s.StaleFrames)
	}
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.CRCErrors)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	if s.BridgeErrors > 0 {
		result += fmt.Sprintf("Bridge Errors:   %8d\n", s.BridgeErrors)
	}

	result += fmt.Sprintf("Transaction Rate:%8.1f tx/sec\n", s.TransactionRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "======================================\n"

	return result
}
