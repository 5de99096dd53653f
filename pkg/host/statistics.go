// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package host

import (
	"fmt"
	"time"
)

// Statistics counts wire activity of an executor
type Statistics struct {
	StartTime time.Time

	// Counters
	Commands       uint64
	BytesSent      uint64
	BytesReceived  uint64
	IdlePolls      uint64
	ProtocolErrors uint64
	Timeouts       uint64
	Handshakes     uint64

	// Rates (calculated)
	CommandRate float64 // commands/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// CalculateRates calculates the command rate
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.CommandRate = float64(s.Commands) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()
	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.1f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Commands:        %8d\n", s.Commands)
	result += fmt.Sprintf("Bytes Sent:      %8d\n", s.BytesSent)
	result += fmt.Sprintf("Bytes Received:  %8d\n", s.BytesReceived)
	result += fmt.Sprintf("Idle Polls:      %8d\n", s.IdlePolls)
	if s.Handshakes > 1 {
		result += fmt.Sprintf("Handshake Tries: %8d\n", s.Handshakes)
	}
	if s.ProtocolErrors > 0 {
		result += fmt.Sprintf("Protocol Errors: %8d\n", s.ProtocolErrors)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	result += fmt.Sprintf("Command Rate:    %8.1f cmds/sec\n", s.CommandRate)
	result += "================================\n"

	return result
}
