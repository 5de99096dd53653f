// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package host

import "time"

// Operation names used in progress reports and mismatch errors.
const (
	OpRead     = "reading"
	OpWrite    = "writing to"
	OpSimulate = "writing (simulated) to"
	OpVerify   = "verifying"
)

// Progress describes how far a multi-cell operation has got.
type Progress struct {
	Op      string
	Address int
	Done    int
	Total   int
	Elapsed time.Duration
}

// Fraction returns completion between 0 and 1.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Done) / float64(p.Total)
}

// ProgressCallback is called after each cell. It runs on the executor's
// goroutine and should return quickly.
type ProgressCallback func(Progress)
