// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"fmt"

	"github.com/Thermoquad/prom/pkg/bus"
	"github.com/Thermoquad/prom/pkg/chip"
)

// Outcome tells why a burn stopped.
type Outcome int

const (
	// OutcomeUnchanged means the cell already held the target
	OutcomeUnchanged Outcome = iota
	// OutcomeCompleted means every differing bit was resolved
	OutcomeCompleted
	// OutcomeVerifyFailed means a pulsed fuse read back intact
	OutcomeVerifyFailed
	// OutcomeFuseDirection means the target needs a blown fuse restored
	OutcomeFuseDirection
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeCompleted:
		return "completed"
	case OutcomeVerifyFailed:
		return "verify failed"
	case OutcomeFuseDirection:
		return "fuse direction"
	default:
		return "unknown"
	}
}

// Result is the partial outcome of programming one cell. Achieved is what
// the cell holds (or would hold, when simulating) after the attempt and is
// not necessarily equal to Target.
type Result struct {
	Address  uint16
	Existing byte
	Target   byte
	Achieved byte
	Outcome  Outcome
	// StopBit is the bit where processing stopped, -1 if it did not
	StopBit int
	Pulses  int
}

// Matches reports whether the achieved value equals the target.
func (r Result) Matches() bool {
	return r.Achieved == r.Target
}

func (r Result) String() string {
	return fmt.Sprintf("0x%03X: 0x%02X -> 0x%02X achieved 0x%02X (%s)",
		r.Address, r.Existing, r.Target, r.Achieved, r.Outcome)
}

// Program burns target into the cell at addr, one bit at a time from bit 0.
// With simulate set the electrical sequence is skipped and every burnable
// bit is taken as blown.
func (e *Engine) Program(p chip.Profile, addr uint16, target byte, simulate bool) (Result, error) {
	if err := checkAddress(p, addr); err != nil {
		return Result{}, err
	}

	e.powerUp(p)
	defer e.powerDown()

	existing := e.sample(addr)
	res := Result{
		Address:  addr,
		Existing: existing,
		Target:   target,
		Achieved: existing,
		Outcome:  OutcomeUnchanged,
		StopBit:  -1,
	}
	if existing == target {
		return res, nil
	}

	res.Outcome = OutcomeCompleted
	for bit := 0; bit < 8; bit++ {
		mask := byte(1) << bit
		if (existing^target)&mask == 0 {
			continue
		}

		if existing&mask != 0 {
			// blown fuse, target wants it intact
			res.Outcome = OutcomeFuseDirection
			res.StopBit = bit
			return res, nil
		}

		if !simulate {
			res.Pulses++
			if !e.burnBit(addr, mask) {
				res.Outcome = OutcomeVerifyFailed
				res.StopBit = bit
				return res, nil
			}
		}
		res.Achieved |= mask
	}

	return res, nil
}

// burnBit applies one programming pulse and reads the fuse back.
func (e *Engine) burnBit(addr uint16, mask byte) bool {
	e.bus.SelectAddress(addr)
	e.bus.DriveData(mask)

	e.bus.SetSupply(bus.SupplyProgramming)
	e.delay(e.timing.Settle)

	e.bus.SetChipEnable(true)
	e.delay(e.timing.Pulse)
	e.bus.SetChipEnable(false)

	e.bus.DriveData(0)
	e.bus.SetSupply(bus.SupplyNominal)
	e.delay(e.timing.Cooldown)

	return e.sample(addr)&mask != 0
}
