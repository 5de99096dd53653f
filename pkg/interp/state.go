// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package interp

import (
	"fmt"

	"github.com/Thermoquad/prom/pkg/chip"
)

// State is a protocol state of the interpreter.
type State int

const (
	StateReady State = iota
	StateWaitChip
	StateWaitAddress
	StateWaitValue
	StateWaitTestNumber
	StateWaitTestParams
	StateExecuting
	// StateError aborts the current command
	StateError
	// StateAny is a rule precondition only; the interpreter is never in it
	StateAny
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateWaitChip:
		return "wait-chip"
	case StateWaitAddress:
		return "wait-address"
	case StateWaitValue:
		return "wait-value"
	case StateWaitTestNumber:
		return "wait-test-number"
	case StateWaitTestParams:
		return "wait-test-params"
	case StateExecuting:
		return "executing"
	case StateError:
		return "error"
	case StateAny:
		return "any"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Command is the request being assembled. Op is zero while no command is
// pending. Self-tests carry the test number in Address and the parameter
// in Value.
type Command struct {
	Op      byte
	Chip    chip.Profile
	Address uint16
	Value   byte
}

func (c Command) String() string {
	return fmt.Sprintf("%c chip=%s addr=0x%03X value=0x%02X", c.Op, c.Chip.Name(), c.Address, c.Value)
}
