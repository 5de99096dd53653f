// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package host

import (
	"errors"
	"fmt"
)

// ErrNotConfirmed is returned when a write was not confirmed by the user.
var ErrNotConfirmed = errors.New("write not confirmed")

// TimeoutError indicates the programmer stopped answering.
type TimeoutError struct {
	Command string
	Polls   int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no response from programmer to %q after %d idle polls", e.Command, e.Polls)
}

// ProtocolError indicates a response that does not fit the protocol, or an
// error status from the programmer.
type ProtocolError struct {
	Command string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("bad programmer response to %q: %v", e.Command, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// RangeError indicates an address outside the chip. It is raised before
// anything is sent.
type RangeError struct {
	Address int
	Last    int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("address 0x%X is larger than last chip cell (0x%X)", e.Address, e.Last)
}

// MismatchError reports a cell whose content differs from the image. For
// writes this covers both a failed burn and a bit that would need a blown
// fuse restored.
type MismatchError struct {
	Op      string
	Address int
	Got     byte
	Want    byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("error %s prom address 0x%03X: read 0x%02X, expected 0x%02X",
		e.Op, e.Address, e.Got, e.Want)
}
