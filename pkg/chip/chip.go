// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package chip describes the bipolar PROM parts the programmer supports.
//
// A Profile is immutable wiring data: how many cells the part has and which
// physical address-bus line carries each logical address bit on the
// programmer board.
package chip

import "fmt"

// Profile identifies a supported PROM family.
type Profile struct {
	index int
	name  string
	cells int
	// lines[i] is the bus line driven by logical address bit i
	lines []uint8
}

// Supported parts, indexed by their wire digit.
var (
	// S471 is the 74S471, 256×8
	S471 = Profile{
		index: 0,
		name:  "74S471",
		cells: 256,
		lines: []uint8{0, 1, 2, 3, 4, 5, 6, 7},
	}

	// S472 is the 74S472, 512×8. A8 is routed to the spare bus line 9
	// because line 8 is shared with the 74S471 G2 enable on the socket.
	S472 = Profile{
		index: 1,
		name:  "74S472",
		cells: 512,
		lines: []uint8{0, 1, 2, 3, 4, 5, 6, 7, 9},
	}
)

var profiles = []Profile{S471, S472}

// MaxAddress is the highest cell address of the largest supported part.
const MaxAddress = 0x1FF

// ByIndex returns the profile selected by a wire digit.
func ByIndex(i int) (Profile, error) {
	if i < 0 || i >= len(profiles) {
		return Profile{}, fmt.Errorf("invalid chip number %d (valid: 0-%d)", i, len(profiles)-1)
	}
	return profiles[i], nil
}

// All returns every supported profile in wire-digit order.
func All() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// Index returns the wire digit for this part.
func (p Profile) Index() int { return p.index }

// Name returns the part number.
func (p Profile) Name() string { return p.name }

// Cells returns the number of byte cells.
func (p Profile) Cells() int { return p.cells }

// Contains reports whether addr is a valid cell address.
func (p Profile) Contains(addr int) bool {
	return addr >= 0 && addr < p.cells
}

// BusWord maps a logical cell address to the pattern driven on the
// physical address bus.
func (p Profile) BusWord(addr uint16) uint16 {
	var word uint16
	for bit, line := range p.lines {
		if addr&(1<<bit) != 0 {
			word |= 1 << line
		}
	}
	return word
}

// CellAddress is the inverse of BusWord. Lines the part does not use are
// ignored.
func (p Profile) CellAddress(word uint16) uint16 {
	var addr uint16
	for bit, line := range p.lines {
		if word&(1<<line) != 0 {
			addr |= 1 << bit
		}
	}
	return addr
}

func (p Profile) String() string {
	return fmt.Sprintf("%s (%d×8)", p.name, p.cells)
}
