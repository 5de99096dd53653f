// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"sync"

	"github.com/Thermoquad/prom/pkg/chip"
)

// floating is what the data bus reads while the chip is not driving it
// (the board has pull-ups on D0-D7).
const floating = 0xFF

// Sim is an in-memory fuse array that behaves like a socketed PROM.
//
// A fuse is blown when the chip is enabled while the supply is at the
// programming level and the corresponding output is driven. Fuses never
// return to the intact state. Sim holds one array per supported part.
type Sim struct {
	mu      sync.Mutex
	profile chip.Profile
	arrays  map[int][]byte
	// stuck[chip][addr] marks fuses that refuse to blow
	stuck   map[int]map[uint16]byte
	word    uint16
	driven  byte
	supply  Supply
	enabled bool

	pulses int
}

// NewSim returns a simulated bus with every supported part blank.
func NewSim() *Sim {
	s := &Sim{
		arrays: make(map[int][]byte),
		stuck:  make(map[int]map[uint16]byte),
	}
	for _, p := range chip.All() {
		s.arrays[p.Index()] = make([]byte, p.Cells())
	}
	s.profile = chip.S471
	return s
}

func (s *Sim) Configure(p chip.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

func (s *Sim) SelectAddress(addr uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.word = s.profile.BusWord(addr)
}

func (s *Sim) DriveData(bits byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driven = bits
}

func (s *Sim) ReadData() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.supply != SupplyNominal {
		return floating
	}
	return s.arrays[s.profile.Index()][s.cell()]
}

func (s *Sim) SetSupply(level Supply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supply = level
}

func (s *Sim) SetChipEnable(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on && !s.enabled && s.supply == SupplyProgramming && s.driven != 0 {
		s.burn()
	}
	s.enabled = on
}

// burn must be called with s.mu held
func (s *Sim) burn() {
	s.pulses++
	addr := s.cell()
	mask := s.driven &^ s.stuck[s.profile.Index()][addr]
	s.arrays[s.profile.Index()][addr] |= mask
}

func (s *Sim) cell() uint16 {
	return s.profile.CellAddress(s.word) % uint16(s.profile.Cells())
}

// Contents returns a copy of the fuse array for p.
func (s *Sim) Contents(p chip.Profile) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.arrays[p.Index()]))
	copy(out, s.arrays[p.Index()])
	return out
}

// Load overwrites the fuse array for p, as if a pre-programmed part had
// been inserted. Extra bytes are ignored.
func (s *Sim) Load(p chip.Profile, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	arr := s.arrays[p.Index()]
	for i := range arr {
		arr[i] = 0
	}
	copy(arr, data)
}

// Stick makes the fuses in mask at addr impossible to blow.
func (s *Sim) Stick(p chip.Profile, addr uint16, mask byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stuck[p.Index()] == nil {
		s.stuck[p.Index()] = make(map[uint16]byte)
	}
	s.stuck[p.Index()][addr] |= mask
}

// Pulses returns the number of programming pulses applied so far.
func (s *Sim) Pulses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulses
}

// Supply returns the current supply level.
func (s *Sim) Supply() Supply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supply
}

// Enabled reports whether chip enable is asserted.
func (s *Sim) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}
