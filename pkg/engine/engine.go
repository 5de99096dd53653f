// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package engine implements the fuse programming algorithm and the
// whole-chip scans on top of a bus.Driver.
//
// Everything here is synchronous: delays are busy-waits and no other work
// proceeds while a cell is being burned.
package engine

import (
	"fmt"
	"time"

	"github.com/Thermoquad/prom/pkg/bus"
	"github.com/Thermoquad/prom/pkg/chip"
)

// Timing holds the electrical delays of the programming sequence.
type Timing struct {
	// Settle is the wait after raising VCC to the programming level
	Settle time.Duration
	// Pulse is how long chip enable is held during a burn
	Pulse time.Duration
	// Cooldown follows every real pulse to respect the duty-cycle limit
	Cooldown time.Duration
}

// Datasheet limits for the programming pulse.
const (
	MinPulse = 10 * time.Microsecond
	MaxPulse = 50 * time.Microsecond
)

// DefaultTiming is safe for both supported parts.
var DefaultTiming = Timing{
	Settle:   10 * time.Microsecond,
	Pulse:    15 * time.Microsecond,
	Cooldown: 100 * time.Microsecond,
}

// Validate checks the pulse width against the datasheet window.
func (t Timing) Validate() error {
	if t.Pulse < MinPulse || t.Pulse > MaxPulse {
		return fmt.Errorf("pulse width %v outside %v-%v", t.Pulse, MinPulse, MaxPulse)
	}
	if t.Settle < 0 || t.Cooldown < 0 {
		return fmt.Errorf("negative delay in timing %+v", t)
	}
	return nil
}

// Engine drives one socket.
type Engine struct {
	bus    bus.Driver
	timing Timing
	delay  func(time.Duration)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(e *Engine) {
		e.timing = t
	}
}

// WithDelay replaces the busy-wait used for electrical delays. Tests use
// it to record or skip delays.
func WithDelay(fn func(time.Duration)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.delay = fn
		}
	}
}

// New creates an engine on the given bus. Timing outside the datasheet
// window is rejected.
func New(b bus.Driver, opts ...Option) (*Engine, error) {
	if b == nil {
		return nil, fmt.Errorf("bus cannot be nil")
	}
	e := &Engine{
		bus:    b,
		timing: DefaultTiming,
		delay:  spin,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.timing.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Timing returns the active timing.
func (e *Engine) Timing() Timing {
	return e.timing
}

// spin busy-waits; time.Sleep granularity is far coarser than a pulse
func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}

func checkAddress(p chip.Profile, addr uint16) error {
	if !p.Contains(int(addr)) {
		return fmt.Errorf("address 0x%03X out of range for %s", addr, p.Name())
	}
	return nil
}

// powerUp selects the part and brings VCC to nominal with outputs off.
func (e *Engine) powerUp(p chip.Profile) {
	e.bus.Configure(p)
	e.bus.DriveData(0)
	e.bus.SetChipEnable(false)
	e.bus.SetSupply(bus.SupplyNominal)
}

func (e *Engine) powerDown() {
	e.bus.SetChipEnable(false)
	e.bus.DriveData(0)
	e.bus.SetSupply(bus.SupplyOff)
}

// sample reads one cell with the output path enabled. The chip must be
// powered at nominal level.
func (e *Engine) sample(addr uint16) byte {
	e.bus.SelectAddress(addr)
	e.bus.SetChipEnable(true)
	v := e.bus.ReadData()
	e.bus.SetChipEnable(false)
	return v
}

// ReadByte returns the contents of one cell.
func (e *Engine) ReadByte(p chip.Profile, addr uint16) (byte, error) {
	if err := checkAddress(p, addr); err != nil {
		return 0, err
	}
	e.powerUp(p)
	defer e.powerDown()
	return e.sample(addr), nil
}

// ReadAll returns every cell from address 0 up.
func (e *Engine) ReadAll(p chip.Profile) []byte {
	e.powerUp(p)
	defer e.powerDown()

	data := make([]byte, p.Cells())
	for addr := range data {
		data[addr] = e.sample(uint16(addr))
	}
	return data
}

// BlankCheck scans until the first non-zero cell and returns its address,
// or the cell count when the whole part is blank.
func (e *Engine) BlankCheck(p chip.Profile) uint16 {
	e.powerUp(p)
	defer e.powerDown()

	for addr := 0; addr < p.Cells(); addr++ {
		if e.sample(uint16(addr)) != 0 {
			return uint16(addr)
		}
	}
	return uint16(p.Cells())
}
