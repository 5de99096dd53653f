// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"github.com/Thermoquad/prom/pkg/bus"
	"github.com/Thermoquad/prom/pkg/chip"
)

// Hardware self-tests. They exercise one group of lines at a time so the
// board can be checked with a meter or scope.

// SampleBus puts addr on the bus using the 74S471 layout and returns whatever
// the data lines read back.
func (e *Engine) SampleBus(addr byte) byte {
	e.powerUp(chip.S471)
	defer e.powerDown()
	return e.sample(uint16(addr))
}

// HoldChipEnable drives the chip enable line and leaves it there.
func (e *Engine) HoldChipEnable(on bool) {
	e.bus.SetChipEnable(on)
}

// CycleSupply raises VCC to the programming level for one settle delay and
// returns the socket to off. No data is driven so no fuse can blow.
func (e *Engine) CycleSupply() {
	e.bus.SetChipEnable(false)
	e.bus.DriveData(0)
	e.bus.SetSupply(bus.SupplyProgramming)
	e.delay(e.timing.Settle)
	e.bus.SetSupply(bus.SupplyNominal)
	e.bus.SetSupply(bus.SupplyOff)
}
