// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bus abstracts the programmer's address bus, data bus and control
// lines. It carries no protocol knowledge.
package bus

import "github.com/Thermoquad/prom/pkg/chip"

// Supply is the level of the socket's VCC rail
type Supply int

const (
	SupplyOff Supply = iota
	SupplyNominal
	SupplyProgramming
)

func (s Supply) String() string {
	switch s {
	case SupplyOff:
		return "off"
	case SupplyNominal:
		return "nominal"
	case SupplyProgramming:
		return "programming"
	default:
		return "unknown"
	}
}

// Driver is the set of electrical operations the programming engine needs.
//
// Configure selects the wiring profile for all following calls.
// DriveData forces the given output bits during a programming pulse; zero
// releases the data bus. ReadData samples the outputs and is only
// meaningful while the chip is powered and enabled.
type Driver interface {
	Configure(p chip.Profile)
	SelectAddress(addr uint16)
	DriveData(bits byte)
	ReadData() byte
	SetSupply(s Supply)
	SetChipEnable(on bool)
}
