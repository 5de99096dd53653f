// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is the programmer's fixed line speed.
const DefaultBaudRate = 57600

// Serial is a Transport over a serial port.
type Serial struct {
	port    serial.Port
	name    string
	baud    int
	timeout time.Duration
}

// OpenSerial opens a port at 8N1 and discards anything already buffered.
func OpenSerial(name string, baud int) (*Serial, error) {
	port, err := OpenSerialPort(name, baud)
	if err != nil {
		return nil, err
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to reset input buffer on %s: %w", name, err)
	}
	return &Serial{port: port, name: name, baud: baud}, nil
}

// OpenSerialPort opens a raw port at 8N1. The emulator serves directly on
// the returned port.
func OpenSerialPort(name string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return port, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := s.port.Write(p[total:])
		if err != nil {
			return total, fmt.Errorf("failed to write to %s: %w", s.name, err)
		}
		total += n
	}
	return total, nil
}

func (s *Serial) Poll(p []byte, wait time.Duration) (int, error) {
	if wait != s.timeout {
		if err := s.port.SetReadTimeout(wait); err != nil {
			return 0, fmt.Errorf("failed to set read timeout on %s: %w", s.name, err)
		}
		s.timeout = wait
	}
	n, err := s.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("failed to read from %s: %w", s.name, err)
	}
	return n, nil
}

func (s *Serial) Close() error {
	return s.port.Close()
}

func (s *Serial) String() string {
	return fmt.Sprintf("Serial: %s @ %d baud", s.name, s.baud)
}

// PortInfo describes one serial port found on the system.
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

func (p PortInfo) String() string {
	if !p.USB {
		return p.Name
	}
	desc := fmt.Sprintf("%s [%s:%s]", p.Name, p.VID, p.PID)
	if p.Product != "" {
		desc += " " + p.Product
	}
	if p.Serial != "" {
		desc += " (" + p.Serial + ")"
	}
	return desc
}

// ListPorts enumerates the serial ports present on the system.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return ports, nil
}
