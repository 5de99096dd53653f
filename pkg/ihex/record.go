// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ihex

import (
	"errors"
	"fmt"
)

// Record parser states
const (
	stateStart = iota
	stateCount
	stateAddress
	stateType
	stateData
	stateChecksum
	stateEnd
)

// field widths in hex digits
var fieldDigits = [...]int{
	stateCount:    2,
	stateAddress:  4,
	stateType:     2,
	stateData:     2,
	stateChecksum: 2,
}

type record struct {
	address uint16
	kind    byte
	data    []byte
}

// parseRecord runs one line through the record state machine and checks
// its checksum.
func parseRecord(line string) (record, error) {
	var (
		rec    record
		state  = stateStart
		count  int
		digits int
		acc    uint16
		sum    byte
	)

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch state {
		case stateStart:
			if c != startCode {
				return rec, fmt.Errorf("record does not start with '%c'", startCode)
			}
			state = stateCount
			continue
		case stateEnd:
			return rec, fmt.Errorf("unexpected %q after checksum", c)
		}

		d, ok := hexValue(c)
		if !ok {
			return rec, fmt.Errorf("invalid hex digit %q at column %d", c, i+1)
		}
		acc = acc<<4 | uint16(d)
		digits++
		if digits < fieldDigits[state] {
			continue
		}

		value := acc
		acc, digits = 0, 0
		sum += byte(value) + byte(value>>8)

		switch state {
		case stateCount:
			count = int(value)
			rec.data = make([]byte, 0, count)
			state = stateAddress
		case stateAddress:
			rec.address = value
			state = stateType
		case stateType:
			rec.kind = byte(value)
			state = stateData
			if count == 0 {
				state = stateChecksum
			}
		case stateData:
			rec.data = append(rec.data, byte(value))
			if len(rec.data) == count {
				state = stateChecksum
			}
		case stateChecksum:
			if sum != 0 {
				return rec, fmt.Errorf("bad checksum %02X (want %02X)", byte(value), byte(value)-sum)
			}
			state = stateEnd
		}
	}

	if state != stateEnd {
		return rec, errors.New("record too short")
	}
	return rec, nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
