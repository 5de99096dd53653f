// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package promwire

import (
	"fmt"
	"strings"
)

// Requests

// VersionRequest asks for the firmware version. It needs no terminator.
func VersionRequest() []byte {
	return []byte{CmdVersion}
}

// ReadAllRequest asks for a dump of the whole chip.
func ReadAllRequest(chip int) []byte {
	return []byte(fmt.Sprintf("%c %x\n", CmdReadAll, chip))
}

// BlankRequest asks for a blank test.
func BlankRequest(chip int) []byte {
	return []byte(fmt.Sprintf("%c %x\n", CmdBlank, chip))
}

// ReadRequest asks for one cell.
func ReadRequest(chip int, addr uint16) []byte {
	return []byte(fmt.Sprintf("%c %x %x\n", CmdRead, chip, addr))
}

// ProgramRequest builds a write or simulate request.
func ProgramRequest(cmd byte, chip int, addr uint16, value byte) []byte {
	return []byte(fmt.Sprintf("%c %x %x %x\n", cmd, chip, addr, value))
}

// SelfTestRequest runs a hardware self-test.
func SelfTestRequest(test, param byte) []byte {
	return []byte(fmt.Sprintf("%c %x %x\n", CmdSelfTest, test, param))
}

// Responses

// OK frames a successful response.
func OK(payload ...string) []byte {
	var b strings.Builder
	for _, line := range payload {
		b.WriteString(line)
		b.WriteString(LineEnd)
	}
	b.WriteByte(StatusOK)
	b.WriteString(LineEnd)
	return []byte(b.String())
}

// Error frames an error response. Errors carry no payload.
func Error() []byte {
	return []byte{StatusError, '\r', '\n'}
}

// ByteLine formats a single cell value.
func ByteLine(v byte) string {
	return fmt.Sprintf("%02X", v)
}

// AddressLine formats an address or count. It is always three digits wide
// so it can never be mistaken for a status line.
func AddressLine(v int) string {
	return fmt.Sprintf("%03X", v)
}

// VersionLine formats a version triple as the fixed-width version code.
func VersionLine(major, minor, patch int) string {
	return fmt.Sprintf("%c%02d%02d%02d", CmdVersion, major, minor, patch)
}

// DumpLines formats chip contents as hex data lines followed by the byte
// count.
func DumpLines(data []byte) []string {
	lines := make([]string, 0, len(data)/DumpBytesPerLine+2)
	for start := 0; start < len(data); start += DumpBytesPerLine {
		end := start + DumpBytesPerLine
		if end > len(data) {
			end = len(data)
		}
		lines = append(lines, fmt.Sprintf("%X", data[start:end]))
	}
	return append(lines, AddressLine(len(data)))
}
