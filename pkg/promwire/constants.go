// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package promwire implements the line-oriented ASCII protocol spoken
// between the host and the PROM programmer.
//
// Requests are a command character followed by space-separated hex fields
// and a newline:
//
//	V
//	R <chip>
//	K <chip>
//	r <chip> <addr>
//	w <chip> <addr> <byte>
//	s <chip> <addr> <byte>
//	T <test> <param>
//
// Responses are zero or more payload lines followed by a one-character
// status line, every line terminated by CR LF:
//
//	1F\r\n
//	R\r\n
package promwire

// Command characters
const (
	CmdVersion   = 'V'
	CmdReadAll   = 'R'
	CmdBlank     = 'K'
	CmdRead      = 'r'
	CmdWrite     = 'w'
	CmdSimulate  = 's'
	CmdSelfTest  = 'T'
	RequestEnd   = '\n'
	FieldSpacing = ' '
)

// Status characters
const (
	StatusOK    = 'R'
	StatusError = 'E'
)

// LineEnd terminates every response line.
const LineEnd = "\r\n"

// Response limits
const (
	// VersionDigits is the width of the version code after the 'V'
	VersionDigits = 6
	// DumpBytesPerLine is the number of cells per data line of an R dump
	DumpBytesPerLine = 32
	// MaxLineLength bounds a single response line
	MaxLineLength = 2*DumpBytesPerLine + 16
	// MaxResponseLines bounds a whole response (largest chip dump + count
	// + status)
	MaxResponseLines = 512/DumpBytesPerLine + 2
)
