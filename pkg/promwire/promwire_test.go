// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package promwire

import (
	"bytes"
	"strings"
	"testing"
)

// ============================================================
// Request Tests
// ============================================================

func TestRequests(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{"version", VersionRequest(), "V"},
		{"read all", ReadAllRequest(1), "R 1\n"},
		{"blank", BlankRequest(0), "K 0\n"},
		{"read", ReadRequest(1, 0x1AB), "r 1 1ab\n"},
		{"write", ProgramRequest(CmdWrite, 0, 0x0F, 0xA0), "w 0 f a0\n"},
		{"simulate", ProgramRequest(CmdSimulate, 1, 0, 0), "s 1 0 0\n"},
		{"self test", SelfTestRequest(2, 0x10), "T 2 10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.got) != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestResponseFraming(t *testing.T) {
	if got := string(OK(ByteLine(0x0E))); got != "0E\r\nR\r\n" {
		t.Errorf("OK byte = %q", got)
	}
	if got := string(OK(VersionLine(1, 2, 3))); got != "V010203\r\nR\r\n" {
		t.Errorf("OK version = %q", got)
	}
	if got := string(Error()); got != "E\r\n" {
		t.Errorf("Error = %q", got)
	}
	if got := AddressLine(0xE); got != "00E" {
		t.Errorf("AddressLine(0xE) = %q", got)
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func decodeAll(t *testing.T, data []byte) *Response {
	t.Helper()
	d := NewDecoder()
	resp, n, err := d.Decode(data)
	if err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	if resp == nil {
		t.Fatalf("decode %q: incomplete", data)
	}
	if n != len(data) {
		t.Fatalf("decode %q: consumed %d of %d bytes", data, n, len(data))
	}
	return resp
}

func TestDecodeByteResponse(t *testing.T) {
	resp := decodeAll(t, []byte("A5\r\nR\r\n"))
	v, err := resp.Byte()
	if err != nil || v != 0xA5 {
		t.Errorf("Byte() = 0x%02X, %v", v, err)
	}
}

func TestDecodeErrorResponse(t *testing.T) {
	resp := decodeAll(t, Error())
	if resp.OK() {
		t.Error("expected error status")
	}
	if _, err := resp.Byte(); err == nil {
		t.Error("Byte() on error response should fail")
	}
}

func TestDecodeVersion(t *testing.T) {
	resp := decodeAll(t, OK(VersionLine(1, 0, 0)))
	v, err := resp.Version()
	if err != nil || v != "010000" {
		t.Errorf("Version() = %q, %v", v, err)
	}

	bad := decodeAll(t, OK("V01"))
	if _, err := bad.Version(); err == nil {
		t.Error("short version should fail")
	}
}

func TestDecodeBlankAtAddressE(t *testing.T) {
	resp := decodeAll(t, OK(AddressLine(0x0E)))
	v, err := resp.Value()
	if err != nil || v != 0x0E {
		t.Errorf("Value() = 0x%X, %v", v, err)
	}
}

func TestDecodeDump(t *testing.T) {
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i)
	}
	resp := decodeAll(t, OK(DumpLines(data)...))
	got, err := resp.Dump()
	if err != nil {
		t.Fatalf("Dump(): %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("dump contents differ")
	}
}

func TestDecodeDumpCountMismatch(t *testing.T) {
	lines := DumpLines(make([]byte, 64))
	lines[len(lines)-1] = AddressLine(65)
	resp := decodeAll(t, OK(lines...))
	if _, err := resp.Dump(); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestDecodeSplitAcrossReads(t *testing.T) {
	d := NewDecoder()
	frame := OK(ByteLine(0x3C))
	for i, b := range frame {
		resp, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("byte %d: %v", i, err)
		}
		if i < len(frame)-1 {
			if resp != nil {
				t.Fatalf("response completed early at byte %d", i)
			}
			if !d.Pending() {
				t.Fatalf("decoder not pending at byte %d", i)
			}
		} else if resp == nil {
			t.Fatal("response not completed")
		}
	}
	if d.Pending() {
		t.Error("decoder should be idle after a complete response")
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bare LF", "A5\nR\r\n"},
		{"CR without LF", "A5\rR"},
		{"empty line", "\r\nR\r\n"},
		{"binary byte", "A\x015\r\n"},
		{"error with payload", "A5\r\nE\r\n"},
		{"line too long", strings.Repeat("0", MaxLineLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			_, _, err := d.Decode([]byte(tt.input))
			if err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestDecodeConsumesOnlyOneResponse(t *testing.T) {
	d := NewDecoder()
	first := OK(ByteLine(1))
	input := append(append([]byte{}, first...), OK(ByteLine(2))...)
	resp, n, err := d.Decode(input)
	if err != nil || resp == nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(first) {
		t.Errorf("consumed %d bytes, want %d", n, len(first))
	}
}
