// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package promwire

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// Response is a decoded programmer response.
type Response struct {
	Status  byte
	Payload []string
}

// OK reports whether the status line was 'R'.
func (r *Response) OK() bool {
	return r.Status == StatusOK
}

// single returns the only payload line of a successful response
func (r *Response) single() (string, error) {
	if !r.OK() {
		return "", fmt.Errorf("programmer reported error")
	}
	if len(r.Payload) != 1 {
		return "", fmt.Errorf("expected 1 payload line, got %d", len(r.Payload))
	}
	return r.Payload[0], nil
}

// Byte parses a single-byte payload.
func (r *Response) Byte() (byte, error) {
	line, err := r.single()
	if err != nil {
		return 0, err
	}
	if len(line) != 2 {
		return 0, fmt.Errorf("invalid byte payload %q", line)
	}
	v, err := strconv.ParseUint(line, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte payload %q", line)
	}
	return byte(v), nil
}

// Value parses a hex address or count payload.
func (r *Response) Value() (int, error) {
	line, err := r.single()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(line, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid value payload %q", line)
	}
	return int(v), nil
}

// Version parses a version payload into its six-digit code.
func (r *Response) Version() (string, error) {
	line, err := r.single()
	if err != nil {
		return "", err
	}
	if len(line) != 1+VersionDigits || line[0] != CmdVersion {
		return "", fmt.Errorf("invalid version payload %q", line)
	}
	for _, c := range line[1:] {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("invalid version payload %q", line)
		}
	}
	return line[1:], nil
}

// Dump parses the data lines and trailing count of an R response.
func (r *Response) Dump() ([]byte, error) {
	if !r.OK() {
		return nil, fmt.Errorf("programmer reported error")
	}
	if len(r.Payload) == 0 {
		return nil, fmt.Errorf("empty dump")
	}

	countLine := r.Payload[len(r.Payload)-1]
	count, err := strconv.ParseUint(countLine, 16, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid dump count %q", countLine)
	}

	data := make([]byte, 0, count)
	for i, line := range r.Payload[:len(r.Payload)-1] {
		chunk, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("invalid dump line %d: %w", i+1, err)
		}
		data = append(data, chunk...)
	}
	if len(data) != int(count) {
		return nil, fmt.Errorf("dump length mismatch: received %d bytes, programmer reported %d", len(data), count)
	}
	return data, nil
}

// Decoder assembles a Response from bytes as they arrive.
type Decoder struct {
	line    []byte
	payload []string
	sawCR   bool
}

// NewDecoder creates a response decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		line: make([]byte, 0, MaxLineLength),
	}
}

// Reset discards any partial response.
func (d *Decoder) Reset() {
	d.line = d.line[:0]
	d.payload = nil
	d.sawCR = false
}

// Pending reports whether a response is partially assembled.
func (d *Decoder) Pending() bool {
	return len(d.line) > 0 || len(d.payload) > 0 || d.sawCR
}

// DecodeByte feeds one byte. It returns the response once the status line
// is complete, nil while more bytes are needed, or an error if the bytes
// cannot be a valid response. The decoder resets itself after either.
func (d *Decoder) DecodeByte(b byte) (*Response, error) {
	if d.sawCR {
		d.sawCR = false
		if b != '\n' {
			d.Reset()
			return nil, fmt.Errorf("CR not followed by LF (got 0x%02X)", b)
		}
		return d.endLine()
	}

	switch {
	case b == '\r':
		d.sawCR = true
		return nil, nil
	case b == '\n':
		d.Reset()
		return nil, fmt.Errorf("bare LF in response")
	case b < 0x20 || b > 0x7E:
		d.Reset()
		return nil, fmt.Errorf("invalid character 0x%02X in response", b)
	}

	if len(d.line) >= MaxLineLength {
		d.Reset()
		return nil, fmt.Errorf("response line exceeds %d characters", MaxLineLength)
	}
	d.line = append(d.line, b)
	return nil, nil
}

func (d *Decoder) endLine() (*Response, error) {
	line := string(d.line)
	d.line = d.line[:0]

	if line == "" {
		d.Reset()
		return nil, fmt.Errorf("empty response line")
	}

	if len(line) == 1 && (line[0] == StatusOK || line[0] == StatusError) {
		resp := &Response{Status: line[0], Payload: d.payload}
		d.payload = nil
		if resp.Status == StatusError && len(resp.Payload) > 0 {
			return nil, fmt.Errorf("error status with %d payload lines", len(resp.Payload))
		}
		return resp, nil
	}

	if len(d.payload) >= MaxResponseLines {
		d.Reset()
		return nil, fmt.Errorf("response exceeds %d lines", MaxResponseLines)
	}
	d.payload = append(d.payload, line)
	return nil, nil
}

// Decode feeds a whole buffer and returns the first complete response and
// the number of bytes consumed.
func (d *Decoder) Decode(data []byte) (*Response, int, error) {
	for i, b := range data {
		resp, err := d.DecodeByte(b)
		if err != nil {
			return nil, i + 1, err
		}
		if resp != nil {
			return resp, i + 1, nil
		}
	}
	return nil, len(data), nil
}
