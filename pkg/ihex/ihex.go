// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ihex reads and writes Intel HEX files holding PROM images.
//
// Only data records (type 00) and the end-of-file record are accepted,
// which covers every image that fits in a 16-bit address space.
package ihex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Thermoquad/prom/pkg/image"
)

// EndRecord terminates every file.
const EndRecord = ":00000001FF"

// BytesPerRecord is the data length of records written by Encode.
const BytesPerRecord = 32

const (
	startCode  = ':'
	typeData   = 0x00
	maxLineLen = 1 + 2*(4+255+1)
)

// FormatError reports a malformed file and the line at fault.
type FormatError struct {
	Line int
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("hex file line %d: %v", e.Line, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ErrMissingEnd is reported when the file stops before the end record.
var ErrMissingEnd = errors.New("unexpected end of hex file")

// Decode reads a hex file into an image of the given capacity. On any
// error no image is returned.
func Decode(r io.Reader, capacity int) (*image.Image, error) {
	img := image.New(capacity)
	next := -1
	done := false
	line := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), maxLineLen+2)
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if done {
			return nil, &FormatError{Line: line, Err: errors.New("data after end record")}
		}

		rec, err := parseRecord(text)
		if err != nil {
			return nil, &FormatError{Line: line, Err: err}
		}

		if len(rec.data) == 0 {
			if text != EndRecord {
				return nil, &FormatError{Line: line, Err: fmt.Errorf("invalid end record %q", text)}
			}
			done = true
			continue
		}
		if rec.kind != typeData {
			return nil, &FormatError{Line: line, Err: fmt.Errorf("unsupported record type %02X", rec.kind)}
		}

		start := int(rec.address)
		end := start + len(rec.data)
		if end > capacity {
			return nil, &FormatError{Line: line, Err: &image.CapacityError{Size: end, Capacity: capacity}}
		}

		copy(img.Data[start:end], rec.data)
		if start != next {
			img.Blocks = append(img.Blocks, image.Block{Start: start})
		}
		img.Blocks[len(img.Blocks)-1].Count += len(rec.data)
		next = end
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &FormatError{Line: line + 1, Err: errors.New("line too long")}
		}
		return nil, fmt.Errorf("failed to read hex file: %w", err)
	}
	if !done {
		return nil, &FormatError{Line: line + 1, Err: ErrMissingEnd}
	}
	return img, nil
}

// ReadFile decodes the named file.
func ReadFile(path string, capacity int) (*image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	img, err := Decode(f, capacity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Encode writes data as consecutive records starting at base.
func Encode(w io.Writer, data []byte, base uint16) error {
	if int(base)+len(data) > 0x10000 {
		return fmt.Errorf("image of %d bytes at 0x%04X exceeds 16-bit address space", len(data), base)
	}

	bw := bufio.NewWriter(w)
	for off := 0; off < len(data); off += BytesPerRecord {
		end := off + BytesPerRecord
		if end > len(data) {
			end = len(data)
		}
		addr := base + uint16(off)
		chunk := data[off:end]
		fmt.Fprintf(bw, "%c%02X%04X%02X%X%02X\n", startCode, len(chunk), addr, typeData, chunk, Checksum(addr, chunk))
	}
	bw.WriteString(EndRecord + "\n")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write hex file: %w", err)
	}
	return nil
}

// WriteFile encodes data into the named file.
func WriteFile(path string, data []byte, base uint16) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Encode(f, data, base); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Checksum returns the two's complement of the byte sum of a data record.
func Checksum(addr uint16, data []byte) byte {
	sum := byte(len(data)) + byte(addr>>8) + byte(addr) + typeData
	for _, b := range data {
		sum += b
	}
	return -sum
}
