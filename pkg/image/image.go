// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package image holds the data moved between files and a chip: a buffer
// sized to the chip plus the list of address ranges that carry data.
package image

import (
	"fmt"
	"io"
	"os"
)

// Block is a populated address range.
type Block struct {
	Start int
	Count int
}

// End returns the first address after the block.
func (b Block) End() int {
	return b.Start + b.Count
}

// Image is a chip-sized buffer and the blocks within it that hold data.
type Image struct {
	Data   []byte
	Blocks []Block
}

// CapacityError reports data that does not fit the target chip.
type CapacityError struct {
	Size     int
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("image of %d bytes exceeds chip capacity of %d bytes", e.Size, e.Capacity)
}

// New returns an empty image for a chip of the given size.
func New(capacity int) *Image {
	return &Image{Data: make([]byte, capacity)}
}

// Single is an image holding one byte at addr.
func Single(capacity, addr int, value byte) (*Image, error) {
	if addr < 0 || addr >= capacity {
		return nil, &CapacityError{Size: addr + 1, Capacity: capacity}
	}
	img := New(capacity)
	img.Data[addr] = value
	img.Blocks = []Block{{Start: addr, Count: 1}}
	return img, nil
}

// Len returns the number of addresses covered by blocks.
func (img *Image) Len() int {
	n := 0
	for _, b := range img.Blocks {
		n += b.Count
	}
	return n
}

// Capacity returns the size of the chip the image was made for.
func (img *Image) Capacity() int {
	return len(img.Data)
}

// Validate checks that every block lies inside the buffer.
func (img *Image) Validate() error {
	for _, b := range img.Blocks {
		if b.Start < 0 || b.Count <= 0 || b.End() > len(img.Data) {
			return &CapacityError{Size: b.End(), Capacity: len(img.Data)}
		}
	}
	return nil
}

// Each calls fn for every populated address in block order and stops at
// the first error.
func (img *Image) Each(fn func(addr int, value byte) error) error {
	for _, b := range img.Blocks {
		for addr := b.Start; addr < b.End(); addr++ {
			if err := fn(addr, img.Data[addr]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadBinary loads a flat binary file that starts at address 0.
func ReadBinary(r io.Reader, capacity int) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(capacity)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read binary: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("binary file is empty")
	}
	if len(data) > capacity {
		return nil, &CapacityError{Size: len(data), Capacity: capacity}
	}

	img := New(capacity)
	copy(img.Data, data)
	img.Blocks = []Block{{Start: 0, Count: len(data)}}
	return img, nil
}

// ReadBinaryFile is ReadBinary on a named file.
func ReadBinaryFile(path string, capacity int) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	img, err := ReadBinary(f, capacity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// WriteBinary writes the whole buffer.
func WriteBinary(w io.Writer, img *Image) error {
	if _, err := w.Write(img.Data); err != nil {
		return fmt.Errorf("failed to write binary: %w", err)
	}
	return nil
}
