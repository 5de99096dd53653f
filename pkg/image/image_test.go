// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package image

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSingle(t *testing.T) {
	img, err := Single(256, 0x7F, 0x42)
	if err != nil {
		t.Fatalf("Single: %v", err)
	}
	if img.Len() != 1 || img.Data[0x7F] != 0x42 || img.Capacity() != 256 {
		t.Errorf("unexpected image %+v", img.Blocks)
	}

	var capErr *CapacityError
	if _, err := Single(256, 0x100, 0); !errors.As(err, &capErr) {
		t.Errorf("Single out of range = %v, want CapacityError", err)
	}
}

func TestReadBinary(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
		wantCap bool
	}{
		{"partial", 100, false, false},
		{"exact", 256, false, false},
		{"one too many", 257, true, true},
		{"empty", 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0x5A}, tt.size)
			img, err := ReadBinary(bytes.NewReader(data), 256)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				var capErr *CapacityError
				if errors.As(err, &capErr) != tt.wantCap {
					t.Errorf("CapacityError = %v, want %v", errors.As(err, &capErr), tt.wantCap)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadBinary: %v", err)
			}
			if len(img.Blocks) != 1 || img.Blocks[0] != (Block{0, tt.size}) {
				t.Errorf("blocks = %+v", img.Blocks)
			}
			if !bytes.Equal(img.Data[:tt.size], data) {
				t.Error("data differs")
			}
		})
	}
}

func TestBinaryFileRoundTrip(t *testing.T) {
	img := New(512)
	for i := range img.Data {
		img.Data[i] = byte(i ^ 0x33)
	}
	img.Blocks = []Block{{0, 512}}

	path := filepath.Join(t.TempDir(), "chip.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteBinary(f, img); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	f.Close()

	got, err := ReadBinaryFile(path, 512)
	if err != nil {
		t.Fatalf("ReadBinaryFile: %v", err)
	}
	if !bytes.Equal(got.Data, img.Data) {
		t.Error("round trip differs")
	}
	if _, err := ReadBinaryFile(path, 256); err == nil {
		t.Error("512-byte file accepted for a 256-byte chip")
	}
}

func TestEachVisitsBlocksInOrder(t *testing.T) {
	img := New(256)
	img.Blocks = []Block{{0x10, 2}, {0x80, 1}}
	var addrs []int
	img.Each(func(addr int, _ byte) error {
		addrs = append(addrs, addr)
		return nil
	})
	want := []int{0x10, 0x11, 0x80}
	if len(addrs) != len(want) {
		t.Fatalf("visited %v", addrs)
	}
	for i := range want {
		if addrs[i] != want[i] {
			t.Errorf("visit %d = 0x%X, want 0x%X", i, addrs[i], want[i])
		}
	}

	stop := errors.New("stop")
	n := 0
	if err := img.Each(func(int, byte) error { n++; return stop }); err != stop || n != 1 {
		t.Errorf("Each did not stop at first error (n=%d, err=%v)", n, err)
	}
}

func TestValidate(t *testing.T) {
	img := New(256)
	img.Blocks = []Block{{0xF0, 0x20}}
	if err := img.Validate(); err == nil {
		t.Error("block past the end accepted")
	}
}
