// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chip

import "testing"

func TestByIndex(t *testing.T) {
	tests := []struct {
		index   int
		name    string
		cells   int
		wantErr bool
	}{
		{0, "74S471", 256, false},
		{1, "74S472", 512, false},
		{2, "", 0, true},
		{-1, "", 0, true},
	}

	for _, tt := range tests {
		p, err := ByIndex(tt.index)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ByIndex(%d): expected error", tt.index)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ByIndex(%d): %v", tt.index, err)
		}
		if p.Name() != tt.name || p.Cells() != tt.cells || p.Index() != tt.index {
			t.Errorf("ByIndex(%d) = %s/%d, want %s/%d", tt.index, p.Name(), p.Cells(), tt.name, tt.cells)
		}
	}
}

func TestBusWordRoundTrip(t *testing.T) {
	for _, p := range All() {
		seen := make(map[uint16]bool)
		for addr := 0; addr < p.Cells(); addr++ {
			word := p.BusWord(uint16(addr))
			if seen[word] {
				t.Fatalf("%s: bus word 0x%03X reused", p.Name(), word)
			}
			seen[word] = true
			if got := p.CellAddress(word); got != uint16(addr) {
				t.Fatalf("%s: CellAddress(BusWord(0x%03X)) = 0x%03X", p.Name(), addr, got)
			}
		}
	}
}

func TestS472UsesSpareLine(t *testing.T) {
	if got := S472.BusWord(0x100); got != 1<<9 {
		t.Errorf("A8 should drive line 9, got word 0x%03X", got)
	}
	if got := S471.CellAddress(1 << 9); got != 0 {
		t.Errorf("74S471 should ignore line 9, got 0x%03X", got)
	}
}

func TestContains(t *testing.T) {
	if !S471.Contains(0xFF) || S471.Contains(0x100) {
		t.Error("74S471 range should be 0x000-0x0FF")
	}
	if !S472.Contains(MaxAddress) || S472.Contains(MaxAddress+1) {
		t.Error("74S472 range should be 0x000-0x1FF")
	}
}
