// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"fmt"
	"os"

	"github.com/Thermoquad/prom/pkg/chip"
	"github.com/fxamacker/cbor/v2"
)

const snapshotVersion = 1

// Snapshot is the persisted fuse map of a simulated programmer.
type Snapshot struct {
	Version int               `cbor:"1,keyasint"`
	Arrays  map[string][]byte `cbor:"2,keyasint"`
}

// Snapshot captures the fuse arrays of every supported part.
func (s *Sim) Snapshot() Snapshot {
	snap := Snapshot{
		Version: snapshotVersion,
		Arrays:  make(map[string][]byte),
	}
	for _, p := range chip.All() {
		snap.Arrays[p.Name()] = s.Contents(p)
	}
	return snap
}

// Restore loads a snapshot. Parts missing from the snapshot are left as
// they are.
func (s *Sim) Restore(snap Snapshot) error {
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	for _, p := range chip.All() {
		data, ok := snap.Arrays[p.Name()]
		if !ok {
			continue
		}
		if len(data) != p.Cells() {
			return fmt.Errorf("snapshot for %s has %d cells, expected %d", p.Name(), len(data), p.Cells())
		}
		s.Load(p, data)
	}
	return nil
}

// MarshalSnapshot encodes the current fuse map as CBOR.
func (s *Sim) MarshalSnapshot() ([]byte, error) {
	data, err := cbor.Marshal(s.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes and restores a CBOR fuse map.
func (s *Sim) UnmarshalSnapshot(data []byte) error {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s.Restore(snap)
}

// SaveFile writes the fuse map to path, replacing it atomically.
func (s *Sim) SaveFile(path string) error {
	data, err := s.MarshalSnapshot()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadFile restores the fuse map from path. A missing file is not an
// error: the simulated parts simply stay blank.
func (s *Sim) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return s.UnmarshalSnapshot(data)
}
