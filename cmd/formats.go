// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Thermoquad/prom/pkg/ihex"
	"github.com/Thermoquad/prom/pkg/image"
)

// fileFormat reads and writes one image file format
type fileFormat struct {
	read  func(path string, capacity int) (*image.Image, error)
	write func(path string, data []byte, base int) error
}

var formats = map[string]fileFormat{
	"bin": {
		read: image.ReadBinaryFile,
		write: func(path string, data []byte, _ int) error {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			if err := image.WriteBinary(f, &image.Image{Data: data}); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	},
	"ihex": {
		read: ihex.ReadFile,
		write: func(path string, data []byte, base int) error {
			return ihex.WriteFile(path, data, uint16(base))
		},
	},
}

const defaultFormat = "bin"

func formatNames() string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func lookupFormat(name string) (fileFormat, error) {
	f, ok := formats[name]
	if !ok {
		return fileFormat{}, fmt.Errorf("invalid format: %s (use %s)", name, formatNames())
	}
	return f, nil
}
