// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/prom/pkg/chip"
	"github.com/Thermoquad/prom/pkg/host"
)

var (
	readOutput string
	readFormat string
	readCount  int
)

var readCmd = &cobra.Command{
	Use:   "read [ADDRESS [--count N]]",
	Short: "Read the chip",
	Long: `Read the chip.

With ADDRESS, read just that cell, or --count cells starting there. Without it, dump the whole chip: as a
hexdump on the screen or, with --output, into a file in the format chosen
by --format (bin or ihex, default bin).

ADDRESS accepts decimal, 0x hex and 0 octal notation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVarP(&readOutput, "output", "o", "", "File to save the data to")
	readCmd.Flags().StringVarP(&readFormat, "format", "f", "", "File format: bin or ihex (default bin)")
	readCmd.Flags().IntVarP(&readCount, "count", "n", 1, "Number of cells to read from ADDRESS")
	rootCmd.AddCommand(readCmd)
}

// parseAddress accepts any strtoul-style number up to the largest chip
func parseAddress(s string) (int, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil || v > chip.MaxAddress {
		return 0, fmt.Errorf("invalid memory address: %s", s)
	}
	return int(v), nil
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid data value: %s", s)
	}
	return byte(v), nil
}

func runRead(cmd *cobra.Command, args []string) error {
	p, err := selectedChip()
	if err != nil {
		return err
	}

	address := -1
	if len(args) == 1 {
		if address, err = parseAddress(args[0]); err != nil {
			return err
		}
		if readOutput != "" {
			return fmt.Errorf("mutually exclusive: ADDRESS and --output")
		}
		if !p.Contains(address) {
			return &host.RangeError{Address: address, Last: p.Cells() - 1}
		}
		if readCount < 1 || !p.Contains(address+readCount-1) {
			return fmt.Errorf("invalid count %d: %s ends at 0x%X", readCount, p.Name(), p.Cells()-1)
		}
	} else if cmd.Flags().Changed("count") {
		return fmt.Errorf("--count requires ADDRESS")
	}
	if readFormat != "" && readOutput == "" {
		return fmt.Errorf("--format is only valid with --output")
	}
	if readFormat == "" {
		readFormat = defaultFormat
	}
	format, err := lookupFormat(readFormat)
	if err != nil {
		return err
	}

	s, err := connect("read")
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintf(os.Stderr, "Reading\n")
	if address >= 0 {
		var cells []byte
		if readCount == 1 {
			v, err := s.exec.ReadByte(p, address)
			if err != nil {
				return err
			}
			cells = []byte{v}
		} else if cells, err = s.exec.ReadRange(p, address, readCount); err != nil {
			return err
		}
		s.progress.Finish()
		hexdump(os.Stdout, cells, address)
		reportSuccess()
		return nil
	}

	data, err := s.exec.ReadAll(p)
	if err != nil {
		return err
	}
	s.progress.Finish()
	reportSuccess()

	if readOutput != "" {
		return format.write(readOutput, data, 0)
	}
	hexdump(os.Stdout, data, 0)
	return nil
}
