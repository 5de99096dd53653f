// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/prom/pkg/chip"
	"github.com/Thermoquad/prom/pkg/host"
	"github.com/Thermoquad/prom/pkg/image"
)

// programOptions are the flags shared by write, simulate and verify
type programOptions struct {
	data      string
	input     string
	format    string
	assumeYes bool
}

var programFlags = map[string]*programOptions{}

const programUsage = `%s

With ADDRESS, %s just that cell with the value given by --data. Otherwise
the data comes from the --input file, read in the format chosen by
--format (bin or ihex, default bin). Intel HEX files may leave gaps; only
the cells they define are touched.

ADDRESS and --data accept decimal, 0x hex and 0 octal notation.`

var writeCmd = &cobra.Command{
	Use:   "write [ADDRESS] {--data BYTE | --input FILE [--format FORMAT]}",
	Short: "Program the chip",
	Long: fmt.Sprintf(programUsage, `Program the chip.

Each cell is burned bit by bit and read back. The run stops at the first
cell that does not hold the wanted value, which happens when a fuse fails
to blow or when the value needs a blown fuse restored. The write asks for
confirmation first; use --yes when stdin is not a terminal.`, "program"),
	Args: cobra.MaximumNArgs(1),
	RunE: runProgram,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate [ADDRESS] {--data BYTE | --input FILE [--format FORMAT]}",
	Short: "Simulate programming without burning",
	Long: fmt.Sprintf(programUsage, `Simulate programming.

Succeeds or fails exactly as write would, without burning any fuse.`, "simulate"),
	Args: cobra.MaximumNArgs(1),
	RunE: runProgram,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [ADDRESS] {--data BYTE | --input FILE [--format FORMAT]}",
	Short: "Compare the chip against data",
	Long:  fmt.Sprintf(programUsage, "Verify the chip contents.", "verify"),
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProgram,
}

func init() {
	for _, c := range []*cobra.Command{writeCmd, simulateCmd, verifyCmd} {
		opts := &programOptions{}
		programFlags[c.Name()] = opts
		c.Flags().StringVarP(&opts.data, "data", "d", "", "Byte to program, simulate or verify")
		c.Flags().StringVarP(&opts.input, "input", "i", "", "File to read the data from")
		c.Flags().StringVarP(&opts.format, "format", "f", "", "File format: bin or ihex (default bin)")
		if c == writeCmd {
			c.Flags().BoolVarP(&opts.assumeYes, "yes", "y", false, "Burn without asking for confirmation")
		}
		rootCmd.AddCommand(c)
	}
}

// loadImage validates the argument combination and builds the image
func loadImage(p chip.Profile, opts *programOptions, args []string) (*image.Image, error) {
	if len(args) == 1 {
		if opts.input != "" {
			return nil, fmt.Errorf("mutually exclusive: ADDRESS and --input")
		}
		if opts.data == "" {
			return nil, fmt.Errorf("missing mandatory option --data")
		}
		if opts.format != "" {
			return nil, fmt.Errorf("--format is only valid with --input")
		}
		addr, err := parseAddress(args[0])
		if err != nil {
			return nil, err
		}
		value, err := parseByte(opts.data)
		if err != nil {
			return nil, err
		}
		if !p.Contains(addr) {
			return nil, &host.RangeError{Address: addr, Last: p.Cells() - 1}
		}
		return image.Single(p.Cells(), addr, value)
	}

	if opts.data != "" {
		return nil, fmt.Errorf("--data requires ADDRESS")
	}
	if opts.input == "" {
		return nil, fmt.Errorf("either ADDRESS --data or --input is mandatory")
	}
	name := opts.format
	if name == "" {
		name = defaultFormat
	}
	format, err := lookupFormat(name)
	if err != nil {
		return nil, err
	}
	return format.read(opts.input, p.Cells())
}

func runProgram(cmd *cobra.Command, args []string) error {
	opts := programFlags[cmd.Name()]
	p, err := selectedChip()
	if err != nil {
		return err
	}

	// file and range problems are reported before the programmer is touched
	img, err := loadImage(p, opts, args)
	if err != nil {
		return err
	}

	// so is the burn confirmation
	if cmd.Name() == "write" {
		ok, err := newConfirmer(opts.assumeYes)(p, img)
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return host.ErrNotConfirmed
		}
	}

	s, err := connect(cmd.Name())
	if err != nil {
		return err
	}
	defer s.Close()

	switch cmd.Name() {
	case "write":
		err = s.exec.Write(p, img, confirmed)
	case "simulate":
		fmt.Fprintf(os.Stderr, "Performing a write simulation\n")
		err = s.exec.Simulate(p, img)
	case "verify":
		fmt.Fprintf(os.Stderr, "Verifying\n")
		err = s.exec.Verify(p, img)
	}
	s.progress.Finish()

	var mismatch *host.MismatchError
	if errors.As(err, &mismatch) {
		fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+mismatch.Error()))
	}
	if err != nil {
		return err
	}
	reportSuccess()
	return nil
}
