// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var blankCmd = &cobra.Command{
	Use:   "blank",
	Short: "Blank-test the whole chip",
	Long: `Check that every cell of the chip still reads zero.

Reports the address of the first programmed cell if the chip is not blank.`,
	Args: cobra.NoArgs,
	RunE: runBlank,
}

func init() {
	rootCmd.AddCommand(blankCmd)
}

func runBlank(cmd *cobra.Command, args []string) error {
	p, err := selectedChip()
	if err != nil {
		return err
	}

	s, err := connect("blank test")
	if err != nil {
		return err
	}
	defer s.Close()

	stop, err := s.exec.Blank(p)
	if err != nil {
		return fmt.Errorf("blank test failed: %w", err)
	}

	if stop == p.Cells() {
		fmt.Printf("Chip is blank.\n")
	} else {
		fmt.Printf("Chip is not blank. Found non-zero data at address 0x%X.\n", stop)
	}
	return nil
}
