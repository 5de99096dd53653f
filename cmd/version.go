// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the programmer firmware version",
	Long: `Connect to the programmer and print its firmware version.

The version handshake is retried a few times, so this is also the quickest
way to check that the programmer is connected and responding.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	s, err := connect("version")
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Println(s.version)
	return nil
}
