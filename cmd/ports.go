// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/prom/pkg/transport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports present on this system.

USB adapters are shown with their vendor and product IDs, which helps to
tell the programmer apart from other devices.`,
	Args: cobra.NoArgs,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := transport.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(os.Stderr, warningStyle.Render("No serial ports found."))
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}
