// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/prom/pkg/host"
	"github.com/Thermoquad/prom/pkg/transport"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Programmer flags
	chipIndex    int
	pollInterval time.Duration
	retries      int
	bulkRetries  int
	handshakes   int
	debug        bool
	useTUI       bool
	showStats    bool

	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "prom",
	Short: "Bipolar PROM programmer client",
	Long: `Prom - A CLI tool for the 74S471/74S472 bipolar PROM programmer.

Blank-tests, reads, writes, simulates writes and verifies fuse PROMs through
the programmer's serial protocol. Images are read from and written to flat
binary or Intel HEX files.

Chips:
  0: 74S471 (256x8)
  1: 74S472 (512x8)

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 57600]
  WebSocket: --url ws://host/prom [--username user]

For WebSocket authentication, the password is read from the PROM_PASSWORD
environment variable, or prompted interactively if not set.

Fuses can only be blown, never restored. The write command asks for
confirmation before burning anything.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", transport.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Programmer flags
	rootCmd.PersistentFlags().IntVarP(&chipIndex, "chip", "c", 0, "Chip: 0 = 74S471, 1 = 74S472")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll", host.DefaultPollInterval, "Wait per read poll")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", host.DefaultCommandBudget, "Idle polls allowed per single-cell command")
	rootCmd.PersistentFlags().IntVar(&bulkRetries, "bulk-retries", host.DefaultBulkBudget, "Idle polls allowed for a whole-chip read")
	rootCmd.PersistentFlags().IntVar(&handshakes, "handshake-tries", host.DefaultHandshakeTries, "Version requests sent before giving up")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log wire traffic to stderr")
	rootCmd.PersistentFlags().BoolVar(&useTUI, "tui", false, "Show progress in a terminal UI")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "Print wire statistics when done")
}

// setupLogging configures the structured logger used by every command
func setupLogging(cmd *cobra.Command, args []string) error {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
