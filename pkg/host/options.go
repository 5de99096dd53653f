// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package host

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultCommandBudget  = 5
	DefaultBulkBudget     = 20
	DefaultHandshakeTries = 5
)

// Config holds the executor settings.
type Config struct {
	// PollInterval bounds each wait for response bytes
	PollInterval time.Duration
	// CommandBudget is the number of consecutive idle polls tolerated for
	// single-cell commands
	CommandBudget int
	// BulkBudget is the idle poll budget for whole-chip reads
	BulkBudget int
	// HandshakeTries is the number of version requests sent before giving
	// up on the programmer
	HandshakeTries int

	Progress ProgressCallback
	Logger   zerolog.Logger
}

func defaultConfig() Config {
	return Config{
		PollInterval:   DefaultPollInterval,
		CommandBudget:  DefaultCommandBudget,
		BulkBudget:     DefaultBulkBudget,
		HandshakeTries: DefaultHandshakeTries,
		Logger:         zerolog.Nop(),
	}
}

// Option configures an Executor.
type Option func(*Config)

// WithPollInterval sets how long a single read waits for data.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PollInterval = d
		}
	}
}

// WithBudgets sets the idle poll budgets for single-cell and bulk commands.
func WithBudgets(command, bulk int) Option {
	return func(c *Config) {
		if command > 0 {
			c.CommandBudget = command
		}
		if bulk > 0 {
			c.BulkBudget = bulk
		}
	}
}

// WithHandshakeTries sets the number of version requests.
func WithHandshakeTries(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.HandshakeTries = n
		}
	}
}

// WithProgress sets a callback invoked after every cell.
func WithProgress(fn ProgressCallback) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
