// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Prom - Bipolar PROM Programmer Client
//
// A CLI tool for blank-testing, reading, writing and verifying 74S471 and
// 74S472 fuse PROMs through the programmer's serial protocol.

package main

import (
	"os"

	"github.com/Thermoquad/prom/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
