// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Thermoquad/prom/pkg/chip"
	"github.com/Thermoquad/prom/pkg/host"
	"github.com/Thermoquad/prom/pkg/image"
)

// confirmToken must be typed to allow burning
const confirmToken = "BURN"

// newConfirmer builds the confirmer asked before a write connects
var newConfirmer = promptConfirmer

// confirmed stands in for a confirmation already given
func confirmed(chip.Profile, *image.Image) (bool, error) {
	return true, nil
}

// promptConfirmer asks on the terminal before a write. Without a terminal
// on stdin the write is refused unless assumeYes is set.
func promptConfirmer(assumeYes bool) host.Confirmer {
	return func(p chip.Profile, img *image.Image) (bool, error) {
		if assumeYes {
			return true, nil
		}
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return false, fmt.Errorf("stdin is not a terminal: pass --yes to write without confirmation")
		}
		return askBurn(os.Stdin, os.Stderr, p, img)
	}
}

// askBurn prints what is about to happen and reads the answer.
func askBurn(in io.Reader, out io.Writer, p chip.Profile, img *image.Image) (bool, error) {
	fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf(
		"About to burn %d cell(s) of the %s in %d block(s). Blown fuses cannot be restored.",
		img.Len(), p.Name(), len(img.Blocks))))
	fmt.Fprintf(out, "Type %s to continue: ", confirmToken)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return strings.TrimSpace(answer) == confirmToken, nil
}
