// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strings"
)

const dumpColumns = 16

// hexdump writes data as address, hex bytes and printable ASCII, sixteen
// cells per row with a gap after the eighth.
func hexdump(w io.Writer, data []byte, base int) {
	for row := 0; row < len(data); row += dumpColumns {
		end := row + dumpColumns
		if end > len(data) {
			end = len(data)
		}

		var hex, ascii strings.Builder
		for i := row; i < row+dumpColumns; i++ {
			if i-row == dumpColumns/2 {
				hex.WriteString(" ")
			}
			if i >= end {
				hex.WriteString("   ")
				continue
			}
			fmt.Fprintf(&hex, "%02x ", data[i])
			if data[i] >= 0x20 && data[i] < 0x7F {
				ascii.WriteByte(data[i])
			} else {
				ascii.WriteByte('.')
			}
		}

		fmt.Fprintf(w, "%s  %s |%-16s|\n",
			statsLabelStyle.Render(fmt.Sprintf("%03X", base+row)), hex.String(), ascii.String())
	}
}
