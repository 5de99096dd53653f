// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package interp

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/prom/pkg/bus"
	"github.com/Thermoquad/prom/pkg/chip"
	"github.com/Thermoquad/prom/pkg/engine"
	"github.com/Thermoquad/prom/pkg/promwire"
)

func newTestInterpreter(t *testing.T, opts ...Option) (*Interpreter, *bus.Sim) {
	t.Helper()
	sim := bus.NewSim()
	e, err := engine.New(sim, engine.WithDelay(func(time.Duration) {}))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return New(e, opts...), sim
}

// session runs the interpreter over input and returns everything it wrote
func session(t *testing.T, in *Interpreter, input string) string {
	t.Helper()
	var out bytes.Buffer
	if err := in.Run(strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if in.State() != StateReady {
		t.Errorf("interpreter left in state %s", in.State())
	}
	return out.String()
}

// ============================================================
// Command Tests
// ============================================================

func TestCommands(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"version", "V", "V010000\r\nR\r\n"},
		{"version with newline", "V\n", "V010000\r\nR\r\n"},
		{"read blank cell", "r 0 10\n", "00\r\nR\r\n"},
		{"read upper half of 74S472", "r 1 1ff\n", "00\r\nR\r\n"},
		{"blank 74S471", "K 0\n", "100\r\nR\r\n"},
		{"blank 74S472", "K 1\n", "200\r\nR\r\n"},
		{"write", "w 0 5 a5\n", "A5\r\nR\r\n"},
		{"simulate", "s 1 100 3c\n", "3C\r\nR\r\n"},
		{"uppercase hex", "w 1 1A0 FF\n", "FF\r\nR\r\n"},
		{"extra blanks", "  r\t0   7f \r\n", "00\r\nR\r\n"},
		{"self-test chip enable", "T 1 1\n", "01\r\nR\r\n"},
		{"self-test supply", "T 2 0\n", "00\r\nR\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := newTestInterpreter(t)
			if got := session(t, in, tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteBurnsChip(t *testing.T) {
	in, sim := newTestInterpreter(t)
	out := session(t, in, "w 1 1ff 81\nr 1 1ff\nK 1\n")
	want := "81\r\nR\r\n" + "81\r\nR\r\n" + "1FF\r\nR\r\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
	if got := sim.Contents(chip.S472)[0x1FF]; got != 0x81 {
		t.Errorf("cell holds 0x%02X, want 0x81", got)
	}
}

func TestSimulateLeavesChip(t *testing.T) {
	in, sim := newTestInterpreter(t)
	session(t, in, "s 0 0 ff\n")
	if sim.Pulses() != 0 || sim.Contents(chip.S471)[0] != 0 {
		t.Error("simulate changed the chip")
	}
}

func TestWriteReportsAchieved(t *testing.T) {
	in, sim := newTestInterpreter(t)
	data := make([]byte, chip.S471.Cells())
	data[0x20] = 0x02
	sim.Load(chip.S471, data)

	// bit 1 is already blown so 0x01 cannot be reached
	if got := session(t, in, "w 0 20 1\n"); got != "03\r\nR\r\n" {
		t.Errorf("got %q, want achieved 03", got)
	}
}

func TestReadAllDump(t *testing.T) {
	in, sim := newTestInterpreter(t)
	data := make([]byte, chip.S471.Cells())
	for i := range data {
		data[i] = byte(255 - i)
	}
	sim.Load(chip.S471, data)

	out := session(t, in, "R 0\n")
	resp, n, err := promwire.NewDecoder().Decode([]byte(out))
	if err != nil || resp == nil || n != len(out) {
		t.Fatalf("decode dump: resp=%v n=%d err=%v", resp, n, err)
	}
	if len(resp.Payload) != 256/promwire.DumpBytesPerLine+1 {
		t.Errorf("dump has %d payload lines", len(resp.Payload))
	}
	got, err := resp.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("dump differs from chip contents")
	}
}

func TestSelfTestBusSample(t *testing.T) {
	in, sim := newTestInterpreter(t)
	data := make([]byte, chip.S471.Cells())
	data[0x55] = 0xAA
	sim.Load(chip.S471, data)

	if got := session(t, in, "T 0 55\n"); got != "AA\r\nR\r\n" {
		t.Errorf("got %q", got)
	}
	if sim.Supply() != bus.SupplyOff {
		t.Error("bus sample left the socket powered")
	}
}

// ============================================================
// Error Recovery Tests
// ============================================================

func TestMalformedRequests(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown command", "x 0\n"},
		{"bad chip", "K 2\n"},
		{"chip not a digit", "K z\n"},
		{"address out of range 74S471", "r 0 100\n"},
		{"address out of range 74S472", "r 1 200\n"},
		{"non-hex address", "r 0 1g\n"},
		{"value too large", "w 0 0 100\n"},
		{"newline before value", "w 0 0\n"},
		{"newline before address", "r 0\n"},
		{"missing chip", "R\n"},
		{"extra field", "K 0 1\n"},
		{"unknown self-test", "T 3 0\n"},
		{"runaway field", "r 0 ffffffff\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, sim := newTestInterpreter(t)
			// a valid request must still work afterwards
			out := session(t, in, tt.input+"V")
			if want := "E\r\nV010000\r\nR\r\n"; out != want {
				t.Errorf("got %q, want %q", out, want)
			}
			if sim.Pulses() != 0 {
				t.Error("malformed request burned fuses")
			}
		})
	}
}

// runWithin is session for inputs that once made the loop spin: it fails
// instead of hanging when Run does not return.
func runWithin(t *testing.T, in *Interpreter, input string) string {
	t.Helper()
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- in.Run(strings.NewReader(input), &out)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run(%q) did not return", input)
	}
	return out.String()
}

func TestNoiseBeforeVersion(t *testing.T) {
	version := "V010000\r\nR\r\n"
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unknown command line", "x 0\nV", "E\r\n" + version},
		{"unknown byte without newline", "\xffV", "E\r\n" + version},
		{"NUL byte", "\x00V", "E\r\n" + version},
		{"unknown byte then several versions", "\xffVVV", "E\r\n" + version + version + version},
		{"stray read", "rV", "E\r\n" + version},
		{"stray write with chip", "w 1V", "E\r\n" + version},
		{"read without newline", "r 0 1V", "E\r\n" + version},
		{"junk after last field", "K 0 zV", "E\r\n" + version},
		{"newline ends stray command", "r\nV", "E\r\n" + version},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, sim := newTestInterpreter(t)
			if got := runWithin(t, in, tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if in.State() != StateReady {
				t.Errorf("interpreter left in state %s", in.State())
			}
			if sim.Pulses() != 0 {
				t.Error("noise burned fuses")
			}
		})
	}
}

func TestUnknownCommandAtEndOfInput(t *testing.T) {
	in, _ := newTestInterpreter(t)
	if got := runWithin(t, in, "x"); got != "E\r\n" {
		t.Errorf("got %q, want a single error", got)
	}
}

func TestErrorDiscardsPartialCommand(t *testing.T) {
	in, sim := newTestInterpreter(t)
	out := session(t, in, "w 0 1 zz\nr 0 1\n")
	if want := "E\r\n00\r\nR\r\n"; out != want {
		t.Errorf("got %q, want %q", out, want)
	}
	if sim.Contents(chip.S471)[1] != 0 {
		t.Error("failed write reached the chip")
	}
}

func TestTruncatedInputEndsCleanly(t *testing.T) {
	in, _ := newTestInterpreter(t)
	var out bytes.Buffer
	if err := in.Run(strings.NewReader("w 0 1"), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("link down")
}

func TestWriteFailureStopsRun(t *testing.T) {
	in, _ := newTestInterpreter(t)
	if err := in.Run(strings.NewReader("V"), failingWriter{}); err == nil {
		t.Error("expected write error")
	}
}

// ============================================================
// Option Tests
// ============================================================

func TestOptions(t *testing.T) {
	var done []Command
	in, _ := newTestInterpreter(t,
		WithVersion(2, 10, 3),
		WithAfterCommand(func(c Command) { done = append(done, c) }),
	)

	out := session(t, in, "V w 1 2 3\nr 0 zz\n")
	if want := "V021003\r\nR\r\n03\r\nR\r\nE\r\n"; out != want {
		t.Errorf("got %q, want %q", out, want)
	}
	if len(done) != 2 {
		t.Fatalf("hook called %d times, want 2", len(done))
	}
	w := done[1]
	if w.Op != promwire.CmdWrite || w.Chip.Index() != chip.S472.Index() || w.Address != 2 || w.Value != 3 {
		t.Errorf("hook saw %s", w)
	}
}

func TestRuleTable(t *testing.T) {
	// every command has a rule to leave the executing state
	for _, op := range []byte("RKrwsT") {
		if _, ok := match(op, StateExecuting); !ok {
			t.Errorf("no executing rule for %q", op)
		}
	}
	if _, ok := match(promwire.CmdVersion, StateWaitValue); !ok {
		t.Error("version rule should match in any state")
	}
	if _, ok := match('x', StateWaitChip); ok {
		t.Error("unknown command matched a rule")
	}
}
