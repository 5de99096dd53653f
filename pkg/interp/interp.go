// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package interp implements the programmer's command interpreter: a
// table-driven state machine that reads requests one byte at a time, runs
// them on the programming engine and writes framed responses.
package interp

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/prom/pkg/chip"
	"github.com/Thermoquad/prom/pkg/engine"
	"github.com/Thermoquad/prom/pkg/promwire"
)

// Firmware version reported by V
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// Self-test numbers
const (
	TestBusSample  = 0
	TestChipEnable = 1
	TestSupply     = 2
)

// errMalformed marks a request that cannot be executed
var errMalformed = errors.New("malformed request")

// Interpreter serves one request stream. It is not safe for concurrent use.
type Interpreter struct {
	engine *engine.Engine
	logger zerolog.Logger
	after  func(Command)

	major, minor, patch int

	in    io.ByteReader
	out   io.Writer
	state State
	cmd   Command

	// lineDone is set once the newline ending the current request has
	// been consumed
	lineDone bool
	// held is a version request met while a field was expected; it
	// replaces the abandoned command
	held    byte
	holding bool
	// fault records the cause of the last error transition
	fault error
	// ioErr stops the loop; io.EOF ends it cleanly
	ioErr error
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(in *Interpreter) {
		in.logger = l
	}
}

// WithVersion overrides the reported firmware version.
func WithVersion(major, minor, patch int) Option {
	return func(in *Interpreter) {
		in.major, in.minor, in.patch = major, minor, patch
	}
}

// WithAfterCommand registers a hook called after every command that
// completed successfully.
func WithAfterCommand(fn func(Command)) Option {
	return func(in *Interpreter) {
		in.after = fn
	}
}

// New creates an interpreter on the given engine.
func New(e *engine.Engine, opts ...Option) *Interpreter {
	if e == nil {
		panic("engine cannot be nil")
	}
	in := &Interpreter{
		engine: e,
		logger: zerolog.Nop(),
		major:  VersionMajor,
		minor:  VersionMinor,
		patch:  VersionPatch,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run reads requests from r and writes responses to w until r is
// exhausted. It returns nil at end of input and the error otherwise.
func (in *Interpreter) Run(r io.Reader, w io.Writer) error {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	in.in = br
	in.out = w
	in.holding = false
	in.reset()

	for in.ioErr == nil {
		in.step()
	}
	if errors.Is(in.ioErr, io.EOF) {
		return nil
	}
	return in.ioErr
}

// State returns the current protocol state.
func (in *Interpreter) State() State {
	return in.state
}

// step runs one rule.
func (in *Interpreter) step() {
	r, ok := match(in.cmd.Op, in.state)
	if !ok {
		in.state = in.fail(fmt.Errorf("%w: no rule for %q in state %s", errMalformed, in.cmd.Op, in.state))
	} else {
		in.state = r.handle(in, r.next)
	}
	if in.ioErr != nil {
		return
	}

	switch in.state {
	case StateError:
		in.abort()
	case StateReady:
		if in.cmd.Op != 0 {
			in.logger.Debug().Stringer("command", in.cmd).Msg("command complete")
			if in.after != nil {
				in.after(in.cmd)
			}
		}
		in.reset()
	}
}

func (in *Interpreter) reset() {
	in.state = StateReady
	in.cmd = Command{}
	in.lineDone = false
	in.fault = nil
}

// fail records why the current command is being abandoned.
func (in *Interpreter) fail(err error) State {
	in.fault = err
	return StateError
}

// abort reports the error, drops the rest of the request and returns to
// ready. A version request found in the dropped bytes is still served, so
// a host can always resynchronize with a bare V.
func (in *Interpreter) abort() {
	in.logger.Warn().Err(in.fault).Str("state", "error").Msg("request rejected")
	if err := in.write(promwire.Error()); err != nil {
		return
	}
	for !in.lineDone {
		b, ok := in.next()
		if !ok {
			return
		}
		if b == promwire.CmdVersion {
			in.reset()
			in.cmd.Op = b
			in.state = StateExecuting
			return
		}
	}
	in.reset()
}

// stray marks a request as malformed by b. A V is held back so the error
// recovery can serve it.
func (in *Interpreter) stray(b byte, err error) error {
	if b == promwire.CmdVersion {
		in.held, in.holding = b, true
	}
	return err
}

// next reads one byte. Read failures end the loop.
func (in *Interpreter) next() (byte, bool) {
	if in.holding {
		in.holding = false
		return in.held, true
	}
	b, err := in.in.ReadByte()
	if err != nil {
		in.ioErr = err
		return 0, false
	}
	if b == promwire.RequestEnd {
		in.lineDone = true
	}
	return b, true
}

func (in *Interpreter) write(p []byte) error {
	if _, err := in.out.Write(p); err != nil {
		in.ioErr = fmt.Errorf("failed to write response: %w", err)
		return in.ioErr
	}
	return nil
}

// respond frames a successful response and finishes the command.
func (in *Interpreter) respond(next State, payload ...string) State {
	if err := in.write(promwire.OK(payload...)); err != nil {
		return StateError
	}
	return next
}

func isSpace(b byte) bool {
	return b == promwire.FieldSpacing || b == '\t' || b == '\r'
}

func hexDigit(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

// field reads one hex field. Leading blanks are skipped; a newline before
// the first digit means the field is missing. The field ends at a blank or
// at the newline, which is reported through lineDone.
func (in *Interpreter) field(limit uint32) (uint32, error) {
	var (
		b  byte
		ok bool
	)
	for {
		if b, ok = in.next(); !ok {
			return 0, io.ErrUnexpectedEOF
		}
		if !isSpace(b) {
			break
		}
	}
	if b == promwire.RequestEnd {
		return 0, fmt.Errorf("%w: missing field", errMalformed)
	}

	var v uint32
	for {
		d, isHex := hexDigit(b)
		if !isHex {
			return 0, in.stray(b, fmt.Errorf("%w: invalid character %q in field", errMalformed, b))
		}
		v = v<<4 | uint32(d)
		if v > limit {
			return 0, fmt.Errorf("%w: field exceeds 0x%X", errMalformed, limit)
		}

		if b, ok = in.next(); !ok {
			return 0, io.ErrUnexpectedEOF
		}
		if isSpace(b) || b == promwire.RequestEnd {
			return v, nil
		}
	}
}

// middleField reads a field that must be followed by another.
func (in *Interpreter) middleField(limit uint32) (uint32, error) {
	v, err := in.field(limit)
	if err != nil {
		return 0, err
	}
	if in.lineDone {
		return 0, fmt.Errorf("%w: request ended early", errMalformed)
	}
	return v, nil
}

// lastField reads the final field and everything up to the newline.
func (in *Interpreter) lastField(limit uint32) (uint32, error) {
	v, err := in.field(limit)
	if err != nil {
		return 0, err
	}
	for !in.lineDone {
		b, ok := in.next()
		if !ok {
			return 0, io.ErrUnexpectedEOF
		}
		if !isSpace(b) && b != promwire.RequestEnd {
			return 0, in.stray(b, fmt.Errorf("%w: unexpected %q after last field", errMalformed, b))
		}
	}
	return v, nil
}

// Field readers

func (in *Interpreter) readCommand(next State) State {
	for {
		b, ok := in.next()
		if !ok {
			return StateReady
		}
		if isSpace(b) || b == promwire.RequestEnd {
			in.lineDone = false
			continue
		}
		in.cmd.Op = b
		if b == promwire.CmdSelfTest {
			return StateWaitTestNumber
		}
		return next
	}
}

func (in *Interpreter) setChip(v uint32, err error, next State) State {
	if err != nil {
		return in.fail(err)
	}
	p, err := chip.ByIndex(int(v))
	if err != nil {
		return in.fail(fmt.Errorf("%w: %v", errMalformed, err))
	}
	in.cmd.Chip = p
	return next
}

func (in *Interpreter) readChip(next State) State {
	v, err := in.middleField(0xF)
	return in.setChip(v, err, next)
}

func (in *Interpreter) readLastChip(next State) State {
	v, err := in.lastField(0xF)
	return in.setChip(v, err, next)
}

func (in *Interpreter) setAddress(v uint32, err error, next State) State {
	if err != nil {
		return in.fail(err)
	}
	if !in.cmd.Chip.Contains(int(v)) {
		return in.fail(fmt.Errorf("%w: address 0x%X out of range for %s", errMalformed, v, in.cmd.Chip.Name()))
	}
	in.cmd.Address = uint16(v)
	return next
}

func (in *Interpreter) readAddress(next State) State {
	v, err := in.middleField(0xFFFF)
	return in.setAddress(v, err, next)
}

func (in *Interpreter) readLastAddress(next State) State {
	v, err := in.lastField(0xFFFF)
	return in.setAddress(v, err, next)
}

func (in *Interpreter) readValue(next State) State {
	v, err := in.lastField(0xFF)
	if err != nil {
		return in.fail(err)
	}
	in.cmd.Value = byte(v)
	return next
}

func (in *Interpreter) readTestNumber(next State) State {
	v, err := in.middleField(0xFF)
	if err != nil {
		return in.fail(err)
	}
	if v > TestSupply {
		return in.fail(fmt.Errorf("%w: unknown self-test %d", errMalformed, v))
	}
	in.cmd.Address = uint16(v)
	return next
}

func (in *Interpreter) readTestParam(next State) State {
	return in.readValue(next)
}

// Actions

func (in *Interpreter) execVersion(next State) State {
	return in.respond(next, promwire.VersionLine(in.major, in.minor, in.patch))
}

func (in *Interpreter) execReadAll(next State) State {
	data := in.engine.ReadAll(in.cmd.Chip)
	return in.respond(next, promwire.DumpLines(data)...)
}

func (in *Interpreter) execBlank(next State) State {
	stop := in.engine.BlankCheck(in.cmd.Chip)
	return in.respond(next, promwire.AddressLine(int(stop)))
}

func (in *Interpreter) execRead(next State) State {
	v, err := in.engine.ReadByte(in.cmd.Chip, in.cmd.Address)
	if err != nil {
		return in.fail(err)
	}
	return in.respond(next, promwire.ByteLine(v))
}

func (in *Interpreter) execProgram(next State) State {
	simulate := in.cmd.Op == promwire.CmdSimulate
	res, err := in.engine.Program(in.cmd.Chip, in.cmd.Address, in.cmd.Value, simulate)
	if err != nil {
		return in.fail(err)
	}
	ev := in.logger.Debug()
	if !res.Matches() {
		ev = in.logger.Warn()
	}
	ev.Bool("simulate", simulate).
		Str("chip", in.cmd.Chip.Name()).
		Stringer("result", res).
		Int("pulses", res.Pulses).
		Msg("program")
	return in.respond(next, promwire.ByteLine(res.Achieved))
}

func (in *Interpreter) execSelfTest(next State) State {
	var result byte
	switch in.cmd.Address {
	case TestBusSample:
		result = in.engine.SampleBus(in.cmd.Value)
	case TestChipEnable:
		in.engine.HoldChipEnable(in.cmd.Value != 0)
		result = in.cmd.Value
	case TestSupply:
		in.engine.CycleSupply()
	}
	return in.respond(next, promwire.ByteLine(result))
}
