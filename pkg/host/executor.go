// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package host drives a PROM programmer over a transport: it sends one
// wire command at a time, waits for the framed response within an idle
// poll budget and turns the answers into results or typed errors.
package host

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/prom/pkg/chip"
	"github.com/Thermoquad/prom/pkg/image"
	"github.com/Thermoquad/prom/pkg/promwire"
	"github.com/Thermoquad/prom/pkg/transport"
)

// Version is the programmer firmware version.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("V%02d.%02d.%02d", v.Major, v.Minor, v.Patch)
}

// Confirmer is asked before any fuse is burned. It returns true to go
// ahead.
type Confirmer func(p chip.Profile, img *image.Image) (bool, error)

// Executor runs operations against one programmer. It is not safe for
// concurrent use.
type Executor struct {
	link    transport.Transport
	config  Config
	decoder *promwire.Decoder
	stats   *Statistics
	buf     []byte
}

// New creates an executor on an open transport.
func New(link transport.Transport, opts ...Option) *Executor {
	if link == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Executor{
		link:    link,
		config:  cfg,
		decoder: promwire.NewDecoder(),
		stats:   NewStatistics(),
		buf:     make([]byte, 256),
	}
}

// Statistics returns the wire counters.
func (e *Executor) Statistics() *Statistics {
	return e.stats
}

// Handshake asks for the firmware version until a valid answer arrives.
// Each try waits a single poll. Stale bytes cannot be flushed from USB
// adapters, so anything that is not a version frame, including the error
// a half-received request earns, is skipped while reading the answer.
func (e *Executor) Handshake() (Version, error) {
	var lastErr error
	for try := 1; try <= e.config.HandshakeTries; try++ {
		e.stats.Handshakes++
		v, err := e.awaitVersion()
		if err != nil {
			if !isRetryable(err) {
				return Version{}, err
			}
			e.config.Logger.Debug().Err(err).Int("try", try).Msg("handshake attempt failed")
			lastErr = err
			continue
		}
		e.config.Logger.Info().Stringer("version", v).Str("link", e.link.String()).Msg("connected to programmer")
		return v, nil
	}
	return Version{}, fmt.Errorf("programmer not detected on %s: %w", e.link, lastErr)
}

// staleLimit bounds the bytes one handshake try will sift through
const staleLimit = promwire.MaxLineLength * promwire.MaxResponseLines

// awaitVersion sends one version request and scans the input for the
// first valid version frame.
func (e *Executor) awaitVersion() (Version, error) {
	req := promwire.VersionRequest()
	e.decoder.Reset()
	if err := e.send(req); err != nil {
		return Version{}, err
	}

	var skipped error
	for idle, received := 0, 0; idle < 1; {
		if received > staleLimit {
			return Version{}, e.protocolError(req, fmt.Errorf("no version among %d bytes", received))
		}
		n, err := e.link.Poll(e.buf, e.config.PollInterval)
		if err != nil {
			return Version{}, fmt.Errorf("failed to read response to %q: %w", name(req), err)
		}
		if n == 0 {
			idle++
			e.stats.IdlePolls++
			continue
		}
		e.stats.BytesReceived += uint64(n)
		received += n

		for chunk := e.buf[:n]; len(chunk) > 0; {
			resp, used, err := e.decoder.Decode(chunk)
			chunk = chunk[used:]
			if err != nil {
				skipped = err
				continue
			}
			if resp == nil {
				break
			}
			v, err := parseVersion(resp)
			if err != nil {
				skipped = err
				e.config.Logger.Debug().Err(err).Msg("skipping stale response")
				continue
			}
			return v, nil
		}
	}

	if skipped != nil {
		return Version{}, e.protocolError(req, skipped)
	}
	e.stats.Timeouts++
	return Version{}, &TimeoutError{Command: name(req), Polls: 1}
}

// Ping sends a single version request with the interactive budget and
// returns the answer and the round-trip time.
func (e *Executor) Ping() (Version, time.Duration, error) {
	began := time.Now()
	req := promwire.VersionRequest()
	resp, err := e.transact(req, e.config.CommandBudget)
	if err != nil {
		return Version{}, time.Since(began), err
	}
	v, err := parseVersion(resp)
	if err != nil {
		return Version{}, time.Since(began), e.protocolError(req, err)
	}
	return v, time.Since(began), nil
}

func parseVersion(resp *promwire.Response) (Version, error) {
	code, err := resp.Version()
	if err != nil {
		return Version{}, err
	}
	v := Version{}
	if n, err := fmt.Sscanf(code, "%2d%2d%2d", &v.Major, &v.Minor, &v.Patch); n != 3 {
		return Version{}, fmt.Errorf("invalid version code %q: %w", code, err)
	}
	return v, nil
}

func isRetryable(err error) bool {
	var te *TimeoutError
	var pe *ProtocolError
	return errors.As(err, &te) || errors.As(err, &pe)
}

// Blank runs a blank test and returns the address of the first non-zero
// cell, or the chip size when the chip is blank.
func (e *Executor) Blank(p chip.Profile) (int, error) {
	req := promwire.BlankRequest(p.Index())
	resp, err := e.transact(req, e.config.CommandBudget)
	if err != nil {
		return 0, err
	}
	stop, err := resp.Value()
	if err != nil || stop > p.Cells() {
		return 0, e.protocolError(req, fmt.Errorf("invalid blank address in %q", resp.Payload))
	}
	return stop, nil
}

// ReadByte reads one cell.
func (e *Executor) ReadByte(p chip.Profile, addr int) (byte, error) {
	if err := checkRange(p, addr); err != nil {
		return 0, err
	}
	return e.cellCommand(promwire.ReadRequest(p.Index(), uint16(addr)))
}

// ReadAll dumps the whole chip in one command.
func (e *Executor) ReadAll(p chip.Profile) ([]byte, error) {
	req := promwire.ReadAllRequest(p.Index())
	resp, err := e.transact(req, e.config.BulkBudget)
	if err != nil {
		return nil, err
	}
	data, err := resp.Dump()
	if err != nil {
		return nil, e.protocolError(req, err)
	}
	if len(data) != p.Cells() {
		return nil, e.protocolError(req, fmt.Errorf("dump has %d bytes, %s has %d", len(data), p.Name(), p.Cells()))
	}
	e.report(OpRead, p.Cells()-1, p.Cells(), p.Cells(), time.Now())
	return data, nil
}

// ReadRange reads count cells from start one at a time.
func (e *Executor) ReadRange(p chip.Profile, start, count int) ([]byte, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid read count %d", count)
	}
	if err := checkRange(p, start); err != nil {
		return nil, err
	}
	if err := checkRange(p, start+count-1); err != nil {
		return nil, err
	}

	began := time.Now()
	data := make([]byte, count)
	for i := range data {
		v, err := e.cellCommand(promwire.ReadRequest(p.Index(), uint16(start+i)))
		if err != nil {
			return nil, err
		}
		data[i] = v
		e.report(OpRead, start+i, i+1, count, began)
	}
	return data, nil
}

// Write burns the image into the chip after the confirmer agrees. The
// first cell that does not hold its target value afterwards aborts the
// run with a MismatchError.
func (e *Executor) Write(p chip.Profile, img *image.Image, confirm Confirmer) error {
	if err := checkImage(p, img); err != nil {
		return err
	}
	if confirm == nil {
		return ErrNotConfirmed
	}
	ok, err := confirm(p, img)
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	return e.program(p, img, promwire.CmdWrite, OpWrite)
}

// Simulate runs the write algorithm without burning anything and fails
// on the first cell the image could not be written to.
func (e *Executor) Simulate(p chip.Profile, img *image.Image) error {
	if err := checkImage(p, img); err != nil {
		return err
	}
	return e.program(p, img, promwire.CmdSimulate, OpSimulate)
}

// Verify compares the chip against the image.
func (e *Executor) Verify(p chip.Profile, img *image.Image) error {
	if err := checkImage(p, img); err != nil {
		return err
	}

	began := time.Now()
	done := 0
	total := img.Len()
	return img.Each(func(addr int, want byte) error {
		got, err := e.cellCommand(promwire.ReadRequest(p.Index(), uint16(addr)))
		if err != nil {
			return err
		}
		done++
		e.report(OpVerify, addr, done, total, began)
		if got != want {
			return &MismatchError{Op: OpVerify, Address: addr, Got: got, Want: want}
		}
		return nil
	})
}

func (e *Executor) program(p chip.Profile, img *image.Image, cmd byte, op string) error {
	began := time.Now()
	done := 0
	total := img.Len()
	return img.Each(func(addr int, want byte) error {
		got, err := e.cellCommand(promwire.ProgramRequest(cmd, p.Index(), uint16(addr), want))
		if err != nil {
			return err
		}
		done++
		e.report(op, addr, done, total, began)
		if got != want {
			e.config.Logger.Warn().
				Str("op", op).
				Int("address", addr).
				Uint8("got", got).
				Uint8("want", want).
				Msg("cell mismatch")
			return &MismatchError{Op: op, Address: addr, Got: got, Want: want}
		}
		return nil
	})
}

// cellCommand sends a request answered by a single byte.
func (e *Executor) cellCommand(req []byte) (byte, error) {
	resp, err := e.transact(req, e.config.CommandBudget)
	if err != nil {
		return 0, err
	}
	v, err := resp.Byte()
	if err != nil {
		return 0, e.protocolError(req, err)
	}
	return v, nil
}

// transact sends req and waits for one complete response. Every empty
// poll costs one unit of budget; any received byte restores it.
func (e *Executor) transact(req []byte, budget int) (*promwire.Response, error) {
	e.decoder.Reset()
	if err := e.send(req); err != nil {
		return nil, err
	}

	idle := 0
	for idle < budget {
		n, err := e.link.Poll(e.buf, e.config.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to read response to %q: %w", name(req), err)
		}
		if n == 0 {
			idle++
			e.stats.IdlePolls++
			continue
		}
		idle = 0
		e.stats.BytesReceived += uint64(n)

		resp, used, err := e.decoder.Decode(e.buf[:n])
		if err != nil {
			return nil, e.protocolError(req, err)
		}
		if resp == nil {
			continue
		}
		if used < n {
			e.config.Logger.Debug().Int("bytes", n-used).Msg("discarding trailing bytes")
		}
		if !resp.OK() {
			return nil, e.protocolError(req, errors.New("programmer reported error"))
		}
		return resp, nil
	}

	e.stats.Timeouts++
	return nil, &TimeoutError{Command: name(req), Polls: budget}
}

func (e *Executor) send(req []byte) error {
	if _, err := e.link.Write(req); err != nil {
		return fmt.Errorf("failed to send %q: %w", name(req), err)
	}
	e.stats.Commands++
	e.stats.BytesSent += uint64(len(req))
	e.config.Logger.Debug().Str("request", name(req)).Msg("sent")
	return nil
}

func (e *Executor) protocolError(req []byte, err error) error {
	e.stats.ProtocolErrors++
	return &ProtocolError{Command: name(req), Err: err}
}

func (e *Executor) report(op string, addr, done, total int, began time.Time) {
	if e.config.Progress == nil {
		return
	}
	e.config.Progress(Progress{
		Op:      op,
		Address: addr,
		Done:    done,
		Total:   total,
		Elapsed: time.Since(began),
	})
}

// name renders a request for messages
func name(req []byte) string {
	return strings.TrimSuffix(string(req), "\n")
}

func checkRange(p chip.Profile, addr int) error {
	if !p.Contains(addr) {
		return &RangeError{Address: addr, Last: p.Cells() - 1}
	}
	return nil
}

// checkImage rejects images that reach past the chip.
func checkImage(p chip.Profile, img *image.Image) error {
	if img == nil || len(img.Blocks) == 0 {
		return errors.New("image holds no data")
	}
	if err := img.Validate(); err != nil {
		return err
	}
	for _, b := range img.Blocks {
		if err := checkRange(p, b.Start); err != nil {
			return err
		}
		if err := checkRange(p, b.End()-1); err != nil {
			return err
		}
	}
	return nil
}
