// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Thermoquad/prom/pkg/chip"
	"github.com/Thermoquad/prom/pkg/host"
	"github.com/Thermoquad/prom/pkg/transport"
)

// passwordEnv is consulted before prompting for the bridge password
const passwordEnv = "PROM_PASSWORD"

// readPassword returns $PROM_PASSWORD when set. Otherwise it prompts on
// out and reads without echo from a terminal, or a plain line from
// anything else.
func readPassword(in *os.File, out io.Writer) (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprintf(out, "Password for %s: ", wsUsername)
	defer fmt.Fprintln(out)

	if fd := int(in.Fd()); term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// openLink is the connection used by every command
var openLink = OpenConnection

// OpenConnection opens either a serial or WebSocket link based on flags
func OpenConnection() (transport.Transport, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = readPassword(os.Stdin, os.Stderr)
			if err != nil {
				return nil, err
			}
		}
		return transport.DialWebSocket(transport.WebSocketConfig{
			URL:                wsURL,
			Username:           wsUsername,
			Password:           password,
			InsecureSkipVerify: wsNoSSLVerify,
		})
	}

	if portName != "" {
		return transport.OpenSerial(portName, baudRate)
	}

	return nil, fmt.Errorf("either --port or --url must be specified")
}

// selectedChip resolves the --chip flag
func selectedChip() (chip.Profile, error) {
	p, err := chip.ByIndex(chipIndex)
	if err != nil {
		return chip.Profile{}, fmt.Errorf("invalid chip number %d: use 0 (74S471) or 1 (74S472)", chipIndex)
	}
	return p, nil
}

// session is an open, handshaken programmer connection
type session struct {
	link     transport.Transport
	exec     *host.Executor
	progress *progressReporter
	version  host.Version
}

// connect opens the link, checks the programmer is there and wires the
// progress reporter into the executor.
func connect(title string) (*session, error) {
	link, err := openLink()
	if err != nil {
		return nil, err
	}

	progress := newProgressReporter(title, useTUI)
	exec := host.New(link,
		host.WithPollInterval(pollInterval),
		host.WithBudgets(retries, bulkRetries),
		host.WithHandshakeTries(handshakes),
		host.WithLogger(logger.With().Str("link", link.String()).Logger()),
		host.WithProgress(progress.Update),
	)

	v, err := exec.Handshake()
	if err != nil {
		link.Close()
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Connected to programmer on %s, firmware %s.\n", link, v)

	return &session{link: link, exec: exec, progress: progress, version: v}, nil
}

// Close finishes progress output, prints statistics if asked and closes
// the link.
func (s *session) Close() {
	s.progress.Finish()
	if showStats {
		fmt.Fprint(os.Stderr, s.exec.Statistics().String())
	}
	s.link.Close()
}
