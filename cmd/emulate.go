// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/prom/pkg/bus"
	"github.com/Thermoquad/prom/pkg/engine"
	"github.com/Thermoquad/prom/pkg/interp"
	"github.com/Thermoquad/prom/pkg/promwire"
	"github.com/Thermoquad/prom/pkg/transport"
)

// emulatorPath is the websocket endpoint served by emulate --listen
const emulatorPath = "/prom"

var (
	emulateListen   string
	emulateState    string
	emulateRealTime bool
	emulatePulse    time.Duration
)

var emulateCmd = &cobra.Command{
	Use:   "emulate {--port DEV | --listen ADDR}",
	Short: "Run a simulated programmer",
	Long: `Run the programmer firmware against a simulated fuse array.

The emulator speaks the programmer protocol either on a serial port (use
one end of a null-modem or pty pair) or as a WebSocket endpoint at
` + emulatorPath + `. WebSocket sessions are served one at a time.

With --state the fuse map is loaded from a CBOR snapshot at start and saved
after every write, so burned cells survive restarts. Programming delays are
skipped unless --real-time is given; --pulse sets the burn pulse width
within the 10-50us datasheet window.

Examples:
  # Serial emulator on a pty pair made with socat
  prom emulate --port /tmp/ttyEMU --state chips.cbor

  # WebSocket emulator, then connect a client to it
  prom emulate --listen localhost:8080
  prom --url ws://localhost:8080/prom blank`,
	Args: cobra.NoArgs,
	RunE: runEmulate,
}

func init() {
	emulateCmd.Flags().StringVar(&emulateListen, "listen", "", "Serve WebSocket sessions on this address")
	emulateCmd.Flags().StringVar(&emulateState, "state", "", "CBOR file holding the simulated fuse map")
	emulateCmd.Flags().BoolVar(&emulateRealTime, "real-time", false, "Honour programming delays")
	emulateCmd.Flags().DurationVar(&emulatePulse, "pulse", engine.DefaultTiming.Pulse, "Programming pulse width")
	rootCmd.AddCommand(emulateCmd)
}

// emulator is a simulated programmer. Sessions are serialized because the
// interpreter and the fuse array are single-user.
type emulator struct {
	mu        sync.Mutex
	sim       *bus.Sim
	interp    *interp.Interpreter
	statePath string
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
}

func newEmulator(statePath string, timing engine.Timing, realTime bool, log zerolog.Logger) (*emulator, error) {
	sim := bus.NewSim()
	if statePath != "" {
		if err := sim.LoadFile(statePath); err != nil {
			return nil, err
		}
	}

	opts := []engine.Option{engine.WithTiming(timing)}
	if !realTime {
		opts = append(opts, engine.WithDelay(func(time.Duration) {}))
	}
	eng, err := engine.New(sim, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid programming timing: %w", err)
	}
	if realTime {
		t := eng.Timing()
		log.Info().
			Dur("settle", t.Settle).
			Dur("pulse", t.Pulse).
			Dur("cooldown", t.Cooldown).
			Msg("real-time programming delays")
	}

	e := &emulator{
		sim:       sim,
		statePath: statePath,
		logger:    log,
	}
	e.interp = interp.New(eng,
		interp.WithLogger(log),
		interp.WithAfterCommand(e.afterCommand),
	)
	return e, nil
}

// afterCommand persists the fuse map once a cell has been burned
func (e *emulator) afterCommand(c interp.Command) {
	e.logger.Debug().Stringer("command", c).Msg("executed")
	if c.Op != promwire.CmdWrite || e.statePath == "" {
		return
	}
	if err := e.sim.SaveFile(e.statePath); err != nil {
		e.logger.Error().Err(err).Str("path", e.statePath).Msg("failed to save fuse map")
	}
}

// serve runs one session to completion.
func (e *emulator) serve(rw io.ReadWriter) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interp.Run(rw, rw)
}

func (e *emulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}
	ws := transport.NewWebSocket(conn)
	defer ws.Close()

	e.logger.Info().Str("remote", r.RemoteAddr).Msg("session started")
	err = e.serve(ws)
	if err != nil && !websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		e.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("session failed")
		return
	}
	e.logger.Info().Str("remote", r.RemoteAddr).Msg("session ended")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	if (portName == "") == (emulateListen == "") {
		return fmt.Errorf("exactly one of --port or --listen must be specified")
	}
	if !debug {
		logger = logger.Level(zerolog.InfoLevel)
	}

	timing := engine.DefaultTiming
	timing.Pulse = emulatePulse
	emu, err := newEmulator(emulateState, timing, emulateRealTime, logger.With().Str("component", "emulator").Logger())
	if err != nil {
		return err
	}

	if emulateListen != "" {
		mux := http.NewServeMux()
		mux.Handle(emulatorPath, emu)
		fmt.Fprintf(os.Stderr, "Emulating programmer at ws://%s%s\n", emulateListen, emulatorPath)
		server := &http.Server{
			Addr:              emulateListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		return server.ListenAndServe()
	}

	port, err := transport.OpenSerialPort(portName, baudRate)
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Fprintf(os.Stderr, "Emulating programmer on %s @ %d baud\n", portName, baudRate)
	return emu.serve(port)
}
