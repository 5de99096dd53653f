// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeGrace bounds the wait for the close frame to go out
const closeGrace = time.Second

// WebSocket carries the byte stream in binary messages. Message
// boundaries mean nothing to the protocol: a read may return part of a
// message, and text messages are dropped. It is an io.ReadWriteCloser for
// NewStream on the host side and for the emulator on the device side.
type WebSocket struct {
	conn    *websocket.Conn
	pending []byte

	done chan struct{}
	once sync.Once
}

// NewWebSocket wraps an established websocket.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn, done: make(chan struct{})}
}

func (ws *WebSocket) closed() bool {
	select {
	case <-ws.done:
		return true
	default:
		return false
	}
}

// Read returns buffered message bytes first. A clean close from the peer
// reads as io.EOF.
func (ws *WebSocket) Read(p []byte) (int, error) {
	for len(ws.pending) == 0 {
		if ws.closed() {
			return 0, ErrClosed
		}
		kind, msg, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if kind == websocket.BinaryMessage {
			ws.pending = msg
		}
	}

	n := copy(p, ws.pending)
	ws.pending = ws.pending[n:]
	return n, nil
}

// Write sends p as one binary message.
func (ws *WebSocket) Write(p []byte) (int, error) {
	if ws.closed() {
		return 0, ErrClosed
	}
	if err := ws.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close says goodbye to the peer and drops the connection.
func (ws *WebSocket) Close() error {
	err := ErrClosed
	ws.once.Do(func() {
		close(ws.done)
		bye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		ws.conn.WriteControl(websocket.CloseMessage, bye, time.Now().Add(closeGrace))
		err = ws.conn.Close()
	})
	return err
}

// WebSocketConfig describes a programmer reached through a websocket
// bridge.
type WebSocketConfig struct {
	// URL is a ws:// or wss:// endpoint
	URL string
	// Username and Password enable HTTP Basic auth when both are set
	Username string
	Password string
	// InsecureSkipVerify accepts any server certificate on wss://
	InsecureSkipVerify bool
	// Timeout bounds the opening handshake; zero means 15 seconds
	Timeout time.Duration
}

// DialWebSocket connects to the bridge and returns it as a Stream.
func DialWebSocket(cfg WebSocketConfig) (*Stream, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	}

	req := http.Request{Header: http.Header{}}
	if cfg.Username != "" && cfg.Password != "" {
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, u.String(), req.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (HTTP %d): %w", u.Redacted(), resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", u.Redacted(), err)
	}
	return NewStream(NewWebSocket(conn), "WebSocket: "+u.Redacted()), nil
}
