// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================
// Stream Tests
// ============================================================

func TestStreamPollTimesOut(t *testing.T) {
	host, device := net.Pipe()
	defer device.Close()
	s := NewStream(host, "pipe")
	defer s.Close()

	buf := make([]byte, 16)
	start := time.Now()
	n, err := s.Poll(buf, 20*time.Millisecond)
	if err != nil || n != 0 {
		t.Fatalf("Poll = %d, %v; want 0, nil", n, err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Poll took %v", elapsed)
	}
}

func TestStreamDeliversInOrder(t *testing.T) {
	host, device := net.Pipe()
	defer device.Close()
	s := NewStream(host, "pipe")
	defer s.Close()

	go func() {
		device.Write([]byte("0A\r\n"))
		device.Write([]byte("R\r\n"))
	}()

	var got []byte
	buf := make([]byte, 3)
	for len(got) < 7 {
		n, err := s.Poll(buf, time.Second)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if n == 0 {
			t.Fatal("timed out waiting for data")
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "0A\r\nR\r\n" {
		t.Errorf("got %q", got)
	}
}

func TestStreamWrite(t *testing.T) {
	host, device := net.Pipe()
	s := NewStream(host, "pipe")
	defer s.Close()

	go s.Write([]byte("V"))
	buf := make([]byte, 4)
	device.SetReadDeadline(time.Now().Add(time.Second))
	n, err := device.Read(buf)
	if err != nil || string(buf[:n]) != "V" {
		t.Errorf("device read %q, %v", buf[:n], err)
	}
	device.Close()
}

func TestStreamReportsClosedPeer(t *testing.T) {
	host, device := net.Pipe()
	s := NewStream(host, "pipe")
	defer s.Close()
	device.Close()

	_, err := s.Poll(make([]byte, 4), time.Second)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Poll after peer close = %v, want ErrClosed", err)
	}
}

func TestStreamClose(t *testing.T) {
	host, device := net.Pipe()
	defer device.Close()
	s := NewStream(host, "pipe")

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := s.Write([]byte("V")); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after close = %v", err)
	}
}

// ============================================================
// WebSocket Tests
// ============================================================

func TestWebSocketRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		c := NewWebSocket(conn)
		buf := make([]byte, 16)
		n, err := c.Read(buf)
		if err != nil {
			return
		}
		c.Write([]byte(strings.ToUpper(string(buf[:n]))))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	s, err := DialWebSocket(WebSocketConfig{URL: url, Username: "user", Password: "secret"})
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	defer s.Close()

	if _, err := s.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 16)
	n, err := s.Poll(buf, 2*time.Second)
	if err != nil || string(buf[:n]) != "ABC" {
		t.Errorf("Poll = %q, %v", buf[:n], err)
	}
	if gotAuth := <-auth; !strings.HasPrefix(gotAuth, "Basic ") {
		t.Errorf("missing basic auth header, got %q", gotAuth)
	}
}

func TestDialWebSocketRejectsScheme(t *testing.T) {
	if _, err := DialWebSocket(WebSocketConfig{URL: "http://localhost/prom"}); err == nil {
		t.Error("expected scheme error")
	}
}

func TestWebSocketCloseSemantics(t *testing.T) {
	upgrader := websocket.Upgrader{}
	peerErr := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws := NewWebSocket(conn)
		defer ws.Close()
		_, err = ws.Read(make([]byte, 4))
		peerErr <- err
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	ws := NewWebSocket(conn)
	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// a clean close reaches the peer as end of stream
	select {
	case err := <-peerErr:
		if !errors.Is(err, io.EOF) {
			t.Errorf("peer read = %v, want io.EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer never saw the close")
	}

	if _, err := ws.Write([]byte("V")); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after close = %v, want ErrClosed", err)
	}
	if _, err := ws.Read(make([]byte, 4)); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after close = %v, want ErrClosed", err)
	}
}
