// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport moves raw bytes between the host and the programmer.
//
// Writes block until the bytes are handed to the link. Reads are polled:
// Poll waits at most the given time and returns zero bytes when nothing
// arrived, so callers can count idle polls against a retry budget.
package transport

import (
	"errors"
	"time"
)

// ErrClosed is returned after the link has been closed or lost.
var ErrClosed = errors.New("transport closed")

// Transport is a byte link to a programmer.
type Transport interface {
	// Write sends p in full or returns an error.
	Write(p []byte) (int, error)
	// Poll reads whatever is available, waiting at most wait. It returns
	// 0, nil on timeout.
	Poll(p []byte, wait time.Duration) (int, error)
	Close() error
	// String describes the link for log and status output.
	String() string
}
