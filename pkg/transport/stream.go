// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Stream adapts a blocking io.ReadWriteCloser to a Transport. One
// goroutine reads the underlying connection and hands chunks over a
// channel, so Poll can give up after the wait without disturbing the
// connection.
type Stream struct {
	rwc  io.ReadWriteCloser
	name string

	chunks  chan []byte
	done    chan struct{}
	pending []byte

	mu      sync.Mutex
	readErr error
	once    sync.Once
}

// NewStream starts the reader goroutine on rwc.
func NewStream(rwc io.ReadWriteCloser, name string) *Stream {
	s := &Stream{
		rwc:    rwc,
		name:   name,
		chunks: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.chunks)
	buf := make([]byte, 512)
	for {
		n, err := s.rwc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}
	}
}

func (s *Stream) Write(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, ErrClosed
	default:
	}
	n, err := s.rwc.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write to %s: %w", s.name, err)
	}
	return n, nil
}

func (s *Stream) Poll(p []byte, wait time.Duration) (int, error) {
	if len(s.pending) == 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return 0, s.closedErr()
			}
			s.pending = chunk
		case <-timer.C:
			return 0, nil
		case <-s.done:
			return 0, ErrClosed
		}
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Stream) closedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr == nil || s.readErr == io.EOF {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, s.readErr)
}

func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.rwc.Close()
	})
	return err
}

func (s *Stream) String() string {
	return s.name
}
