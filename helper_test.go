// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro_test

import (
	"bytes"
	"testing"

	"code.hybscloud.com/coro"
)

// fakeTransport records writes and exposes the bound bridge, standing in
// for a real event-loop transport. The onWrite hook runs after recording,
// letting tests trigger backpressure from the write path the way a real
// transport does when its buffer fills.
type fakeTransport struct {
	conn    *coro.Conn
	writes  [][]byte
	closed  bool
	onWrite func(p []byte)
}

func (ft *fakeTransport) Bind(c *coro.Conn) {
	ft.conn = c
}

func (ft *fakeTransport) Write(p []byte) {
	ft.writes = append(ft.writes, append([]byte(nil), p...))
	if ft.onWrite != nil {
		ft.onWrite(p)
	}
}

func (ft *fakeTransport) Close() {
	ft.closed = true
}

// joined concatenates everything written so far.
func (ft *fakeTransport) joined() string {
	return string(bytes.Join(ft.writes, nil))
}

// pauseOn arms onWrite to pause the bridge when a chunk equal to trigger
// is written.
func (ft *fakeTransport) pauseOn(trigger string) {
	ft.onWrite = func(p []byte) {
		if string(p) == trigger {
			ft.conn.Pause()
		}
	}
}

// scriptStream is a Stream whose reads return a pre-set sequence of
// chunks, then ErrConnectionDone. Writes are collected.
type scriptStream struct {
	reads  [][]byte
	writes bytes.Buffer
}

func newScriptStream(reads ...string) *scriptStream {
	s := &scriptStream{}
	for _, r := range reads {
		s.reads = append(s.reads, []byte(r))
	}
	return s
}

func (s *scriptStream) Read() ([]byte, error) {
	if len(s.reads) == 0 {
		return nil, coro.ErrConnectionDone
	}
	p := s.reads[0]
	s.reads = s.reads[1:]
	return p, nil
}

func (s *scriptStream) Write(p []byte) error {
	s.writes.Write(p)
	return nil
}

// expectPanic fails the test unless fn panics.
func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic, got none")
		}
	}()
	fn()
}
