// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"bytes"

	"code.hybscloud.com/atomix"
)

// I/O phases of a connection bridge. The phase is READING or WRITING only
// while the worker task is suspended inside the corresponding call.
const (
	phaseIdle uint32 = iota
	phaseReading
	phaseWriting
)

// Transport is the non-blocking write side of an established connection,
// supplied by the environment. Write must accept the bytes without
// blocking the calling context; Close requests teardown, eventually
// reported back through Lost.
type Transport interface {
	Write(p []byte)
	Close()
}

// TransportBinder is implemented by transports that need the bridge before
// the worker task starts — typically to signal backpressure from their
// write path. Attach and AttachTask hand the bridge to Bind first.
type TransportBinder interface {
	Bind(c *Conn)
}

// Handler is the per-connection application logic, run in the connection's
// own task. Returning an error tears the transport down.
type Handler func(t *Task, c *Conn) error

// Conn bridges one live connection between the event-driven loop and a
// blocking-style worker task.
//
// Worker side: Read, Write, Close. Driver side: Feed, Pause, Unpause,
// Lost, invoked by the transport adapter in the order the transport
// produced them. All state is owned by this bridge and touched only by
// its own task and its driver callbacks, so none of it is locked.
type Conn struct {
	serial    Serial
	transport Transport
	task      *Task
	phase     atomix.Uint32
	paused    bool
	inbound   bytes.Buffer
	reason    error
}

// Attach creates a bridge for an established transport, spawns the worker
// task running handler, and switches into it immediately. If handler
// returns an error the transport is closed. Must be called from the
// driver context.
func Attach(tr Transport, handler Handler) *Conn {
	c := newConn(tr)
	Spawn(func(t *Task) {
		c.task = t
		if err := handler(t, c); err != nil {
			tr.Close()
		}
	})
	return c
}

// AttachTask creates a bridge for an established transport bound to an
// existing task — the client path, where the dialing task itself becomes
// the connection's worker. No switch happens; the task is typically
// suspended in BlockOn waiting for this very bridge.
func AttachTask(tr Transport, t *Task) *Conn {
	c := newConn(tr)
	c.task = t
	return c
}

func newConn(tr Transport) *Conn {
	c := &Conn{serial: nextSerial(), transport: tr}
	if b, ok := tr.(TransportBinder); ok {
		b.Bind(c)
	}
	return c
}

// Serial returns the serial number assigned to this connection.
func (c *Conn) Serial() Serial {
	return c.serial
}

// Task returns the worker task bound to this connection, for use with
// Wait, BlockOn, and ConnectTCP from inside a handler.
func (c *Conn) Task() *Task {
	return c.task
}

// Read blocks until data is available, then returns it. If bytes arrived
// while the task was not reading, the entire pending buffer is drained
// and returned without suspending. Once the connection's terminal error
// is recorded, Read fails with it immediately.
func (c *Conn) Read() ([]byte, error) {
	if c.reason != nil {
		return nil, c.reason
	}
	if c.inbound.Len() > 0 {
		return c.drain(), nil
	}
	if !c.phase.CompareAndSwap(phaseIdle, phaseReading) {
		panic("coro: Read on a connection with an outstanding I/O suspension")
	}
	v, err := c.task.Suspend()
	c.phase.Store(phaseIdle)
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Write forwards p to the transport. If the transport has signaled
// backpressure, Write suspends until the pressure clears and only then
// forwards, so bytes accepted before the pause are never lost and new
// bytes go out only once the transport can take them. Once the terminal
// error is recorded, Write fails with it immediately.
func (c *Conn) Write(p []byte) error {
	if c.reason != nil {
		return c.reason
	}
	if c.paused {
		if !c.phase.CompareAndSwap(phaseIdle, phaseWriting) {
			panic("coro: Write on a connection with an outstanding I/O suspension")
		}
		_, err := c.task.Suspend()
		c.phase.Store(phaseIdle)
		if err != nil {
			return err
		}
	}
	c.transport.Write(p)
	return nil
}

// Close requests transport teardown. It does not suspend or wait for the
// teardown to complete; the eventual Lost callback records the terminal
// error.
func (c *Conn) Close() {
	c.transport.Close()
}

// Feed delivers bytes received from the transport. If the task is
// suspended in Read, it is resumed with the bytes at once; otherwise they
// are appended to the pending buffer for a future Read to drain. Driver
// side.
func (c *Conn) Feed(p []byte) {
	if c.reason != nil {
		return
	}
	reading := c.phase.Load() == phaseReading
	if reading && c.inbound.Len() == 0 {
		c.task.Resume(p)
		return
	}
	c.inbound.Write(p)
	if reading {
		c.task.Resume(c.drain())
	}
}

// Pause marks the transport's outbound buffer as over its high-water
// mark; the next Write suspends until Unpause. Driver side.
func (c *Conn) Pause() {
	c.paused = true
}

// Unpause clears the backpressure flag and resumes the blocked Write.
// The bridge must be in the WRITING phase: clearing pressure with no
// writer suspended is a protocol violation. Driver side.
func (c *Conn) Unpause() {
	if c.phase.Load() != phaseWriting {
		panic("coro: Unpause with no blocked Write")
	}
	if !c.paused {
		panic("coro: Unpause of a connection that is not paused")
	}
	c.paused = false
	c.task.Resume(nil)
}

// Lost records the connection's terminal error — ErrConnectionDone for a
// clean peer close, ErrConnectionLost (wrapped) for abnormal loss. The
// first error wins. If the task is suspended in Read or Write the error
// is injected into it immediately; a task suspended for any other reason
// (Wait, BlockOn) is left alone and sees the error on its next I/O call.
// Driver side.
func (c *Conn) Lost(reason error) {
	if c.reason != nil {
		return
	}
	c.reason = reason
	if p := c.phase.Load(); p == phaseReading || p == phaseWriting {
		c.task.ResumeError(reason)
	}
}

// drain takes and clears the entire pending buffer.
func (c *Conn) drain() []byte {
	p := append([]byte(nil), c.inbound.Bytes()...)
	c.inbound.Reset()
	return p
}
