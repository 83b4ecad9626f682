// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"errors"
	"fmt"
	"io"
	"net"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"go.uber.org/zap"
)

const (
	// outboundCapacity is the chunk capacity of a transport's outbound
	// SPSC queue. A full queue waits the producer past the boundary with
	// iox.Backoff; the byte-level high-water pause normally trips first.
	outboundCapacity = 64

	// highWater / lowWater bound the bytes accepted but not yet written.
	// Crossing highWater pauses the bridge; draining to lowWater unpauses.
	highWater = 64 << 10
	lowWater  = 16 << 10

	// readChunk is the transport read buffer size.
	readChunk = 32 << 10
)

// Backpressure gate states.
const (
	gateOpen uint32 = iota
	gatePaused
)

// tcpTransport adapts a net.Conn to the bridge's callback contract.
// The reader goroutine feeds inbound bytes and the terminal error through
// the loop; the writer goroutine drains the outbound queue. The queue is
// strictly SPSC: the producer is the connection's worker (the only
// context that ever writes), the consumer is the writer goroutine.
type tcpTransport struct {
	loop    *Loop
	nc      net.Conn
	bridge  *Conn
	out     lfq.SPSC[[]byte]
	queued  atomix.Int64
	gate    atomix.Uint32
	closing atomix.Uint32
}

func newTCPTransport(l *Loop, nc net.Conn) *tcpTransport {
	tr := &tcpTransport{loop: l, nc: nc}
	tr.out.Init(outboundCapacity)
	return tr
}

// Bind implements TransportBinder.
func (tr *tcpTransport) Bind(c *Conn) {
	tr.bridge = c
}

// run starts the reader and writer goroutines. Called after the bridge is
// attached, so the first Feed always has a task to deliver to.
func (tr *tcpTransport) run() {
	go tr.readLoop()
	go tr.writeLoop()
}

// Write queues p for the writer goroutine, waiting past a full queue with
// adaptive backoff. Crossing the high-water mark pauses the bridge, so
// the worker's next Write suspends until the queue drains. Called from
// the connection's worker context only.
func (tr *tcpTransport) Write(p []byte) {
	buf := append([]byte(nil), p...)
	var bo iox.Backoff
	for tr.out.Enqueue(&buf) != nil {
		bo.Wait()
	}
	if tr.queued.Add(int64(len(buf))) > highWater && tr.gate.CompareAndSwap(gateOpen, gatePaused) {
		tr.bridge.Pause()
	}
}

// Close requests teardown: the writer goroutine flushes the remaining
// queue, then closes the socket. Never blocks the calling context.
func (tr *tcpTransport) Close() {
	tr.closing.Store(1)
}

func (tr *tcpTransport) readLoop() {
	buf := make([]byte, readChunk)
	for {
		n, err := tr.nc.Read(buf)
		if n > 0 {
			p := append([]byte(nil), buf[:n]...)
			tr.loop.Submit(func() { tr.bridge.Feed(p) })
		}
		if err != nil {
			reason := ErrConnectionDone
			if !tr.cleanLoss(err) {
				reason = LostError(err)
			}
			tr.loop.Submit(func() { tr.bridge.Lost(reason) })
			// The read side is gone either way: initiate teardown so the
			// writer flushes the remaining queue and closes the socket
			// even when the handler never calls Close.
			tr.closing.Store(1)
			return
		}
	}
}

// cleanLoss reports whether a read error represents a clean close: peer
// EOF, or the socket torn down by a local Close.
func (tr *tcpTransport) cleanLoss(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || tr.closing.Load() == 1
}

func (tr *tcpTransport) writeLoop() {
	var bo iox.Backoff
	for {
		p, err := tr.out.Dequeue()
		if err != nil {
			if tr.closing.Load() == 1 {
				tr.nc.Close()
				return
			}
			bo.Wait()
			continue
		}
		bo.Reset()
		if _, werr := tr.nc.Write(p); werr != nil {
			tr.nc.Close()
			return
		}
		if tr.queued.Add(-int64(len(p))) <= lowWater && tr.gate.CompareAndSwap(gatePaused, gateOpen) {
			tr.loop.Submit(tr.unpause)
		}
	}
}

// unpause runs on the loop. It resumes a blocked Write if there is one;
// when the drain completed before the worker wrote again, only the flag
// is cleared.
func (tr *tcpTransport) unpause() {
	if tr.bridge.phase.Load() == phaseWriting {
		tr.bridge.Unpause()
		return
	}
	tr.bridge.paused = false
}

// ListenTCP listens on addr and runs handler in a fresh task per accepted
// connection. Handler errors other than the connection's own termination
// are logged; any handler error tears the transport down. The returned
// listener's Close stops accepting.
func ListenTCP(l *Loop, addr string, handler Handler) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go acceptLoop(l, ln, handler)
	return ln, nil
}

func acceptLoop(l *Loop, ln net.Listener, handler Handler) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.log.Warn("coro: accept failed", zap.Error(err))
			}
			return
		}
		tr := newTCPTransport(l, nc)
		l.Submit(func() {
			Attach(tr, guarded(l, handler))
			tr.run()
		})
	}
}

// guarded wraps a handler for the listen path: panics become errors, and
// failures that are not the connection's own termination are logged.
func guarded(l *Loop, h Handler) Handler {
	return func(t *Task, c *Conn) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("coro: handler panic: %v", r)
				l.log.Error("coro: connection handler panicked",
					zap.Uint32("conn", c.Serial()), zap.Any("panic", r))
			} else if err != nil && !errors.Is(err, ErrConnectionDone) && !errors.Is(err, ErrConnectionLost) {
				l.log.Error("coro: connection handler failed",
					zap.Uint32("conn", c.Serial()), zap.Error(err))
			}
		}()
		return h(t, c)
	}
}

// ConnectTCP dials addr, binds the calling task as the connection's
// worker, and blocks it until the connection is established. Must be
// called from a running task, never from the driver context — the driver
// cannot both wait and keep driving, so that misuse panics instead of
// hanging.
func ConnectTCP(t *Task, l *Loop, addr string) (*Conn, error) {
	t.requireRunning("ConnectTCP")
	d := NewDeferred[*Conn]()
	go func() {
		nc, err := net.Dial("tcp", addr)
		l.Submit(func() {
			if err != nil {
				d.Reject(err)
				return
			}
			tr := newTCPTransport(l, nc)
			c := AttachTask(tr, t)
			tr.run()
			d.Resolve(c)
		})
	}()
	return BlockOn(t, d)
}
