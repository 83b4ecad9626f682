// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package coro lets connection-handling logic be written as straight-line,
// blocking-looking code on top of a non-blocking, event-driven loop.
//
// Each connection (and each [AsDeferred] call) gets its own [Task]: an
// independent sequential execution context that suspends at I/O boundaries
// and is resumed by loop callbacks, so handler code reads and writes as if
// I/O were synchronous.
//
// # Architecture
//
//   - Suspension: [Spawn] creates a Task and switches into it. [Task.Suspend]
//     parks the running task and hands control back; [Task.Resume] and
//     [Task.ResumeError] transfer control into a parked task. The resume
//     payload is a tagged result ([code.hybscloud.com/kont.Either]).
//   - Scheduling: strictly cooperative. Exactly one context runs at any
//     instant; switches happen only at suspension points (Read, Write,
//     Wait, BlockOn). State needs no locks because it is touched only by a
//     connection's own task and the driver delivering its callbacks.
//   - Connections: [Conn] is the per-connection bridge. Worker side: Read,
//     Write, Close. Driver side: Feed, Pause, Unpause, Lost. Backpressure
//     suspends Write until the transport drains; unread bytes are buffered
//     until the next Read.
//   - Futures: [Deferred] is a one-shot pending result. [BlockOn] suspends
//     until it fires (already-fired deferreds return without a switch);
//     [AsDeferred] runs a blocking-style function in a fresh task and
//     exposes its completion as a Deferred.
//   - Loop: [Loop] serializes driver callbacks and bridges timers
//     ([github.com/benbjohnson/clock]) into the cooperative world.
//     [ListenTCP] and [ConnectTCP] ride a transport adapter built on
//     [code.hybscloud.com/lfq] SPSC queues with [code.hybscloud.com/iox]
//     backoff at the full/empty boundaries.
//   - Framing: [LineBuffer] splits a [Stream] into delimiter-terminated
//     records (default CRLF) and writes records with the delimiter appended.
//
// # Errors
//
// A connection's terminal error is recorded once: [ErrConnectionDone] for a
// clean peer close, [ErrConnectionLost] (wrapped) for abnormal loss. A call
// suspended in Read or Write gets the error injected immediately; otherwise
// it surfaces on the next Read or Write. Misuse (resuming a task that is not
// suspended, BlockOn or ConnectTCP outside a running task, double-firing a
// Deferred) panics.
//
// # Example
//
//	loop := coro.NewLoop()
//	coro.ListenTCP(loop, ":1027", func(t *coro.Task, c *coro.Conn) error {
//		for {
//			p, err := c.Read()
//			if err != nil {
//				return nil
//			}
//			if err := c.Write(p); err != nil {
//				return nil
//			}
//		}
//	})
//	loop.Run()
package coro
