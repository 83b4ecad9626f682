// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"time"

	"code.hybscloud.com/atomix"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// eventBacklog is the capacity of the loop's event queue. Producers
// (transport reader/writer goroutines, timers, dialers) block when it is
// full, which backpressures them against a slow driver.
const eventBacklog = 128

// Loop is the driver context: it executes transport callbacks and timer
// actions one at a time, in submission order. Every bridge attached
// through one Loop shares its single-threaded discipline — a callback
// that switches into a task does not return until the task suspends, so
// exactly one context runs at any instant.
type Loop struct {
	clock  clock.Clock
	log    *zap.Logger
	events chan func()
	done   chan struct{}
	closed atomix.Uint32
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock used for AfterFunc timers. Tests pass
// clock.NewMock to drive time explicitly.
func WithClock(c clock.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithLogger sets the logger for accept, handler, and transport failures.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// NewLoop creates a Loop with the wall clock and a no-op logger.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		clock:  clock.New(),
		log:    zap.NewNop(),
		events: make(chan func(), eventBacklog),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit queues f for execution on the loop. Callable from any goroutine;
// after Shutdown the event is dropped.
func (l *Loop) Submit(f func()) {
	select {
	case l.events <- f:
	case <-l.done:
	}
}

// Run executes submitted events until Shutdown. It blocks; servers call
// it from main or a dedicated goroutine.
func (l *Loop) Run() {
	for {
		select {
		case f := <-l.events:
			f()
		case <-l.done:
			return
		}
	}
}

// Shutdown stops Run and causes further Submits to be dropped. Idempotent.
func (l *Loop) Shutdown() {
	if l.closed.CompareAndSwap(0, 1) {
		close(l.done)
	}
}

// AfterFunc schedules f to run on the loop after d, satisfying Scheduler.
// The timer fires on the clock's goroutine and only enqueues; f itself
// executes serialized with every other loop event.
func (l *Loop) AfterFunc(d time.Duration, f func()) *clock.Timer {
	return l.clock.AfterFunc(d, func() {
		l.Submit(f)
	})
}

// Clock returns the loop's clock.
func (l *Loop) Clock() clock.Clock {
	return l.clock
}
