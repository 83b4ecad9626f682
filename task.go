// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// Task states. Exactly one task (or the driver) runs at any instant;
// transitions are CAS-guarded so that misuse fails loudly instead of
// corrupting the handoff.
const (
	stateSuspended uint32 = iota
	stateRunning
	stateDone
)

// outcome is the tagged resumption payload: Left carries an error to be
// raised at the suspension point, Right carries the resume value.
type outcome = kont.Either[error, any]

// yieldStatus is what a task reports when it hands control back.
// pv carries a recovered panic value, re-raised in the resumer.
type yieldStatus struct {
	done bool
	pv   any
}

// Task is an independent sequential execution context: one per connection,
// plus one per AsDeferred call. A task runs on its own goroutine, but
// scheduling is strictly cooperative — control is handed off through an
// unbuffered channel pair, so the task and its resumer never run at the
// same time.
//
// At most one Suspend is outstanding per task. A task is resumed at most
// once per suspension; resuming a task that is not suspended panics.
type Task struct {
	state  atomix.Uint32
	resume chan outcome
	yield  chan yieldStatus
}

// Spawn creates a new task running fn and switches into it immediately.
// Spawn returns once fn suspends or returns. The caller must itself hold
// control (be the driver context or a running task).
func Spawn(fn func(*Task)) *Task {
	t := &Task{
		resume: make(chan outcome),
		yield:  make(chan yieldStatus),
	}
	go t.trampoline(fn)
	t.switchTo(kont.Right[error, any](nil))
	return t
}

// trampoline is the top-level frame of the task goroutine. It waits for
// the initial switch, runs fn, and reports completion to whichever
// context performed the final resume. A panic in fn is captured and
// re-raised in that resumer.
func (t *Task) trampoline(fn func(*Task)) {
	<-t.resume
	var pv any
	func() {
		defer func() { pv = recover() }()
		fn(t)
	}()
	t.state.Store(stateDone)
	t.yield <- yieldStatus{done: true, pv: pv}
}

// switchTo transfers control into the task, making its pending Suspend
// return the given outcome, and blocks until the task suspends again or
// finishes.
func (t *Task) switchTo(v outcome) {
	if !t.state.CompareAndSwap(stateSuspended, stateRunning) {
		panic("coro: resume of a task that is not suspended")
	}
	t.resume <- v
	y := <-t.yield
	if y.pv != nil {
		panic(y.pv)
	}
}

// Suspend hands control back to the context that last resumed this task
// and does not return until some context resumes it again. The returned
// pair is the resumption outcome: (value, nil) from Resume, (nil, err)
// from ResumeError. Must be called from the task's own goroutine.
func (t *Task) Suspend() (any, error) {
	if !t.state.CompareAndSwap(stateRunning, stateSuspended) {
		panic("coro: Suspend outside the running task")
	}
	t.yield <- yieldStatus{}
	out := <-t.resume
	if err, ok := out.GetLeft(); ok {
		return nil, err
	}
	v, _ := out.GetRight()
	return v, nil
}

// Resume transfers control into the suspended task, making its pending
// Suspend return v. Blocks until the task suspends again or finishes.
// Callable from the driver context or from another running task.
func (t *Task) Resume(v any) {
	t.switchTo(kont.Right[error, any](v))
}

// ResumeError transfers control into the suspended task, making its
// pending Suspend return the error. Blocks like Resume.
func (t *Task) ResumeError(err error) {
	t.switchTo(kont.Left[error, any](err))
}

// Done reports whether the task's function has returned.
func (t *Task) Done() bool {
	return t.state.Load() == stateDone
}

// requireRunning panics unless t is the currently running task. Suspending
// APIs call it first so that driver-context misuse fails fast instead of
// deadlocking the loop.
func (t *Task) requireRunning(op string) {
	if t == nil || t.state.Load() != stateRunning {
		panic("coro: " + op + " must be called from a running task, not the driver context")
	}
}
