// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"fmt"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// Deferred firing states.
const (
	deferredPending uint32 = iota
	deferredResolved
	deferredRejected
)

// Deferred is a pending asynchronous result with exactly one eventual
// outcome: a success value or an error, delivered at most once. Callbacks
// registered after the outcome is known fire synchronously.
//
// A Deferred may be fired from any context that holds control (the driver
// or a running task); firing it twice panics.
type Deferred[T any] struct {
	fired   atomix.Uint32
	result  kont.Either[error, T]
	onValue []func(T)
	onError []func(error)
}

// NewDeferred creates an unfired Deferred.
func NewDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{}
}

// Resolve fires the Deferred with a success value, invoking registered
// success callbacks synchronously. Panics if already fired.
func (d *Deferred[T]) Resolve(v T) {
	if !d.fired.CompareAndSwap(deferredPending, deferredResolved) {
		panic("coro: deferred already fired")
	}
	d.result = kont.Right[error, T](v)
	cbs := d.onValue
	d.onValue, d.onError = nil, nil
	for _, cb := range cbs {
		cb(v)
	}
}

// Reject fires the Deferred with an error, invoking registered error
// callbacks synchronously. Panics if already fired.
func (d *Deferred[T]) Reject(err error) {
	if !d.fired.CompareAndSwap(deferredPending, deferredRejected) {
		panic("coro: deferred already fired")
	}
	d.result = kont.Left[error, T](err)
	cbs := d.onError
	d.onValue, d.onError = nil, nil
	for _, cb := range cbs {
		cb(err)
	}
}

// AddCallbacks registers a success and an error callback. If the Deferred
// has already fired, the matching callback runs before AddCallbacks
// returns; otherwise both are retained until Resolve or Reject.
func (d *Deferred[T]) AddCallbacks(onValue func(T), onError func(error)) {
	switch d.fired.Load() {
	case deferredResolved:
		v, _ := d.result.GetRight()
		onValue(v)
	case deferredRejected:
		err, _ := d.result.GetLeft()
		onError(err)
	default:
		d.onValue = append(d.onValue, onValue)
		d.onError = append(d.onError, onError)
	}
}

// BlockOn suspends the running task until the Deferred fires, then returns
// its value or error. An already-fired Deferred returns synchronously,
// without any context switch.
//
// Must be called from a running task, never from the driver context:
// the driver has nothing left to drive the loop while it waits, so that
// misuse panics instead of deadlocking.
func BlockOn[T any](t *Task, d *Deferred[T]) (T, error) {
	t.requireRunning("BlockOn")
	var (
		sync     kont.Either[error, T]
		haveSync bool
		waiting  bool
	)
	// The callbacks run either synchronously during AddCallbacks (result
	// already known, captured into the local slot) or later from whichever
	// context fires the Deferred (resuming this task). The waiting flag
	// distinguishes the two; no race, since control is held until Suspend.
	d.AddCallbacks(func(v T) {
		if waiting {
			t.Resume(v)
			return
		}
		sync = kont.Right[error, T](v)
		haveSync = true
	}, func(err error) {
		if waiting {
			t.ResumeError(err)
			return
		}
		sync = kont.Left[error, T](err)
		haveSync = true
	})
	if haveSync {
		if err, ok := sync.GetLeft(); ok {
			var zero T
			return zero, err
		}
		v, _ := sync.GetRight()
		return v, nil
	}
	waiting = true
	v, err := t.Suspend()
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// AsDeferred wraps a blocking-style function into one that returns a
// Deferred immediately. Each call spawns a fresh task running fn and
// switches into it at once, so any suspension inside fn takes effect
// before the wrapper returns; if fn never suspends, the Deferred has
// already fired by then. A return value resolves the Deferred, an error
// or a panic rejects it.
func AsDeferred[T any](fn func(*Task) (T, error)) func() *Deferred[T] {
	return func() *Deferred[T] {
		d := NewDeferred[T]()
		Spawn(func(t *Task) {
			defer func() {
				if r := recover(); r != nil {
					d.Reject(fmt.Errorf("coro: task panic: %v", r))
				}
			}()
			v, err := fn(t)
			if err != nil {
				d.Reject(err)
				return
			}
			d.Resolve(v)
		})
		return d
	}
}
