// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler schedules a one-shot delayed callback. Satisfied by
// [clock.Clock] (including the mock clock) and by [*Loop], which delivers
// the callback serialized on the loop. The callback must be delivered in
// a context that may resume tasks — the driver or another running task.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) *clock.Timer
}

// Wait suspends the running task until d has elapsed on the scheduler,
// then returns. Must be called from a running task.
func Wait(t *Task, d time.Duration, s Scheduler) {
	t.requireRunning("Wait")
	s.AfterFunc(d, func() {
		t.Resume(nil)
	})
	t.Suspend()
}
