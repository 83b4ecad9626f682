// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/coro"
)

func TestSpawnRunsImmediately(t *testing.T) {
	ran := false
	task := coro.Spawn(func(*coro.Task) {
		ran = true
	})
	if !ran {
		t.Fatal("Spawn returned before the task ran")
	}
	if !task.Done() {
		t.Fatal("task should be done")
	}
}

func TestSuspendResumeValue(t *testing.T) {
	var events []any
	task := coro.Spawn(func(tk *coro.Task) {
		events = append(events, "suspending")
		v, err := tk.Suspend()
		if err != nil {
			t.Errorf("Suspend returned error %v", err)
		}
		events = append(events, v)
	})
	if len(events) != 1 || events[0] != "suspending" {
		t.Fatalf("events before resume = %v", events)
	}
	task.Resume(42)
	if len(events) != 2 || events[1] != 42 {
		t.Fatalf("events after resume = %v", events)
	}
	if !task.Done() {
		t.Fatal("task should be done after final resume")
	}
}

func TestResumeError(t *testing.T) {
	boom := errors.New("boom")
	var got error
	task := coro.Spawn(func(tk *coro.Task) {
		_, got = tk.Suspend()
	})
	task.ResumeError(boom)
	if !errors.Is(got, boom) {
		t.Fatalf("Suspend error = %v, want %v", got, boom)
	}
}

func TestResumeRunningTaskPanics(t *testing.T) {
	coro.Spawn(func(tk *coro.Task) {
		expectPanic(t, func() { tk.Resume(nil) })
	})
}

func TestResumeFinishedTaskPanics(t *testing.T) {
	task := coro.Spawn(func(*coro.Task) {})
	expectPanic(t, func() { task.Resume(nil) })
}

func TestNestedSpawn(t *testing.T) {
	// A running task may spawn and drive another task; control nests and
	// returns to the outer task when the inner one suspends.
	var order []string
	var inner *coro.Task
	coro.Spawn(func(outer *coro.Task) {
		order = append(order, "outer start")
		inner = coro.Spawn(func(in *coro.Task) {
			order = append(order, "inner start")
			in.Suspend()
			order = append(order, "inner end")
		})
		order = append(order, "outer end")
	})
	inner.Resume(nil)
	want := []string{"outer start", "inner start", "outer end", "inner end"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTaskPanicPropagatesToResumer(t *testing.T) {
	expectPanic(t, func() {
		coro.Spawn(func(*coro.Task) {
			panic("exploded")
		})
	})
}

func TestTaskPanicAfterSuspendPropagates(t *testing.T) {
	task := coro.Spawn(func(tk *coro.Task) {
		tk.Suspend()
		panic("later")
	})
	expectPanic(t, func() { task.Resume(nil) })
}
