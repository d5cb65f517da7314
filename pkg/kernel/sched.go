// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import (
	"runtime"

	"github.com/talismancer/minos/pkg/platform"
)

// block transitions the caller to Blocked and yields the CPU. The thread
// will not run again until unblocked.
//
// Preconditions: interrupts are off; not in interrupt context; the
// caller has arranged to be woken.
func (k *Kernel) block() {
	if k.intr.InHandler() {
		panic("kernel: block from interrupt context")
	}
	if k.intr.Level() != platform.IntrOff {
		panic("kernel: block with interrupts enabled")
	}
	k.doSchedule(Blocked)
}

// unblock makes a Blocked thread Ready. It never preempts; callers that
// want preemption follow up with preempt, so a caller that disabled
// interrupts can unblock a thread and update other state atomically.
func (k *Kernel) unblock(t *Thread) {
	if t == nil || t.magic != threadMagic {
		panic("kernel: unblocking a corrupted thread")
	}
	g := k.critical()
	if t.status != Blocked {
		k.panicf("unblocking thread %q in state %v", t.name, t.status)
	}
	t.status = Ready
	k.ready.push(t)
	g.exit()
}

// ThreadYield gives up the CPU. The caller stays runnable and may be
// scheduled again immediately.
func (k *Kernel) ThreadYield() {
	if k.intr.InHandler() {
		panic("kernel: yield from interrupt context")
	}
	g := k.critical()
	if k.current != k.idleThread {
		k.ready.push(k.current)
	}
	k.doSchedule(Ready)
	g.exit()
}

// preempt yields if a strictly higher-priority thread is ready. In
// interrupt context the yield is deferred to interrupt return. The
// interrupt level is restored on every exit path.
func (k *Kernel) preempt() {
	g := k.critical()
	defer g.exit()

	front, ok := k.ready.peek()
	if !ok {
		return
	}
	if front.effPriority > k.current.effPriority {
		if k.intr.InHandler() {
			k.yieldOnReturn = true
		} else {
			k.ThreadYield()
		}
	}
}

// ThreadExit terminates the current thread. Its user process, if any, is
// torn down first. Never returns.
func (k *Kernel) ThreadExit() {
	if k.intr.InHandler() {
		panic("kernel: thread exit from interrupt context")
	}
	k.processExit()
	k.intr.Disable()
	k.doSchedule(Dying)
	panic("kernel: schedule returned to a dying thread")
}

// doSchedule records the caller's new state and dispatches another
// thread.
//
// Preconditions: interrupts are off; the caller is Running.
func (k *Kernel) doSchedule(status Status) {
	if k.intr.Level() != platform.IntrOff {
		panic("kernel: schedule with interrupts enabled")
	}
	if k.current.status != Running {
		k.panicf("schedule from thread %q in state %v", k.current.name, k.current.status)
	}
	k.current.status = status
	k.schedule()
}

// nextThreadToRun pops the highest-priority ready thread, or the idle
// thread when nothing is ready.
func (k *Kernel) nextThreadToRun() *Thread {
	if t, ok := k.ready.pop(); ok {
		return t
	}
	return k.idleThread
}

// schedule picks the next thread and switches to it. A dying caller is
// queued for destruction; its thread object is reclaimed by the next
// thread's first act on the CPU, never by itself.
func (k *Kernel) schedule() {
	prev := k.current
	next := k.nextThreadToRun()
	if next == nil || next.magic != threadMagic {
		panic("kernel: next thread corrupted")
	}

	next.status = Running
	k.timer.sliceTicks = 0
	k.current = next
	if next.as != nil {
		next.as.Activate()
	}

	if prev != next {
		if prev.status == Dying && prev != k.initial {
			k.destruction = append(k.destruction, prev)
		}
		k.switchTo(prev, next)
	}
}

// switchTo hands the CPU baton to next and parks the caller. For a dying
// thread the goroutine ends instead; its stack is never resumed.
func (k *Kernel) switchTo(prev, next *Thread) {
	dying := prev.status == Dying
	next.gate <- struct{}{}
	if dying {
		// Nothing on this stack may touch kernel state past the
		// handoff; the CPU belongs to next.
		runtime.Goexit()
	}
	<-prev.gate
	k.reap()
}

// reap drops threads queued for destruction. Runs with interrupts off as
// the incoming thread's first act after a switch.
func (k *Kernel) reap() {
	for _, t := range k.destruction {
		t.magic = 0
		t.readyEnt = nil
		t.sleepEnt = nil
		t.donors = nil
	}
	k.destruction = nil
}
