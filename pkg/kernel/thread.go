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
	"github.com/talismancer/minos/pkg/karch"
	"github.com/talismancer/minos/pkg/platform"
)

// Thread priorities.
const (
	PriMin     = 0
	PriDefault = 31
	PriMax     = 63
)

// threadMagic detects a corrupted thread object, the moral equivalent of
// the stack-overflow sentinel at the bottom of a thread's page.
const threadMagic = 0xcd6abf4b

// nameMax is the longest thread name kept.
const nameMax = 15

// Status is a thread's lifecycle state.
type Status int

// Thread states.
const (
	Running Status = iota
	Ready
	Blocked
	Dying
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	case Dying:
		return "dying"
	}
	return "unknown"
}

// Thread is one kernel thread, possibly carrying a user process.
type Thread struct {
	tid    int
	name   string
	status Status

	// basePriority is set by the owner; effPriority folds in
	// donations and is what the scheduler dispatches on.
	basePriority int
	effPriority  int

	// waitingLock is the lock this thread is blocked on, if any. The
	// thread then appears in the holder's donors.
	waitingLock *Lock
	donors      []*Thread

	sleepUntil int64

	exitStatus int
	children   []*ChildInfo
	selfInfo   *ChildInfo

	// User-process state.
	as       platform.AddressSpace
	fdTable  [FDMax]platform.File
	execFile platform.File
	program  string
	frame    karch.Frame

	// Scheduler plumbing. gate is the dispatch baton; the goroutine
	// parks on it whenever the thread does not own the CPU.
	fn       func()
	gate     chan struct{}
	readyEnt *readyEntry
	sleepEnt *sleepEntry

	magic uint32
}

// TID returns the thread identifier.
func (t *Thread) TID() int {
	return t.tid
}

// Name returns the thread name.
func (t *Thread) Name() string {
	return t.name
}

// Status returns the thread's lifecycle state.
func (t *Thread) Status() Status {
	return t.status
}

// BasePriority returns the priority set by the owner.
func (t *Thread) BasePriority() int {
	return t.basePriority
}

// EffectivePriority returns the priority the scheduler uses, including
// donations.
func (t *Thread) EffectivePriority() int {
	return t.effPriority
}

// ExitStatus returns the thread's recorded exit status.
func (t *Thread) ExitStatus() int {
	return t.exitStatus
}

func (k *Kernel) newThread(name string, priority int) *Thread {
	if priority < PriMin || priority > PriMax {
		k.panicf("thread priority %d out of range", priority)
	}
	t := &Thread{
		status:       Blocked,
		name:         threadName(name),
		basePriority: priority,
		effPriority:  priority,
		gate:         make(chan struct{}, 1),
		magic:        threadMagic,
	}
	t.tid = k.allocateTID()
	return t
}

// threadName derives the thread name from a command line: the first
// whitespace-delimited token, truncated.
func threadName(cmd string) string {
	fields := tokenize(cmd)
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	if len(name) > nameMax {
		name = name[:nameMax]
	}
	return name
}

// ThreadCreate spawns a kernel thread running fn at the given priority
// and returns its tid. The new thread may preempt the creator before
// ThreadCreate returns.
func (k *Kernel) ThreadCreate(name string, priority int, fn func()) int {
	if fn == nil {
		panic("kernel: nil thread function")
	}
	t := k.newThread(name, priority)
	t.fn = fn
	go k.threadEntry(t)
	k.unblock(t)
	k.preempt()
	return t.tid
}

// threadEntry is the first code a thread's goroutine runs. It waits for
// its first dispatch, finishes the scheduler's handoff, and invokes the
// thread body with interrupts enabled.
func (k *Kernel) threadEntry(t *Thread) {
	<-t.gate
	k.reap()
	k.intr.SetLevel(platform.IntrOn)
	t.fn()
	k.ThreadExit()
}

// GetPriority returns the current thread's effective priority.
func (k *Kernel) GetPriority() int {
	return k.Current().effPriority
}

// SetPriority changes the current thread's base priority. If the
// effective priority drops, the thread yields so a now-higher-priority
// ready thread can run.
func (k *Kernel) SetPriority(priority int) {
	if priority < PriMin || priority > PriMax {
		k.panicf("thread priority %d out of range", priority)
	}
	g := k.critical()
	cur := k.Current()
	old := cur.effPriority
	cur.basePriority = priority
	k.recompute(cur)
	lowered := cur.effPriority < old
	g.exit()

	if lowered {
		k.ThreadYield()
	}
}
