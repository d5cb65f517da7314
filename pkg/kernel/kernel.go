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

// Package kernel implements the threading and synchronization core: the
// preemptive priority scheduler, sleep/wake timing, priority-donating
// locks, and the user-process lifecycle built on top of them.
//
// Exactly one kernel thread runs at a time. Threads are goroutines; a
// context switch hands the CPU baton from the outgoing goroutine to the
// incoming one and parks the outgoing thread on its dispatch gate. All
// scheduler state is guarded by disabling interrupts on the machine's
// interrupt controller; there are no finer-grained locks.
package kernel

import (
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/talismancer/minos/pkg/log"
	"github.com/talismancer/minos/pkg/platform"
	"golang.org/x/time/rate"
)

// Config collects the machine capabilities the kernel runs against.
type Config struct {
	// Interrupts is the CPU interrupt controller.
	Interrupts platform.InterruptController

	// Clock delivers timer ticks.
	Clock platform.Clock

	// Memory creates user address spaces.
	Memory platform.Memory

	// FileSystem is the shared file system, serialized by the
	// kernel's global lock.
	FileSystem platform.FileSystem

	// UserMode executes user programs.
	UserMode platform.UserMode

	// Console receives user-visible output.
	Console io.Writer

	// PowerOff is invoked once when the machine halts. May be nil.
	PowerOff func()
}

// Kernel is one booted kernel instance.
type Kernel struct {
	intr     platform.InterruptController
	clock    platform.Clock
	mem      platform.Memory
	fs       platform.FileSystem
	um       platform.UserMode
	console  io.Writer
	powerOff func()

	timer Timer

	// Scheduler state, guarded by disabling interrupts.
	current       *Thread
	idleThread    *Thread
	initial       *Thread
	ready         readyQueue
	sleepers      sleepQueue
	destruction   []*Thread
	nextTID       int
	yieldOnReturn bool

	// fsLock serializes every file-system call.
	fsLock *Lock

	unimplWarn   *log.RateLimited
	donationWarn *log.RateLimited

	done     chan struct{}
	doneOnce sync.Once
}

// New returns a kernel wired to the given machine capabilities. The
// kernel does not run until Run is called.
func New(cfg Config) *Kernel {
	if cfg.Interrupts == nil || cfg.Clock == nil || cfg.Memory == nil || cfg.FileSystem == nil || cfg.UserMode == nil {
		panic("kernel: incomplete machine configuration")
	}
	console := cfg.Console
	if console == nil {
		console = io.Discard
	}
	k := &Kernel{
		intr:         cfg.Interrupts,
		clock:        cfg.Clock,
		mem:          cfg.Memory,
		fs:           cfg.FileSystem,
		um:           cfg.UserMode,
		console:      console,
		powerOff:     cfg.PowerOff,
		ready:        newReadyQueue(),
		sleepers:     newSleepQueue(),
		unimplWarn:   log.NewRateLimited(rate.Limit(1), 4),
		donationWarn: log.NewRateLimited(rate.Limit(1), 4),
		done:         make(chan struct{}),
	}
	k.timer.k = k
	k.fsLock = k.NewLock()
	k.clock.SetHandler(k.timer.onTick)
	return k
}

// Run boots the kernel: the given function becomes the body of the
// initial "main" thread. Run returns when the machine powers off, either
// through the halt syscall or because main returned.
func (k *Kernel) Run(main func()) {
	k.intr.Disable()
	t := k.newThread("main", PriDefault)
	t.fn = func() {
		k.startIdle()
		main()
		k.shutdown()
	}
	k.initial = t
	t.status = Running
	k.current = t
	go k.threadEntry(t)
	t.gate <- struct{}{}
	<-k.done
}

// startIdle creates the idle thread and waits for it to come up, so the
// scheduler always has a thread to fall back on.
func (k *Kernel) startIdle() {
	started := k.NewSemaphore(0)
	k.ThreadCreate("idle", PriMin, func() {
		k.idleThread = k.current
		started.Up()
		k.idleLoop()
	})
	started.Down()
}

// idleLoop runs when nothing else is ready. It parks until the scheduler
// special-cases it back in, then halts until the next timer tick.
func (k *Kernel) idleLoop() {
	for {
		k.intr.Disable()
		k.block()
		k.intr.SetLevel(platform.IntrOn)
		k.clock.Halt()
		if k.takeYieldOnReturn() {
			k.ThreadYield()
		}
	}
}

// Timer returns the kernel's timer.
func (k *Kernel) Timer() *Timer {
	return &k.timer
}

// Current returns the running thread.
func (k *Kernel) Current() *Thread {
	t := k.current
	if t == nil || t.magic != threadMagic {
		panic("kernel: current thread corrupted")
	}
	if t.status != Running {
		panic("kernel: current thread is not running")
	}
	return t
}

// Console returns the machine console writer.
func (k *Kernel) Console() io.Writer {
	return k.console
}

// FilesysLock returns the global file-system lock.
func (k *Kernel) FilesysLock() *Lock {
	return k.fsLock
}

// Halt powers the machine off. Never returns.
func (k *Kernel) Halt() {
	k.shutdown()
}

// shutdown stops the CPU. The calling goroutine never runs again and no
// further thread is dispatched.
func (k *Kernel) shutdown() {
	k.intr.Disable()
	k.doneOnce.Do(func() {
		if k.powerOff != nil {
			k.powerOff()
		}
		close(k.done)
	})
	runtime.Goexit()
}

// Burn consumes n ticks of CPU time on the calling thread, honoring
// preemption requests the same way interrupt return does.
func (k *Kernel) Burn(n int64) {
	for i := int64(0); i < n; i++ {
		k.clock.Advance(1)
		if k.takeYieldOnReturn() {
			k.ThreadYield()
		}
	}
}

func (k *Kernel) takeYieldOnReturn() bool {
	g := k.critical()
	v := k.yieldOnReturn
	k.yieldOnReturn = false
	g.exit()
	return v
}

func (k *Kernel) allocateTID() int {
	g := k.critical()
	k.nextTID++
	tid := k.nextTID
	g.exit()
	return tid
}

func (k *Kernel) panicf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
