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

// TimeSlice is the number of ticks a thread runs before the tick handler
// requests a preemption.
const TimeSlice = 4

// Stats counts where timer ticks were spent.
type Stats struct {
	IdleTicks   int64
	KernelTicks int64
	UserTicks   int64
}

// Timer owns the kernel's view of the clock: it wakes expired sleepers
// and accounts the running thread's time slice.
type Timer struct {
	k          *Kernel
	sliceTicks int
	stats      Stats
}

// Ticks returns the current tick count.
func (tm *Timer) Ticks() int64 {
	return tm.k.clock.Now()
}

// Stats returns the accumulated tick accounting.
func (tm *Timer) Stats() Stats {
	return tm.stats
}

// onTick is the timer interrupt handler. It runs in interrupt context
// with interrupts off, on the interrupted thread's goroutine.
func (tm *Timer) onTick(now int64) {
	k := tm.k
	t := k.current

	switch {
	case t == k.idleThread:
		tm.stats.IdleTicks++
	case t.as != nil:
		tm.stats.UserTicks++
	default:
		tm.stats.KernelTicks++
	}

	k.wake(now)

	tm.sliceTicks++
	if tm.sliceTicks >= TimeSlice {
		k.yieldOnReturn = true
	}
}

// wake unblocks every sleeper whose wake tick has arrived, in wake
// order, then evaluates preemption.
func (k *Kernel) wake(now int64) {
	for _, t := range k.sleepers.drainExpired(now) {
		k.unblock(t)
	}
	k.preempt()
}

// Sleep blocks the current thread for the given number of ticks.
// Sleeping for zero or fewer ticks is a yield.
func (tm *Timer) Sleep(ticks int64) {
	if ticks <= 0 {
		tm.k.ThreadYield()
		return
	}
	tm.SleepUntil(tm.k.clock.Now() + ticks)
}

// SleepUntil blocks the current thread until the absolute wake tick.
func (tm *Timer) SleepUntil(wake int64) {
	k := tm.k
	if k.intr.InHandler() {
		panic("kernel: sleep from interrupt context")
	}
	prev := k.intr.Disable()
	cur := k.Current()
	cur.sleepUntil = wake
	k.sleepers.push(cur, wake)
	k.block()
	k.intr.SetLevel(prev)
}
