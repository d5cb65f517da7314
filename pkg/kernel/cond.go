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

// CondVar is a Mesa-style condition variable: signal does not hand over
// the lock, so a woken waiter must re-check its predicate. Each waiter
// parks on its own zero semaphore; signal wakes the waiter whose thread
// currently has the highest effective priority.
type CondVar struct {
	k       *Kernel
	waiters []*condWaiter
}

type condWaiter struct {
	sema *Semaphore
	t    *Thread
}

// NewCondVar returns a condition variable. A condition variable is bound
// to one lock at a time; a lock may serve any number of condition
// variables.
func (k *Kernel) NewCondVar() *CondVar {
	return &CondVar{k: k}
}

// Wait atomically releases lock and waits to be signalled, then
// re-acquires lock before returning. The caller must hold lock.
func (c *CondVar) Wait(lock *Lock) {
	k := c.k
	if k.intr.InHandler() {
		panic("kernel: condition wait from interrupt context")
	}
	if !lock.HeldByCurrent() {
		k.panicf("thread %q waiting on condition without the lock", k.current.name)
	}

	w := &condWaiter{sema: k.NewSemaphore(0), t: k.current}
	c.insert(w)
	lock.Release()
	w.sema.Down()
	lock.Acquire()
}

// Signal wakes the highest-priority waiter, if any. The caller must hold
// lock.
func (c *CondVar) Signal(lock *Lock) {
	k := c.k
	if k.intr.InHandler() {
		panic("kernel: condition signal from interrupt context")
	}
	if !lock.HeldByCurrent() {
		k.panicf("thread %q signalling condition without the lock", k.current.name)
	}
	if len(c.waiters) == 0 {
		return
	}

	// Priorities may have shifted since the waiters queued; pick the
	// current maximum, earliest-queued among equals.
	best := 0
	for i, w := range c.waiters {
		if w.t.effPriority > c.waiters[best].t.effPriority {
			best = i
		}
	}
	w := c.waiters[best]
	c.waiters = append(c.waiters[:best], c.waiters[best+1:]...)
	w.sema.Up()
}

// Broadcast wakes every waiter. The caller must hold lock.
func (c *CondVar) Broadcast(lock *Lock) {
	for len(c.waiters) > 0 {
		c.Signal(lock)
	}
}

// insert queues a waiter in priority order; the order is refreshed at
// signal time anyway, so this only fixes the FIFO tie-break.
func (c *CondVar) insert(w *condWaiter) {
	i := len(c.waiters)
	for i > 0 && c.waiters[i-1].t.effPriority < w.t.effPriority {
		i--
	}
	c.waiters = append(c.waiters, nil)
	copy(c.waiters[i+1:], c.waiters[i:])
	c.waiters[i] = w
}
