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

// donationDepthMax bounds how far a priority donation propagates along a
// chain of lock holders. Valid donation graphs are acyclic; the bound is
// a defense against malformed chains, not a recovery mechanism.
const donationDepthMax = 8

// Lock is a non-recursive mutex with priority donation: while a thread
// waits for the lock, its effective priority is lent to the holder,
// transitively through nested waits.
type Lock struct {
	k      *Kernel
	holder *Thread
	sema   *Semaphore
}

// NewLock returns an unheld lock.
func (k *Kernel) NewLock() *Lock {
	return &Lock{k: k, sema: k.NewSemaphore(1)}
}

// Holder returns the owning thread, or nil.
func (l *Lock) Holder() *Thread {
	return l.holder
}

// HeldByCurrent returns whether the current thread owns the lock.
func (l *Lock) HeldByCurrent() bool {
	return l.holder != nil && l.holder == l.k.current
}

// Acquire takes the lock, waiting if necessary. While waiting, the
// caller donates its priority to the holder and along the holder's own
// wait chain; the donation is re-registered each time the lock changes
// hands under the waiter. Re-acquiring a held lock is a fatal misuse.
func (l *Lock) Acquire() {
	k := l.k
	if k.intr.InHandler() {
		panic("kernel: lock acquire from interrupt context")
	}
	if l.HeldByCurrent() {
		k.panicf("thread %q re-acquiring lock it holds", k.current.name)
	}

	prev := k.intr.Disable()
	cur := k.current
	for !l.sema.TryDown() {
		cur.waitingLock = l
		if h := l.holder; h != nil && h != k.idleThread {
			h.donors = append(h.donors, cur)
			k.propagateFrom(cur)
		}
		l.sema.insertWaiter(cur)
		k.block()
	}
	cur.waitingLock = nil
	l.takeOwnership(cur)
	k.intr.SetLevel(prev)
}

// TryAcquire takes the lock without waiting and reports success. No
// donation happens on failure. Safe from interrupt context.
func (l *Lock) TryAcquire() bool {
	k := l.k
	if l.HeldByCurrent() {
		k.panicf("thread %q re-acquiring lock it holds", k.current.name)
	}
	if !l.sema.TryDown() {
		return false
	}
	prev := k.intr.Disable()
	l.takeOwnership(k.current)
	k.intr.SetLevel(prev)
	return true
}

// takeOwnership installs t as holder and adopts the donations of the
// threads still parked on the lock, keeping the holder's donor set in
// step with its waiters.
//
// Preconditions: interrupts are off; the internal count was taken.
func (l *Lock) takeOwnership(t *Thread) {
	l.holder = t
	for _, w := range l.sema.waiters {
		t.donors = append(t.donors, w)
	}
	l.k.recompute(t)
}

// Release gives up the lock, withdrawing the donations it caused, and
// wakes the highest-priority waiter. Releasing an unheld lock is a fatal
// misuse.
func (l *Lock) Release() {
	k := l.k
	if !l.HeldByCurrent() {
		k.panicf("thread %q releasing lock it does not hold", k.current.name)
	}

	prev := k.intr.Disable()
	cur := k.current
	kept := cur.donors[:0]
	for _, d := range cur.donors {
		if d.waitingLock != l {
			kept = append(kept, d)
		}
	}
	cur.donors = kept
	k.recompute(cur)
	l.holder = nil
	k.intr.SetLevel(prev)

	l.sema.Up()
}

// recompute refreshes t's effective priority from its base and its
// donors, re-keying the ready queue if t is queued there.
//
// Preconditions: interrupts are off.
func (k *Kernel) recompute(t *Thread) {
	max := t.basePriority
	for _, d := range t.donors {
		if d.effPriority > max {
			max = d.effPriority
		}
	}
	if max == t.effPriority {
		return
	}
	t.effPriority = max
	if t.status == Ready {
		k.ready.fix(t)
	}
}

// propagateFrom pushes t's priority along the chain of lock holders t is
// (transitively) waiting on. The walk stops at a thread that is not
// waiting, at a lock with no holder, at the idle thread, or at the hop
// bound.
//
// Preconditions: interrupts are off.
func (k *Kernel) propagateFrom(t *Thread) {
	for hop := 0; hop < donationDepthMax; hop++ {
		l := t.waitingLock
		if l == nil {
			return
		}
		h := l.holder
		if h == nil || h == k.idleThread {
			return
		}
		k.recompute(h)
		t = h
	}
	k.donationWarn.Debugf("donation chain from %q exceeded %d hops", t.name, donationDepthMax)
}
