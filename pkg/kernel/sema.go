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
	"sort"
)

// Semaphore is a counting semaphore whose waiters are woken in effective
// priority order, FIFO among equals.
type Semaphore struct {
	k       *Kernel
	value   int
	waiters []*Thread
}

// NewSemaphore returns a semaphore with the given initial value.
func (k *Kernel) NewSemaphore(value int) *Semaphore {
	if value < 0 {
		k.panicf("semaphore initialized to %d", value)
	}
	return &Semaphore{k: k, value: value}
}

// Value returns the current count.
func (s *Semaphore) Value() int {
	return s.value
}

// Down waits until the count is positive, then decrements it. May
// suspend; must not be called from interrupt context.
func (s *Semaphore) Down() {
	k := s.k
	if k.intr.InHandler() {
		panic("kernel: semaphore down from interrupt context")
	}
	prev := k.intr.Disable()
	for s.value == 0 {
		s.insertWaiter(k.current)
		k.block()
	}
	s.value--
	k.intr.SetLevel(prev)
}

// TryDown decrements the count if positive, without waiting. Safe from
// interrupt context.
func (s *Semaphore) TryDown() bool {
	k := s.k
	prev := k.intr.Disable()
	ok := s.value > 0
	if ok {
		s.value--
	}
	k.intr.SetLevel(prev)
	return ok
}

// Up increments the count and wakes the highest-priority waiter, if any,
// then evaluates preemption. Safe from interrupt context.
func (s *Semaphore) Up() {
	k := s.k
	prev := k.intr.Disable()
	if len(s.waiters) > 0 {
		// Donor priorities can change while a waiter is parked;
		// re-establish the order before picking the wakeup.
		s.sortWaiters()
		t := s.waiters[0]
		s.waiters = s.waiters[1:]
		k.unblock(t)
	}
	s.value++
	k.preempt()
	k.intr.SetLevel(prev)
}

// insertWaiter queues the thread in priority order; ties keep insertion
// order.
func (s *Semaphore) insertWaiter(t *Thread) {
	s.waiters = append(s.waiters, t)
	s.sortWaiters()
}

func (s *Semaphore) sortWaiters() {
	sort.SliceStable(s.waiters, func(i, j int) bool {
		return s.waiters[i].effPriority > s.waiters[j].effPriority
	})
}
