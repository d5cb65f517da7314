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
	"github.com/google/btree"
)

// queueDegree is the btree branching factor; queues stay small, so the
// choice barely matters.
const queueDegree = 8

// readyEntry keys a thread in the ready queue: highest effective
// priority first, FIFO within a priority.
type readyEntry struct {
	t        *Thread
	priority int
	seq      uint64
}

// Less implements btree.Item.Less.
func (e *readyEntry) Less(than btree.Item) bool {
	o := than.(*readyEntry)
	if e.priority != o.priority {
		return e.priority > o.priority
	}
	return e.seq < o.seq
}

// readyQueue holds Ready threads in dispatch order.
type readyQueue struct {
	tree *btree.BTree
	seq  uint64
}

func newReadyQueue() readyQueue {
	return readyQueue{tree: btree.New(queueDegree)}
}

func (q *readyQueue) push(t *Thread) {
	if t.readyEnt != nil {
		panic("kernel: thread already on the ready queue")
	}
	q.seq++
	e := &readyEntry{t: t, priority: t.effPriority, seq: q.seq}
	t.readyEnt = e
	q.tree.ReplaceOrInsert(e)
}

func (q *readyQueue) pop() (*Thread, bool) {
	it := q.tree.DeleteMin()
	if it == nil {
		return nil, false
	}
	e := it.(*readyEntry)
	e.t.readyEnt = nil
	return e.t, true
}

func (q *readyQueue) peek() (*Thread, bool) {
	it := q.tree.Min()
	if it == nil {
		return nil, false
	}
	return it.(*readyEntry).t, true
}

// fix re-keys t after its effective priority changed while queued. The
// FIFO sequence is kept, so the thread does not lose its place among
// equals.
func (q *readyQueue) fix(t *Thread) {
	e := t.readyEnt
	if e == nil || e.priority == t.effPriority {
		return
	}
	q.tree.Delete(e)
	e.priority = t.effPriority
	q.tree.ReplaceOrInsert(e)
}

func (q *readyQueue) len() int {
	return q.tree.Len()
}

// sleepEntry keys a thread in the sleep queue: earliest wake tick first,
// FIFO within a tick.
type sleepEntry struct {
	t    *Thread
	wake int64
	seq  uint64
}

// Less implements btree.Item.Less.
func (e *sleepEntry) Less(than btree.Item) bool {
	o := than.(*sleepEntry)
	if e.wake != o.wake {
		return e.wake < o.wake
	}
	return e.seq < o.seq
}

// sleepQueue holds sleeping threads ordered by wake tick.
type sleepQueue struct {
	tree *btree.BTree
	seq  uint64
}

func newSleepQueue() sleepQueue {
	return sleepQueue{tree: btree.New(queueDegree)}
}

func (q *sleepQueue) push(t *Thread, wake int64) {
	if t.sleepEnt != nil {
		panic("kernel: thread already on the sleep queue")
	}
	q.seq++
	e := &sleepEntry{t: t, wake: wake, seq: q.seq}
	t.sleepEnt = e
	q.tree.ReplaceOrInsert(e)
}

// drainExpired removes and returns, in wake order, every thread whose
// wake tick is at or before now.
func (q *sleepQueue) drainExpired(now int64) []*Thread {
	var woken []*Thread
	for {
		it := q.tree.Min()
		if it == nil {
			break
		}
		e := it.(*sleepEntry)
		if e.wake > now {
			break
		}
		q.tree.DeleteMin()
		e.t.sleepEnt = nil
		woken = append(woken, e.t)
	}
	return woken
}

func (q *sleepQueue) len() int {
	return q.tree.Len()
}
