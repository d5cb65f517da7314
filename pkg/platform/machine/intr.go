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

package machine

import (
	"github.com/talismancer/minos/pkg/platform"
)

// intrController implements platform.InterruptController. The state is
// touched only by the running thread (ticks are delivered on its
// goroutine), so no locking is needed; the scheduler's handoff provides
// the ordering.
type intrController struct {
	level     platform.IntrLevel
	inHandler bool
}

// Disable implements platform.InterruptController.Disable.
func (c *intrController) Disable() platform.IntrLevel {
	old := c.level
	c.level = platform.IntrOff
	return old
}

// SetLevel implements platform.InterruptController.SetLevel.
func (c *intrController) SetLevel(level platform.IntrLevel) {
	c.level = level
}

// Level implements platform.InterruptController.Level.
func (c *intrController) Level() platform.IntrLevel {
	return c.level
}

// InHandler implements platform.InterruptController.InHandler.
func (c *intrController) InHandler() bool {
	return c.inHandler
}

// clock implements platform.Clock. A tick is delivered by running the
// handler on the calling goroutine with interrupts disabled and the
// handler flag set, the way a hardware timer interrupt borrows the
// interrupted thread's stack.
type clock struct {
	intr    *intrController
	ticks   int64
	handler func(now int64)
}

// Now implements platform.Clock.Now.
func (c *clock) Now() int64 {
	return c.ticks
}

// SetHandler implements platform.Clock.SetHandler.
func (c *clock) SetHandler(handler func(now int64)) {
	c.handler = handler
}

// Advance implements platform.Clock.Advance.
func (c *clock) Advance(n int64) {
	for i := int64(0); i < n; i++ {
		c.deliver()
	}
}

// Halt implements platform.Clock.Halt.
func (c *clock) Halt() {
	c.deliver()
}

func (c *clock) deliver() {
	if c.intr.level == platform.IntrOff && c.handler != nil {
		// Ticks are only generated at points that run with
		// interrupts enabled (hlt in idle, CPU burn in a thread);
		// anything else is a kernel bug.
		panic("machine: tick delivered with interrupts disabled")
	}
	c.ticks++
	if c.handler == nil {
		return
	}
	old := c.intr.Disable()
	c.intr.inHandler = true
	c.handler(c.ticks)
	c.intr.inHandler = false
	c.intr.SetLevel(old)
}
