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

// Package machine simulates the single-CPU machine the kernel runs on:
// an interrupt flag, a timer that delivers ticks synchronously on the
// running thread, a console, and a registry of user programs that stand
// in for executable text.
package machine

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/talismancer/minos/pkg/platform"
)

// Machine is one simulated computer.
type Machine struct {
	intr     intrController
	clock    clock
	console  Console
	programs map[string]platform.Program

	offOnce sync.Once
	done    chan struct{}
}

// New returns a powered-on machine with no programs registered.
func New() *Machine {
	m := &Machine{
		programs: make(map[string]platform.Program),
		done:     make(chan struct{}),
	}
	m.clock.intr = &m.intr
	return m
}

// Interrupts returns the CPU's interrupt controller.
func (m *Machine) Interrupts() platform.InterruptController {
	return &m.intr
}

// Clock returns the machine's timer.
func (m *Machine) Clock() platform.Clock {
	return &m.clock
}

// Console returns the machine console.
func (m *Machine) Console() *Console {
	return &m.console
}

// Register installs a user program under the given name.
func (m *Machine) Register(name string, p platform.Program) {
	m.programs[name] = p
}

// Lookup implements platform.UserMode.Lookup.
func (m *Machine) Lookup(name string) (platform.Program, bool) {
	p, ok := m.programs[name]
	return p, ok
}

// Enter implements platform.UserMode.Enter.
func (m *Machine) Enter(env platform.UserEnv, name string, resumed bool) {
	p, ok := m.programs[name]
	if !ok {
		panic(fmt.Sprintf("machine: entering unregistered program %q", name))
	}
	if resumed {
		p.Resume(env)
		return
	}
	p.Main(env)
}

// PowerOff halts the machine. Idempotent.
func (m *Machine) PowerOff() {
	m.offOnce.Do(func() { close(m.done) })
}

// Done is closed when the machine powers off.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Console is the machine's write-only console device. It is written
// only by the running thread and read after the machine halts, so it
// needs no locking.
type Console struct {
	buf bytes.Buffer
}

// Write implements io.Writer.
func (c *Console) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// String returns everything written so far.
func (c *Console) String() string {
	return c.buf.String()
}
