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
	"testing"
	"time"

	"github.com/talismancer/minos/pkg/abi/kelf"
	"github.com/talismancer/minos/pkg/platform"
	"github.com/talismancer/minos/pkg/platform/machine"
	"github.com/talismancer/minos/pkg/platform/memfs"
	"github.com/talismancer/minos/pkg/platform/memvm"
	"github.com/talismancer/minos/pkg/ulib"
)

// testMachine bundles a machine, its collaborators, and a kernel for
// scenario tests.
type testMachine struct {
	m  *machine.Machine
	fs *memfs.FileSystem
	vm *memvm.VM
	k  *Kernel

	events []string
}

func newTestMachine() *testMachine {
	m := machine.New()
	fs := memfs.New()
	vm := memvm.New(0)
	k := New(Config{
		Interrupts: m.Interrupts(),
		Clock:      m.Clock(),
		Memory:     vm,
		FileSystem: fs,
		UserMode:   m,
		Console:    m.Console(),
		PowerOff:   m.PowerOff,
	})
	return &testMachine{m: m, fs: fs, vm: vm, k: k}
}

// run boots the kernel with main as the initial thread body and waits
// for the machine to halt.
func (tm *testMachine) run(t *testing.T, main func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		tm.k.Run(main)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("kernel did not halt")
	}
}

// record appends an event. Kernel threads run one at a time, and every
// switch goes through a channel, so appends are ordered.
func (tm *testMachine) record(ev string) {
	tm.events = append(tm.events, ev)
}

// console returns everything written to the machine console.
func (tm *testMachine) console() string {
	return tm.m.Console().String()
}

// install places an executable image for the named program at the given
// path and registers the program.
func (tm *testMachine) install(path, program string, p platform.Program) {
	tm.m.Register(program, p)
	tm.fs.Preload(path, kelf.Build(program))
}

// funcProgram adapts plain functions to platform.Program. A nil resume
// exits with whatever RAX holds, which is what a program that never
// forks would do.
type funcProgram struct {
	main   func(env platform.UserEnv)
	resume func(env platform.UserEnv)
}

// Main implements platform.Program.Main.
func (p funcProgram) Main(env platform.UserEnv) {
	p.main(env)
}

// Resume implements platform.Program.Resume.
func (p funcProgram) Resume(env platform.UserEnv) {
	if p.resume != nil {
		p.resume(env)
		return
	}
	ulib.Exit(env, int(int32(env.Frame().Regs.RAX)))
}
