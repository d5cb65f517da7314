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

// Package platform defines the capabilities the kernel consumes from the
// machine it runs on: the interrupt controller, the clock, address
// spaces, the file system, and user-mode execution. The kernel never
// reaches past these interfaces.
package platform

import (
	"github.com/talismancer/minos/pkg/karch"
)

// IntrLevel is the CPU interrupt-enable state.
type IntrLevel int

// Interrupt levels.
const (
	IntrOff IntrLevel = iota
	IntrOn
)

// InterruptController models the CPU interrupt flag. All scheduler state
// is guarded by disabling interrupts; there are no finer-grained locks.
type InterruptController interface {
	// Disable turns interrupts off and returns the prior level.
	Disable() IntrLevel

	// SetLevel restores a previously saved level.
	SetLevel(level IntrLevel)

	// Level returns the current level.
	Level() IntrLevel

	// InHandler returns whether the CPU is running an interrupt
	// handler. Code that can suspend must never run there.
	InHandler() bool
}

// Clock delivers timer interrupts. Ticks are delivered synchronously on
// the calling goroutine: Advance simulates CPU time passing under the
// running thread, Halt simulates the idle thread's hlt instruction.
type Clock interface {
	// Now returns the current tick count. It never decreases.
	Now() int64

	// SetHandler installs the tick handler. The handler runs in
	// interrupt context with interrupts disabled.
	SetHandler(handler func(now int64))

	// Advance delivers n consecutive ticks on the caller.
	Advance(n int64)

	// Halt waits for the next tick, delivering it on the caller.
	Halt()
}

// AddressSpace is a user page table. Page contents are directly
// addressable by the kernel; user addresses are translated explicitly.
type AddressSpace interface {
	// Map allocates a zeroed page at the page-aligned address va and
	// returns it. Mapping an already-mapped page fails.
	Map(va karch.Addr, writable bool) ([]byte, error)

	// Translate returns the page containing va, its writability, and
	// whether va is mapped.
	Translate(va karch.Addr) (page []byte, writable bool, ok bool)

	// ForEach visits every mapping in ascending address order until
	// the visitor returns false; it reports whether the walk
	// completed.
	ForEach(visit func(va karch.Addr, page []byte, writable bool) bool) bool

	// Activate installs this address space on the CPU.
	Activate()

	// Deactivate removes this address space from the CPU if active.
	Deactivate()

	// Destroy releases all pages. The space must not be active.
	Destroy()
}

// Memory creates address spaces. The machine's page budget is charged
// per mapped page, so exhaustion surfaces as an AddressSpace.Map error.
type Memory interface {
	NewSpace() (AddressSpace, error)
}

// File is an open file handle.
type File interface {
	// Read reads from the current position, advancing it.
	Read(p []byte) (int, error)

	// ReadAt reads at the given offset without moving the position.
	ReadAt(p []byte, off int64) (int, error)

	// Write writes at the current position, advancing it. Writes
	// return 0 while the inode is write-denied.
	Write(p []byte) (int, error)

	// Length returns the file size.
	Length() int64

	// Seek sets the position.
	Seek(pos int64)

	// Tell returns the position.
	Tell() int64

	// DenyWrite blocks writes to the underlying inode until a
	// matching AllowWrite.
	DenyWrite()

	// AllowWrite undoes a prior DenyWrite on this handle.
	AllowWrite()

	// Duplicate opens an independent handle to the same inode.
	Duplicate() (File, error)

	// Close releases the handle.
	Close()
}

// FileSystem is the external file-system collaborator. The kernel
// serializes all calls through a single global lock.
type FileSystem interface {
	Create(path string, size int64) bool
	Remove(path string) bool
	Open(path string) (File, error)
}

// UserEnv is the execution environment the kernel hands to a user
// program. All access to kernel services goes through Syscall; direct
// memory access goes through the program's own address space.
type UserEnv interface {
	// Frame returns the program's register frame. Programs set RAX
	// and the argument registers before Syscall and read results
	// from RAX after.
	Frame() *karch.Frame

	// Syscall enters the kernel with the current frame.
	Syscall()

	// Push writes data onto the user stack, moving RSP down, and
	// returns the resulting address. The process is terminated on a
	// stack fault.
	Push(data []byte) karch.Addr

	// Read copies user memory at va into b, reporting whether the
	// whole range was mapped.
	Read(va karch.Addr, b []byte) bool

	// Burn consumes n ticks of CPU time. Preemption can occur inside.
	Burn(n int64)
}

// Program is user code registered with the machine. Main is the fresh
// entry from exec, with argc/argv in RDI/RSI per the ABI. Resume is the
// re-entry used when the kernel returns to user mode with a restored
// frame — a forked child arrives here with the parent's copied frame and
// RAX = 0; implementations branch on the frame contents.
type Program interface {
	Main(env UserEnv)
	Resume(env UserEnv)
}

// UserMode executes registered programs on the simulated CPU.
type UserMode interface {
	// Lookup resolves a program name.
	Lookup(name string) (Program, bool)

	// Enter runs the named program on the calling thread. resumed
	// selects Resume over Main. Enter returns when the program
	// returns; by convention the kernel then exits the process with
	// the status in RAX.
	Enter(env UserEnv, name string, resumed bool)
}
