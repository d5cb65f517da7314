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
	"fmt"

	"github.com/talismancer/minos/pkg/karch"
	"github.com/talismancer/minos/pkg/log"
	"github.com/talismancer/minos/pkg/platform"
)

// FDMax is the size of a process's file-descriptor table. Descriptors 0
// and 1 are the console; user files start at 2.
const FDMax = 32

// forkHandshake carries the parent's state to the child and the child's
// verdict back. It lives from the parent's Fork call until the child
// signals done.
type forkHandshake struct {
	parent      *Thread
	parentFrame karch.Frame
	ci          *ChildInfo
	done        *Semaphore
	success     bool
}

// CreateInitd spawns the first user process from the given command line
// and returns its tid. The spawned thread execs the command on its first
// run; a failure to launch it is fatal.
func (k *Kernel) CreateInitd(cmd string) int {
	parent := k.Current()
	ci := k.newChildInfo()
	parent.children = append(parent.children, ci)

	tid := k.ThreadCreate(cmd, PriDefault, func() {
		k.current.selfInfo = ci
		if k.Exec(cmd) < 0 {
			k.panicf("failed to launch initd: %q", cmd)
		}
	})
	ci.tid = tid
	return tid
}

// Fork clones the current process. The parent gets the child's tid, or
// -1 if duplication failed; the child resumes in user mode with a copy
// of parentFrame and 0 in RAX. The parent does not return until the
// child has finished duplicating its resources.
func (k *Kernel) Fork(name string, parentFrame *karch.Frame) int {
	parent := k.Current()
	ci := k.newChildInfo()
	parent.children = append(parent.children, ci)

	hs := &forkHandshake{
		parent:      parent,
		parentFrame: parentFrame.Fork(),
		ci:          ci,
		done:        k.NewSemaphore(0),
	}
	tid := k.ThreadCreate(name, PriDefault, func() { k.doFork(hs) })
	ci.tid = tid

	hs.done.Down()
	if !hs.success {
		unlinkChild(parent, ci)
		return -1
	}
	return tid
}

// doFork is the child side of Fork: duplicate the parent's address space
// and open files under a fresh address space, report the verdict, and
// enter user mode with the copied frame. The child is linked to its
// ChildInfo only once duplication has succeeded.
func (k *Kernel) doFork(hs *forkHandshake) {
	cur := k.Current()
	frame := hs.parentFrame

	if !k.duplicateProcess(cur, hs.parent) {
		hs.success = false
		hs.done.Up()
		k.ThreadExit()
	}

	cur.selfInfo = hs.ci
	cur.exitStatus = 0
	frame.Regs.RAX = 0

	hs.success = true
	hs.done.Up()

	k.iret(&frame, true)
}

func (k *Kernel) duplicateProcess(cur, parent *Thread) bool {
	if parent.as == nil {
		return false
	}
	as, err := k.mem.NewSpace()
	if err != nil {
		log.Warningf("fork: %v", err)
		return false
	}
	cur.as = as
	as.Activate()

	copied := parent.as.ForEach(func(va karch.Addr, page []byte, writable bool) bool {
		if !va.IsUser() {
			return true
		}
		np, err := as.Map(va, writable)
		if err != nil {
			log.Warningf("fork: mapping %#x: %v", uint64(va), err)
			return false
		}
		copy(np, page)
		return true
	})
	if !copied {
		return false
	}

	for fd := 2; fd < FDMax; fd++ {
		f := parent.fdTable[fd]
		if f == nil {
			continue
		}
		k.fsLock.Acquire()
		nf, err := f.Duplicate()
		k.fsLock.Release()
		if err != nil {
			return false
		}
		cur.fdTable[fd] = nf
	}

	cur.program = parent.program
	return true
}

// Wait blocks until the given child exits and returns its exit status.
// Returns -1 if the tid is not an unwaited child of the caller; a second
// wait for the same child always fails.
func (k *Kernel) Wait(childTID int) int {
	cur := k.Current()
	ci := findChild(cur, childTID)
	if ci == nil {
		return -1
	}
	if ci.waited {
		return -1
	}
	ci.waited = true
	if !ci.exited {
		ci.completion.Down()
	}
	status := ci.exitStatus
	unlinkChild(cur, ci)
	return status
}

// Exit terminates the current process with the given status. Never
// returns.
func (k *Kernel) Exit(status int) {
	k.Current().exitStatus = status
	k.ThreadExit()
}

// processExit tears down the current thread's user process: publish the
// exit status to the parent, close every descriptor, release the
// executable, and destroy the address space.
func (k *Kernel) processExit() {
	cur := k.current

	if ci := cur.selfInfo; ci != nil {
		ci.exitStatus = cur.exitStatus
		ci.exited = true
		ci.completion.Up()
	}

	if cur.as != nil {
		fmt.Fprintf(k.console, "%s: exit(%d)\n", cur.name, cur.exitStatus)
	}

	for fd := 2; fd < FDMax; fd++ {
		if f := cur.fdTable[fd]; f != nil {
			k.fsLock.Acquire()
			f.Close()
			k.fsLock.Release()
			cur.fdTable[fd] = nil
		}
	}

	if f := cur.execFile; f != nil {
		k.fsLock.Acquire()
		f.AllowWrite()
		f.Close()
		k.fsLock.Release()
		cur.execFile = nil
	}

	if as := cur.as; as != nil {
		// Clear the pointer before switching away so a timer tick
		// cannot re-activate the dying address space.
		cur.as = nil
		as.Deactivate()
		as.Destroy()
	}
}

// installFD places the file in the lowest free descriptor slot and
// returns it, or -1 if the table is full.
func (k *Kernel) installFD(f platform.File) int {
	cur := k.Current()
	for fd := 2; fd < FDMax; fd++ {
		if cur.fdTable[fd] == nil {
			cur.fdTable[fd] = f
			return fd
		}
	}
	return -1
}

// lookupFD returns the open file for fd, or nil.
func (k *Kernel) lookupFD(fd int) platform.File {
	if fd < 2 || fd >= FDMax {
		return nil
	}
	return k.Current().fdTable[fd]
}

// closeFD closes and clears the descriptor, reporting whether it was
// open.
func (k *Kernel) closeFD(fd int) bool {
	if fd < 2 || fd >= FDMax {
		return false
	}
	cur := k.Current()
	f := cur.fdTable[fd]
	if f == nil {
		return false
	}
	k.fsLock.Acquire()
	f.Close()
	k.fsLock.Release()
	cur.fdTable[fd] = nil
	return true
}
