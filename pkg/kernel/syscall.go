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
	"github.com/talismancer/minos/pkg/abi/osys"
	"github.com/talismancer/minos/pkg/karch"
)

// retError is the register encoding of -1.
const retError = ^uint64(0)

// syscall dispatches the system call selected by RAX, with arguments in
// RDI/RSI/RDX and the result in RAX. Runs on the calling process's
// thread with interrupts enabled.
func (k *Kernel) syscall(f *karch.Frame) {
	switch f.Regs.RAX {
	case osys.SysHalt:
		k.Halt()

	case osys.SysExit:
		k.Exit(int(int32(f.Regs.RDI)))

	case osys.SysFork:
		// A zero name pointer inherits the parent's name.
		name := k.Current().name
		if f.Regs.RDI != 0 {
			name = k.userString(f.Regs.RDI)
		}
		f.Regs.RAX = uint64(int64(k.Fork(name, f)))

	case osys.SysExec:
		cmd := k.userString(f.Regs.RDI)
		// Only the failure path returns.
		f.Regs.RAX = uint64(int64(k.Exec(cmd)))

	case osys.SysWait:
		f.Regs.RAX = uint64(int64(k.Wait(int(int32(f.Regs.RDI)))))

	case osys.SysCreate:
		path := k.userString(f.Regs.RDI)
		if path == "" {
			k.Exit(-1)
		}
		size := int64(f.Regs.RSI)
		k.fsLock.Acquire()
		ok := k.fs.Create(path, size)
		k.fsLock.Release()
		f.Regs.RAX = boolReg(ok)

	case osys.SysRemove:
		path := k.userString(f.Regs.RDI)
		// Exactly one removal, under the lock.
		k.fsLock.Acquire()
		ok := k.fs.Remove(path)
		k.fsLock.Release()
		f.Regs.RAX = boolReg(ok)

	case osys.SysOpen:
		path := k.userString(f.Regs.RDI)
		k.fsLock.Acquire()
		file, err := k.fs.Open(path)
		k.fsLock.Release()
		if err != nil {
			f.Regs.RAX = retError
			return
		}
		fd := k.installFD(file)
		if fd < 0 {
			k.fsLock.Acquire()
			file.Close()
			k.fsLock.Release()
			f.Regs.RAX = retError
			return
		}
		f.Regs.RAX = uint64(fd)

	case osys.SysFilesize:
		file := k.lookupFD(int(int32(f.Regs.RDI)))
		if file == nil {
			f.Regs.RAX = retError
			return
		}
		f.Regs.RAX = uint64(file.Length())

	case osys.SysRead:
		f.Regs.RAX = uint64(int64(k.sysRead(f)))

	case osys.SysWrite:
		f.Regs.RAX = uint64(int64(k.sysWrite(f)))

	case osys.SysClose:
		f.Regs.RAX = boolReg(k.closeFD(int(int32(f.Regs.RDI))))

	default:
		k.unimplWarn.Warningf("unknown syscall %d from %q", f.Regs.RAX, k.Current().name)
		f.Regs.RAX = retError
	}
}

func boolReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (k *Kernel) sysRead(f *karch.Frame) int {
	fd := int(int32(f.Regs.RDI))
	va := karch.Addr(f.Regs.RSI)
	n := int(f.Regs.RDX)
	if n < 0 {
		return -1
	}
	if fd == osys.StdinFileno {
		// The console has no input device.
		return 0
	}
	file := k.lookupFD(fd)
	if file == nil {
		return -1
	}
	buf := make([]byte, n)
	k.fsLock.Acquire()
	read, _ := file.Read(buf)
	k.fsLock.Release()
	k.copyOutUser(va, buf[:read])
	return read
}

func (k *Kernel) sysWrite(f *karch.Frame) int {
	fd := int(int32(f.Regs.RDI))
	va := karch.Addr(f.Regs.RSI)
	n := int(f.Regs.RDX)
	if n < 0 {
		return -1
	}
	buf := make([]byte, n)
	k.copyInUser(va, buf)
	if fd == osys.StdoutFileno {
		// Console writes land whole.
		k.console.Write(buf)
		return n
	}
	file := k.lookupFD(fd)
	if file == nil {
		return -1
	}
	k.fsLock.Acquire()
	wrote, _ := file.Write(buf)
	k.fsLock.Release()
	return wrote
}

// userString copies in a NUL-terminated string from user memory.
// Validation failures terminate the process.
func (k *Kernel) userString(va uint64) string {
	if va == 0 || !karch.Addr(va).IsUser() {
		k.Exit(-1)
	}
	s, ok := readCString(k.Current().as, karch.Addr(va), karch.PageSize)
	if !ok {
		k.Exit(-1)
	}
	return s
}

// copyInUser copies user memory into b; a fault terminates the process.
func (k *Kernel) copyInUser(va karch.Addr, b []byte) {
	if len(b) == 0 {
		return
	}
	if va == 0 || !copyIn(k.Current().as, va, b) {
		k.Exit(-1)
	}
}

// copyOutUser copies b into user memory; a fault, including a read-only
// page, terminates the process.
func (k *Kernel) copyOutUser(va karch.Addr, b []byte) {
	if len(b) == 0 {
		return
	}
	if va == 0 || !copyOut(k.Current().as, va, b) {
		k.Exit(-1)
	}
}
