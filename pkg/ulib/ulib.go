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

// Package ulib is the user-side system-call library: thin wrappers that
// marshal arguments into the register frame and user stack, the way a
// libc syscall stub would.
package ulib

import (
	"encoding/binary"

	"github.com/talismancer/minos/pkg/abi/osys"
	"github.com/talismancer/minos/pkg/karch"
	"github.com/talismancer/minos/pkg/platform"
)

func syscall(env platform.UserEnv, nr, a, b, c uint64) uint64 {
	f := env.Frame()
	f.Regs.RAX = nr
	f.Regs.RDI = a
	f.Regs.RSI = b
	f.Regs.RDX = c
	env.Syscall()
	return f.Regs.RAX
}

// PushString places a NUL-terminated copy of s on the user stack and
// returns its address.
func PushString(env platform.UserEnv, s string) karch.Addr {
	return env.Push(append([]byte(s), 0))
}

// PushBytes places a copy of b on the user stack and returns its
// address.
func PushBytes(env platform.UserEnv, b []byte) karch.Addr {
	return env.Push(b)
}

// Halt powers the machine off.
func Halt(env platform.UserEnv) {
	syscall(env, osys.SysHalt, 0, 0, 0)
}

// Exit terminates the process with the given status. Never returns.
func Exit(env platform.UserEnv, status int) {
	syscall(env, osys.SysExit, uint64(int64(status)), 0, 0)
	panic("ulib: exit returned")
}

// Fork clones the process. The parent receives the child's tid or -1;
// the child re-enters the program through Resume with 0 in RAX.
func Fork(env platform.UserEnv) int {
	return int(int64(syscall(env, osys.SysFork, 0, 0, 0)))
}

// Exec replaces the process image with the given command line. Returns
// only on failure, with -1.
func Exec(env platform.UserEnv, cmd string) int {
	va := PushString(env, cmd)
	return int(int64(syscall(env, osys.SysExec, uint64(va), 0, 0)))
}

// Wait collects a child's exit status, or -1.
func Wait(env platform.UserEnv, tid int) int {
	return int(int64(syscall(env, osys.SysWait, uint64(int64(tid)), 0, 0)))
}

// Create makes a file of the given size.
func Create(env platform.UserEnv, path string, size int) bool {
	va := PushString(env, path)
	return syscall(env, osys.SysCreate, uint64(va), uint64(size), 0) != 0
}

// Remove unlinks a file.
func Remove(env platform.UserEnv, path string) bool {
	va := PushString(env, path)
	return syscall(env, osys.SysRemove, uint64(va), 0, 0) != 0
}

// Open returns a descriptor for the file, or -1.
func Open(env platform.UserEnv, path string) int {
	va := PushString(env, path)
	return int(int64(syscall(env, osys.SysOpen, uint64(va), 0, 0)))
}

// Filesize returns the file's length, or -1.
func Filesize(env platform.UserEnv, fd int) int {
	return int(int64(syscall(env, osys.SysFilesize, uint64(int64(fd)), 0, 0)))
}

// Read fills b from the descriptor, returning the count read or -1.
func Read(env platform.UserEnv, fd int, b []byte) int {
	va := env.Push(make([]byte, len(b)))
	n := int(int64(syscall(env, osys.SysRead, uint64(int64(fd)), uint64(va), uint64(len(b)))))
	if n > 0 {
		env.Read(va, b[:n])
	}
	return n
}

// Write writes b to the descriptor, returning the count written or -1.
func Write(env platform.UserEnv, fd int, b []byte) int {
	va := PushBytes(env, b)
	return int(int64(syscall(env, osys.SysWrite, uint64(int64(fd)), uint64(va), uint64(len(b)))))
}

// WriteString writes s to the descriptor.
func WriteString(env platform.UserEnv, fd int, s string) int {
	return Write(env, fd, []byte(s))
}

// Close releases the descriptor.
func Close(env platform.UserEnv, fd int) {
	syscall(env, osys.SysClose, uint64(int64(fd)), 0, 0)
}

// Args reads the argv array the loader laid out on the stack.
func Args(env platform.UserEnv) []string {
	f := env.Frame()
	argc := int(f.Regs.RDI)
	base := karch.Addr(f.Regs.RSI)

	args := make([]string, 0, argc)
	var word [8]byte
	for i := 0; i < argc; i++ {
		if !env.Read(base+karch.Addr(8*i), word[:]) {
			break
		}
		args = append(args, ReadCString(env, karch.Addr(binary.LittleEndian.Uint64(word[:]))))
	}
	return args
}

// ReadCString reads a NUL-terminated string from user memory.
func ReadCString(env platform.UserEnv, va karch.Addr) string {
	var out []byte
	var b [1]byte
	for {
		if !env.Read(va, b[:]) || b[0] == 0 {
			return string(out)
		}
		out = append(out, b[0])
		va++
	}
}
