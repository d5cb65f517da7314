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
	"encoding/binary"
	"fmt"

	"github.com/talismancer/minos/pkg/abi/kelf"
	"github.com/talismancer/minos/pkg/karch"
	"github.com/talismancer/minos/pkg/log"
	"github.com/talismancer/minos/pkg/platform"
)

// Exec replaces the current process image with the program named by the
// command line and enters user mode; on success it does not return. On
// load failure it returns -1 with the caller's previous address space
// and executable intact — the caller keeps running.
func (k *Kernel) Exec(cmd string) int {
	cur := k.Current()
	if k.intr.InHandler() {
		panic("kernel: exec from interrupt context")
	}

	oldAS := cur.as
	oldExec := cur.execFile
	oldProgram := cur.program

	var f karch.Frame
	f.SetUserMode()

	if !k.load(cmd, &f) {
		newAS := cur.as
		cur.as = oldAS
		if oldAS != nil {
			oldAS.Activate()
		} else if newAS != nil {
			newAS.Deactivate()
		}
		if newAS != nil && newAS != oldAS {
			newAS.Destroy()
		}
		cur.execFile = oldExec
		cur.program = oldProgram
		return -1
	}

	if oldAS != nil && oldAS != cur.as {
		oldAS.Destroy()
	}
	if oldExec != nil && oldExec != cur.execFile {
		k.fsLock.Acquire()
		oldExec.AllowWrite()
		oldExec.Close()
		k.fsLock.Release()
	}

	k.iret(&f, false)
	panic("kernel: returned from user mode entry")
}

// iret enters user mode with the given frame. When the program returns,
// the process exits with the status left in RAX, the way a user runtime
// calls exit(main(...)).
func (k *Kernel) iret(f *karch.Frame, resumed bool) {
	cur := k.Current()
	cur.frame = *f
	env := &userEnv{k: k, t: cur}
	k.um.Enter(env, cur.program, resumed)
	k.Exit(int(int32(cur.frame.Regs.RAX)))
}

// load reads the ELF executable named by the command line into a fresh
// address space and prepares the entry frame, including the argv layout
// on the user stack. On failure the fresh address space is left on the
// thread for the caller to restore and destroy.
func (k *Kernel) load(cmd string, f *karch.Frame) bool {
	cur := k.Current()

	// Parse the arguments into kernel copies before anything else can
	// release the command buffer.
	args := tokenize(cmd)
	if len(args) == 0 {
		return false
	}
	path := args[0]

	as, err := k.mem.NewSpace()
	if err != nil {
		log.Warningf("exec %q: %v", path, err)
		return false
	}
	cur.as = as
	as.Activate()

	k.fsLock.Acquire()
	file, err := k.fs.Open(path)
	k.fsLock.Release()
	if err != nil {
		fmt.Fprintf(k.console, "load: %s: open failed\n", path)
		return false
	}
	success := false
	defer func() {
		if !success {
			k.fsLock.Acquire()
			file.Close()
			k.fsLock.Release()
		}
	}()

	var hbuf [kelf.HeaderSize]byte
	if n, _ := file.ReadAt(hbuf[:], 0); n != len(hbuf) {
		log.Debugf("load: %s: short header", path)
		return false
	}
	hdr, err := kelf.ParseHeader(hbuf[:])
	if err == nil {
		err = hdr.CheckIdent()
	}
	if err != nil {
		log.Debugf("load: %s: %v", path, err)
		return false
	}

	phoff := int64(hdr.Phoff)
	for i := 0; i < int(hdr.Phnum); i++ {
		if phoff < 0 || phoff > file.Length() {
			return false
		}
		var pbuf [kelf.PhdrSize]byte
		if n, _ := file.ReadAt(pbuf[:], phoff); n != len(pbuf) {
			return false
		}
		phoff += kelf.PhdrSize

		ph, err := kelf.ParsePhdr(pbuf[:])
		if err != nil {
			return false
		}
		switch ph.Type {
		case kelf.PTDynamic, kelf.PTInterp, kelf.PTShlib:
			return false
		case kelf.PTLoad:
			if !validSegment(&ph, file) {
				return false
			}
			if !loadSegment(as, file, &ph) {
				return false
			}
		default:
			// Ignored.
		}
	}

	if !setupStack(as, f) {
		return false
	}
	f.RIP = hdr.Entry

	if !loadArgs(as, args, f) {
		return false
	}

	// The text at the entry point names the program the simulated CPU
	// will execute.
	name, ok := readCString(as, karch.Addr(hdr.Entry), karch.PageSize)
	if !ok {
		return false
	}
	if _, ok := k.um.Lookup(name); !ok {
		log.Debugf("load: %s: no such program text %q", path, name)
		return false
	}
	cur.program = name

	k.fsLock.Acquire()
	file.DenyWrite()
	k.fsLock.Release()
	cur.execFile = file

	success = true
	return true
}

// tokenize splits a command line on whitespace. There is no quoting;
// runs of spaces produce no empty arguments.
func tokenize(cmd string) []string {
	var args []string
	start := -1
	for i := 0; i < len(cmd); i++ {
		switch cmd[i] {
		case ' ', '\t', '\n', '\r':
			if start >= 0 {
				args = append(args, cmd[start:i])
				start = -1
			}
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if start >= 0 {
		args = append(args, cmd[start:])
	}
	return args
}

// validSegment checks a PT_LOAD header against the file and the address
// space layout.
func validSegment(ph *kelf.ProgramHeader, file platform.File) bool {
	// File offset and virtual address must agree modulo the page
	// size, or the segment cannot be mapped page-aligned.
	if ph.Offset%karch.PageSize != ph.Vaddr%karch.PageSize {
		return false
	}
	if ph.Offset > uint64(file.Length()) {
		return false
	}
	if ph.Memsz < ph.Filesz {
		return false
	}
	if ph.Memsz == 0 {
		return false
	}
	end := ph.Vaddr + ph.Memsz
	if end < ph.Vaddr {
		// Wraps around the top of the address space.
		return false
	}
	if !karch.Addr(ph.Vaddr).IsUser() || !karch.Addr(end).IsUser() {
		return false
	}
	// The first page stays unmapped so user null pointers fault.
	if ph.Vaddr < karch.PageSize {
		return false
	}
	return true
}

// loadSegment maps a validated PT_LOAD segment page by page, reading the
// file-backed prefix and zero-filling the rest.
func loadSegment(as platform.AddressSpace, file platform.File, ph *kelf.ProgramHeader) bool {
	fileOfs := ph.Offset &^ uint64(karch.PageMask)
	memPage := karch.Addr(ph.Vaddr).RoundDown()
	pageOffset := ph.Vaddr & karch.PageMask

	readBytes := uint64(0)
	if ph.Filesz > 0 {
		readBytes = pageOffset + ph.Filesz
	}
	total := (pageOffset + ph.Memsz + karch.PageMask) &^ uint64(karch.PageMask)
	writable := ph.Flags&kelf.PFW != 0

	for done := uint64(0); done < total; done += karch.PageSize {
		page, err := as.Map(memPage+karch.Addr(done), writable)
		if err != nil {
			return false
		}
		if done < readBytes {
			want := readBytes - done
			if want > karch.PageSize {
				want = karch.PageSize
			}
			if n, _ := file.ReadAt(page[:want], int64(fileOfs+done)); uint64(n) != want {
				return false
			}
		}
		// The remainder of the page stays zero-filled.
	}
	return true
}

// setupStack maps the initial stack page just below UserStack.
func setupStack(as platform.AddressSpace, f *karch.Frame) bool {
	if _, err := as.Map(karch.UserStack-karch.PageSize, true); err != nil {
		return false
	}
	f.RSP = uint64(karch.UserStack)
	return true
}

// loadArgs builds the initial user stack: the argument strings pushed in
// reverse, padding to 8-byte alignment, the argv array with its NULL
// sentinel, argc/argv in RDI/RSI, and a null return address on top.
func loadArgs(as platform.AddressSpace, args []string, f *karch.Frame) bool {
	sp := karch.Addr(f.RSP)

	addrs := make([]uint64, len(args))
	for i := len(args) - 1; i >= 0; i-- {
		b := append([]byte(args[i]), 0)
		sp -= karch.Addr(len(b))
		if !copyOut(as, sp, b) {
			return false
		}
		addrs[i] = uint64(sp)
	}

	for sp%8 != 0 {
		sp--
		if !copyOut(as, sp, []byte{0}) {
			return false
		}
	}

	var word [8]byte
	push := func(v uint64) bool {
		sp -= 8
		binary.LittleEndian.PutUint64(word[:], v)
		return copyOut(as, sp, word[:])
	}

	if !push(0) { // argv[argc] sentinel
		return false
	}
	for i := len(args) - 1; i >= 0; i-- {
		if !push(addrs[i]) {
			return false
		}
	}

	f.Regs.RDI = uint64(len(args))
	f.Regs.RSI = uint64(sp)

	if !push(0) { // fake return address
		return false
	}
	f.RSP = uint64(sp)
	return true
}
