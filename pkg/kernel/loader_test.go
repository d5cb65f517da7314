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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/talismancer/minos/pkg/abi/kelf"
	"github.com/talismancer/minos/pkg/karch"
	"github.com/talismancer/minos/pkg/platform"
	"github.com/talismancer/minos/pkg/ulib"
)

func TestArgvLayout(t *testing.T) {
	tm := newTestMachine()

	type layout struct {
		argc    int
		args    []string
		rspOk   bool
		retZero bool
		siAfter bool
		sentin  bool
	}
	var got layout

	tm.m.Register("argspy", funcProgram{
		main: func(env platform.UserEnv) {
			f := env.Frame()
			got.argc = int(f.Regs.RDI)
			got.args = ulib.Args(env)
			got.rspOk = f.RSP%8 == 0

			var word [8]byte
			if env.Read(karch.Addr(f.RSP), word[:]) {
				got.retZero = binary.LittleEndian.Uint64(word[:]) == 0
			}
			got.siAfter = f.Regs.RSI == f.RSP+8

			// argv[argc] is the NULL sentinel.
			if env.Read(karch.Addr(f.Regs.RSI)+karch.Addr(8*got.argc), word[:]) {
				got.sentin = binary.LittleEndian.Uint64(word[:]) == 0
			}
			ulib.Exit(env, 0)
		},
	})
	tm.fs.Preload("echo", kelf.Build("argspy"))

	var status int
	tm.run(t, func() {
		tid := tm.k.CreateInitd("echo hello world")
		status = tm.k.Wait(tid)
	})

	if status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}
	if got.argc != 3 {
		t.Errorf("argc = %d, want 3", got.argc)
	}
	if diff := cmp.Diff([]string{"echo", "hello", "world"}, got.args); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
	if !got.rspOk {
		t.Error("stack pointer is not 8-byte aligned at entry")
	}
	if !got.retZero {
		t.Error("top-of-stack word is not a null return address")
	}
	if !got.siAfter {
		t.Error("rsi does not point just above the return address")
	}
	if !got.sentin {
		t.Error("argv[argc] is not NULL")
	}
}

func TestLoaderRejectsBadImages(t *testing.T) {
	goodText := append([]byte("argspy"), 0)

	tests := []struct {
		name  string
		image []byte
	}{
		{
			name: "bad magic",
			image: func() []byte {
				img := kelf.Build("argspy")
				img[0] = 'X'
				return img
			}(),
		},
		{
			name: "wrong machine",
			image: kelf.NewBuilder().
				SetMachine(0x28). // arm
				SetEntry(kelf.TextBase).
				AddSegment(kelf.PTLoad, kelf.PFR|kelf.PFX, kelf.TextBase, goodText, 0).
				Bytes(),
		},
		{
			name: "not an executable",
			image: kelf.NewBuilder().
				SetType(3). // ET_DYN
				SetEntry(kelf.TextBase).
				AddSegment(kelf.PTLoad, kelf.PFR|kelf.PFX, kelf.TextBase, goodText, 0).
				Bytes(),
		},
		{
			name: "dynamic segment",
			image: kelf.NewBuilder().
				SetEntry(kelf.TextBase).
				AddSegment(kelf.PTLoad, kelf.PFR|kelf.PFX, kelf.TextBase, goodText, 0).
				AddSegment(kelf.PTDynamic, kelf.PFR, kelf.TextBase+0x1000, []byte{1}, 0).
				Bytes(),
		},
		{
			name: "memsz below filesz",
			image: kelf.NewBuilder().
				SetEntry(kelf.TextBase).
				AddSegment(kelf.PTLoad, kelf.PFR|kelf.PFX, kelf.TextBase, goodText, 1).
				Bytes(),
		},
		{
			name: "maps the first page",
			image: kelf.NewBuilder().
				SetEntry(0x800).
				AddSegment(kelf.PTLoad, kelf.PFR|kelf.PFX, 0x800, goodText, 0).
				Bytes(),
		},
		{
			name: "crosses into kernel space",
			image: kelf.NewBuilder().
				SetEntry(uint64(karch.KernBase) + 0x1000).
				AddSegment(kelf.PTLoad, kelf.PFR|kelf.PFX, uint64(karch.KernBase)+0x1000, goodText, 0).
				Bytes(),
		},
		{
			name: "unregistered program text",
			image: kelf.Build("no-such-program"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tm := newTestMachine()
			tm.m.Register("argspy", funcProgram{
				main: func(env platform.UserEnv) { ulib.Exit(env, 0) },
			})
			tm.fs.Preload("bad", tc.image)

			tm.run(t, func() {
				if rc := tm.k.Exec("bad"); rc != -1 {
					t.Errorf("Exec returned %d, want -1", rc)
				}
				tm.record("caller survived")
				if got := tm.vm.UsedPages(); got != 0 {
					t.Errorf("load failure leaked %d pages", got)
				}
			})

			if len(tm.events) != 1 {
				t.Error("caller did not survive the failed exec")
			}
		})
	}
}

func TestExecOfMissingFileFailsCleanly(t *testing.T) {
	tm := newTestMachine()
	tm.run(t, func() {
		if rc := tm.k.Exec("missing"); rc != -1 {
			t.Errorf("Exec = %d, want -1", rc)
		}
		if got := tm.vm.UsedPages(); got != 0 {
			t.Errorf("leaked %d pages", got)
		}
	})
	if !strings.Contains(tm.console(), "load: missing: open failed") {
		t.Errorf("console missing load diagnostic:\n%s", tm.console())
	}
}

func TestExecEmptyCommandFails(t *testing.T) {
	tm := newTestMachine()
	tm.run(t, func() {
		if rc := tm.k.Exec("   "); rc != -1 {
			t.Errorf("Exec = %d, want -1", rc)
		}
	})
}
