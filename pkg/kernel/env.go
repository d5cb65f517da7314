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
	"github.com/talismancer/minos/pkg/karch"
)

// userEnv implements platform.UserEnv for the thread currently in user
// mode. It is created at each user-mode entry and is only valid on that
// thread.
type userEnv struct {
	k *Kernel
	t *Thread
}

// Frame implements platform.UserEnv.Frame.
func (e *userEnv) Frame() *karch.Frame {
	return &e.t.frame
}

// Syscall implements platform.UserEnv.Syscall.
func (e *userEnv) Syscall() {
	e.k.syscall(&e.t.frame)
}

// Push implements platform.UserEnv.Push.
func (e *userEnv) Push(data []byte) karch.Addr {
	f := &e.t.frame
	va := karch.Addr(f.RSP) - karch.Addr(len(data))
	e.k.copyOutUser(va, data)
	f.RSP = uint64(va)
	return va
}

// Read implements platform.UserEnv.Read.
func (e *userEnv) Read(va karch.Addr, b []byte) bool {
	return copyIn(e.t.as, va, b)
}

// Burn implements platform.UserEnv.Burn.
func (e *userEnv) Burn(n int64) {
	e.k.Burn(n)
}
