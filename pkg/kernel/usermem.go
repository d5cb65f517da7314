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
	"github.com/talismancer/minos/pkg/platform"
)

// copyIn copies len(b) bytes of user memory at va into b, reporting
// whether the whole range was mapped user memory.
func copyIn(as platform.AddressSpace, va karch.Addr, b []byte) bool {
	for len(b) > 0 {
		if !va.IsUser() {
			return false
		}
		page, _, ok := as.Translate(va)
		if !ok {
			return false
		}
		off := va.PageOffset()
		n := copy(b, page[off:])
		b = b[n:]
		va += karch.Addr(n)
	}
	return true
}

// copyOut copies b into user memory at va, requiring every touched page
// to be mapped and writable.
func copyOut(as platform.AddressSpace, va karch.Addr, b []byte) bool {
	for len(b) > 0 {
		if !va.IsUser() {
			return false
		}
		page, writable, ok := as.Translate(va)
		if !ok || !writable {
			return false
		}
		off := va.PageOffset()
		n := copy(page[off:], b)
		b = b[n:]
		va += karch.Addr(n)
	}
	return true
}

// readCString reads a NUL-terminated string of at most maxLen bytes
// (terminator included) from user memory. A string that does not
// terminate in time is truncated at maxLen-1 bytes. Returns false if the
// accessible range ends before a terminator or the truncation point.
func readCString(as platform.AddressSpace, va karch.Addr, maxLen int) (string, bool) {
	buf := make([]byte, 0, 64)
	for i := 0; i < maxLen-1; i++ {
		var b [1]byte
		if !copyIn(as, va+karch.Addr(i), b[:]) {
			return "", false
		}
		if b[0] == 0 {
			return string(buf), true
		}
		buf = append(buf, b[0])
	}
	return string(buf), true
}
