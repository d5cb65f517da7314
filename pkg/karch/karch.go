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

// Package karch defines the simulated machine's address-space layout and
// the register frame saved across kernel entries.
package karch

// Memory layout constants.
const (
	// PageShift is the base-2 logarithm of the page size.
	PageShift = 12

	// PageSize is the size of a page in bytes.
	PageSize = 1 << PageShift

	// PageMask masks the offset within a page.
	PageMask = PageSize - 1

	// UserStack is the initial top of the user stack.
	UserStack Addr = 0x47480000

	// KernBase is the lowest kernel virtual address. Everything below
	// it is user space.
	KernBase Addr = 0x8004000000
)

// Addr is a virtual address.
type Addr uint64

// RoundDown returns the address rounded down to a page boundary.
func (a Addr) RoundDown() Addr {
	return a &^ PageMask
}

// RoundUp returns the address rounded up to a page boundary. The result
// wraps if a is within a page of the top of the address space.
func (a Addr) RoundUp() Addr {
	return (a + PageMask) &^ PageMask
}

// PageOffset returns the offset of the address within its page.
func (a Addr) PageOffset() uint64 {
	return uint64(a & PageMask)
}

// IsUser returns whether the address lies below the kernel split.
func (a Addr) IsUser() bool {
	return a < KernBase
}
