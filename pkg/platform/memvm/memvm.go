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

// Package memvm implements platform.AddressSpace over plain memory, with
// a machine-wide page budget so allocation failure paths are real.
package memvm

import (
	"fmt"
	"sort"

	"github.com/talismancer/minos/pkg/karch"
	"github.com/talismancer/minos/pkg/platform"
)

// VM owns the machine's simulated physical memory.
type VM struct {
	maxPages  int
	usedPages int
	active    *Space
}

// New returns a VM with a budget of maxPages pages; 0 means unlimited.
func New(maxPages int) *VM {
	return &VM{maxPages: maxPages}
}

// NewSpace implements platform.Memory.NewSpace.
func (vm *VM) NewSpace() (platform.AddressSpace, error) {
	return &Space{vm: vm, pages: make(map[karch.Addr]*mapping)}, nil
}

// Active returns the currently installed space, or nil.
func (vm *VM) Active() platform.AddressSpace {
	if vm.active == nil {
		return nil
	}
	return vm.active
}

// UsedPages returns the number of allocated pages.
func (vm *VM) UsedPages() int {
	return vm.usedPages
}

func (vm *VM) allocPage() ([]byte, error) {
	if vm.maxPages > 0 && vm.usedPages >= vm.maxPages {
		return nil, fmt.Errorf("memvm: out of pages (%d in use)", vm.usedPages)
	}
	vm.usedPages++
	return make([]byte, karch.PageSize), nil
}

func (vm *VM) freePages(n int) {
	vm.usedPages -= n
}

type mapping struct {
	page     []byte
	writable bool
}

// Space is one user address space.
type Space struct {
	vm    *VM
	pages map[karch.Addr]*mapping
	dead  bool
}

// Map implements platform.AddressSpace.Map.
func (s *Space) Map(va karch.Addr, writable bool) ([]byte, error) {
	if s.dead {
		panic("memvm: map on destroyed space")
	}
	if va.PageOffset() != 0 {
		return nil, fmt.Errorf("memvm: unaligned map at %#x", uint64(va))
	}
	if _, ok := s.pages[va]; ok {
		return nil, fmt.Errorf("memvm: %#x already mapped", uint64(va))
	}
	page, err := s.vm.allocPage()
	if err != nil {
		return nil, err
	}
	s.pages[va] = &mapping{page: page, writable: writable}
	return page, nil
}

// Translate implements platform.AddressSpace.Translate.
func (s *Space) Translate(va karch.Addr) ([]byte, bool, bool) {
	m, ok := s.pages[va.RoundDown()]
	if !ok {
		return nil, false, false
	}
	return m.page, m.writable, true
}

// ForEach implements platform.AddressSpace.ForEach.
func (s *Space) ForEach(visit func(va karch.Addr, page []byte, writable bool) bool) bool {
	vas := make([]karch.Addr, 0, len(s.pages))
	for va := range s.pages {
		vas = append(vas, va)
	}
	sort.Slice(vas, func(i, j int) bool { return vas[i] < vas[j] })
	for _, va := range vas {
		m := s.pages[va]
		if !visit(va, m.page, m.writable) {
			return false
		}
	}
	return true
}

// Activate implements platform.AddressSpace.Activate.
func (s *Space) Activate() {
	s.vm.active = s
}

// Deactivate implements platform.AddressSpace.Deactivate.
func (s *Space) Deactivate() {
	if s.vm.active == s {
		s.vm.active = nil
	}
}

// Destroy implements platform.AddressSpace.Destroy.
func (s *Space) Destroy() {
	if s.vm.active == s {
		panic("memvm: destroying the active space")
	}
	if s.dead {
		return
	}
	s.vm.freePages(len(s.pages))
	s.pages = nil
	s.dead = true
}
