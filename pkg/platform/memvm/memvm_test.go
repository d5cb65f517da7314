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

package memvm

import (
	"testing"

	"github.com/talismancer/minos/pkg/karch"
)

func TestMapTranslate(t *testing.T) {
	vm := New(0)
	as, err := vm.NewSpace()
	if err != nil {
		t.Fatal(err)
	}

	page, err := as.Map(0x400000, true)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	page[5] = 0xcc

	got, writable, ok := as.Translate(0x400005)
	if !ok || !writable {
		t.Fatalf("translate: ok=%v writable=%v", ok, writable)
	}
	if got[5] != 0xcc {
		t.Error("translate returned a different page")
	}

	if _, _, ok := as.Translate(0x500000); ok {
		t.Error("translate succeeded on an unmapped page")
	}
	if _, err := as.Map(0x400000, false); err == nil {
		t.Error("double map succeeded")
	}
	if _, err := as.Map(0x400001, false); err == nil {
		t.Error("unaligned map succeeded")
	}
}

func TestPageBudget(t *testing.T) {
	vm := New(2)
	as, _ := vm.NewSpace()

	if _, err := as.Map(0x1000, true); err != nil {
		t.Fatal(err)
	}
	if _, err := as.Map(0x2000, true); err != nil {
		t.Fatal(err)
	}
	if _, err := as.Map(0x3000, true); err == nil {
		t.Fatal("map beyond the budget succeeded")
	}
	if got := vm.UsedPages(); got != 2 {
		t.Errorf("used pages = %d, want 2", got)
	}

	as.Destroy()
	if got := vm.UsedPages(); got != 0 {
		t.Errorf("used pages after destroy = %d, want 0", got)
	}
}

func TestForEachOrdered(t *testing.T) {
	vm := New(0)
	as, _ := vm.NewSpace()
	for _, va := range []karch.Addr{0x5000, 0x1000, 0x3000} {
		if _, err := as.Map(va, true); err != nil {
			t.Fatal(err)
		}
	}

	var seen []karch.Addr
	as.ForEach(func(va karch.Addr, _ []byte, _ bool) bool {
		seen = append(seen, va)
		return true
	})
	want := []karch.Addr{0x1000, 0x3000, 0x5000}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("walk order %v, want %v", seen, want)
		}
	}
}

func TestActivateTracking(t *testing.T) {
	vm := New(0)
	a, _ := vm.NewSpace()
	b, _ := vm.NewSpace()

	a.Activate()
	if vm.Active() != a {
		t.Error("active space is not a")
	}
	b.Activate()
	if vm.Active() != b {
		t.Error("active space is not b")
	}
	a.Deactivate() // not active; no effect
	if vm.Active() != b {
		t.Error("deactivating an inactive space changed the active one")
	}
	b.Deactivate()
	if vm.Active() != nil {
		t.Error("active space survives deactivation")
	}
}
