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

package memfs

import (
	"testing"
)

func TestCreateOpenRoundTrip(t *testing.T) {
	fs := New()
	if !fs.Create("a", 8) {
		t.Fatal("create failed")
	}
	if fs.Create("a", 8) {
		t.Error("duplicate create succeeded")
	}
	if fs.Create("", 8) {
		t.Error("empty name create succeeded")
	}

	f, err := fs.Open("a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if n, _ := f.Write([]byte("hi")); n != 2 {
		t.Errorf("write = %d, want 2", n)
	}
	if got := f.Length(); got != 8 {
		t.Errorf("length = %d, want 8 (writes do not extend)", got)
	}
	buf := make([]byte, 2)
	if n, _ := f.ReadAt(buf, 0); n != 2 || string(buf) != "hi" {
		t.Errorf("readat = %d %q", n, buf)
	}
}

func TestRemoveWhileOpen(t *testing.T) {
	fs := New()
	fs.Preload("a", []byte("contents"))

	f, err := fs.Open("a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if !fs.Remove("a") {
		t.Fatal("remove failed")
	}
	if fs.Remove("a") {
		t.Error("second remove succeeded")
	}
	if _, err := fs.Open("a"); err == nil {
		t.Error("open succeeded after remove")
	}

	// The open handle keeps working.
	buf := make([]byte, 8)
	if n, _ := f.ReadAt(buf, 0); n != 8 || string(buf) != "contents" {
		t.Errorf("read through unlinked handle = %d %q", n, buf)
	}
	f.Close()
}

func TestDenyWriteCounts(t *testing.T) {
	fs := New()
	fs.Preload("a", []byte("12345678"))

	f1, _ := fs.Open("a")
	f2, _ := fs.Open("a")

	f1.DenyWrite()
	f1.DenyWrite() // idempotent per handle
	if n, _ := f2.Write([]byte("x")); n != 0 {
		t.Errorf("write through f2 = %d, want 0 while denied", n)
	}
	f1.AllowWrite()
	if n, _ := f2.Write([]byte("x")); n != 1 {
		t.Errorf("write through f2 = %d, want 1 after allow", n)
	}

	// Closing a denying handle releases its deny.
	f2.DenyWrite()
	f2.Close()
	if n, _ := f1.Write([]byte("y")); n != 1 {
		t.Errorf("write after denier closed = %d, want 1", n)
	}
	f1.Close()
}

func TestDuplicateSharesInode(t *testing.T) {
	fs := New()
	fs.Preload("a", []byte("abcdefgh"))

	f, _ := fs.Open("a")
	f.Seek(4)
	d, err := f.Duplicate()
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if got := d.Tell(); got != 4 {
		t.Errorf("duplicate position = %d, want 4", got)
	}
	buf := make([]byte, 4)
	if n, _ := d.Read(buf); n != 4 || string(buf) != "efgh" {
		t.Errorf("read = %d %q", n, buf)
	}
	d.Close()
	f.Close()
}
