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

// Package memfs is the in-memory file-system collaborator: a flat
// namespace of byte files with write-deny counting and Unix-style
// unlink-while-open semantics.
package memfs

import (
	"fmt"
	"io"

	"github.com/talismancer/minos/pkg/platform"
)

// FileSystem implements platform.FileSystem.
type FileSystem struct {
	inodes map[string]*inode
}

// New returns an empty file system.
func New() *FileSystem {
	return &FileSystem{inodes: make(map[string]*inode)}
}

type inode struct {
	data      []byte
	denyWrite int
	openCount int
	removed   bool
}

// Create implements platform.FileSystem.Create.
func (fs *FileSystem) Create(path string, size int64) bool {
	if path == "" || size < 0 {
		return false
	}
	if _, ok := fs.inodes[path]; ok {
		return false
	}
	fs.inodes[path] = &inode{data: make([]byte, size)}
	return true
}

// Remove implements platform.FileSystem.Remove. The inode stays usable
// through already-open handles.
func (fs *FileSystem) Remove(path string) bool {
	ino, ok := fs.inodes[path]
	if !ok {
		return false
	}
	ino.removed = true
	delete(fs.inodes, path)
	return true
}

// Open implements platform.FileSystem.Open.
func (fs *FileSystem) Open(path string) (platform.File, error) {
	ino, ok := fs.inodes[path]
	if !ok {
		return nil, fmt.Errorf("memfs: %q: no such file", path)
	}
	ino.openCount++
	return &file{ino: ino}, nil
}

// Preload installs a file with the given contents, replacing any
// existing one. Used by boot to place program images.
func (fs *FileSystem) Preload(path string, data []byte) {
	fs.inodes[path] = &inode{data: append([]byte(nil), data...)}
}

type file struct {
	ino    *inode
	pos    int64
	denied bool
	closed bool
}

// Read implements platform.File.Read.
func (f *file) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// ReadAt implements platform.File.ReadAt.
func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(f.ino.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.ino.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Write implements platform.File.Write. Writes do not extend the file.
func (f *file) Write(p []byte) (int, error) {
	if f.ino.denyWrite > 0 {
		return 0, nil
	}
	if f.pos >= int64(len(f.ino.data)) {
		return 0, nil
	}
	n := copy(f.ino.data[f.pos:], p)
	f.pos += int64(n)
	return n, nil
}

// Length implements platform.File.Length.
func (f *file) Length() int64 {
	return int64(len(f.ino.data))
}

// Seek implements platform.File.Seek.
func (f *file) Seek(pos int64) {
	f.pos = pos
}

// Tell implements platform.File.Tell.
func (f *file) Tell() int64 {
	return f.pos
}

// DenyWrite implements platform.File.DenyWrite.
func (f *file) DenyWrite() {
	if !f.denied {
		f.denied = true
		f.ino.denyWrite++
	}
}

// AllowWrite implements platform.File.AllowWrite.
func (f *file) AllowWrite() {
	if f.denied {
		f.denied = false
		f.ino.denyWrite--
	}
}

// Duplicate implements platform.File.Duplicate. The new handle shares
// the inode, inherits the position, and carries its own deny-write
// state, matching the fork semantics of the fd table.
func (f *file) Duplicate() (platform.File, error) {
	f.ino.openCount++
	nf := &file{ino: f.ino, pos: f.pos}
	if f.denied {
		nf.DenyWrite()
	}
	return nf, nil
}

// Close implements platform.File.Close.
func (f *file) Close() {
	if f.closed {
		panic("memfs: double close")
	}
	f.closed = true
	f.AllowWrite()
	f.ino.openCount--
}
