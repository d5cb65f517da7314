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

package kelf

import (
	"encoding/binary"
)

// pageSize mirrors karch.PageSize; kept local so the ABI package stays
// dependency-free.
const pageSize = 1 << 12

// TextBase is the load address Build places the text segment at.
const TextBase = 0x400000

// Builder assembles an ELF64 executable image in memory.
type Builder struct {
	entry    uint64
	machine  uint16
	typ      uint16
	segments []segment
}

type segment struct {
	typ   uint32
	flags uint32
	vaddr uint64
	data  []byte
	memsz uint64
}

// NewBuilder returns a Builder producing an x86-64 executable.
func NewBuilder() *Builder {
	return &Builder{machine: MachineX8664, typ: TypeExec}
}

// SetEntry sets the entry point address.
func (b *Builder) SetEntry(entry uint64) *Builder {
	b.entry = entry
	return b
}

// SetMachine overrides the machine field; used to construct images the
// loader must reject.
func (b *Builder) SetMachine(m uint16) *Builder {
	b.machine = m
	return b
}

// SetType overrides the object type field.
func (b *Builder) SetType(t uint16) *Builder {
	b.typ = t
	return b
}

// AddSegment appends a program header and its file contents. memsz of 0
// means len(data).
func (b *Builder) AddSegment(typ, flags uint32, vaddr uint64, data []byte, memsz uint64) *Builder {
	if memsz == 0 {
		memsz = uint64(len(data))
	}
	b.segments = append(b.segments, segment{typ: typ, flags: flags, vaddr: vaddr, data: data, memsz: memsz})
	return b
}

// Bytes lays out and returns the image.
func (b *Builder) Bytes() []byte {
	phnum := len(b.segments)
	// Place segment contents after the headers, each at a file offset
	// congruent to its vaddr modulo the page size.
	offsets := make([]uint64, phnum)
	off := uint64(HeaderSize + phnum*PhdrSize)
	for i, s := range b.segments {
		want := s.vaddr % pageSize
		off = (off + pageSize - 1) &^ uint64(pageSize-1)
		off += want
		offsets[i] = off
		off += uint64(len(s.data))
	}

	img := make([]byte, off)
	le := binary.LittleEndian

	copy(img, Magic)
	img[4] = ClassELF64
	img[5] = Data2LSB
	img[6] = VersionCurrent
	le.PutUint16(img[16:], b.typ)
	le.PutUint16(img[18:], b.machine)
	le.PutUint32(img[20:], VersionCurrent)
	le.PutUint64(img[24:], b.entry)
	le.PutUint64(img[32:], HeaderSize) // phoff
	le.PutUint16(img[52:], HeaderSize)
	le.PutUint16(img[54:], PhdrSize)
	le.PutUint16(img[56:], uint16(phnum))

	for i, s := range b.segments {
		p := img[HeaderSize+i*PhdrSize:]
		le.PutUint32(p[0:], s.typ)
		le.PutUint32(p[4:], s.flags)
		le.PutUint64(p[8:], offsets[i])
		le.PutUint64(p[16:], s.vaddr)
		le.PutUint64(p[24:], s.vaddr)
		le.PutUint64(p[32:], uint64(len(s.data)))
		le.PutUint64(p[40:], s.memsz)
		le.PutUint64(p[48:], pageSize)
		copy(img[offsets[i]:], s.data)
	}
	return img
}

// Build returns an executable image whose single text segment holds the
// NUL-terminated program name; the entry point addresses it. The
// simulated CPU "executes" the image by resolving that name against its
// program registry.
func Build(program string) []byte {
	text := append([]byte(program), 0)
	return NewBuilder().
		SetEntry(TextBase).
		AddSegment(PTLoad, PFR|PFX, TextBase, text, 0).
		Bytes()
}
