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

// Package boot assembles a machine from a manifest and runs the kernel
// on it.
package boot

import (
	"github.com/talismancer/minos/pkg/abi/kelf"
	"github.com/talismancer/minos/pkg/kernel"
	"github.com/talismancer/minos/pkg/log"
	"github.com/talismancer/minos/pkg/platform/machine"
	"github.com/talismancer/minos/pkg/platform/memfs"
	"github.com/talismancer/minos/pkg/platform/memvm"
	"github.com/talismancer/minos/pkg/uprog"
	"github.com/talismancer/minos/runos/config"
)

// Result is what a completed machine run produced.
type Result struct {
	// Status is the boot process's exit status.
	Status int

	// Console is everything the machine wrote to its console.
	Console string

	// Stats is the kernel's tick accounting.
	Stats kernel.Stats
}

// Boot builds the machine described by the manifest, runs the boot
// command as the first user process, and waits for it.
func Boot(conf *config.Config, m *Manifest) (*Result, error) {
	mach := machine.New()
	uprog.RegisterAll(mach)

	fs := memfs.New()
	for _, f := range m.Files {
		if f.Program != "" {
			fs.Preload(f.Path, kelf.Build(f.Program))
			continue
		}
		fs.Preload(f.Path, []byte(f.Contents))
	}

	pages := m.MemoryPages
	if conf.MemoryPages > 0 {
		pages = conf.MemoryPages
	}
	vm := memvm.New(pages)

	k := kernel.New(kernel.Config{
		Interrupts: mach.Interrupts(),
		Clock:      mach.Clock(),
		Memory:     vm,
		FileSystem: fs,
		UserMode:   mach,
		Console:    mach.Console(),
		PowerOff:   mach.PowerOff,
	})

	log.Infof("booting: %q (%d pages)", m.Boot, pages)
	res := &Result{}
	k.Run(func() {
		tid := k.CreateInitd(m.Boot)
		res.Status = k.Wait(tid)
	})
	res.Console = mach.Console().String()
	res.Stats = k.Timer().Stats()
	log.Infof("machine halted: status %d after %d ticks", res.Status, k.Timer().Ticks())
	return res, nil
}
