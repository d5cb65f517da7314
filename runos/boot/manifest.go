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

package boot

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Manifest describes a machine: its memory budget, the files preloaded
// onto the file system, and the boot command line.
//
// Example:
//
//	memory-pages = 1024
//	boot = "echo hello world"
//
//	[[file]]
//	path = "echo"
//	program = "echo"
//
//	[[file]]
//	path = "motd"
//	contents = "welcome\n"
type Manifest struct {
	// MemoryPages is the physical page budget; 0 means unlimited.
	MemoryPages int `toml:"memory-pages"`

	// Boot is the command line of the first user process.
	Boot string `toml:"boot"`

	// Files are preloaded onto the file system before boot.
	Files []ManifestFile `toml:"file"`
}

// ManifestFile is one preloaded file: either an executable image for a
// built-in program, or literal contents.
type ManifestFile struct {
	Path     string `toml:"path"`
	Program  string `toml:"program"`
	Contents string `toml:"contents"`
}

// LoadManifest reads and validates a TOML manifest.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("reading manifest %q: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("manifest %q: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Boot == "" {
		return fmt.Errorf("missing boot command")
	}
	if m.MemoryPages < 0 {
		return fmt.Errorf("negative memory-pages")
	}
	for _, f := range m.Files {
		if f.Path == "" {
			return fmt.Errorf("file entry without a path")
		}
		if f.Program != "" && f.Contents != "" {
			return fmt.Errorf("file %q has both a program and contents", f.Path)
		}
	}
	return nil
}
