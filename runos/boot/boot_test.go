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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talismancer/minos/runos/config"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
memory-pages = 64
boot = "echo hello world"

[[file]]
path = "echo"
program = "echo"

[[file]]
path = "motd"
contents = "welcome\n"
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.MemoryPages != 64 || m.Boot != "echo hello world" || len(m.Files) != 2 {
		t.Errorf("manifest = %+v", m)
	}
}

func TestLoadManifestRejections(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"missing boot", `memory-pages = 4`},
		{"negative pages", "memory-pages = -1\nboot = \"echo\""},
		{"pathless file", "boot = \"echo\"\n[[file]]\nprogram = \"echo\""},
		{"ambiguous file", "boot = \"echo\"\n[[file]]\npath = \"a\"\nprogram = \"echo\"\ncontents = \"x\""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadManifest(writeManifest(t, tc.contents)); err == nil {
				t.Error("LoadManifest accepted a bad manifest")
			}
		})
	}
}

func TestBootRunsEcho(t *testing.T) {
	m := &Manifest{
		MemoryPages: 256,
		Boot:        "echo hello world",
		Files: []ManifestFile{
			{Path: "echo", Program: "echo"},
		},
	}
	res, err := Boot(&config.Config{}, m)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if res.Status != 0 {
		t.Errorf("status = %d, want 0", res.Status)
	}
	if !strings.Contains(res.Console, "hello world") {
		t.Errorf("console missing output:\n%s", res.Console)
	}
	if !strings.Contains(res.Console, "echo: exit(0)") {
		t.Errorf("console missing exit message:\n%s", res.Console)
	}
}
