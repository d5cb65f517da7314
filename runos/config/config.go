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

// Package config holds the runos configuration built from command-line
// flags. Flags are registered on a FlagSet with RegisterFlags and read
// back into a Config with NewFromFlags, so every flag has exactly one
// definition site.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Config contains the configuration for running a machine.
type Config struct {
	// RootDir is the state directory; a lock file inside it
	// serializes machines sharing it.
	RootDir string

	// Debug enables verbose logging.
	Debug bool

	// LogFilename is the file to log to, empty for stderr.
	LogFilename string

	// LogFormat is "text" or "json".
	LogFormat string

	// MemoryPages overrides the manifest's page budget when positive.
	MemoryPages int
}

// RegisterFlags adds the configuration flags to the given flag set.
func RegisterFlags(fs *flag.FlagSet) {
	fs.String("root", defaultRootDir(), "state directory for machine locks.")
	fs.Bool("debug", false, "enable debug logging.")
	fs.String("log", "", "file path where logs are written, empty for stderr.")
	fs.String("log-format", "text", "log format: text or json.")
	fs.Int("memory-pages", 0, "override the manifest's physical page budget.")
}

// NewFromFlags reads the registered flags back into a Config.
func NewFromFlags(fs *flag.FlagSet) (*Config, error) {
	conf := &Config{
		RootDir:     fs.Lookup("root").Value.String(),
		LogFilename: fs.Lookup("log").Value.String(),
		LogFormat:   fs.Lookup("log-format").Value.String(),
	}
	if v, ok := fs.Lookup("debug").Value.(flag.Getter); ok {
		conf.Debug = v.Get().(bool)
	}
	if v, ok := fs.Lookup("memory-pages").Value.(flag.Getter); ok {
		conf.MemoryPages = v.Get().(int)
	}
	if conf.LogFormat != "text" && conf.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format %q, must be text or json", conf.LogFormat)
	}
	if conf.MemoryPages < 0 {
		return nil, fmt.Errorf("invalid memory-pages %d", conf.MemoryPages)
	}
	return conf, nil
}

func defaultRootDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "runos")
	}
	return filepath.Join(os.TempDir(), "runos")
}
