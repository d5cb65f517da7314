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

package config

import (
	"flag"
	"testing"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	return fs
}

func TestDefaults(t *testing.T) {
	fs := newFlagSet()
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	conf, err := NewFromFlags(fs)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Debug {
		t.Error("debug defaults to true")
	}
	if conf.LogFormat != "text" {
		t.Errorf("log format = %q, want text", conf.LogFormat)
	}
	if conf.RootDir == "" {
		t.Error("empty default root dir")
	}
}

func TestFromFlags(t *testing.T) {
	fs := newFlagSet()
	if err := fs.Parse([]string{"-debug", "-log-format=json", "-memory-pages=128", "-root=/tmp/x"}); err != nil {
		t.Fatal(err)
	}
	conf, err := NewFromFlags(fs)
	if err != nil {
		t.Fatal(err)
	}
	if !conf.Debug || conf.LogFormat != "json" || conf.MemoryPages != 128 || conf.RootDir != "/tmp/x" {
		t.Errorf("config = %+v", conf)
	}
}

func TestRejectsBadValues(t *testing.T) {
	fs := newFlagSet()
	if err := fs.Parse([]string{"-log-format=xml"}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFlags(fs); err == nil {
		t.Error("accepted bad log format")
	}

	fs = newFlagSet()
	if err := fs.Parse([]string{"-memory-pages=-5"}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFlags(fs); err == nil {
		t.Error("accepted negative memory-pages")
	}
}
