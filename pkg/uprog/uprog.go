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

// Package uprog holds the built-in user programs the boot manifest can
// place on the file system.
package uprog

import (
	"strconv"
	"strings"

	"github.com/talismancer/minos/pkg/abi/osys"
	"github.com/talismancer/minos/pkg/platform"
	"github.com/talismancer/minos/pkg/ulib"
)

// Registry is anything programs can be registered with.
type Registry interface {
	Register(name string, p platform.Program)
}

// RegisterAll installs every built-in program.
func RegisterAll(r Registry) {
	r.Register("echo", echo{})
	r.Register("args", argsProg{})
	r.Register("halt", haltProg{})
}

// exitOnResume is the Resume behavior for programs that never fork: a
// restored frame just exits with whatever RAX holds.
type exitOnResume struct{}

func (exitOnResume) Resume(env platform.UserEnv) {
	ulib.Exit(env, int(int32(env.Frame().Regs.RAX)))
}

// echo prints its arguments and exits 0.
type echo struct {
	exitOnResume
}

// Main implements platform.Program.Main.
func (echo) Main(env platform.UserEnv) {
	args := ulib.Args(env)
	ulib.WriteString(env, osys.StdoutFileno, strings.Join(args[1:], " ")+"\n")
	ulib.Exit(env, 0)
}

// argsProg prints the argv layout the loader produced, one line per
// entry, mirroring the classic userprog args test.
type argsProg struct {
	exitOnResume
}

// Main implements platform.Program.Main.
func (argsProg) Main(env platform.UserEnv) {
	args := ulib.Args(env)
	var sb strings.Builder
	sb.WriteString("argc: " + strconv.Itoa(len(args)) + "\n")
	for i, a := range args {
		sb.WriteString("argv[" + strconv.Itoa(i) + "]: '" + a + "'\n")
	}
	ulib.WriteString(env, osys.StdoutFileno, sb.String())
	ulib.Exit(env, 0)
}

// haltProg powers the machine off.
type haltProg struct {
	exitOnResume
}

// Main implements platform.Program.Main.
func (haltProg) Main(env platform.UserEnv) {
	ulib.Halt(env)
}
