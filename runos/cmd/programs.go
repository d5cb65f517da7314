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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/google/subcommands"
	"github.com/talismancer/minos/pkg/platform"
	"github.com/talismancer/minos/pkg/uprog"
)

// Programs implements subcommands.Command for the "programs" command.
type Programs struct{}

// Name implements subcommands.Command.Name.
func (*Programs) Name() string {
	return "programs"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Programs) Synopsis() string {
	return "list the built-in user programs a manifest can reference"
}

// Usage implements subcommands.Command.Usage.
func (*Programs) Usage() string {
	return `programs - list the built-in user programs
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Programs) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Programs) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	reg := make(nameCollector)
	uprog.RegisterAll(reg)
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(os.Stdout, name)
	}
	return subcommands.ExitSuccess
}

type nameCollector map[string]struct{}

// Register implements uprog.Registry.Register.
func (c nameCollector) Register(name string, _ platform.Program) {
	c[name] = struct{}{}
}
